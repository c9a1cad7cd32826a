package main

import (
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/52funny/egcda-uavs/ta"
	"github.com/52funny/egcda-uavs/wire"
)

type config struct {
	ListenAddr     string
	RequestTimeout time.Duration
	PendingGCEvery time.Duration
}

func newConfig(args ...string) *config {
	cfg := config{
		ListenAddr:     getEnv("TA_LISTEN", "127.0.0.1:8090"),
		RequestTimeout: 30 * time.Second,
		PendingGCEvery: time.Minute,
	}
	for i := 0; i < len(args); i++ {
		if len(args) <= i+1 {
			continue
		}
		switch args[i] {
		case "--listen":
			cfg.ListenAddr = args[i+1]
			i++
		}
	}
	return &cfg
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	cli := newConfig(os.Args[1:]...)
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := ta.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("generate ta keypair")
	}
	svc := ta.NewService(cfg, log)
	log.Info().Str("pubkey", svc.GetTaPubkey()).Msg("ta keypair generated")

	go func() {
		ticker := time.NewTicker(cli.PendingGCEvery)
		defer ticker.Stop()
		for range ticker.C {
			if n := svc.GCStalePending(); n > 0 {
				log.Debug().Int("reclaimed", n).Msg("pending registrations garbage collected")
			}
		}
	}()

	srv := wire.NewServer(log, cli.RequestTimeout)
	ta.RegisterHandlers(srv, svc)

	ln, err := net.Listen("tcp", cli.ListenAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cli.ListenAddr).Msg("listen")
	}
	log.Info().Str("addr", cli.ListenAddr).Msg("ta listening")
	if err := srv.Serve(ln); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
