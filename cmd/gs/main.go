package main

import (
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/52funny/egcda-uavs/gs"
	"github.com/52funny/egcda-uavs/wire"
)

type config struct {
	Gid            string
	ListenAddr     string
	TaAddr         string
	RequestTimeout time.Duration
	RefreshEvery   time.Duration
}

func newConfig(args ...string) *config {
	cfg := config{
		Gid:            getEnv("GS_GID", "gs-1"),
		ListenAddr:     getEnv("GS_LISTEN", "127.0.0.1:8091"),
		TaAddr:         getEnv("TA_ADDR", "127.0.0.1:8090"),
		RequestTimeout: 30 * time.Second,
		RefreshEvery:   30 * time.Second,
	}
	for i := 0; i < len(args); i++ {
		if len(args) <= i+1 {
			continue
		}
		switch args[i] {
		case "--gid":
			cfg.Gid = args[i+1]
			i++
		case "--listen":
			cfg.ListenAddr = args[i+1]
			i++
		case "--ta":
			cfg.TaAddr = args[i+1]
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

	cfg, err := gs.NewConfig(cli.Gid)
	if err != nil {
		log.Fatal().Err(err).Msg("generate gs keypair")
	}

	taClient, err := gs.DialTa(cli.TaAddr, cli.RequestTimeout)
	if err != nil {
		log.Fatal().Err(err).Str("ta", cli.TaAddr).Msg("dial ta")
	}
	defer taClient.Close()

	if err := taClient.Register(cfg); err != nil {
		log.Fatal().Err(err).Msg("register with ta")
	}
	pkT, _, err := taClient.Authenticate(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("authenticate to ta")
	}
	log.Info().Str("gid", cli.Gid).Msg("authenticated to ta")

	svc := gs.NewService(cfg, pkT, log)

	// K_AES is never reused across two directory ciphertexts: the all-zero
	// GCM nonce makes key reuse fatal, so each fetch re-authenticates to
	// derive a fresh session key first.
	refreshDirectory := func() {
		_, key, err := taClient.Authenticate(cfg)
		if err != nil {
			log.Error().Err(err).Msg("re-authenticate to ta")
			return
		}
		entries, err := taClient.FetchDirectory(cli.Gid, key)
		if err != nil {
			log.Error().Err(err).Msg("fetch uav directory")
			return
		}
		if err := svc.InstallDirectory(entries); err != nil {
			log.Error().Err(err).Msg("install uav directory")
		}
	}
	refreshDirectory()

	go func() {
		ticker := time.NewTicker(cli.RefreshEvery)
		defer ticker.Stop()
		for range ticker.C {
			refreshDirectory()
		}
	}()

	srv := wire.NewServer(log, cli.RequestTimeout)
	gs.RegisterHandlers(srv, svc)

	ln, err := net.Listen("tcp", cli.ListenAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cli.ListenAddr).Msg("listen")
	}
	log.Info().Str("addr", cli.ListenAddr).Msg("gs listening")
	if err := srv.Serve(ln); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
