package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/52funny/egcda-uavs/uav"
)

func main() {
	register := flag.Bool("register", false, "register a new uav identity with the trusted authority and exit")
	num := flag.Int("num", 1, "with --register, number of uav identities to provision for a fleet simulation")
	taIP := flag.String("ta-ip", "127.0.0.1", "trusted authority host")
	taPort := flag.Int("ta-port", 8090, "trusted authority port")
	gsIP := flag.String("gs-ip", "127.0.0.1", "ground station host")
	gsPort := flag.Int("gs-port", 8091, "ground station port")
	pufIP := flag.String("puf-ip", "127.0.0.1", "puf adapter host")
	pufPort := flag.Int("puf-port", 12345, "puf adapter port")
	allAuthNum := flag.Int("all-auth-num", 0, "batch-authenticate this many previously provisioned fleet identities instead of the single default identity")
	configPath := flag.String("config", uav.ConfigPath, "path to this uav's persisted identity")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	taAddr := fmt.Sprintf("%s:%d", *taIP, *taPort)
	gsAddr := fmt.Sprintf("%s:%d", *gsIP, *gsPort)
	pufAddr := fmt.Sprintf("%s:%d", *pufIP, *pufPort)
	puf := uav.NewPufClient(pufAddr, 5*time.Second)

	if *register {
		if *num <= 1 {
			cfg, err := uav.Register(taAddr, 5*time.Second, puf)
			if err != nil {
				log.Fatal().Err(err).Msg("register")
			}
			if err := cfg.Save(*configPath); err != nil {
				log.Fatal().Err(err).Msg("save config")
			}
			log.Info().Str("uid", cfg.Uid).Str("path", *configPath).Msg("registered")
			return
		}

		for i := 0; i < *num; i++ {
			cfg, err := uav.Register(taAddr, 5*time.Second, puf)
			if err != nil {
				log.Fatal().Err(err).Int("index", i).Msg("register fleet member")
			}
			path := fleetConfigPath(*configPath, i)
			if err := cfg.Save(path); err != nil {
				log.Fatal().Err(err).Int("index", i).Msg("save fleet member config")
			}
			log.Info().Str("uid", cfg.Uid).Str("path", path).Msg("fleet member registered")
		}
		return
	}

	if *allAuthNum > 0 {
		cfgs := make([]uav.Config, *allAuthNum)
		for i := range cfgs {
			cfg, err := uav.LoadConfig(fleetConfigPath(*configPath, i))
			if err != nil {
				log.Fatal().Err(err).Int("index", i).Msg("load fleet member config (run --register --num first)")
			}
			cfgs[i] = cfg
		}
		if err := uav.BatchAuthenticate(gsAddr, 5*time.Second, puf, cfgs); err != nil {
			log.Fatal().Err(err).Msg("batch authenticate")
		}
		log.Info().Int("count", len(cfgs)).Msg("batch authentication successful")
		return
	}

	cfg, err := uav.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config (pass --register first)")
	}

	if err := uav.Authenticate(gsAddr, 5*time.Second, puf, cfg); err != nil {
		log.Fatal().Err(err).Msg("authenticate")
	}
	log.Info().Str("uid", cfg.Uid).Msg("authenticated")

	uidK, err := uav.ListUavIds(gsAddr, 5*time.Second, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("list uav ids")
	}

	kd, err := uav.RecoverGroupKey(gsAddr, 5*time.Second, puf, cfg, uidK)
	if err != nil {
		log.Fatal().Err(err).Msg("recover group key")
	}
	log.Info().Str("k_d", kd.Text(16)).Int("group_size", len(uidK)).Msg("group key recovered")
}

func fleetConfigPath(base string, index int) string {
	return fmt.Sprintf("%s.%d", base, index)
}
