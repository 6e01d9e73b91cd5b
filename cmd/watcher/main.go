// Command watcher is the control-plane binary: it polls the
// authoritative rule store for changes and publishes them into the
// counter store so every gateway replica stays in sync.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlfredDev/ratelimit-gateway/internal/authstore"
	"github.com/AlfredDev/ratelimit-gateway/internal/config"
	"github.com/AlfredDev/ratelimit-gateway/internal/logger"
	"github.com/AlfredDev/ratelimit-gateway/internal/redisclient"
	"github.com/AlfredDev/ratelimit-gateway/internal/watcherproc"
)

func main() {
	seedPath := flag.String("seed", "", "optional YAML file of rules to upsert into the authoritative store before the first poll")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg)

	store, err := authstore.NewPostgres(context.Background(), cfg.AuthStoreDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to authoritative store")
	}
	defer store.Close()

	if *seedPath != "" {
		n, err := authstore.LoadSeed(context.Background(), store, *seedPath)
		if err != nil {
			log.Fatal().Err(err).Str("seed", *seedPath).Msg("failed to load seed file")
		}
		log.Info().Int("count", n).Str("seed", *seedPath).Msg("seed file applied")
	}

	client, err := redisclient.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build redis client")
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.RedisConnectTimeout)
	err = client.Ping(connectCtx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to counter store")
	}
	defer client.Close()

	w := watcherproc.New(store, client.Cmdable(), log, cfg.RulePollInterval, time.Time{})

	ctx, cancelRun := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	log.Info().Dur("interval", cfg.RulePollInterval).Msg("watcher running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("watcher shutting down")
	cancelRun()
	<-done
}
