// Command gateway is the data-plane binary: it matches an incoming
// request against the live rule set, enforces the matched rule's
// limiter algorithm, and serves the decision.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AlfredDev/ratelimit-gateway/internal/config"
	"github.com/AlfredDev/ratelimit-gateway/internal/gatewayhttp"
	"github.com/AlfredDev/ratelimit-gateway/internal/limiter"
	"github.com/AlfredDev/ratelimit-gateway/internal/logger"
	"github.com/AlfredDev/ratelimit-gateway/internal/metrics"
	"github.com/AlfredDev/ratelimit-gateway/internal/redisclient"
	"github.com/AlfredDev/ratelimit-gateway/internal/router"
	"github.com/AlfredDev/ratelimit-gateway/internal/ruleplane"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

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

	engine := limiter.NewEngine(client.Cmdable())
	if err := engine.Preload(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to preload limiter scripts")
	}

	plane := ruleplane.New(client.Cmdable(), log)
	if err := plane.Bootstrap(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap rule plane")
	}

	planeCtx, cancelPlane := context.WithCancel(context.Background())
	defer cancelPlane()
	go plane.Run(planeCtx)

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	decision := gatewayhttp.New(plane, client.Cmdable(), engine, recorder, log)

	handler := router.NewRouter(cfg, log, decision, true)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("gateway server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("gateway shutting down")
	cancelPlane()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown error")
	}
}
