package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/orderingsystem/order-service/internal/cart"
	"github.com/orderingsystem/order-service/internal/config"
	"github.com/orderingsystem/order-service/internal/event"
	"github.com/orderingsystem/order-service/internal/order"
	"github.com/orderingsystem/order-service/internal/shard"
	"github.com/orderingsystem/order-service/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "order-service").Logger()

	log.Info().Msg("Order service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	topology, err := shard.New(context.Background(), cfg.Postgres, cfg.Sharding)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to shards")
	}
	defer topology.Close()

	if err := topology.Migrate(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply shard migrations")
	}

	publisher, closePublisher, err := event.NewRabbitPublisher(cfg.Rabbit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}
	defer closePublisher()

	repo := order.NewShardedRepository(topology)
	carts := cart.NewHTTPClient(cfg.Cart)
	svc := order.NewService(repo, carts, publisher)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      transport.NewRouter(svc),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Int("shards", topology.ShardCount()).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
