package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"viatrack/internal/api"
	"viatrack/internal/cache"
	"viatrack/internal/config"
	"viatrack/internal/fanout"
	"viatrack/internal/health"
	"viatrack/internal/ingest/udp"
	"viatrack/internal/relay/kafka"
	"viatrack/internal/relay/rabbitmq"
	"viatrack/internal/storage/sqlite"
)

func main() {
	cfgPath := flag.String("config", "viatrack.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("viatrackd: %v", err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := health.NewState()

	store, err := sqlite.NewStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// A dead database does not keep the process from starting: listeners
	// still bind so the health probe can report the degraded state.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		state.MarkDegraded(fmt.Sprintf("startup store check: %v", err))
	}
	cancel()

	hub := fanout.NewHub()

	var latest *cache.LatestFix
	if cfg.Cache.RedisURL != "" {
		latest, err = cache.NewLatestFix(cache.Config{RedisURL: cfg.Cache.RedisURL, TTL: cfg.Cache.TTL})
		if err != nil {
			log.Printf("latest-fix cache disabled: %v", err)
		} else {
			defer latest.Close()
			hub.Subscribe(latest)
			log.Printf("latest-fix cache enabled")
		}
	}

	if cfg.Relay.Kafka.Enabled {
		relay, err := kafka.NewRelay(kafka.Config{Brokers: cfg.Relay.Kafka.Brokers, Topic: cfg.Relay.Kafka.Topic})
		if err != nil {
			log.Printf("kafka relay disabled: %v", err)
		} else {
			hub.Subscribe(relay)
			log.Printf("kafka relay enabled: topic=%s", cfg.Relay.Kafka.Topic)
		}
	}
	if cfg.Relay.RabbitMQ.Enabled {
		relay, err := rabbitmq.NewRelay(rabbitmq.Config{
			URL:        cfg.Relay.RabbitMQ.URL,
			Exchange:   cfg.Relay.RabbitMQ.Exchange,
			RoutingKey: cfg.Relay.RabbitMQ.RoutingKey,
		})
		if err != nil {
			log.Printf("rabbitmq relay disabled: %v", err)
		} else {
			hub.Subscribe(relay)
			log.Printf("rabbitmq relay enabled: exchange=%s", cfg.Relay.RabbitMQ.Exchange)
		}
	}

	listener := udp.NewListener(udp.Config{Address: cfg.Server.UDPAddr}, store, hub, state)
	udpErr := make(chan error, 1)
	go func() { udpErr <- listener.Start(ctx) }()

	gateway := api.NewGateway(store, state, hub, latest)
	srv := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: gateway.Router(cfg.Server.StaticDir)}
	httpErr := make(chan error, 1)
	go func() {
		log.Printf("http gateway listening on %s", cfg.Server.HTTPAddr)
		httpErr <- srv.ListenAndServe()
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			log.Printf("shutting down")
			break loop
		case err := <-udpErr:
			// Losing the ingest listener degrades the process but does
			// not stop it: the gateway keeps serving health and reads.
			if err != nil {
				state.MarkDegraded(fmt.Sprintf("udp listener: %v", err))
			}
			udpErr = nil
		case err := <-httpErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = listener.Close()
	_ = srv.Shutdown(shutdownCtx)
	return nil
}
