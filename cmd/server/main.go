package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"valley-transit/internal/cache"
	"valley-transit/internal/config"
	"valley-transit/internal/db"
	"valley-transit/internal/genai"
	"valley-transit/internal/metrics"
	"valley-transit/internal/planner"
	"valley-transit/internal/publisher"
	"valley-transit/internal/server"
	"valley-transit/internal/sim"
	"valley-transit/internal/transit"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Static network: Postgres when configured, built-in defaults otherwise.
	network := loadNetwork(ctx, cfg)
	log.Printf("network loaded: %d routes, %d stations", len(network.Routes), len(network.Stations))

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.TickInterval)
		srv := mcol.Serve(cfg.MetricsAddr)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Simulation clock with the default stochastic delay source.
	clock := sim.NewClock(network.Routes, cfg.TickInterval, nil, clockMetrics(mcol))

	// Optional NATS publisher for downstream consumers.
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, cfg.LogNATSSubject, publisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		clock.Subscribe(pub)
	} else {
		log.Printf("NATS_URL not set, snapshot publishing disabled")
	}

	// Planner over the reasoning service, with suggestion memoization.
	if cfg.GeminiKey == "" {
		log.Printf("GEMINI_API_KEY not set: planning will fail, suggestions will be empty")
	}
	suggestCache := cache.New(time.Minute, 5*time.Minute)
	defer suggestCache.Stop()
	p := planner.New(genai.NewClient(cfg.GeminiKey, cfg.GeminiModel), suggestCache)

	// HTTP surface; its websocket hub watches the clock too.
	srv := server.New(clock, p, network, mcol, cfg.SuggestDebounce)
	clock.Subscribe(srv.Hub())

	clock.Start(ctx)

	go func() {
		<-ctx.Done()
		clock.Stop()
		if err := srv.Shutdown(); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	log.Printf("listening on :%s", cfg.Port)
	if err := srv.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
	log.Println("shutdown complete")
}

// loadNetwork reads the network from Postgres when a DSN is present,
// creating and seeding the schema on first run. Anything short of a
// usable network falls back to the built-in defaults.
func loadNetwork(ctx context.Context, cfg *config.Config) transit.Network {
	if cfg.DatabaseURL == "" {
		return transit.DefaultNetwork()
	}
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Printf("db open error: %v (using built-in network)", err)
		return transit.DefaultNetwork()
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Printf("db ping error: %v (using built-in network)", err)
		return transit.DefaultNetwork()
	}
	if err := db.EnsureSchema(ctx, sqlDB); err != nil {
		log.Printf("ensure schema error: %v (using built-in network)", err)
		return transit.DefaultNetwork()
	}
	if err := db.SeedDefaults(ctx, sqlDB); err != nil {
		log.Printf("seed defaults error: %v (using built-in network)", err)
		return transit.DefaultNetwork()
	}
	network, err := db.LoadNetwork(ctx, sqlDB)
	if err != nil {
		log.Printf("load network error: %v (using built-in network)", err)
		return transit.DefaultNetwork()
	}
	if len(network.Routes) == 0 {
		log.Printf("database has no simulatable routes, using built-in network")
		return transit.DefaultNetwork()
	}
	return network
}

// clockMetrics and publisherMetrics keep nil collectors out of the
// interface values handed to the clock and publisher.

func clockMetrics(c *metrics.Collector) sim.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func publisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return c
}
