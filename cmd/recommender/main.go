package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fusionguard/recommender/internal/config"
	"github.com/fusionguard/recommender/internal/health"
	httpapi "github.com/fusionguard/recommender/internal/http"
	"github.com/fusionguard/recommender/internal/logging"
	"github.com/fusionguard/recommender/internal/processor"
	"github.com/fusionguard/recommender/internal/recommend"
	stor "github.com/fusionguard/recommender/internal/storage"
	"github.com/fusionguard/recommender/pkg/catalog"
)

func main() {
	cfgPath := flag.String("config", "configs/dev/recommender.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, err := stor.New(stor.Config{
		PostgresDSN:  cfg.Storage.PostgresDSN,
		WriteResults: cfg.Storage.WriteResults,
		Connect:      cfg.Catalog.Source == config.SourcePostgres,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("create storage")
	}
	defer storage.Close()

	source, err := knowledgeSource(ctx, cfg, storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("prepare knowledge source")
	}

	holder := recommend.NewHolder(source, cfg.Rules)
	if err := holder.Reload(ctx); err != nil {
		logging.Fatal().Err(err).Msg("initial knowledge load")
	}

	if cfg.NATS.Enabled {
		if cfg.NATS.Embedded {
			broker, err := processor.NewEmbeddedServer("0.0.0.0", cfg.NATS.EmbeddedPort)
			if err != nil {
				logging.Fatal().Err(err).Msg("start embedded nats")
			}
			defer broker.Shutdown()
			cfg.NATS.URL = broker.ClientURL()
			logging.Info().Str("url", cfg.NATS.URL).Msg("embedded nats started")
		}

		svc, err := processor.New(cfg.NATS, holder, storage)
		if err != nil {
			logging.Fatal().Err(err).Msg("new processor")
		}
		defer svc.Close()

		if err := svc.Start(ctx); err != nil {
			logging.Fatal().Err(err).Msg("start processor")
		}
	}

	api := httpapi.New(holder, storage).
		WithRateLimit(cfg.Service.RateLimit.Requests, cfg.Service.RateLimit.Window)
	router := httpapi.NewRouter(api)
	router.Handle("/health", health.Handler(holder))
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         cfg.Service.HTTPAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", cfg.Service.HTTPAddr).Str("source", cfg.Catalog.Source).
			Msg("recommender listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("http server")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for s := range sig {
		if s != syscall.SIGHUP {
			break
		}
		reloadCtx, cancelReload := context.WithTimeout(ctx, cfg.Timeout)
		if err := holder.Reload(reloadCtx); err != nil {
			logging.Error().Err(err).Msg("reload on SIGHUP, keeping previous knowledge")
		}
		cancelReload()
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logging.Warn().Err(err).Msg("shutdown")
	}
}

// knowledgeSource picks where the catalog comes from, seeding Postgres from
// the knowledge file first when configured to.
func knowledgeSource(ctx context.Context, cfg *config.Config, storage *stor.Storage) (recommend.Source, error) {
	if cfg.Catalog.Source == config.SourceFile {
		return recommend.FileSource{Path: cfg.Catalog.KnowledgePath}, nil
	}

	if cfg.Catalog.SeedFromFile {
		cat, kb, err := catalog.LoadFile(cfg.Catalog.KnowledgePath)
		if err != nil {
			return nil, err
		}
		seedCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := storage.Seed(seedCtx, cat, kb); err != nil {
			return nil, err
		}
		logging.Info().Int("products", cat.Len()).Msg("seeded postgres catalog")
	}
	return storage, nil
}
