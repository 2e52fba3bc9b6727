package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agroprecios/backend/config"
	httpDelivery "github.com/agroprecios/backend/internal/delivery/http"
	"github.com/agroprecios/backend/internal/domain"
	"github.com/agroprecios/backend/internal/infrastructure/cache"
	"github.com/agroprecios/backend/internal/infrastructure/retailer"
	"github.com/agroprecios/backend/internal/infrastructure/store"
	"github.com/agroprecios/backend/internal/logger"
	"github.com/agroprecios/backend/internal/usecase"
)

func main() {
	serve := flag.Bool("serve", false, "start the HTTP server instead of running once")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-serve] [retailer ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	os.Exit(run(*serve, flag.Args()))
}

func run(serve bool, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Log.Level, cfg.Server.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting agroprecios",
		zap.String("version", httpDelivery.Version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("store", cfg.Store.Type),
	)

	taxonomy, err := buildTaxonomy(cfg.Classifier)
	if err != nil {
		log.Error("invalid taxonomy", zap.Error(err))
		return 1
	}
	classifier := usecase.NewClassifier(taxonomy)
	assembler := usecase.NewRecordAssembler(classifier, usecase.NewUnitParser())

	stores, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		return 1
	}
	defer closeStore()

	categoryCache := cache.NewMemoryCache(0)
	defer categoryCache.Close()

	client := retailer.NewClient(retailer.ClientConfig{
		Timeout:           cfg.Fetch.RequestTimeout,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
		UserAgent:         cfg.Fetch.UserAgent,
		Retry: retailer.RetryPolicy{
			MaxRetries:           cfg.Fetch.MaxRetries,
			BackoffFactor:        cfg.Fetch.BackoffFactor,
			RetryableStatusCodes: cfg.Fetch.RetryableStatusCodes,
		},
	}, log)
	fetchers := retailer.BuildFetchers(client, taxonomy.GroupKeywords(), cfg.Fetch.Retailers)

	orchestrator := usecase.NewFetchOrchestrator(assembler, categoryCache, log, usecase.FetchOrchestratorConfig{
		Workers:         cfg.Fetch.Workers,
		CategoryTimeout: cfg.Fetch.CategoryTimeout,
		CategoryTTL:     cfg.Fetch.CategoryCacheTTL,
	})
	syncer := usecase.NewIncrementalSync(usecase.KeyGranularity(cfg.Store.KeyGranularity), log)
	pipeline := usecase.NewPipelineService(fetchers, orchestrator, syncer, stores, usecase.PipelineConfig{
		SheetName:        cfg.Store.SheetName,
		RotateOnOverflow: cfg.Store.RotateOnOverflow,
	}, log)

	if serve {
		handler := httpDelivery.NewHandler(pipeline, assembler, log)
		router := httpDelivery.SetupRouter(cfg, handler, log)
		if err := listen(ctx, router, cfg.Server.Port, log); err != nil {
			log.Error("server failed", zap.Error(err))
			return 1
		}
		return 0
	}

	selected := selectRetailers(args, pipeline.Retailers(), log)
	summary, err := pipeline.Run(ctx, selected)
	if err != nil {
		log.Error("pipeline run failed", zap.Error(err))
		return exitCode(err)
	}
	log.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.String("segment", summary.Segment),
		zap.Int("appended", summary.Appended),
	)
	return 0
}

func buildTaxonomy(cfg config.ClassifierConfig) (*usecase.Taxonomy, error) {
	if cfg.TaxonomyFile == "" {
		return usecase.DefaultTaxonomy(), nil
	}
	spec, err := config.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}
	return usecase.NewTaxonomy(spec)
}

func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (domain.StoreOpener, func(), error) {
	switch cfg.Type {
	case "postgres":
		s, err := store.NewPostgresStore(ctx, cfg.DSN, cfg.Limits(), cfg.InitialRows, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(ctx, cfg.DSN, cfg.Limits(), cfg.InitialRows, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return store.NewMemoryStore(cfg.Limits(), cfg.InitialRows), func() {}, nil
	}
}

// selectRetailers drops names no fetcher serves; an empty result selects all
func selectRetailers(args, known []string, log *zap.Logger) []string {
	var selected []string
	for _, arg := range args {
		name := strings.ToLower(strings.TrimSpace(arg))
		if slices.Contains(known, name) {
			selected = append(selected, name)
			continue
		}
		log.Warn("ignoring unknown retailer", zap.String("retailer", arg))
	}
	return selected
}

// exitCode fails the process only for errors that need an operator
func exitCode(err error) int {
	if errors.Is(err, domain.ErrStoreCapacityExceeded) || errors.Is(err, domain.ErrStoreAuth) {
		return 1
	}
	return 0
}

func listen(ctx context.Context, handler http.Handler, port string, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}
