package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kyryl-lebedin/market-analysis/internal/api"
	"github.com/kyryl-lebedin/market-analysis/internal/config"
	"github.com/kyryl-lebedin/market-analysis/internal/extract"
	collyfetcher "github.com/kyryl-lebedin/market-analysis/internal/fetcher/colly"
	"github.com/kyryl-lebedin/market-analysis/internal/ingest"
	"github.com/kyryl-lebedin/market-analysis/internal/logging"
	"github.com/kyryl-lebedin/market-analysis/internal/pipeline"
	"github.com/kyryl-lebedin/market-analysis/internal/proxy"
	"github.com/kyryl-lebedin/market-analysis/internal/publish"
	pubsubpublisher "github.com/kyryl-lebedin/market-analysis/internal/publish/pubsub"
	"github.com/kyryl-lebedin/market-analysis/internal/resolve"
	"github.com/kyryl-lebedin/market-analysis/internal/storage"
	"github.com/kyryl-lebedin/market-analysis/internal/storage/gcs"
	"github.com/kyryl-lebedin/market-analysis/internal/storage/local"
)

type runFlags struct {
	name    string
	country string
	what    string
	whatAnd string
	whatOr  string
	where   string
	pages   []int
}

// newRunCmd creates the 'run' subcommand executing the full pipeline.
func newRunCmd() *cobra.Command {
	flags := runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the ingest, resolution, and description stages end to end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.name, "name", "", "run name used in saved artifact paths (generated when empty)")
	cmd.Flags().StringVar(&flags.country, "country", "gb", "Adzuna country code")
	cmd.Flags().StringVar(&flags.what, "what", "", "keyword query")
	cmd.Flags().StringVar(&flags.whatAnd, "what-and", "", "all of these keywords")
	cmd.Flags().StringVar(&flags.whatOr, "what-or", "", "any of these keywords")
	cmd.Flags().StringVar(&flags.where, "where", "", "location filter")
	cmd.Flags().IntSliceVar(&flags.pages, "pages", []int{1}, "result pages to fetch")
	return cmd
}

func runPipeline(parent context.Context, flags runFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flags.name == "" {
		flags.name = fmt.Sprintf("run-%s-%s", time.Now().UTC().Format("2006-01-02"), uuid.NewString()[:8])
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// An interrupt is a normal exit path: stages return their best-effort
	// partial results and the tiers written so far stay on disk.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Server.Port > 0 {
		srv := api.NewServer(cfg.Server.Port, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	params := ingest.SearchParams{
		Country: flags.country,
		What:    flags.what,
		WhatAnd: flags.whatAnd,
		WhatOr:  flags.whatOr,
		Where:   flags.where,
	}

	logger.Info("pipeline starting", zap.String("run_name", flags.name), zap.Ints("pages", flags.pages))
	if err := p.Run(ctx, flags.name, params, flags.pages); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("pipeline interrupted, partial results saved")
			return nil
		}
		return fmt.Errorf("run pipeline: %w", err)
	}
	logger.Info("pipeline finished")
	return nil
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Pipeline, func(), error) {
	cleanup := func() {}

	searcher, err := ingest.NewClient(cfg.Adzuna, logger.Named("ingest"))
	if err != nil {
		return nil, cleanup, err
	}
	identities, err := proxy.NewProvider(cfg.Proxy)
	if err != nil {
		return nil, cleanup, err
	}

	httpFetcher := collyfetcher.New(collyfetcher.Config{
		Timeout:      time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxRedirects: cfg.HTTP.MaxRedirects,
	})

	resolver, err := resolve.New(httpFetcher, identities, resolve.Config{
		TrackingMarker:      cfg.Resolver.TrackingMarker,
		IntermediaryMarker:  cfg.Resolver.IntermediaryMarker,
		ExtraScriptPatterns: cfg.Resolver.ExtraScriptPatterns,
	}, logger.Named("resolve"))
	if err != nil {
		return nil, cleanup, err
	}

	extractor := extract.New(logger.Named("extract"))
	describer := extract.NewDescriber(httpFetcher, identities, extractor, logger.Named("describe"))

	store, storeCleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, cleanup, err
	}

	publisher, pubCleanup, err := buildPublisher(ctx, cfg)
	if err != nil {
		storeCleanup()
		return nil, cleanup, err
	}
	cleanup = func() {
		pubCleanup()
		storeCleanup()
	}

	return pipeline.New(searcher, resolver, describer, store, publisher, cfg, logger.Named("pipeline")), cleanup, nil
}

func buildStore(ctx context.Context, cfg config.Config) (storage.BlobStore, func(), error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (publish.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return nil, func() {}, nil
	}
	client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	publisher, err := pubsubpublisher.New(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, func() { _ = client.Close() }, nil
}
