// Package pipeline orchestrates the ingest, resolution, and description
// stages over a single record set.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kyryl-lebedin/market-analysis/internal/batch"
	"github.com/kyryl-lebedin/market-analysis/internal/config"
	"github.com/kyryl-lebedin/market-analysis/internal/extract"
	"github.com/kyryl-lebedin/market-analysis/internal/ingest"
	"github.com/kyryl-lebedin/market-analysis/internal/jobs"
	"github.com/kyryl-lebedin/market-analysis/internal/metrics"
	"github.com/kyryl-lebedin/market-analysis/internal/publish"
	"github.com/kyryl-lebedin/market-analysis/internal/resolve"
	"github.com/kyryl-lebedin/market-analysis/internal/storage"
)

// Pipeline owns the record set as it moves through the stages. Each stage
// takes the set and returns a new one; no two stages hold it concurrently.
type Pipeline struct {
	searcher  *ingest.Client
	resolver  *resolve.Resolver
	describer *extract.Describer
	store     storage.BlobStore
	publisher publish.Publisher
	cfg       config.Config
	logger    *zap.Logger
}

// New wires the pipeline together. publisher may be nil to disable
// completion events.
func New(
	searcher *ingest.Client,
	resolver *resolve.Resolver,
	describer *extract.Describer,
	store storage.BlobStore,
	publisher publish.Publisher,
	cfg config.Config,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		searcher:  searcher,
		resolver:  resolver,
		describer: describer,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the full pipeline: search ingest to bronze, URL resolution to
// silver, description extraction to gold. Residual failures are surfaced in
// logs and events, never as errors; only an empty ingest or a storage fault
// fails the run.
func (p *Pipeline) Run(ctx context.Context, runName string, params ingest.SearchParams, pages []int) error {
	postings, searchErrs := p.searcher.Search(ctx, params, pages)
	if len(searchErrs) > 0 {
		p.logger.Warn("some search pages failed", zap.Int("failed_pages", len(searchErrs)))
	}
	if len(postings) == 0 {
		return fmt.Errorf("search returned no postings")
	}
	p.logger.Info("ingested postings", zap.Int("count", len(postings)))

	if err := p.saveTier(ctx, storage.TierBronze, runName, postings, 0); err != nil {
		return err
	}

	postings = p.resolveStage(ctx, postings)
	postings = jobs.Normalize(postings, p.cfg.Hosts.Allowed)
	p.logger.Info("normalized record set", zap.Int("kept", len(postings)), zap.Strings("allowed_hosts", p.cfg.Hosts.Allowed))

	residual := jobs.CountFailures(postings, jobs.Posting.ResolveFailed)
	if err := p.saveTier(ctx, storage.TierSilver, runName, postings, residual); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	postings = p.describeStage(ctx, postings)

	residual = jobs.CountFailures(postings, jobs.Posting.DescribeFailed)
	if err := p.saveTier(ctx, storage.TierGold, runName, postings, residual); err != nil {
		return err
	}
	return ctx.Err()
}

// resolveStage runs the redirect resolver under the fault-rate controller.
// Only postings whose tracking URL carries the redirect marker count toward
// the retry denominator; the rest resolve to themselves with no network call.
func (p *Pipeline) resolveStage(ctx context.Context, postings []jobs.Posting) []jobs.Posting {
	stage := func(ctx context.Context, records []jobs.Posting) []jobs.Posting {
		urls := make([]string, len(records))
		for i, r := range records {
			urls[i] = r.TrackingURL
		}
		results := batch.Execute(ctx, urls, func(u string) *string {
			return p.resolver.Resolve(ctx, u)
		}, p.cfg.Resolve.MaxWorkers, p.progressObserver("resolve"))

		out := slices.Clone(records)
		for i := range out {
			out[i].ResolvedURL = results[i]
		}
		return out
	}

	out := batch.RunWithRetry(
		ctx,
		postings,
		func(r jobs.Posting) int { return r.ID },
		stage,
		jobs.Posting.ResolveFailed,
		func(r jobs.Posting) bool { return p.resolver.RequiresResolution(r.TrackingURL) },
		batch.RetryOptions{
			AcceptableFaultRate: p.cfg.Resolve.AcceptableFaultRate,
			MaxTries:            p.cfg.Resolve.MaxTries,
			RunInitialPass:      p.cfg.Resolve.RunInitialPass,
		},
		p.passObserver("resolve"),
	)

	residual := jobs.CountFailures(out, jobs.Posting.ResolveFailed)
	metrics.ResidualFailures.WithLabelValues("resolve").Set(float64(residual))
	p.logger.Info("resolution stage finished", zap.Int("residual_failures", residual))
	return out
}

// describeStage fetches each resolved origin page and extracts the full
// description. Every record is eligible here.
func (p *Pipeline) describeStage(ctx context.Context, postings []jobs.Posting) []jobs.Posting {
	stage := func(ctx context.Context, records []jobs.Posting) []jobs.Posting {
		urls := make([]string, len(records))
		for i, r := range records {
			if r.ResolvedURL != nil {
				urls[i] = *r.ResolvedURL
			}
		}
		results := batch.Execute(ctx, urls, func(u string) *string {
			return p.describer.Describe(ctx, u)
		}, p.cfg.Describe.MaxWorkers, p.progressObserver("describe"))

		out := slices.Clone(records)
		for i := range out {
			out[i].Description = results[i]
		}
		return out
	}

	out := batch.RunWithRetry(
		ctx,
		postings,
		func(r jobs.Posting) int { return r.ID },
		stage,
		jobs.Posting.DescribeFailed,
		func(jobs.Posting) bool { return true },
		batch.RetryOptions{
			AcceptableFaultRate: p.cfg.Describe.AcceptableFaultRate,
			MaxTries:            p.cfg.Describe.MaxTries,
			RunInitialPass:      p.cfg.Describe.RunInitialPass,
		},
		p.passObserver("describe"),
	)

	residual := jobs.CountFailures(out, jobs.Posting.DescribeFailed)
	metrics.ResidualFailures.WithLabelValues("describe").Set(float64(residual))
	p.logger.Info("description stage finished", zap.Int("residual_failures", residual))
	return out
}

func (p *Pipeline) progressObserver(stageName string) batch.Progress {
	return func(done, total int) {
		p.logger.Info("processed batch",
			zap.String("stage", stageName),
			zap.Int("done", done),
			zap.Int("total", total),
		)
	}
}

func (p *Pipeline) passObserver(stageName string) batch.PassObserver {
	return func(failing, denominator, triesLeft int) {
		metrics.RetryPasses.WithLabelValues(stageName).Inc()
		p.logger.Info("retry pass finished",
			zap.String("stage", stageName),
			zap.Int("failing", failing),
			zap.Int("denominator", denominator),
			zap.Int("tries_left", triesLeft),
		)
	}
}

func (p *Pipeline) saveTier(ctx context.Context, tier, runName string, postings []jobs.Posting, failures int) error {
	uri, err := storage.SaveRecords(ctx, p.store, p.cfg.Storage.Prefix, tier, runName, postings)
	if err != nil {
		return fmt.Errorf("persist %s tier: %w", tier, err)
	}
	p.logger.Info("tier saved", zap.String("tier", tier), zap.String("uri", uri), zap.Int("records", len(postings)))

	if p.publisher == nil || p.cfg.PubSub.TopicName == "" {
		return nil
	}
	event := publish.TierEvent{
		RunName:   runName,
		Tier:      tier,
		URI:       uri,
		Records:   len(postings),
		Failures:  failures,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.PubSub.TopicName, event); err != nil {
		p.logger.Warn("publish tier event failed", zap.String("tier", tier), zap.Error(err))
	}
	return nil
}
