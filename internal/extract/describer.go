package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/kyryl-lebedin/market-analysis/internal/fetcher"
	"github.com/kyryl-lebedin/market-analysis/internal/jobs"
	"github.com/kyryl-lebedin/market-analysis/internal/metrics"
	"github.com/kyryl-lebedin/market-analysis/internal/proxy"
)

// Describer fetches an origin page through a fresh proxy identity and runs
// the extractor over it. It is the worker behind the description stage.
type Describer struct {
	fetcher    fetcher.Fetcher
	identities *proxy.Provider
	extractor  *Extractor
	logger     *zap.Logger
}

// NewDescriber builds a Describer.
func NewDescriber(f fetcher.Fetcher, identities *proxy.Provider, extractor *Extractor, logger *zap.Logger) *Describer {
	return &Describer{
		fetcher:    f,
		identities: identities,
		extractor:  extractor,
		logger:     logger,
	}
}

// Describe returns the extracted description for an origin URL. nil means the
// fetch failed at the transport level; "" means the page was fetched but no
// description could be isolated. Both are retry-eligible.
func (d *Describer) Describe(ctx context.Context, originURL string) *string {
	identity := d.identities.NewIdentity()
	resp, err := d.fetcher.Fetch(ctx, fetcher.Request{
		URL:      originURL,
		Headers:  fetcher.BrowserHeaders(),
		ProxyURL: identity.HTTPProxyURL,
	})
	if err != nil {
		d.logger.Debug("description fetch failed", zap.String("url", originURL), zap.Error(err))
		metrics.DescribeOutcomes.WithLabelValues("transport_error").Inc()
		return nil
	}

	text := d.extractor.Extract(string(resp.Body), jobs.HostOf(originURL))
	return &text
}
