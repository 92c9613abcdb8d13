// Package resolve turns tracking URLs from the search API into the true
// origin URLs of job postings.
package resolve

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kyryl-lebedin/market-analysis/internal/fetcher"
	"github.com/kyryl-lebedin/market-analysis/internal/jobs"
	"github.com/kyryl-lebedin/market-analysis/internal/metrics"
	"github.com/kyryl-lebedin/market-analysis/internal/proxy"
)

// metaRefreshPattern matches a markup-level refresh directive and captures
// its target URL. Tracking pages use this instead of HTTP redirects.
var metaRefreshPattern = regexp.MustCompile(`(?i)<meta[^>]*http-equiv=["']?refresh["']?[^>]*content=["']?\d+;\s*url=([^"'>\s]+)`)

// defaultScriptPatterns are the recognized script-embedded navigation forms on
// intermediary click-tracking pages. The list is extensible via
// Config.ExtraScriptPatterns; real-world pages keep growing new variants.
var defaultScriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)navigateTo\([^,]+,\s*[^,]+,\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)window\.location\.(?:href|replace)\s*=\s*["']([^"']+)["']`),
}

// Config controls resolution behavior.
type Config struct {
	// TrackingMarker identifies URLs that need resolution at all. URLs
	// without it are already origin URLs and resolve to themselves with no
	// network call.
	TrackingMarker string
	// IntermediaryMarker identifies the secondary click-tracking host whose
	// pages embed the destination in script rather than markup.
	IntermediaryMarker string
	// ExtraScriptPatterns are additional regular expressions scanned on
	// intermediary pages. Each must capture the destination URL in group 1.
	ExtraScriptPatterns []string
}

func (c *Config) applyDefaults() {
	if c.TrackingMarker == "" {
		c.TrackingMarker = "/land/"
	}
	if c.IntermediaryMarker == "" {
		c.IntermediaryMarker = "click.appcast"
	}
}

// Resolver resolves tracking URLs through a rotating proxy. Safe for
// concurrent use; every fetch gets a fresh proxy identity.
type Resolver struct {
	fetcher        fetcher.Fetcher
	identities     *proxy.Provider
	cfg            Config
	scriptPatterns []*regexp.Regexp
	logger         *zap.Logger
}

// New builds a Resolver. Extra script patterns that fail to compile are
// rejected here rather than silently ignored at resolve time.
func New(f fetcher.Fetcher, identities *proxy.Provider, cfg Config, logger *zap.Logger) (*Resolver, error) {
	cfg.applyDefaults()
	patterns := append([]*regexp.Regexp(nil), defaultScriptPatterns...)
	for _, raw := range cfg.ExtraScriptPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return &Resolver{
		fetcher:        f,
		identities:     identities,
		cfg:            cfg,
		scriptPatterns: patterns,
		logger:         logger,
	}, nil
}

// RequiresResolution reports whether the URL carries the tracking marker.
// Records without it are trivially successful and excluded from the retry
// denominator.
func (r *Resolver) RequiresResolution(rawURL string) bool {
	return strings.Contains(rawURL, r.cfg.TrackingMarker)
}

// Resolve returns the origin URL behind a tracking URL.
//
// The returned pointer is nil on transport failure, the jobs.Blocked sentinel
// when the request succeeded but no destination could be determined (the
// dominant outcome under anti-bot interception), and the resolved URL
// otherwise. Both failure kinds are retry-eligible.
func (r *Resolver) Resolve(ctx context.Context, trackingURL string) *string {
	if !r.RequiresResolution(trackingURL) {
		metrics.ResolveOutcomes.WithLabelValues("passthrough").Inc()
		return &trackingURL
	}

	body, err := r.fetch(ctx, trackingURL)
	if err != nil {
		r.logger.Debug("tracking fetch failed", zap.String("url", trackingURL), zap.Error(err))
		metrics.ResolveOutcomes.WithLabelValues("transport_error").Inc()
		return nil
	}

	if m := metaRefreshPattern.FindStringSubmatch(body); m != nil {
		candidate := m[1]
		if strings.Contains(candidate, r.cfg.IntermediaryMarker) {
			return r.followIntermediary(ctx, candidate)
		}
		metrics.ResolveOutcomes.WithLabelValues("resolved").Inc()
		return &candidate
	}

	// No refresh directive. The original URL may itself be the intermediary,
	// in which case the destination sits in the body we already have.
	if strings.Contains(trackingURL, r.cfg.IntermediaryMarker) {
		if dest := r.scanScripts(body); dest != "" {
			metrics.ResolveOutcomes.WithLabelValues("resolved").Inc()
			return &dest
		}
	}

	metrics.ResolveOutcomes.WithLabelValues("blocked").Inc()
	blocked := jobs.Blocked
	return &blocked
}

// followIntermediary makes one follow-up request to the click-tracking host
// and scans its response for a script-embedded destination. When no pattern
// matches, the intermediary URL itself is returned as the candidate; the
// normalizer drops it later unless its host is allowed.
func (r *Resolver) followIntermediary(ctx context.Context, intermediaryURL string) *string {
	body, err := r.fetch(ctx, intermediaryURL)
	if err != nil {
		r.logger.Debug("intermediary fetch failed", zap.String("url", intermediaryURL), zap.Error(err))
		metrics.ResolveOutcomes.WithLabelValues("transport_error").Inc()
		return nil
	}
	if dest := r.scanScripts(body); dest != "" {
		metrics.ResolveOutcomes.WithLabelValues("resolved").Inc()
		return &dest
	}
	metrics.ResolveOutcomes.WithLabelValues("resolved").Inc()
	return &intermediaryURL
}

func (r *Resolver) scanScripts(body string) string {
	for _, re := range r.scriptPatterns {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	return ""
}

func (r *Resolver) fetch(ctx context.Context, url string) (string, error) {
	identity := r.identities.NewIdentity()
	resp, err := r.fetcher.Fetch(ctx, fetcher.Request{
		URL:      url,
		Headers:  fetcher.BrowserHeaders(),
		ProxyURL: identity.HTTPProxyURL,
	})
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
