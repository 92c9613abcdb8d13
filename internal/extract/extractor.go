// Package extract isolates job description text from heterogeneous,
// uncontrolled job-board HTML.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/kyryl-lebedin/market-analysis/internal/metrics"
)

// Strategy locates a host-specific content container in parsed markup and
// returns its visible text, or "" when the expected structure is absent.
type Strategy interface {
	Extract(doc *goquery.Document) string
}

// Extractor dispatches HTML to a per-host parsing strategy. The registry is
// populated at construction; Register adds or replaces entries afterwards.
type Extractor struct {
	registry map[string]Strategy
	logger   *zap.Logger
}

// New builds an Extractor with the known job-board strategies registered
// under their bare, www-prefixed, and country-subdomain host variants.
func New(logger *zap.Logger) *Extractor {
	e := &Extractor{
		registry: make(map[string]Strategy),
		logger:   logger,
	}
	e.Register("adzuna.co.uk", adzunaStrategy{})
	e.Register("www.adzuna.co.uk", adzunaStrategy{})
	e.Register("linkedin.com", linkedinStrategy{})
	e.Register("www.linkedin.com", linkedinStrategy{})
	e.Register("uk.linkedin.com", linkedinStrategy{})
	e.Register("totaljobs.com", totaljobsStrategy{})
	e.Register("www.totaljobs.com", totaljobsStrategy{})
	return e
}

// Register maps a host to a strategy.
func (e *Extractor) Register(host string, s Strategy) {
	e.registry[strings.ToLower(host)] = s
}

// Extract returns the plain description text for a page, or "" when no
// strategy is registered for the host or the markup lacks the expected
// structure. It never fails: an empty result is a retry-eligible sentinel,
// not an error.
func (e *Extractor) Extract(html, originHost string) string {
	strategy, ok := e.registry[strings.ToLower(originHost)]
	if !ok {
		e.logger.Warn("no parser for host", zap.String("host", originHost))
		metrics.DescribeOutcomes.WithLabelValues("no_parser").Inc()
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Debug("parse markup failed", zap.String("host", originHost), zap.Error(err))
		metrics.DescribeOutcomes.WithLabelValues("empty").Inc()
		return ""
	}

	text := strategy.Extract(doc)
	if text == "" {
		metrics.DescribeOutcomes.WithLabelValues("empty").Inc()
	} else {
		metrics.DescribeOutcomes.WithLabelValues("extracted").Inc()
	}
	return text
}
