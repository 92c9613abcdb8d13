// Package fetcher defines the single-shot HTTP fetch contract used by the
// enrichment stages.
package fetcher

import (
	"context"
	"net/http"
	"time"
)

// Request captures everything needed to fetch one URL. ProxyURL routes the
// request through a single-use proxy identity; an empty value means a direct
// connection.
type Request struct {
	URL      string
	Headers  http.Header
	ProxyURL string
}

// Response is the terminal response after redirects were followed.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// BrowserHeaders returns the header set sent with every enrichment fetch so
// requests resemble an interactive browser session.
func BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Cache-Control", "max-age=0")
	return h
}
