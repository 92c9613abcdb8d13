package collyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyryl-lebedin/market-analysis/internal/fetcher"
)

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>hello</html>")
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: 5 * time.Second})
	resp, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>hello</html>", string(resp.Body))
	assert.Greater(t, resp.Duration, time.Duration(0))
}

func TestFetchSendsRequestHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	_, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL, Headers: fetcher.BrowserHeaders()})
	require.NoError(t, err)

	assert.Contains(t, gotUA, "Chrome")
	assert.Equal(t, "en-US,en;q=0.9", gotLang)
}

func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "destination")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := New(Config{})
	resp, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL + "/start"})
	require.NoError(t, err)

	assert.Equal(t, "destination", string(resp.Body))
	assert.Equal(t, srv.URL+"/final", resp.URL)
}

func TestFetchBoundsRedirectChain(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{MaxRedirects: 3})
	_, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL})
	assert.Error(t, err)
}

func TestFetchErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	_, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL})
	assert.Error(t, err)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 10 * time.Second})
	_, err := f.Fetch(ctx, fetcher.Request{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
}

func TestFetchSameURLTwice(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprintf(w, "call %d", calls)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{})
	first, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL})
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), fetcher.Request{URL: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, "call 1", string(first.Body))
	assert.Equal(t, "call 2", string(second.Body), "retry passes must be able to revisit a URL")
}

func TestFetchInvalidProxyURL(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), fetcher.Request{
		URL:      "http://example.com",
		ProxyURL: "://not-a-proxy",
	})
	assert.Error(t, err)
}
