// Package ingest provides a thin client for the Adzuna job search API. It is
// an external collaborator with a narrow surface: paged search, flattened
// results. Rate-limit negotiation is deliberately out of scope.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kyryl-lebedin/market-analysis/internal/jobs"
)

const defaultBaseURL = "https://api.adzuna.com/v1/api"

// Config carries API credentials and client knobs.
type Config struct {
	AppID          string `mapstructure:"app_id"`
	AppKey         string `mapstructure:"app_key"`
	BaseURL        string `mapstructure:"base_url"`
	ResultsPerPage int    `mapstructure:"results_per_page"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SearchParams select what to search for. Zero-valued fields are omitted.
type SearchParams struct {
	Country  string
	What     string
	WhatAnd  string
	WhatOr   string
	Where    string
	Category string
	SortBy   string
}

// Client queries the Adzuna search API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates credentials and builds a Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.AppID == "" || cfg.AppKey == "" {
		return nil, fmt.Errorf("adzuna credentials are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ResultsPerPage <= 0 || cfg.ResultsPerPage > 50 {
		cfg.ResultsPerPage = 50
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// searchResponse mirrors the slice of the API payload the pipeline consumes.
type searchResponse struct {
	Results []struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Company struct {
			DisplayName string `json:"display_name"`
		} `json:"company"`
		Location struct {
			DisplayName string `json:"display_name"`
		} `json:"location"`
		Description    string  `json:"description"`
		SalaryMin      float64 `json:"salary_min"`
		SalaryMax      float64 `json:"salary_max"`
		SalaryCurrency string  `json:"salary_currency"`
		Created        string  `json:"created"`
		RedirectURL    string  `json:"redirect_url"`
		Category       struct {
			Label string `json:"label"`
		} `json:"category"`
		ContractType string `json:"contract_type"`
		ContractTime string `json:"contract_time"`
	} `json:"results"`
	Count int `json:"count"`
}

// SearchPage fetches one result page and flattens it into postings. Row IDs
// are assigned later by Search so they stay unique across pages.
func (c *Client) SearchPage(ctx context.Context, params SearchParams, page int) ([]jobs.Posting, error) {
	endpoint := fmt.Sprintf("%s/jobs/%s/search/%d", c.cfg.BaseURL, params.Country, page)

	q := url.Values{}
	q.Set("app_id", c.cfg.AppID)
	q.Set("app_key", c.cfg.AppKey)
	q.Set("results_per_page", strconv.Itoa(c.cfg.ResultsPerPage))
	if params.SortBy != "" {
		q.Set("sort_by", params.SortBy)
	}
	if params.What != "" {
		q.Set("what", params.What)
	}
	if params.WhatAnd != "" {
		q.Set("what_and", params.WhatAnd)
	}
	if params.WhatOr != "" {
		q.Set("what_or", params.WhatOr)
	}
	if params.Where != "" {
		q.Set("where", params.Where)
	}
	if params.Category != "" {
		q.Set("category", params.Category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search page %d: status %d: %s", page, resp.StatusCode, body)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search page %d: %w", page, err)
	}

	postings := make([]jobs.Posting, 0, len(payload.Results))
	for _, r := range payload.Results {
		postings = append(postings, jobs.Posting{
			SourceID:       r.ID,
			Title:          r.Title,
			Company:        r.Company.DisplayName,
			Location:       r.Location.DisplayName,
			Summary:        r.Description,
			SalaryMin:      r.SalaryMin,
			SalaryMax:      r.SalaryMax,
			SalaryCurrency: r.SalaryCurrency,
			Created:        r.Created,
			Category:       r.Category.Label,
			ContractType:   r.ContractType,
			ContractTime:   r.ContractTime,
			TrackingURL:    r.RedirectURL,
		})
	}
	return postings, nil
}

// Search fetches the given pages in order, tolerating per-page failures: a
// failed page is logged and skipped, mirroring how downstream stages treat
// partial results as the normal case. Row IDs are assigned sequentially
// across the merged result.
func (c *Client) Search(ctx context.Context, params SearchParams, pages []int) ([]jobs.Posting, []error) {
	var (
		all  []jobs.Posting
		errs []error
	)
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		postings, err := c.SearchPage(ctx, params, page)
		if err != nil {
			c.logger.Warn("search page failed", zap.Int("page", page), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		all = append(all, postings...)
	}
	for i := range all {
		all[i].ID = i
	}
	return all, errs
}
