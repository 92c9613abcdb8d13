// Package storage persists record sets between pipeline stages. Artifacts
// land in one of three tiers: bronze (raw search results), silver (resolved
// URLs), gold (full descriptions).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/kyryl-lebedin/market-analysis/internal/jobs"
)

// Tier names used in artifact paths.
const (
	TierBronze = "bronze"
	TierSilver = "silver"
	TierGold   = "gold"
)

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, objectPath string, contentType string, data io.Reader) (string, error)
}

// Config selects and parameterizes a blob store backend.
type Config struct {
	// Backend is "local" or "gcs".
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// TierPath builds the object path for a run's artifact in a tier.
func TierPath(prefix, tier, runName string) string {
	return path.Join(prefix, tier, runName+".json")
}

// SaveRecords marshals a record set to JSON and writes it under the tier path.
func SaveRecords(ctx context.Context, store BlobStore, prefix, tier, runName string, postings []jobs.Posting) (string, error) {
	data, err := json.MarshalIndent(postings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s records: %w", tier, err)
	}
	uri, err := store.PutObject(ctx, TierPath(prefix, tier, runName), "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("save %s records: %w", tier, err)
	}
	return uri, nil
}
