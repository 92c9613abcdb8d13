package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyryl-lebedin/market-analysis/internal/jobs"
)

type captureStore struct {
	path        string
	contentType string
	data        []byte
	err         error
}

func (s *captureStore) PutObject(_ context.Context, path, contentType string, data io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.path = path
	s.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.data = b
	return "mem://" + path, nil
}

func TestTierPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bronze/run-2026-08-23.json", TierPath("", TierBronze, "run-2026-08-23"))
	assert.Equal(t, "jobs/gold/nightly.json", TierPath("jobs", TierGold, "nightly"))
}

func TestSaveRecords(t *testing.T) {
	t.Parallel()

	resolved := "https://www.example.com/jobs/1"
	postings := []jobs.Posting{
		{ID: 0, Title: "Engineer", TrackingURL: "https://t.test/land/1", ResolvedURL: &resolved},
	}

	store := &captureStore{}
	uri, err := SaveRecords(context.Background(), store, "jobs", TierSilver, "run1", postings)
	require.NoError(t, err)

	assert.Equal(t, "mem://jobs/silver/run1.json", uri)
	assert.Equal(t, "jobs/silver/run1.json", store.path)
	assert.Equal(t, "application/json", store.contentType)

	var decoded []jobs.Posting
	require.NoError(t, json.Unmarshal(store.data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Engineer", decoded[0].Title)
	require.NotNil(t, decoded[0].ResolvedURL)
	assert.Equal(t, resolved, *decoded[0].ResolvedURL)
}

func TestSaveRecordsStoreFailure(t *testing.T) {
	t.Parallel()

	store := &captureStore{err: fmt.Errorf("bucket unavailable")}
	_, err := SaveRecords(context.Background(), store, "", TierBronze, "run1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
}
