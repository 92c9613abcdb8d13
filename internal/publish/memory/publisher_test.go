package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "runs", "payload-1")
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)

	_, err = p.Publish(context.Background(), "runs", "payload-2")
	require.NoError(t, err)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "runs", msgs[0].Topic)
	assert.Equal(t, "payload-1", msgs[0].Payload)
	assert.Equal(t, "payload-2", msgs[1].Payload)
}

func TestPublishConcurrent(t *testing.T) {
	t.Parallel()

	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Publish(context.Background(), "runs", struct{}{})
		}()
	}
	wg.Wait()

	assert.Len(t, p.Messages(), 20)
}
