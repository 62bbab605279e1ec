package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/storage"
)

var _ storage.BlobStore = (*KVStore)(nil)

// Runs against a live server: NATS_TEST_URL=nats://127.0.0.1:4222 go test ./internal/nats
func TestKVStore(t *testing.T) {
	url := os.Getenv("NATS_TEST_URL")
	if url == "" {
		t.Skip("NATS_TEST_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{URL: url}, nil)
	require.NoError(t, err)

	store, err := OpenKVStore(ctx, client, "GEMINICHAT_TEST")
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(ctx, "missing-key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "gemini-chat-locale", "en"))
	v, ok, err := store.Get(ctx, "gemini-chat-locale")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "en", v)
}
