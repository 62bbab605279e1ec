package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the key/value bucket used when none is configured.
const DefaultBucket = "GEMINICHAT"

// KVStore is a blob store backed by a JetStream key/value bucket. It lets
// several clients on different machines share one history.
type KVStore struct {
	client *Client
	kv     jetstream.KeyValue
}

// OpenKVStore binds to bucket, creating it if it does not exist.
func OpenKVStore(ctx context.Context, client *Client, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "Gemini chat client state",
			History:     1,
			Storage:     jetstream.FileStorage,
			Replicas:    1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind key/value bucket %q: %w", bucket, err)
	}

	return &KVStore{client: client, kv: kv}, nil
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return string(entry.Value()), true, nil
}

// Set stores value under key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.kv.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *KVStore) Close() error {
	s.client.Close()
	return nil
}
