package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"jewelfinder-go/internal/platform/errors"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New(errors.KindStorage, "cache:get", "cache miss")

// Store caches serialized search outcomes keyed by request digest so a
// repeated query skips the collaborator round trip.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key digests an endpoint plus its payload into a stable cache key. Binary
// payloads hash the same as text queries.
func Key(endpoint string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(endpoint))
	h.Write([]byte{0})
	h.Write(payload)
	return endpoint + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}
