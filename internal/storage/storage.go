package storage

import (
	"context"
	"time"
)

// SignedURL is a capability URL for exactly one object and one HTTP method.
type SignedURL struct {
	URL     string
	Method  string
	Expires time.Time
	// Headers the caller must send unchanged, e.g. Content-Type on uploads.
	Headers map[string]string
}

// Signer issues time-limited URLs for objects in a single bucket. Objects are
// keyed by filename.
type Signer interface {
	// PresignPut returns a write URL bound to key and contentType.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (SignedURL, error)
	// PresignGet returns a read URL for key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (SignedURL, error)
}
