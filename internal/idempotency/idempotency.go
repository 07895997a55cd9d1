package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
)

const MinKeyLength = 16

var ErrInvalidKey = errors.New("invalid Idempotency-Key")

// Response is a replayable HTTP result.
type Response struct {
	Status int    `json:"status"`
	Result []byte `json:"result"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp Response, ttl time.Duration) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

// Get returns nil when key is empty or nothing was recorded for it.
func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	if key == "" {
		return nil, nil
	}
	resp, err := i.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "idempotency lookup")
	}
	return resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	if key == "" {
		return nil
	}
	return errors.Wrap(i.store.Set(ctx, key, resp, i.ttl), "idempotency record")
}

func Validate(key string) error {
	if len(key) < MinKeyLength {
		return ErrInvalidKey
	}
	return nil
}

// Key derives a stable key from a scope (usually a session id) and the submitted values,
// so a retried submission maps to the same provider request.
func Key(scope string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(scope))
	for _, p := range parts {
		h.Write([]byte{0x1f})
		h.Write([]byte(p))
	}
	return scope + "-" + hex.EncodeToString(h.Sum(nil))[:32]
}
