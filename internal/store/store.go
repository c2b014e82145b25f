package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kokukuma/openid4vp-verifier/document"
)

const DefaultTTL = time.Hour

// LookupStatus is the outcome of reading a request id.
type LookupStatus int

const (
	StatusNotFound LookupStatus = iota
	StatusFound
	StatusExpired
)

func (s LookupStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusExpired:
		return "expired"
	default:
		return "not_found"
	}
}

type StoredRequest struct {
	ID         string                    `json:"id"`
	Descriptor *document.QueryDescriptor `json:"descriptor"`
	CreatedAt  time.Time                 `json:"createdAt"`
	ExpiresAt  time.Time                 `json:"expiresAt"`
}

// Store keeps presentation requests between submission and retrieval.
// Get deletes an expired entry while reporting StatusExpired, so the following Get reports StatusNotFound.
type Store interface {
	Create(ctx context.Context, descriptor *document.QueryDescriptor) (*StoredRequest, error)
	Get(ctx context.Context, id string) (*StoredRequest, LookupStatus, error)
	Delete(ctx context.Context, id string) error
}

// Lookup is the expiry transition shared by every store.
func Lookup(rec *StoredRequest, now time.Time) LookupStatus {
	switch {
	case rec == nil:
		return StatusNotFound
	case now.After(rec.ExpiresAt):
		return StatusExpired
	default:
		return StatusFound
	}
}

func newStoredRequest(descriptor *document.QueryDescriptor, now time.Time, ttl time.Duration) (*StoredRequest, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	return &StoredRequest{
		ID:         id.String(),
		Descriptor: descriptor,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}
