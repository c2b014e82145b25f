package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kokukuma/openid4vp-verifier/document"
	"github.com/kokukuma/openid4vp-verifier/internal/log"
)

var logger = log.New("store")

// MemStore is the process-local store. Entries are only removed when read after expiry
// or, if Run is started, by the sweeper once they are past ttl+retention.
type MemStore struct {
	mu        sync.Mutex
	requests  map[string]*StoredRequest
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
}

type MemOption func(s *MemStore)

func WithTTL(ttl time.Duration) MemOption {
	return func(s *MemStore) {
		s.ttl = ttl
	}
}

// WithRetention sets how long the sweeper keeps expired entries so they still read as expired.
func WithRetention(retention time.Duration) MemOption {
	return func(s *MemStore) {
		s.retention = retention
	}
}

func WithClock(now func() time.Time) MemOption {
	return func(s *MemStore) {
		s.now = now
	}
}

func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		requests:  make(map[string]*StoredRequest),
		ttl:       DefaultTTL,
		retention: DefaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemStore) Create(_ context.Context, descriptor *document.QueryDescriptor) (*StoredRequest, error) {
	rec, err := newStoredRequest(descriptor, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[rec.ID] = rec
	return rec, nil
}

func (s *MemStore) Get(_ context.Context, id string) (*StoredRequest, LookupStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.requests[id]
	status := Lookup(rec, s.now())
	switch status {
	case StatusExpired:
		delete(s.requests, id)
		return nil, status, nil
	case StatusFound:
		return rec, status, nil
	default:
		return nil, status, nil
	}
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.requests, id)
	return nil
}

func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

// Sweep drops entries that expired more than retention ago and returns how many were removed.
func (s *MemStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	removed := 0
	for id, rec := range s.requests {
		if rec.ExpiresAt.Before(cutoff) {
			delete(s.requests, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *MemStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("swept expired presentation requests", zap.Int("removed", n))
			}
		}
	}
}
