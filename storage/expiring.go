package storage

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/minus-twelve/warden/types"
	"github.com/thejerf/abtime"
)

type baseStore interface {
	CreateSession(ctx context.Context, userID string) (string, bool)
	UserIDForSession(ctx context.Context, sessionID string) (string, bool)
	DestroySession(ctx context.Context, sessionID string) bool
	Exists(sessionID string) bool
	Record(sessionID string) (types.SessionRecord, bool)
	Stamp(sessionID string, at time.Time) bool
}

// ExpiringStore adds a time to live on top of a base store. Expiry is lazy:
// an expired session stops resolving but stays in the table until it is
// destroyed.
type ExpiringStore struct {
	base baseStore
	ttl  time.Duration
	abtime.AbstractTime
	log logr.Logger
}

func NewExpiringStore(base baseStore, ttl time.Duration, clock abtime.AbstractTime, logger logr.Logger) *ExpiringStore {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &ExpiringStore{
		base:         base,
		ttl:          ttl,
		AbstractTime: clock,
		log:          logger.WithName("expiring-store"),
	}
}

func (s *ExpiringStore) TTL() time.Duration {
	return s.ttl
}

func (s *ExpiringStore) CreateSession(ctx context.Context, userID string) (string, bool) {
	sessionID, ok := s.base.CreateSession(ctx, userID)
	if !ok {
		return "", false
	}

	s.base.Stamp(sessionID, s.Now())
	return sessionID, true
}

func (s *ExpiringStore) UserIDForSession(ctx context.Context, sessionID string) (string, bool) {
	if _, ok := s.base.UserIDForSession(ctx, sessionID); !ok {
		return "", false
	}

	rec, ok := s.base.Record(sessionID)
	if !ok {
		return "", false
	}

	if s.ttl <= 0 {
		return rec.UserID, true
	}

	if rec.CreatedAt.IsZero() {
		s.log.Info("session has no creation time, rejecting")
		return "", false
	}

	if s.Now().After(rec.CreatedAt.Add(s.ttl)) {
		s.log.V(1).Info("session expired", "created_at", rec.CreatedAt)
		return "", false
	}

	return rec.UserID, true
}

func (s *ExpiringStore) DestroySession(ctx context.Context, sessionID string) bool {
	return s.base.DestroySession(ctx, sessionID)
}

// Record returns the stored record, expired or not.
func (s *ExpiringStore) Record(sessionID string) (types.SessionRecord, bool) {
	return s.base.Record(sessionID)
}

// Exists ignores expiry: an expired session is still present.
func (s *ExpiringStore) Exists(sessionID string) bool {
	return s.base.Exists(sessionID)
}
