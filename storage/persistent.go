package storage

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/minus-twelve/warden/types"
)

type expiringStore interface {
	CreateSession(ctx context.Context, userID string) (string, bool)
	UserIDForSession(ctx context.Context, sessionID string) (string, bool)
	DestroySession(ctx context.Context, sessionID string) bool
	Record(sessionID string) (types.SessionRecord, bool)
}

// PersistentStore mirrors every session of the wrapped expiring store into
// a durable RecordStore so sessions survive a restart. Once a session is
// confirmed live in memory the durable copy is the source of truth.
//
// Destroy is not atomic across the two tiers: when the durable record is
// missing the memory entry is already gone and the call still reports
// failure.
type PersistentStore struct {
	inner   expiringStore
	records RecordStore
	log     logr.Logger
}

func NewPersistentStore(ctx context.Context, inner expiringStore, records RecordStore, logger logr.Logger) (*PersistentStore, error) {
	if err := records.Load(ctx); err != nil {
		return nil, fmt.Errorf("load session records: %w", err)
	}
	return &PersistentStore{
		inner:   inner,
		records: records,
		log:     logger.WithName("persistent-store"),
	}, nil
}

func (s *PersistentStore) Records() RecordStore {
	return s.records
}

func (s *PersistentStore) CreateSession(ctx context.Context, userID string) (string, bool) {
	sessionID, ok := s.inner.CreateSession(ctx, userID)
	if !ok {
		return "", false
	}

	// the durable copy carries the creation time stamped in memory
	rec, ok := s.inner.Record(sessionID)
	if !ok {
		s.log.Info("created session vanished before it was persisted", "user_id", userID)
		return "", false
	}
	if err := s.records.Save(ctx, rec); err != nil {
		s.log.Error(err, "failed to persist session", "user_id", userID)
		s.inner.DestroySession(ctx, sessionID)
		return "", false
	}

	return sessionID, true
}

func (s *PersistentStore) UserIDForSession(ctx context.Context, sessionID string) (string, bool) {
	if _, ok := s.inner.UserIDForSession(ctx, sessionID); !ok {
		return "", false
	}

	rec, ok := s.find(ctx, sessionID)
	if !ok {
		return "", false
	}
	return rec.UserID, true
}

func (s *PersistentStore) DestroySession(ctx context.Context, sessionID string) bool {
	if !s.inner.DestroySession(ctx, sessionID) {
		return false
	}

	rec, ok := s.find(ctx, sessionID)
	if !ok {
		s.log.Info("session destroyed in memory but has no durable record")
		return false
	}

	if err := s.records.Remove(ctx, rec); err != nil {
		s.log.Error(err, "failed to remove durable session record")
		return false
	}
	return true
}

func (s *PersistentStore) find(ctx context.Context, sessionID string) (types.SessionRecord, bool) {
	found, err := s.records.FindAll(ctx, types.RecordFilter{SessionID: sessionID})
	if err != nil {
		s.log.Error(err, "failed to look up durable session record")
		return types.SessionRecord{}, false
	}
	if len(found) == 0 {
		return types.SessionRecord{}, false
	}
	return found[0], true
}
