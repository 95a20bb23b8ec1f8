package storage

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/minus-twelve/warden/types"
)

// MemoryStore is the base session store: session id -> user id, nothing more.
type MemoryStore struct {
	table *SessionTable
	log   logr.Logger
}

func NewMemoryStore(table *SessionTable, logger logr.Logger) *MemoryStore {
	if table == nil {
		table = NewSessionTable()
	}
	return &MemoryStore{
		table: table,
		log:   logger.WithName("memory-store"),
	}
}

func (s *MemoryStore) Table() *SessionTable {
	return s.table
}

func (s *MemoryStore) CreateSession(ctx context.Context, userID string) (string, bool) {
	if userID == "" {
		return "", false
	}

	id, err := uuid.NewRandom()
	if err != nil {
		s.log.Error(err, "failed to generate session id")
		return "", false
	}

	sessionID := id.String()
	s.table.put(types.SessionRecord{SessionID: sessionID, UserID: userID})

	s.log.V(1).Info("created session", "user_id", userID)
	return sessionID, true
}

func (s *MemoryStore) UserIDForSession(ctx context.Context, sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}

	rec, ok := s.table.get(sessionID)
	if !ok {
		return "", false
	}
	return rec.UserID, true
}

func (s *MemoryStore) DestroySession(ctx context.Context, sessionID string) bool {
	if sessionID == "" {
		return false
	}

	if !s.table.remove(sessionID) {
		return false
	}

	s.log.V(1).Info("destroyed session")
	return true
}

// Exists reports raw presence of the session, whether or not it has expired.
func (s *MemoryStore) Exists(sessionID string) bool {
	_, ok := s.table.get(sessionID)
	return ok
}

// Record returns the full in-memory record for sessionID.
func (s *MemoryStore) Record(sessionID string) (types.SessionRecord, bool) {
	return s.table.get(sessionID)
}

// Stamp sets the creation time of an existing session.
func (s *MemoryStore) Stamp(sessionID string, at time.Time) bool {
	return s.table.stamp(sessionID, at)
}
