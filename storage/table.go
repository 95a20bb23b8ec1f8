package storage

import (
	"sync"
	"time"

	"github.com/minus-twelve/warden/types"
)

// SessionTable is the process-wide session id -> record mapping shared by
// the in-memory store tiers. Build one per process and hand the same
// pointer to every tier that needs it.
type SessionTable struct {
	sessions map[string]types.SessionRecord
	mutex    sync.RWMutex
}

func NewSessionTable() *SessionTable {
	return &SessionTable{
		sessions: make(map[string]types.SessionRecord),
	}
}

func (t *SessionTable) get(sessionID string) (types.SessionRecord, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	rec, ok := t.sessions[sessionID]
	return rec, ok
}

func (t *SessionTable) put(rec types.SessionRecord) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.sessions[rec.SessionID] = rec
}

// stamp records the creation time of an existing session.
func (t *SessionTable) stamp(sessionID string, at time.Time) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rec, ok := t.sessions[sessionID]
	if !ok {
		return false
	}
	rec.CreatedAt = at
	t.sessions[sessionID] = rec
	return true
}

func (t *SessionTable) remove(sessionID string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.sessions[sessionID]; !ok {
		return false
	}
	delete(t.sessions, sessionID)
	return true
}

func (t *SessionTable) Len() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return len(t.sessions)
}

// Reset drops every session. Meant for tests and teardown.
func (t *SessionTable) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.sessions = make(map[string]types.SessionRecord)
}
