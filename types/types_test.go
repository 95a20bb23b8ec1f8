package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"", "", "bob@hbtn.io"},
		{"Bob", "", "Bob"},
		{"", "Dylan", "Dylan"},
		{"Bob", "Dylan", "Bob Dylan"},
	}
	for _, tt := range tests {
		u := &User{Email: "bob@hbtn.io", FirstName: tt.first, LastName: tt.last}
		assert.Equal(t, tt.want, u.DisplayName())
	}
}

func TestUserJSONHidesSecrets(t *testing.T) {
	sessionID, token := "s-1", "t-1"
	u := User{ID: "u-1", Email: "bob@hbtn.io", HashedPassword: "hash", SessionID: &sessionID, ResetToken: &token}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "u-1", out["id"])
	for _, key := range []string{"hashed_password", "HashedPassword", "session_id", "reset_token"} {
		assert.NotContains(t, out, key)
	}
}

func TestRecordFilterMatch(t *testing.T) {
	rec := SessionRecord{SessionID: "s-1", UserID: "u-1", CreatedAt: time.Now()}

	assert.True(t, RecordFilter{}.Match(rec))
	assert.True(t, RecordFilter{SessionID: "s-1"}.Match(rec))
	assert.True(t, RecordFilter{UserID: "u-1"}.Match(rec))
	assert.True(t, RecordFilter{SessionID: "s-1", UserID: "u-1"}.Match(rec))
	assert.False(t, RecordFilter{SessionID: "s-2"}.Match(rec))
	assert.False(t, RecordFilter{SessionID: "s-1", UserID: "u-2"}.Match(rec))
}

func TestSessionConfigTTL(t *testing.T) {
	assert.Zero(t, SessionConfig{}.TTL())
	assert.Zero(t, SessionConfig{Duration: -5}.TTL())
	assert.Equal(t, 90*time.Second, SessionConfig{Duration: 90}.TTL())
}
