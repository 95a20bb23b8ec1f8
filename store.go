package warden

import "context"

// Store is the session store contract shared by every tier. Failures are
// reported as absent values, never as errors.
type Store interface {
	CreateSession(ctx context.Context, userID string) (string, bool)
	UserIDForSession(ctx context.Context, sessionID string) (string, bool)
	DestroySession(ctx context.Context, sessionID string) bool
}
