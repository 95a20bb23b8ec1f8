package warden

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/minus-twelve/warden/password"
	"github.com/minus-twelve/warden/types"
)

var (
	// ErrUnauthenticated means the request carried no credentials at all.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means credentials were supplied but did not resolve to a user.
	ErrForbidden = errors.New("forbidden")

	ErrSessionsUnsupported = errors.New("auth type does not use sessions")
	ErrSessionNotCreated   = errors.New("session not created")
)

// UserRepository is the user lookup the strategies need.
type UserRepository interface {
	Get(ctx context.Context, id string) (*types.User, error)
	SearchByEmail(ctx context.Context, email string) (*types.User, error)
}

// Authenticator resolves the user behind a request with the strategy picked
// at construction time.
type Authenticator struct {
	authType   AuthType
	exempt     []string
	cookieName string
	users      UserRepository
	store      Store
	log        logr.Logger
}

func NewAuthenticator(authType AuthType, exempt []string, cookieName string, users UserRepository, store Store, logger logr.Logger) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Authenticator{
		authType:   authType,
		exempt:     exempt,
		cookieName: cookieName,
		users:      users,
		store:      store,
		log:        logger.WithName("authenticator"),
	}
}

func (a *Authenticator) Type() AuthType {
	return a.authType
}

func (a *Authenticator) CookieName() string {
	return a.cookieName
}

func (a *Authenticator) RequireAuth(path string) bool {
	return RequireAuth(path, a.exempt)
}

// Authenticate returns ErrUnauthenticated when r has neither an
// Authorization header nor a session cookie, and ErrForbidden when what it
// has does not resolve to a user.
func (a *Authenticator) Authenticate(r *http.Request) (*types.User, error) {
	_, hasHeader := AuthorizationHeader(r)
	_, hasCookie := SessionCookie(r, a.cookieName)
	if !hasHeader && !hasCookie {
		return nil, ErrUnauthenticated
	}

	user, ok := a.CurrentUser(r)
	if !ok {
		return nil, ErrForbidden
	}
	return user, nil
}

func (a *Authenticator) CurrentUser(r *http.Request) (*types.User, bool) {
	switch {
	case a.authType == AuthBasic:
		return a.basicUser(r)
	case a.authType.UsesSessions():
		return a.sessionUser(r)
	default:
		return nil, false
	}
}

func (a *Authenticator) basicUser(r *http.Request) (*types.User, bool) {
	header, ok := AuthorizationHeader(r)
	if !ok {
		return nil, false
	}
	creds, ok := BasicCredentials(header)
	if !ok || creds.Identifier == "" || creds.Secret == "" {
		return nil, false
	}

	user, err := a.users.SearchByEmail(r.Context(), creds.Identifier)
	if err != nil || user == nil {
		a.log.V(1).Info("no user for basic credentials")
		return nil, false
	}

	if !password.IsValid(user.HashedPassword, creds.Secret) {
		a.log.V(1).Info("wrong password for basic credentials", "user_id", user.ID)
		return nil, false
	}
	return user, true
}

func (a *Authenticator) sessionUser(r *http.Request) (*types.User, bool) {
	sessionID, ok := SessionCookie(r, a.cookieName)
	if !ok {
		return nil, false
	}

	userID, ok := a.store.UserIDForSession(r.Context(), sessionID)
	if !ok {
		return nil, false
	}

	user, err := a.users.Get(r.Context(), userID)
	if err != nil || user == nil {
		a.log.Info("session points at a missing user", "user_id", userID)
		return nil, false
	}
	return user, true
}

func (a *Authenticator) CreateSession(ctx context.Context, userID string) (string, error) {
	if !a.authType.UsesSessions() {
		return "", ErrSessionsUnsupported
	}
	sessionID, ok := a.store.CreateSession(ctx, userID)
	if !ok {
		return "", ErrSessionNotCreated
	}
	return sessionID, nil
}

// DestroySession ends the session named by the cookie on r. It reports
// false when there was no session to end.
func (a *Authenticator) DestroySession(r *http.Request) (bool, error) {
	if !a.authType.UsesSessions() {
		return false, ErrSessionsUnsupported
	}
	sessionID, ok := SessionCookie(r, a.cookieName)
	if !ok {
		return false, nil
	}
	return a.store.DestroySession(r.Context(), sessionID), nil
}
