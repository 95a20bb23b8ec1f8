// Package userservice is a small user registration and login service with
// password reset tokens, backed by userdb.
package userservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/minus-twelve/warden/password"
	"github.com/minus-twelve/warden/types"
	"github.com/minus-twelve/warden/userdb"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrEmailMissing = errors.New("email missing")
)

type UserStore interface {
	AddUser(ctx context.Context, email, hashedPassword string) (*types.User, error)
	FindUserBy(ctx context.Context, filter userdb.Filter) (*types.User, error)
	UpdateUser(ctx context.Context, id string, fields map[string]any) error
}

type Auth struct {
	db  UserStore
	log logr.Logger
}

func NewAuth(db UserStore, logger logr.Logger) *Auth {
	return &Auth{db: db, log: logger.WithName("userservice")}
}

func (a *Auth) RegisterUser(ctx context.Context, email, pw string) (*types.User, error) {
	if email == "" {
		return nil, ErrEmailMissing
	}

	_, err := a.db.FindUserBy(ctx, userdb.Filter{Email: email})
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
	case !errors.Is(err, userdb.ErrNoResultFound):
		return nil, err
	}

	hashed, err := password.Hash(pw)
	if err != nil {
		return nil, err
	}

	user, err := a.db.AddUser(ctx, email, hashed)
	var dup *userdb.DuplicateKeyError
	if errors.As(err, &dup) {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
	}
	return user, err
}

func (a *Auth) ValidLogin(ctx context.Context, email, pw string) bool {
	user, err := a.db.FindUserBy(ctx, userdb.Filter{Email: email})
	if err != nil {
		return false
	}
	return password.IsValid(user.HashedPassword, pw)
}

// CreateSession stores a fresh session id on the user and returns it.
func (a *Auth) CreateSession(ctx context.Context, email string) (string, error) {
	user, err := a.db.FindUserBy(ctx, userdb.Filter{Email: email})
	if err != nil {
		return "", ErrUserNotFound
	}

	sessionID := uuid.NewString()
	if err := a.db.UpdateUser(ctx, user.ID, map[string]any{"session_id": sessionID}); err != nil {
		return "", err
	}
	return sessionID, nil
}

func (a *Auth) GetUserFromSessionID(ctx context.Context, sessionID string) (*types.User, bool) {
	if sessionID == "" {
		return nil, false
	}
	user, err := a.db.FindUserBy(ctx, userdb.Filter{SessionID: sessionID})
	if err != nil {
		return nil, false
	}
	return user, true
}

func (a *Auth) DestroySession(ctx context.Context, userID string) error {
	return a.db.UpdateUser(ctx, userID, map[string]any{"session_id": nil})
}

func (a *Auth) GetResetPasswordToken(ctx context.Context, email string) (string, error) {
	user, err := a.db.FindUserBy(ctx, userdb.Filter{Email: email})
	if err != nil {
		return "", ErrUserNotFound
	}

	token := uuid.NewString()
	if err := a.db.UpdateUser(ctx, user.ID, map[string]any{"reset_token": token}); err != nil {
		return "", err
	}
	return token, nil
}

// UpdatePassword sets a new password for the holder of resetToken. The
// token is single use.
func (a *Auth) UpdatePassword(ctx context.Context, resetToken, pw string) error {
	user, err := a.db.FindUserBy(ctx, userdb.Filter{ResetToken: resetToken})
	if err != nil {
		return ErrUserNotFound
	}

	hashed, err := password.Hash(pw)
	if err != nil {
		return err
	}

	if err := a.db.UpdateUser(ctx, user.ID, map[string]any{
		"hashed_password": hashed,
		"reset_token":     nil,
	}); err != nil {
		return err
	}
	a.log.Info("password updated", "user_id", user.ID)
	return nil
}
