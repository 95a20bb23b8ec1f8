package warden

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	istorage "github.com/minus-twelve/warden/internal/storage"
	"github.com/minus-twelve/warden/storage"
)

// CreateStore builds the session store tier for authType. The returned
// close function releases whatever the store holds and is never nil.
func CreateStore(ctx context.Context, authType AuthType, cfg Config, logger logr.Logger) (Store, func(), error) {
	noop := func() {}
	table := storage.NewSessionTable()

	switch authType {
	case AuthSession:
		return storage.NewMemoryStore(table, logger), noop, nil

	case AuthSessionExp:
		base := storage.NewMemoryStore(table, logger)
		return storage.NewExpiringStore(base, cfg.Session.TTL(), nil, logger), noop, nil

	case AuthSessionDB:
		base := storage.NewMemoryStore(table, logger)
		expiring := storage.NewExpiringStore(base, cfg.Session.TTL(), nil, logger)

		records, closeRecords, err := createRecordStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewPersistentStore(ctx, expiring, records, logger)
		if err != nil {
			closeRecords()
			return nil, nil, err
		}
		return store, closeRecords, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrSessionsUnsupported, authType)
	}
}

func createRecordStore(ctx context.Context, cfg Config) (storage.RecordStore, func(), error) {
	switch cfg.Session.Store {
	case StoreFile, "":
		return storage.NewFileRecordStore(cfg.Session.File), func() {}, nil
	case StoreRedis:
		client, err := istorage.Dial(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRedisRecordStore(client, cfg.Redis.Prefix), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("invalid session store %q", cfg.Session.Store)
	}
}

// CreateAuthenticator resolves cfg.AuthType once. It returns a nil
// Authenticator when authentication is disabled.
func CreateAuthenticator(ctx context.Context, cfg Config, users UserRepository, logger logr.Logger) (*Authenticator, func(), error) {
	authType, err := ParseAuthType(cfg.AuthType)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case authType == AuthNone:
		return nil, func() {}, nil
	case !authType.UsesSessions():
		return NewAuthenticator(authType, cfg.ExemptPaths, cfg.Session.CookieName, users, nil, logger), func() {}, nil
	}

	store, closeStore, err := CreateStore(ctx, authType, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("session store ready", "auth_type", string(authType), "ttl", cfg.Session.TTL().String())
	return NewAuthenticator(authType, cfg.ExemptPaths, cfg.Session.CookieName, users, store, logger), closeStore, nil
}
