package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/minus-twelve/warden/types"
	"github.com/redis/go-redis/v9"
)

type RedisRecordStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRecordStore(client redis.UniversalClient, prefix string) *RedisRecordStore {
	if prefix == "" {
		prefix = "warden:"
	}
	return &RedisRecordStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisRecordStore) sessionKey(sessionID string) string {
	return r.prefix + "session:" + sessionID
}

func (r *RedisRecordStore) userKey(userID string) string {
	return r.prefix + "user_sessions:" + userID
}

// Load only checks the server is reachable, records are read on demand.
func (r *RedisRecordStore) Load(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRecordStore) Save(ctx context.Context, rec types.SessionRecord) error {
	if rec.SessionID == "" {
		return errors.New("session record without session id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(rec.SessionID), data, 0)
	pipe.SAdd(ctx, r.userKey(rec.UserID), rec.SessionID)

	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRecordStore) get(ctx context.Context, sessionID string) (types.SessionRecord, bool, error) {
	data, err := r.client.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.SessionRecord{}, false, nil
		}
		return types.SessionRecord{}, false, err
	}

	var rec types.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.SessionRecord{}, false, err
	}
	return rec, true, nil
}

func (r *RedisRecordStore) FindAll(ctx context.Context, filter types.RecordFilter) ([]types.SessionRecord, error) {
	switch {
	case filter.SessionID != "":
		rec, ok, err := r.get(ctx, filter.SessionID)
		if err != nil || !ok || !filter.Match(rec) {
			return nil, err
		}
		return []types.SessionRecord{rec}, nil

	case filter.UserID != "":
		ids, err := r.client.SMembers(ctx, r.userKey(filter.UserID)).Result()
		if err != nil {
			return nil, err
		}
		return r.collect(ctx, ids, filter)

	default:
		var ids []string
		iter := r.client.Scan(ctx, 0, r.sessionKey("*"), 0).Iterator()
		for iter.Next(ctx) {
			ids = append(ids, iter.Val()[len(r.sessionKey("")):])
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return r.collect(ctx, ids, filter)
	}
}

func (r *RedisRecordStore) collect(ctx context.Context, ids []string, filter types.RecordFilter) ([]types.SessionRecord, error) {
	var found []types.SessionRecord
	for _, id := range ids {
		rec, ok, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok && filter.Match(rec) {
			found = append(found, rec)
		}
	}
	return found, nil
}

func (r *RedisRecordStore) Remove(ctx context.Context, rec types.SessionRecord) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.sessionKey(rec.SessionID))
	pipe.SRem(ctx, r.userKey(rec.UserID), rec.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if del.Val() == 0 {
		return ErrRecordNotFound
	}
	return nil
}
