package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/engine"
)

// SessionStore persists one serialized practice session per user in Redis.
// Every save overwrites the whole record; the last writer wins.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewSessionStore creates a SessionStore whose records expire after ttl of
// inactivity. A zero ttl keeps records until deleted.
func NewSessionStore(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "session_store").Logger(),
	}
}

// Load returns the user's session, or nil when none is stored. A record that
// cannot be decoded is discarded.
func (s *SessionStore) Load(ctx context.Context, userID int64) (*engine.Session, error) {
	key := config.CacheKey.PracticeSessionKey(userID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess, err := engine.Unmarshal(data, s.log)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("Discarding unreadable session record")
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to delete unreadable session record")
		}
		return nil, nil
	}
	return sess, nil
}

// Save overwrites the user's session record.
func (s *SessionStore) Save(ctx context.Context, userID int64, sess *engine.Session) error {
	data, err := engine.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.PracticeSessionKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the user's session record.
func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, config.CacheKey.PracticeSessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
