package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trivia-service/internal/app"
)

// SessionStore keeps live sessions in a local map and mirrors their liveness
// in Redis as keys with a TTL. Every access refreshes the TTL, so a session
// whose key has expired has been idle for at least ttl and is swept.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger.With().Str("component", "redis_sessions").Logger(),
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(session.ID()), session.CreatedAt().Unix(), s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID()).Msg("set liveness key")
	}
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		s.touch(session)
	}
	return session, ok
}

// touch refreshes the liveness key, recreating it when a missed write (for
// example during a Redis outage) left the session without one.
func (s *SessionStore) touch(session *app.Session) {
	ctx := context.Background()
	key := s.key(session.ID())
	refreshed, err := s.client.Expire(ctx, key, s.ttl).Result()
	if err == nil && !refreshed {
		err = s.client.Set(ctx, key, session.LastActive().Unix(), s.ttl).Err()
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID()).Msg("refresh liveness key")
	}
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(id)).Err()
}

// Expire drops sessions whose liveness key is gone, plus any that have been
// idle locally for longer than idle.
func (s *SessionStore) Expire(now time.Time, idle time.Duration) []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	if len(ids) == 0 {
		return nil
	}

	ctx := context.Background()
	pipe := s.client.Pipeline()
	checks := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		checks[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// without redis we fall back to local idleness only
		s.logger.Warn().Err(err).Msg("check liveness keys")
		checks = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for i, id := range ids {
		session, ok := s.sessions[id]
		if !ok {
			continue
		}
		gone := checks != nil && checks[i].Val() == 0
		if gone || now.Sub(session.LastActive()) > idle {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		keys := make([]string, len(expired))
		for i, id := range expired {
			keys[i] = s.key(id)
		}
		_ = s.client.Del(ctx, keys...).Err()
	}
	return expired
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) key(id string) string {
	return "trivia:session:" + id
}
