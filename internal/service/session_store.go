package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var errEmptySessionID = errors.New("session id is required")

// SessionStore es la bolsa clave/valor de cada sesión de navegador, con TTL
// por clave. Un TTL <= 0 significa sin expiración propia.
type SessionStore interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID, key string) error
	Destroy(ctx context.Context, sessionID string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type memorySessionStore struct {
	mu       sync.Mutex
	clock    Clock
	sessions map[string]map[string]memoryEntry
}

// NewMemorySessionStore crea un store en memoria, útil sin Redis y en tests.
// Las expiraciones se miden con clock.
func NewMemorySessionStore(clock Clock) SessionStore {
	if clock == nil {
		clock = SystemClock()
	}
	return &memorySessionStore{
		clock:    clock,
		sessions: make(map[string]map[string]memoryEntry),
	}
}

func (s *memorySessionStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", false, errEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bag, ok := s.sessions[sessionID]
	if !ok {
		return "", false, nil
	}
	entry, ok := bag[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && s.clock.Now().After(entry.expiresAt) {
		delete(bag, key)
		if len(bag) == 0 {
			delete(s.sessions, sessionID)
		}
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *memorySessionStore) Set(_ context.Context, sessionID, key, value string, ttl time.Duration) error {
	if strings.TrimSpace(sessionID) == "" {
		return errEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bag, ok := s.sessions[sessionID]
	if !ok {
		bag = make(map[string]memoryEntry)
		s.sessions[sessionID] = bag
	}
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}
	bag[key] = entry
	return nil
}

func (s *memorySessionStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bag, ok := s.sessions[sessionID]; ok {
		delete(bag, key)
		if len(bag) == 0 {
			delete(s.sessions, sessionID)
		}
	}
	return nil
}

func (s *memorySessionStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

type redisKVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

type redisSessionStore struct {
	client redisKVClient
	prefix string
}

// NewRedisSessionStore guarda cada clave como auth:sess:<sid>:<key> con su TTL.
func NewRedisSessionStore(client *redis.Client) SessionStore {
	if client == nil {
		return nil
	}
	return &redisSessionStore{
		client: client,
		prefix: "auth:sess:",
	}
}

func (s *redisSessionStore) key(sessionID, key string) string {
	return s.prefix + sessionID + ":" + key
}

func (s *redisSessionStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", false, errEmptySessionID
	}
	val, err := s.client.Get(ctx, s.key(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get session key: %w", err)
	}
	return val, true, nil
}

func (s *redisSessionStore) Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errEmptySessionID
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(sessionID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session key: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Delete(ctx context.Context, sessionID, key string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("redis del session key: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Destroy(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.ContainsAny(sessionID, "*?[]\\") {
		return nil
	}
	match := s.key(sessionID, "*")
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan session: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del session: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
