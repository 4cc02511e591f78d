package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore remembers live refresh token ids. Implementations must be safe
// for concurrent use.
type TokenStore interface {
	// Save records id for subject until ttl elapses.
	Save(ctx context.Context, id, subject string, ttl time.Duration) error
	// Consume atomically removes id and returns its subject. A missing or
	// expired id yields ErrTokenRevoked.
	Consume(ctx context.Context, id string) (string, error)
}

// RedisTokenStore keeps ids as keys with a TTL.
type RedisTokenStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisTokenStore(client *redis.Client, namespace string) *RedisTokenStore {
	if namespace == "" {
		namespace = "idcard"
	}
	return &RedisTokenStore{client: client, namespace: namespace}
}

func (s *RedisTokenStore) key(id string) string {
	return fmt.Sprintf("%s:refresh:%s", s.namespace, id)
}

func (s *RedisTokenStore) Save(ctx context.Context, id, subject string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(id), subject, ttl).Err()
}

func (s *RedisTokenStore) Consume(ctx context.Context, id string) (string, error) {
	subject, err := s.client.GetDel(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenRevoked
	}
	return subject, err
}

// MemoryTokenStore is the single-process TokenStore.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
	now    func() time.Time
}

type memoryToken struct {
	subject string
	expires time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]memoryToken), now: time.Now}
}

func (s *MemoryTokenStore) Save(_ context.Context, id, subject string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, t := range s.tokens {
		if !now.Before(t.expires) {
			delete(s.tokens, k)
		}
	}
	s.tokens[id] = memoryToken{subject: subject, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Consume(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return "", ErrTokenRevoked
	}
	delete(s.tokens, id)
	if !s.now().Before(t.expires) {
		return "", ErrTokenRevoked
	}
	return t.subject, nil
}
