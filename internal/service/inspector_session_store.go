package service

import (
	"context"
	"errors"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/pkg/cache"
)

// InspectorSessionStore keeps inspector flow state in the cache with a sliding TTL.
// Loaded message content is never stored.
type InspectorSessionStore struct {
	cache cache.Service
	ttl   time.Duration
}

// NewInspectorSessionStore creates a store; ttl <= 0 uses cache.TTLSession
func NewInspectorSessionStore(c cache.Service, ttl time.Duration) *InspectorSessionStore {
	if ttl <= 0 {
		ttl = cache.TTLSession
	}
	return &InspectorSessionStore{cache: c, ttl: ttl}
}

func sessionKey(id string) string {
	return cache.PrefixSession + id
}

// Load returns the session or ErrSessionNotFound once expired
func (s *InspectorSessionStore) Load(ctx context.Context, id string) (*domain.InspectorSession, error) {
	var sess domain.InspectorSession
	if err := s.cache.Get(ctx, sessionKey(id), &sess); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, common.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// Save stores the session without its loaded messages
func (s *InspectorSessionStore) Save(ctx context.Context, sess *domain.InspectorSession) error {
	stored := *sess
	stored.Messages = nil
	return s.cache.Set(ctx, sessionKey(sess.ID), &stored, s.ttl)
}

// Delete removes a session
func (s *InspectorSessionStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, sessionKey(id))
}
