package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 30 * time.Minute

// Factory builds a fresh session for a new id.
type Factory func(id string) *Session

// Manager keeps one independent Session per user. Sessions expire after
// their idle TTL; every Get extends it.
type Manager struct {
	cache   *ttlcache.Cache[string, *Session]
	factory Factory
}

// NewManager returns a manager. Call Start to run expiry in the background.
func NewManager(ttl time.Duration, factory Factory) *Manager {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Manager{
		cache:   ttlcache.New(ttlcache.WithTTL[string, *Session](ttl)),
		factory: factory,
	}
}

// OnEvict registers fn to run when a session expires or is deleted.
func (m *Manager) OnEvict(fn func(id string)) {
	m.cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		fn(item.Key())
	})
}

// Start runs the expiry loop until Stop is called.
func (m *Manager) Start() { go m.cache.Start() }

func (m *Manager) Stop() { m.cache.Stop() }

// Create registers a new session under a random id.
func (m *Manager) Create() (string, *Session) {
	id := uuid.NewString()
	s := m.factory(id)
	m.cache.Set(id, s, ttlcache.DefaultTTL)
	return id, s
}

// Get returns the session for id and refreshes its TTL.
func (m *Manager) Get(id string) (*Session, bool) {
	item := m.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Delete drops a session; it reports whether one existed.
func (m *Manager) Delete(id string) bool {
	if !m.cache.Has(id) {
		return false
	}
	m.cache.Delete(id)
	return true
}

func (m *Manager) Len() int { return m.cache.Len() }
