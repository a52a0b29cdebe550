package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/mmynk/geocaching/internal/metrics"
	"github.com/mmynk/geocaching/internal/reconciler"
)

// session is one client's map view. mu is held for the whole of an RPC so
// each session sees its operations in order.
type session struct {
	id         string
	mu         sync.Mutex
	reconciler *reconciler.Reconciler

	// generation is the dataset generation the markers were built from.
	generation uint64
}

// sessionRegistry keeps sessions until they have been idle for ttl.
type sessionRegistry struct {
	cache   *cache.Cache
	metrics *metrics.Metrics
}

func newSessionRegistry(ttl time.Duration, m *metrics.Metrics) *sessionRegistry {
	c := cache.New(ttl, ttl)
	c.OnEvicted(func(string, interface{}) {
		m.ActiveSessions.Dec()
	})
	m.ActiveSessions.Set(0)
	return &sessionRegistry{cache: c, metrics: m}
}

func (r *sessionRegistry) add(rec *reconciler.Reconciler, generation uint64) *session {
	s := &session{
		id:         uuid.NewString(),
		reconciler: rec,
		generation: generation,
	}
	r.cache.SetDefault(s.id, s)
	r.metrics.ActiveSessions.Inc()
	return s
}

// get returns the session and extends its lifetime.
func (r *sessionRegistry) get(id string) (*session, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*session)
	r.cache.SetDefault(id, s)
	return s, true
}

func (r *sessionRegistry) remove(id string) bool {
	if _, ok := r.cache.Get(id); !ok {
		return false
	}
	r.cache.Delete(id)
	return true
}

func (r *sessionRegistry) count() int {
	return r.cache.ItemCount()
}
