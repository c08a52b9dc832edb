package settings

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Source loads the current rule document from backing storage.
type Source interface {
	Fetch(ctx context.Context) (*Document, error)
}

// cache is the provider's single cached value and the time it was fetched.
type cache struct {
	rules     Rules
	fetchedAt time.Time
	valid     bool // rules came from a successful fetch
	primed    bool // at least one fetch was attempted
}

func (c cache) fresh(now time.Time, ttl time.Duration) bool {
	return c.primed && now.Sub(c.fetchedAt) < ttl
}

// Provider serves Rules from a Source through a TTL cache.
//
// Provider is safe for concurrent use.
type Provider struct {
	src Source
	ttl time.Duration
	now func() time.Time // injectable for deterministic tests

	mu     sync.Mutex
	cached cache
}

// NewProvider creates a Provider over src. A non-positive ttl uses DefaultTTL.
func NewProvider(src Source, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{src: src, ttl: ttl, now: time.Now}
}

// Rules returns the current rule set. It refreshes from the source when the
// cached value is older than the TTL. A failed refresh keeps the last good
// rules, or the built-in defaults if none were ever loaded.
func (p *Provider) Rules(ctx context.Context) Rules {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.cached.fresh(now, p.ttl) {
		return p.cached.rules
	}

	doc, err := p.src.Fetch(ctx)
	if err != nil {
		slog.Warn("settings: fetch failed, using fallback rules",
			"err", err, "last_good", p.cached.valid)
		if !p.cached.valid {
			p.cached.rules = Defaults()
		}
		p.cached.fetchedAt = now
		p.cached.primed = true
		return p.cached.rules
	}

	p.cached = cache{rules: Resolve(doc), fetchedAt: now, valid: true, primed: true}
	return p.cached.rules
}

// Invalidate forces the next Rules call to refetch. The last good value is
// kept as the fallback.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached.primed = false
	p.mu.Unlock()
}

// StaticSource serves a document held in memory, typically the rules section
// of the YAML config. Set replaces it on config reload.
type StaticSource struct {
	mu  sync.RWMutex
	doc Document
}

// NewStaticSource returns a StaticSource holding doc.
func NewStaticSource(doc Document) *StaticSource {
	return &StaticSource{doc: doc}
}

// Fetch returns a copy of the held document.
func (s *StaticSource) Fetch(context.Context) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.doc
	if s.doc.Weights != nil {
		cp.Weights = make(map[string]float64, len(s.doc.Weights))
		for k, v := range s.doc.Weights {
			cp.Weights[k] = v
		}
	}
	return &cp, nil
}

// Set replaces the held document.
func (s *StaticSource) Set(doc Document) {
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}
