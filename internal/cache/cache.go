package cache

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shopforge/shopforge/pkg/logger"
	"github.com/shopforge/shopforge/pkg/metrics"
)

// Cache namespaces. Each is an independently-TTL'd partition of the keyspace;
// entries never collide across namespaces because every key is prefixed.
const (
	NamespaceSearch      = "search"
	NamespaceListing     = "listing"
	NamespaceAggregation = "aggregation"
)

// Config controls cache behaviour.
type Config struct {
	Enabled       bool
	DefaultTTL    time.Duration
	MaxSize       int
	SweepInterval time.Duration
	NamespaceTTLs map[string]time.Duration
	TrackStats    bool
}

type entry struct {
	value          interface{}
	createdAt      time.Time
	ttl            time.Duration
	accessCount    int64
	lastAccessedAt time.Time
}

func (e *entry) expiredAt(now time.Time) bool {
	return now.After(e.createdAt.Add(e.ttl))
}

// EntryInfo describes one cache entry for diagnostics.
type EntryInfo struct {
	Key            string        `json:"key"`
	Age            time.Duration `json:"age"`
	ExpiresIn      time.Duration `json:"expires_in"`
	AccessCount    int64         `json:"access_count"`
	LastAccessedAt time.Time     `json:"last_accessed_at"`
	IsExpired      bool          `json:"is_expired"`
}

// Stats summarises cache effectiveness.
type Stats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Memory is an in-process TTL cache. Expired entries are removed by a periodic
// sweep, and Get additionally treats a not-yet-swept expired entry as a miss,
// so stale values are never served between sweeps.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
	hits    uint64
	misses  uint64
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
}

// Option customises cache construction.
type Option func(*Memory)

// WithClock injects a clock, primarily for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// New builds an in-memory cache from config.
func New(cfg Config, opts ...Option) *Memory {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	m := &Memory{
		entries: make(map[string]*entry),
		cfg:     cfg,
		now:     time.Now,
		log:     logger.WithModule("cache"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start schedules the periodic expiry sweep.
func (m *Memory) Start() error {
	if !m.cfg.Enabled {
		return nil
	}

	m.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	spec := fmt.Sprintf("@every %s", m.cfg.SweepInterval)
	if _, err := m.cron.AddFunc(spec, func() {
		if removed := m.Sweep(); removed > 0 {
			m.log.Debug("swept expired cache entries", zap.Int("removed", removed))
		}
	}); err != nil {
		return fmt.Errorf("cache: schedule sweep: %w", err)
	}

	m.cron.Start()
	return nil
}

// Stop halts the sweep scheduler.
func (m *Memory) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// TTLFor returns the TTL for a namespace, falling back to the default.
func (m *Memory) TTLFor(namespace string) time.Duration {
	if ttl, ok := m.cfg.NamespaceTTLs[namespace]; ok && ttl > 0 {
		return ttl
	}
	return m.cfg.DefaultTTL
}

// Get returns the cached value for key, counting a hit or miss. Expired
// entries are misses and are removed eagerly.
func (m *Memory) Get(key string) (interface{}, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.recordMiss(key)
		return nil, false
	}

	now := m.now()
	if e.expiredAt(now) {
		delete(m.entries, key)
		metrics.CacheEvictions.WithLabelValues("expired").Inc()
		m.recordMiss(key)
		return nil, false
	}

	e.accessCount++
	e.lastAccessedAt = now
	m.recordHit(key)
	return e.value, true
}

// Set stores value under key. A non-positive ttl uses the default. When the
// cache is full the entry closest to expiry makes room.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	if !m.cfg.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.cfg.MaxSize > 0 && len(m.entries) >= m.cfg.MaxSize {
		m.evictNearestExpiryLocked()
	}

	now := m.now()
	m.entries[key] = &entry{
		value:          value,
		createdAt:      now,
		ttl:            ttl,
		lastAccessedAt: now,
	}
}

// Delete removes one key, reporting whether it was present.
func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		return false
	}
	delete(m.entries, key)
	return true
}

// Keys lists all keys currently held, including not-yet-swept expired ones.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	return keys
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*entry)
}

// EntryInfo reports diagnostics for one entry without counting an access.
func (m *Memory) EntryInfo(key string) (EntryInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return EntryInfo{}, false
	}

	now := m.now()
	return EntryInfo{
		Key:            key,
		Age:            now.Sub(e.createdAt),
		ExpiresIn:      e.createdAt.Add(e.ttl).Sub(now),
		AccessCount:    e.accessCount,
		LastAccessedAt: e.lastAccessedAt,
		IsExpired:      e.expiredAt(now),
	}, true
}

// Stats returns current size and hit/miss counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Size:   len(m.entries),
		Hits:   m.hits,
		Misses: m.misses,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// DeleteContaining removes every key in a namespace whose key contains substr.
// An empty namespace matches all namespaces.
func (m *Memory) DeleteContaining(namespace, substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := ""
	if namespace != "" {
		prefix = namespace + ":"
	}

	removed := 0
	for key := range m.entries {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		if strings.Contains(key, substr) {
			delete(m.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues("invalidated").Add(float64(removed))
	}
	return removed
}

// DeletePattern removes every key matching a glob pattern where `*` matches
// any run of characters. Used after writes with a tenant-scoped prefix so all
// reads that could now be stale are dropped.
func (m *Memory) DeletePattern(pattern string) int {
	re, err := globToRegexp(pattern)
	if err != nil {
		m.log.Warn("invalid invalidation pattern", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		if re.MatchString(key) {
			delete(m.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues("invalidated").Add(float64(removed))
	}
	return removed
}

// Sweep removes expired entries, returning how many were dropped.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if e.expiredAt(now) {
			delete(m.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues("expired").Add(float64(removed))
	}
	return removed
}

func (m *Memory) evictNearestExpiryLocked() {
	var victim string
	var victimExpiry time.Time
	for key, e := range m.entries {
		expiry := e.createdAt.Add(e.ttl)
		if victim == "" || expiry.Before(victimExpiry) {
			victim = key
			victimExpiry = expiry
		}
	}
	if victim != "" {
		delete(m.entries, victim)
		metrics.CacheEvictions.WithLabelValues("overflow").Inc()
	}
}

func (m *Memory) recordHit(key string) {
	if m.cfg.TrackStats {
		m.hits++
	}
	metrics.CacheHits.WithLabelValues(namespaceOf(key)).Inc()
}

func (m *Memory) recordMiss(key string) {
	if m.cfg.TrackStats {
		m.misses++
	}
	metrics.CacheMisses.WithLabelValues(namespaceOf(key)).Inc()
}

func namespaceOf(key string) string {
	if ns, _, found := strings.Cut(key, ":"); found {
		return ns
	}
	return "default"
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
