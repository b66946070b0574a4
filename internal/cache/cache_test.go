package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg Config) (*Memory, *time.Time) {
	t.Helper()

	now := time.Now()
	cfg.Enabled = true
	cfg.TrackStats = true
	m := New(cfg, WithClock(func() time.Time { return now }))
	return m, &now
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, Config{})

	c.Set("search:acme:v1:k1", "value", time.Minute)

	got, ok := c.Get("search:acme:v1:k1")
	require.True(t, ok)
	require.Equal(t, "value", got)
}

func TestExpiredEntryIsMissBeforeSweep(t *testing.T) {
	c, now := newTestCache(t, Config{})

	c.Set("search:acme:v1:k1", "value", time.Minute)

	*now = now.Add(61 * time.Second)

	_, ok := c.Get("search:acme:v1:k1")
	require.False(t, ok, "expired entries must never be returned, swept or not")
}

func TestEntryInfoReportsExpiry(t *testing.T) {
	c, now := newTestCache(t, Config{})

	c.Set("search:acme:v1:k1", "value", time.Minute)

	info, ok := c.EntryInfo("search:acme:v1:k1")
	require.True(t, ok)
	require.False(t, info.IsExpired)
	require.Equal(t, time.Minute, info.ExpiresIn)

	*now = now.Add(2 * time.Minute)

	info, ok = c.EntryInfo("search:acme:v1:k1")
	require.True(t, ok, "EntryInfo still sees not-yet-swept entries")
	require.True(t, info.IsExpired)
	require.Equal(t, 2*time.Minute, info.Age)
}

func TestGetTracksAccessCount(t *testing.T) {
	c, _ := newTestCache(t, Config{})

	c.Set("search:acme:v1:k1", "value", time.Minute)
	for i := 0; i < 3; i++ {
		_, ok := c.Get("search:acme:v1:k1")
		require.True(t, ok)
	}

	info, ok := c.EntryInfo("search:acme:v1:k1")
	require.True(t, ok)
	require.EqualValues(t, 3, info.AccessCount)
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(t, Config{})

	c.Set("search:acme:v1:k1", "value", time.Minute)
	c.Get("search:acme:v1:k1")
	c.Get("search:acme:v1:absent")

	stats := c.Stats()
	require.Equal(t, 1, stats.Size)
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 1, stats.Misses)
	require.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	c, now := newTestCache(t, Config{})

	c.Set("search:acme:v1:old", "value", time.Minute)
	c.Set("search:acme:v1:fresh", "value", time.Hour)

	*now = now.Add(2 * time.Minute)

	require.Equal(t, 1, c.Sweep())
	require.ElementsMatch(t, []string{"search:acme:v1:fresh"}, c.Keys())
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t, Config{})

	c.Set("search:acme:v1:k1", "a", time.Minute)
	c.Set("search:acme:v1:k2", "b", time.Minute)

	require.True(t, c.Delete("search:acme:v1:k1"))
	require.False(t, c.Delete("search:acme:v1:k1"))

	c.Clear()
	require.Empty(t, c.Keys())
}

func TestDeleteContainingScopedToNamespace(t *testing.T) {
	c, _ := newTestCache(t, Config{})

	c.Set("search:acme:v1:k1", "a", time.Minute)
	c.Set("listing:acme:v1:k1", "b", time.Minute)
	c.Set("search:globex:v1:k1", "c", time.Minute)

	removed := c.DeleteContaining(NamespaceSearch, "acme")
	require.Equal(t, 1, removed)

	_, ok := c.Get("listing:acme:v1:k1")
	require.True(t, ok, "other namespaces must be untouched")
	_, ok = c.Get("search:globex:v1:k1")
	require.True(t, ok)
}

func TestDeletePatternScopedToTenantPrefix(t *testing.T) {
	c, _ := newTestCache(t, Config{})

	c.Set("listing:acme:v1:k1", "a", time.Minute)
	c.Set("listing:acme:v2:k2", "b", time.Minute)
	c.Set("listing:globex:v1:k1", "c", time.Minute)

	removed := c.DeletePattern(TenantPrefix(NamespaceListing, "acme") + "*")
	require.Equal(t, 2, removed)

	_, ok := c.Get("listing:globex:v1:k1")
	require.True(t, ok, "other tenants must be untouched")
}

func TestMaxSizeEvictsNearestExpiry(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSize: 2})

	c.Set("search:acme:v1:short", "a", time.Minute)
	c.Set("search:acme:v1:long", "b", time.Hour)
	c.Set("search:acme:v1:new", "c", time.Hour)

	_, ok := c.Get("search:acme:v1:short")
	require.False(t, ok, "entry closest to expiry makes room")
	_, ok = c.Get("search:acme:v1:long")
	require.True(t, ok)
	_, ok = c.Get("search:acme:v1:new")
	require.True(t, ok)
}

func TestDisabledCacheIsInert(t *testing.T) {
	c := New(Config{Enabled: false})

	c.Set("search:acme:v1:k1", "value", time.Minute)
	_, ok := c.Get("search:acme:v1:k1")
	require.False(t, ok)
	require.Empty(t, c.Keys())
}

func TestNamespaceTTLOverride(t *testing.T) {
	c, _ := newTestCache(t, Config{
		DefaultTTL:    time.Minute,
		NamespaceTTLs: map[string]time.Duration{NamespaceAggregation: time.Hour},
	})

	require.Equal(t, time.Hour, c.TTLFor(NamespaceAggregation))
	require.Equal(t, time.Minute, c.TTLFor(NamespaceSearch))
}

func TestSweepSchedulerStartStop(t *testing.T) {
	c := New(Config{Enabled: true, SweepInterval: time.Second})
	require.NoError(t, c.Start())
	c.Stop()
}
