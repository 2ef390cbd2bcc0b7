// Package cache is the read-through front for profile, address-list and KYC
// snapshots.
//
// Values are JSON snapshots of committed store state. Authorization and PII
// masking are never applied before a value enters the cache; callers apply
// them after a hit. Backend failures read as misses so lookups fall through
// to the store, and writers invalidate synchronously before reporting
// success.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"profile-service/internal/domain"
	"profile-service/internal/platform/metrics"
	id "profile-service/pkg/domain"
	"profile-service/pkg/platform/sentinel"
)

// Kind names one cached entity kind. Its value is the key prefix.
type Kind string

const (
	KindProfile   Kind = "profile"
	KindAddresses Kind = "addresses"
	KindKYC       Kind = "kyc"
)

// Key renders the stable cache key for kind and profileID.
func Key(kind Kind, profileID id.ProfileID) string {
	return string(kind) + ":" + profileID.String()
}

// TTLs are the per-kind expiry durations.
type TTLs struct {
	Profile   time.Duration
	Addresses time.Duration
	KYC       time.Duration
}

// DefaultTTLs are used for any kind left at zero.
var DefaultTTLs = TTLs{
	Profile:   300 * time.Second,
	Addresses: 600 * time.Second,
	KYC:       120 * time.Second,
}

func (t TTLs) For(kind Kind) time.Duration {
	switch kind {
	case KindProfile:
		return orDefault(t.Profile, DefaultTTLs.Profile)
	case KindAddresses:
		return orDefault(t.Addresses, DefaultTTLs.Addresses)
	default:
		return orDefault(t.KYC, DefaultTTLs.KYC)
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Cache is the typed facade over a Backend.
type Cache struct {
	backend Backend
	ttls    TTLs
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func WithTTLs(ttls TTLs) Option {
	return func(c *Cache) {
		c.ttls = ttls
	}
}

func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		ttls:    DefaultTTLs,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get loads the raw snapshot under kind/profileID.
func (c *Cache) Get(ctx context.Context, kind Kind, profileID id.ProfileID) ([]byte, bool) {
	b, err := c.backend.Get(ctx, Key(kind, profileID))
	switch {
	case err == nil:
		c.metrics.IncrementCache(string(kind), "hit")
		return b, true
	case errors.Is(err, sentinel.ErrCacheMiss):
		c.metrics.IncrementCache(string(kind), "miss")
	default:
		c.metrics.IncrementCache(string(kind), "error")
		c.logger.DebugContext(ctx, "cache get failed", "kind", kind, "profile_id", profileID, "error", err)
	}
	return nil, false
}

// Set stores a raw snapshot with kind's TTL.
func (c *Cache) Set(ctx context.Context, kind Kind, profileID id.ProfileID, value []byte) {
	if err := c.backend.Set(ctx, Key(kind, profileID), value, c.ttls.For(kind)); err != nil {
		c.logger.DebugContext(ctx, "cache set failed", "kind", kind, "profile_id", profileID, "error", err)
	}
}

// Invalidate drops the given kinds for profileID. With no kinds it drops all
// three.
func (c *Cache) Invalidate(ctx context.Context, profileID id.ProfileID, kinds ...Kind) {
	if len(kinds) == 0 {
		kinds = []Kind{KindProfile, KindAddresses, KindKYC}
	}
	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, Key(k, profileID))
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed", "profile_id", profileID, "keys", keys, "error", err)
	}
}

func (c *Cache) GetProfile(ctx context.Context, profileID id.ProfileID) (*domain.Profile, bool) {
	return getJSON[domain.Profile](ctx, c, KindProfile, profileID)
}

func (c *Cache) SetProfile(ctx context.Context, p *domain.Profile) {
	setJSON(ctx, c, KindProfile, p.ID, p)
}

func (c *Cache) GetAddresses(ctx context.Context, profileID id.ProfileID) ([]*domain.Address, bool) {
	addrs, ok := getJSON[[]*domain.Address](ctx, c, KindAddresses, profileID)
	if !ok {
		return nil, false
	}
	return *addrs, true
}

func (c *Cache) SetAddresses(ctx context.Context, profileID id.ProfileID, addrs []*domain.Address) {
	setJSON(ctx, c, KindAddresses, profileID, addrs)
}

func (c *Cache) GetKYC(ctx context.Context, profileID id.ProfileID) (*domain.KYCWorkflow, bool) {
	return getJSON[domain.KYCWorkflow](ctx, c, KindKYC, profileID)
}

func (c *Cache) SetKYC(ctx context.Context, w *domain.KYCWorkflow) {
	setJSON(ctx, c, KindKYC, w.ProfileID, w)
}

func getJSON[T any](ctx context.Context, c *Cache, kind Kind, profileID id.ProfileID) (*T, bool) {
	b, ok := c.Get(ctx, kind, profileID)
	if !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		c.logger.WarnContext(ctx, "discarding undecodable cache entry", "kind", kind, "profile_id", profileID, "error", err)
		c.Invalidate(ctx, profileID, kind)
		return nil, false
	}
	return &v, true
}

func setJSON(ctx context.Context, c *Cache, kind Kind, profileID id.ProfileID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed", "kind", kind, "profile_id", profileID, "error", err)
		return
	}
	c.Set(ctx, kind, profileID, b)
}
