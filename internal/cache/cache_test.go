package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"profile-service/internal/domain"
	"profile-service/internal/platform/metrics"
	id "profile-service/pkg/domain"
	"profile-service/pkg/platform/circuit"
)

type CacheSuite struct {
	suite.Suite
	ctx     context.Context
	backend *MemoryBackend
	metrics *metrics.Metrics
	cache   *Cache
	now     time.Time
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = NewMemoryBackend(time.Minute)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.cache = New(s.backend, WithMetrics(s.metrics))
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *CacheSuite) newProfile() *domain.Profile {
	p, err := domain.NewProfile("user-1", "tenant-1", s.now)
	s.Require().NoError(err)
	income := decimal.RequireFromString("1250000.50")
	p.FirstName = "Asha"
	p.AnnualIncome = &income
	return p
}

func (s *CacheSuite) TestKeys() {
	pid := id.NewProfileID()
	s.Equal("profile:"+pid.String(), Key(KindProfile, pid))
	s.Equal("addresses:"+pid.String(), Key(KindAddresses, pid))
	s.Equal("kyc:"+pid.String(), Key(KindKYC, pid))
}

func (s *CacheSuite) TestProfileRoundTrip() {
	p := s.newProfile()

	_, ok := s.cache.GetProfile(s.ctx, p.ID)
	s.False(ok)

	s.cache.SetProfile(s.ctx, p)
	got, ok := s.cache.GetProfile(s.ctx, p.ID)
	s.Require().True(ok)
	s.Equal(p.ID, got.ID)
	s.Equal("Asha", got.FirstName)
	s.True(p.AnnualIncome.Equal(*got.AnnualIncome))

	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheRequests.WithLabelValues("profile", "hit")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheRequests.WithLabelValues("profile", "miss")))
}

func (s *CacheSuite) TestHitIsASnapshot() {
	p := s.newProfile()
	s.cache.SetProfile(s.ctx, p)
	p.FirstName = "Changed"

	got, ok := s.cache.GetProfile(s.ctx, p.ID)
	s.Require().True(ok)
	s.Equal("Asha", got.FirstName)
}

func (s *CacheSuite) TestTTLExpiry() {
	c := New(s.backend, WithTTLs(TTLs{Profile: 50 * time.Millisecond}))
	p := s.newProfile()
	c.SetProfile(s.ctx, p)

	_, ok := c.GetProfile(s.ctx, p.ID)
	s.Require().True(ok)

	s.Eventually(func() bool {
		_, ok := c.GetProfile(s.ctx, p.ID)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func (s *CacheSuite) TestInvalidate() {
	p := s.newProfile()
	addr := &domain.Address{ID: id.NewAddressID(), ProfileID: p.ID, City: "Pune"}
	w := domain.NewKYCWorkflow(p.ID, domain.KYCTypeStandard, nil, s.now)

	s.Run("selected kinds only", func() {
		s.cache.SetProfile(s.ctx, p)
		s.cache.SetAddresses(s.ctx, p.ID, []*domain.Address{addr})
		s.cache.SetKYC(s.ctx, w)

		s.cache.Invalidate(s.ctx, p.ID, KindAddresses)

		_, ok := s.cache.GetAddresses(s.ctx, p.ID)
		s.False(ok)
		_, ok = s.cache.GetProfile(s.ctx, p.ID)
		s.True(ok)
		got, ok := s.cache.GetKYC(s.ctx, p.ID)
		s.True(ok)
		s.Equal(w.ID, got.ID)
	})

	s.Run("all kinds", func() {
		s.cache.SetAddresses(s.ctx, p.ID, []*domain.Address{addr})
		s.cache.Invalidate(s.ctx, p.ID)
		_, ok := s.cache.GetProfile(s.ctx, p.ID)
		s.False(ok)
		_, ok = s.cache.GetAddresses(s.ctx, p.ID)
		s.False(ok)
		_, ok = s.cache.GetKYC(s.ctx, p.ID)
		s.False(ok)
	})
}

func (s *CacheSuite) TestUndecodableEntryIsDropped() {
	pid := id.NewProfileID()
	s.cache.Set(s.ctx, KindProfile, pid, []byte("{not json"))

	_, ok := s.cache.GetProfile(s.ctx, pid)
	s.False(ok)
	_, err := s.backend.Get(s.ctx, Key(KindProfile, pid))
	s.Error(err)
}

type downRedis struct {
	calls int
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func (d *downRedis) Get(context.Context, string) *redis.StringCmd {
	d.calls++
	return redis.NewStringResult("", errConnRefused)
}

func (d *downRedis) Set(context.Context, string, any, time.Duration) *redis.StatusCmd {
	d.calls++
	return redis.NewStatusResult("", errConnRefused)
}

func (d *downRedis) Del(context.Context, ...string) *redis.IntCmd {
	d.calls++
	return redis.NewIntResult(0, errConnRefused)
}

func (s *CacheSuite) TestUnreachableRedisDegradesToMiss() {
	down := &downRedis{}
	breaker := circuit.New("redis-cache", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	c := New(NewRedisBackend(down, WithRedisBreaker(breaker), WithRedisMetrics(s.metrics)), WithMetrics(s.metrics))
	p := s.newProfile()

	c.SetProfile(s.ctx, p)
	_, ok := c.GetProfile(s.ctx, p.ID)
	s.False(ok)
	c.Invalidate(s.ctx, p.ID)

	s.True(breaker.IsOpen())
	s.Equal(2, down.calls, "open circuit stops calling redis")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheDegraded))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheRequests.WithLabelValues("profile", "error")))
}

func (s *CacheSuite) TestRedisMissIsNotAFailure() {
	missing := &missingRedis{}
	breaker := circuit.New("redis-cache", circuit.WithFailureThreshold(1))
	c := New(NewRedisBackend(missing, WithRedisBreaker(breaker)))

	_, ok := c.GetKYC(s.ctx, id.NewProfileID())
	s.False(ok)
	s.False(breaker.IsOpen())
}

type missingRedis struct{}

func (missingRedis) Get(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", redis.Nil)
}

func (missingRedis) Set(context.Context, string, any, time.Duration) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func (missingRedis) Del(context.Context, ...string) *redis.IntCmd {
	return redis.NewIntResult(0, nil)
}
