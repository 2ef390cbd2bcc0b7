//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
	"profile-service/pkg/testutil/containers"
)

func TestRedisBackend_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	c := New(NewRedisBackend(rc.Client), WithTTLs(TTLs{KYC: time.Second}))
	w := domain.NewKYCWorkflow(id.NewProfileID(), domain.KYCTypeStandard, []domain.DocumentType{domain.DocumentPAN}, time.Now())

	c.SetKYC(ctx, w)
	got, ok := c.GetKYC(ctx, w.ProfileID)
	require.True(t, ok)
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, []domain.DocumentType{domain.DocumentPAN}, got.RequiredDocuments)

	ttl, err := rc.Client.TTL(ctx, Key(KindKYC, w.ProfileID)).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Second)

	c.Invalidate(ctx, w.ProfileID, KindKYC)
	_, ok = c.GetKYC(ctx, w.ProfileID)
	assert.False(t, ok)
}
