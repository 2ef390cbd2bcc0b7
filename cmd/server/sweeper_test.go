package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"profile-service/internal/domain"
	id "profile-service/pkg/domain"
)

type fakeExpirer struct {
	expired  int
	err      error
	expiring []*domain.KYCWorkflow
	calls    int
}

func (f *fakeExpirer) ExpireDue(context.Context, time.Time) (int, error) {
	f.calls++
	return f.expired, f.err
}

func (f *fakeExpirer) ExpiringWithin(context.Context, time.Time, time.Duration) []*domain.KYCWorkflow {
	return f.expiring
}

type fakeQueue struct {
	overdue []*domain.Enrichment
}

func (f *fakeQueue) Overdue(context.Context, time.Time) []*domain.Enrichment {
	return f.overdue
}

func newTestSweeper(k *fakeExpirer, q *fakeQueue, buf *bytes.Buffer) *sweeper {
	return &sweeper{
		kyc:         k,
		enrichments: q,
		warnWindow:  30 * 24 * time.Hour,
		logger:      slog.New(slog.NewTextHandler(buf, nil)),
		now:         func() time.Time { return time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC) },
	}
}

func TestSweeper_Sweep(t *testing.T) {
	t.Run("reports expiries, renewals and overdue reviews", func(t *testing.T) {
		var buf bytes.Buffer
		k := &fakeExpirer{
			expired:  2,
			expiring: []*domain.KYCWorkflow{{ID: id.NewKYCID(), ProfileID: id.NewProfileID()}},
		}
		q := &fakeQueue{overdue: []*domain.Enrichment{{}, {}}}

		newTestSweeper(k, q, &buf).sweep(context.Background())

		out := buf.String()
		assert.Contains(t, out, "kyc workflows expired")
		assert.Contains(t, out, "expired=2")
		assert.Contains(t, out, "kyc renewal due")
		assert.Contains(t, out, "count=2")
	})

	t.Run("quiet when nothing is due", func(t *testing.T) {
		var buf bytes.Buffer
		newTestSweeper(&fakeExpirer{}, &fakeQueue{}, &buf).sweep(context.Background())
		assert.Empty(t, buf.String())
	})

	t.Run("logs sweep failures", func(t *testing.T) {
		var buf bytes.Buffer
		k := &fakeExpirer{expired: 1, err: errors.New("lock timeout")}
		newTestSweeper(k, &fakeQueue{}, &buf).sweep(context.Background())
		assert.Contains(t, buf.String(), "kyc expiry sweep failed")
	})
}

func TestSweeper_Run(t *testing.T) {
	t.Run("disabled interval returns immediately", func(t *testing.T) {
		k := &fakeExpirer{}
		var buf bytes.Buffer
		newTestSweeper(k, &fakeQueue{}, &buf).Run(context.Background(), 0)
		assert.Zero(t, k.calls)
	})

	t.Run("sweeps before the first tick and stops on cancel", func(t *testing.T) {
		k := &fakeExpirer{}
		var buf bytes.Buffer
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		newTestSweeper(k, &fakeQueue{}, &buf).Run(ctx, time.Hour)
		assert.Equal(t, 1, k.calls)
	})
}

func TestConfigConversions(t *testing.T) {
	reqs := kycRequirements(map[string][]string{"standard": {"pan"}})
	assert.Equal(t, []domain.DocumentType{domain.DocumentPAN}, reqs[domain.KYCTypeStandard])

	assert.Equal(t, []domain.ConsentType{domain.ConsentDataUsage}, consentTypes([]string{"data_usage"}))
}
