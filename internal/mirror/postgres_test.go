package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profile-service/internal/domain"
)

type stubDB struct {
	beginErr error
	execs    []string
}

func (d *stubDB) Begin(context.Context) (pgx.Tx, error) {
	return nil, d.beginErr
}

func (d *stubDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestSyncProfile_NilProfile(t *testing.T) {
	m := New(&stubDB{})
	assert.Error(t, m.SyncProfile(context.Background(), nil, nil))
}

func TestSyncProfile_BeginFailureIsWrapped(t *testing.T) {
	down := errors.New("connection refused")
	m := New(&stubDB{beginErr: down})

	p, err := domain.NewProfile("user-1", "t1", time.Now())
	require.NoError(t, err)

	err = m.SyncProfile(context.Background(), p, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), p.ID.String())
}

func TestMigrate_ExecutesSchema(t *testing.T) {
	db := &stubDB{}
	require.NoError(t, New(db).Migrate(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "profile_snapshots")
	assert.Contains(t, db.execs[0], "address_snapshots")
}
