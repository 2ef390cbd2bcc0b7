// Package mirror replicates committed profile state into Postgres.
//
// The in-process store is the system of record. The mirror keeps a JSONB
// snapshot per profile and address for downstream reporting; writes are
// idempotent upserts and an older snapshot never overwrites a newer one.
package mirror

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"profile-service/internal/domain"
)

//go:embed schema.sql
var schema string

// DB is the subset of *pgxpool.Pool used by the mirror.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres implements profile.Mirror.
type Postgres struct {
	db     DB
	logger *slog.Logger
}

type Option func(*Postgres)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Postgres) {
		p.logger = logger
	}
}

func New(db DB, opts ...Option) *Postgres {
	p := &Postgres{
		db:     db,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mirror dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open mirror pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping mirror: %w", err)
	}
	return pool, nil
}

// Migrate creates the snapshot tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate mirror schema: %w", err)
	}
	return nil
}

const upsertProfile = `
INSERT INTO profile_snapshots (id, user_id, tenant_id, status, kyc_status, completeness, document, updated_at, synced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    kyc_status = EXCLUDED.kyc_status,
    completeness = EXCLUDED.completeness,
    document = EXCLUDED.document,
    updated_at = EXCLUDED.updated_at,
    synced_at = now()
WHERE profile_snapshots.updated_at <= EXCLUDED.updated_at`

const upsertAddress = `
INSERT INTO address_snapshots (id, profile_id, address_type, is_primary, verification_status, document, updated_at, deleted_at, synced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (id) DO UPDATE SET
    address_type = EXCLUDED.address_type,
    is_primary = EXCLUDED.is_primary,
    verification_status = EXCLUDED.verification_status,
    document = EXCLUDED.document,
    updated_at = EXCLUDED.updated_at,
    deleted_at = EXCLUDED.deleted_at,
    synced_at = now()
WHERE address_snapshots.updated_at <= EXCLUDED.updated_at`

// Addresses absent from the live set were soft-deleted in the store.
const retireAddresses = `
UPDATE address_snapshots
SET deleted_at = now(), synced_at = now()
WHERE profile_id = $1 AND deleted_at IS NULL AND NOT (id = ANY($2::uuid[]))`

// SyncProfile writes the profile and its live addresses in one transaction.
func (p *Postgres) SyncProfile(ctx context.Context, profile *domain.Profile, addresses []*domain.Address) error {
	if profile == nil {
		return errors.New("sync profile: nil profile")
	}
	profileDoc, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(upsertProfile,
		profile.ID.String(), profile.UserID, profile.TenantID, string(profile.Status),
		string(profile.KYCStatus), profile.CompletenessPercentage, profileDoc, profile.UpdatedAt,
	)
	live := make([]string, 0, len(addresses))
	for _, a := range addresses {
		doc, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode address snapshot %s: %w", a.ID, err)
		}
		batch.Queue(upsertAddress,
			a.ID.String(), profile.ID.String(), string(a.Type), a.IsPrimary,
			string(a.VerificationStatus), doc, a.UpdatedAt, a.DeletedAt,
		)
		live = append(live, a.ID.String())
	}
	batch.Queue(retireAddresses, profile.ID.String(), live)

	err = pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("sync profile %s: %w", profile.ID, err)
	}
	p.logger.DebugContext(ctx, "profile mirrored",
		"profile_id", profile.ID,
		"addresses", len(addresses),
	)
	return nil
}
