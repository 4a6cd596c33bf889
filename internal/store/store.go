// Package store persists imported records and import run history in
// PostgreSQL through pgx.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Beginner is a DBTX that can open transactions.
type Beginner interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS persons (
	id                  UUID PRIMARY KEY,
	external_id         TEXT,
	name                TEXT NOT NULL,
	national_id         TEXT,
	nationality         TEXT,
	country             TEXT,
	city                TEXT,
	settlement          TEXT,
	neighborhood        TEXT,
	address             TEXT,
	family_member_count INTEGER,
	linked_orphan       TEXT,
	linked_card         TEXT,
	phone               TEXT,
	registration_date   DATE,
	registration_unit   TEXT,
	category            TEXT,
	person_type         TEXT,
	fund_region         TEXT,
	total_amount        NUMERIC(14, 2),
	iban                TEXT,
	status              TEXT NOT NULL DEFAULT 'active',
	import_run_id       UUID,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS persons_national_id_key
	ON persons (national_id) WHERE national_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS import_runs (
	id          UUID PRIMARY KEY,
	target      TEXT NOT NULL,
	file_name   TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	successful  INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	invalid     INTEGER NOT NULL DEFAULT 0,
	duplicates  INTEGER NOT NULL DEFAULT 0,
	truncated   INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS import_runs_target_started_idx
	ON import_runs (target, started_at DESC);
`

// EnsureSchema creates the tables used by this package if they are missing.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
