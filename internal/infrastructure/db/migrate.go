package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Statements returns the idempotent schema for signal tracking.
func Statements() []string {
	return []string{
		`create table if not exists signal_records (
			id text primary key,
			symbol text not null,
			level_price double precision not null,
			level_name text not null,
			signal_time timestamptz not null,
			strength text not null,
			category text not null,
			timeframe text not null,
			direction text not null,
			result text not null default 'PENDING',
			result_price double precision null,
			result_time timestamptz null,
			metadata jsonb not null default '{}'::jsonb,
			created_at timestamptz not null default now()
		);`,
		`create index if not exists signal_records_symbol_time_idx on signal_records(symbol, signal_time);`,
		`create index if not exists signal_records_result_idx on signal_records(result);`,
		`create index if not exists signal_records_strength_idx on signal_records(strength);`,
	}
}

// Migrate creates the tables needed by this app.
// No external migration tool; every statement is safe to rerun.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range Statements() {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return nil
}
