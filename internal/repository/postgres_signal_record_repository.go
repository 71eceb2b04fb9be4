package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"confluence-backend/internal/domain"
)

const signalRecordColumns = `id, symbol, level_price, level_name, signal_time,
			strength, category, timeframe, direction,
			result, result_price, result_time, metadata`

// PostgresSignalRecordRepository stores signal records in Postgres.
// Pending records: result='PENDING'. Resolved: WIN or LOSS.
type PostgresSignalRecordRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSignalRecordRepository(pool *pgxpool.Pool) *PostgresSignalRecordRepository {
	return &PostgresSignalRecordRepository{pool: pool}
}

func (r *PostgresSignalRecordRepository) Insert(ctx context.Context, rec domain.SignalRecord) error {
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := r.pool.Exec(ctx, `
		insert into signal_records(`+signalRecordColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		rec.ID,
		rec.Symbol,
		rec.LevelPrice,
		rec.LevelName,
		rec.SignalTime,
		string(rec.Strength),
		string(rec.Category),
		rec.Timeframe,
		string(rec.Direction),
		string(rec.Result),
		nullableFloat(rec.ResultPrice),
		nullableTime(rec.ResultTime),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert signal record %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateResult only touches PENDING rows, so concurrent resolutions race in
// the database and exactly one wins.
func (r *PostgresSignalRecordRepository) UpdateResult(ctx context.Context, id string, result domain.Result, price float64, at time.Time) (domain.SignalRecord, error) {
	row := r.pool.QueryRow(ctx, `
		update signal_records set
			result=$2,
			result_price=$3,
			result_time=$4
		where id=$1 and result='PENDING'
		returning `+signalRecordColumns,
		id, string(result), price, at,
	)

	rec, err := scanSignalRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.SignalRecord{}, fmt.Errorf("update signal record %s: %w", id, err)
	}

	existing, getErr := r.Get(ctx, id)
	if getErr != nil {
		return domain.SignalRecord{}, getErr
	}
	return domain.SignalRecord{}, fmt.Errorf("%w: %s is %s", domain.ErrAlreadyResolved, id, existing.Result)
}

func (r *PostgresSignalRecordRepository) Get(ctx context.Context, id string) (domain.SignalRecord, error) {
	row := r.pool.QueryRow(ctx, `
		select `+signalRecordColumns+`
		from signal_records
		where id = $1
	`, id)

	rec, err := scanSignalRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SignalRecord{}, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	if err != nil {
		return domain.SignalRecord{}, fmt.Errorf("get signal record %s: %w", id, err)
	}
	return rec, nil
}

func (r *PostgresSignalRecordRepository) Query(ctx context.Context, filter domain.RecordFilter) ([]domain.SignalRecord, error) {
	where, args := buildRecordFilter(filter)
	rows, err := r.pool.Query(ctx, `
		select `+signalRecordColumns+`
		from signal_records`+where+`
		order by signal_time asc, id asc
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query signal records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SignalRecord, 0)
	for rows.Next() {
		rec, scanErr := scanSignalRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan signal record: %w", scanErr)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// buildRecordFilter renders the filter as a WHERE clause with positional args.
func buildRecordFilter(f domain.RecordFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Symbol != "" {
		add("upper(symbol) = upper($%d)", f.Symbol)
	}
	if f.Timeframe != "" {
		add("timeframe = $%d", f.Timeframe)
	}
	if f.Strength != "" {
		add("strength = $%d", string(f.Strength))
	}
	if !f.From.IsZero() {
		add("signal_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("signal_time <= $%d", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\twhere " + strings.Join(conds, " and "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSignalRecord(s scanner) (domain.SignalRecord, error) {
	var rec domain.SignalRecord
	var strength, category, direction, result string
	var resultPrice pgtype.Float8
	var resultTime pgtype.Timestamptz
	var metadata map[string]string

	if err := s.Scan(
		&rec.ID,
		&rec.Symbol,
		&rec.LevelPrice,
		&rec.LevelName,
		&rec.SignalTime,
		&strength,
		&category,
		&rec.Timeframe,
		&direction,
		&result,
		&resultPrice,
		&resultTime,
		&metadata,
	); err != nil {
		return domain.SignalRecord{}, err
	}

	rec.Strength = domain.Strength(strength)
	rec.Category = domain.Category(category)
	rec.Direction = domain.Direction(direction)
	rec.Result = domain.Result(result)
	rec.SignalTime = rec.SignalTime.UTC()
	if resultPrice.Valid {
		p := resultPrice.Float64
		rec.ResultPrice = &p
	}
	if resultTime.Valid {
		t := resultTime.Time.UTC()
		rec.ResultTime = &t
	}
	if len(metadata) > 0 {
		rec.Metadata = metadata
	}
	return rec, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Valid: true, Float64: *v}
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Valid: true, Time: *v}
}

// compile-time check
var _ domain.SignalRecordStore = (*PostgresSignalRecordRepository)(nil)
