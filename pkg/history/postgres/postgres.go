// Package postgres provides a PostgreSQL history.Store built on pgx/v5.
// Verdicts are stored as JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/history"
)

const uniqueViolation = "23505"

// Store is a PostgreSQL-backed history.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ history.Store = (*Store)(nil)

// New connects to PostgreSQL. If MigrateOnStart is true, schema
// migrations are applied before returning.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

// Save inserts a record. A duplicate ID yields history.ErrConflict.
func (s *Store) Save(ctx context.Context, rec *history.Record) error {
	verdict, err := json.Marshal(rec.Verdict)
	if err != nil {
		return fmt.Errorf("marshaling verdict: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO verifications (
			id, tenant_id, kind, backend, model, task, language, path, verdict, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rec.ID, rec.Tenant, string(rec.Kind), rec.Backend, rec.Model, rec.Task,
		string(rec.Language), rec.Path, verdict, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return history.ErrConflict
		}
		return fmt.Errorf("inserting verification: %w", err)
	}
	return nil
}

const selectColumns = `id, tenant_id, kind, backend, model, task, language, path, verdict, created_at`

// Get returns the record with the given ID, scoped by tenant.
func (s *Store) Get(ctx context.Context, id string) (*history.Record, error) {
	query := "SELECT " + selectColumns + " FROM verifications WHERE id = $1"
	args := []any{id}
	if tenant := history.GetTenant(ctx); tenant != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenant)
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying verification: %w", err)
	}
	return rec, nil
}

// List returns records newest first. The After cursor resolves to the
// cursor record's (created_at, id) position.
func (s *Store) List(ctx context.Context, opts history.ListOptions) (*history.Page, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if tenant := history.GetTenant(ctx); tenant != "" {
		where = append(where, "tenant_id = "+arg(tenant))
	}
	if opts.Kind != "" {
		where = append(where, "kind = "+arg(string(opts.Kind)))
	}
	if opts.Language != "" {
		where = append(where, "language = "+arg(string(opts.Language)))
	}
	if opts.After != "" {
		p := arg(opts.After)
		where = append(where, fmt.Sprintf(
			"(created_at, id) < (SELECT created_at, id FROM verifications WHERE id = %s)", p))
	}

	limit := opts.EffectiveLimit()
	query := "SELECT " + selectColumns + " FROM verifications"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing verifications: %w", err)
	}
	defer rows.Close()

	var records []*history.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning verification: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing verifications: %w", err)
	}
	return history.NewPage(records, limit), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*history.Record, error) {
	var (
		rec         history.Record
		kind, lang  string
		verdictJSON []byte
	)
	if err := row.Scan(
		&rec.ID, &rec.Tenant, &kind, &rec.Backend, &rec.Model, &rec.Task,
		&lang, &rec.Path, &verdictJSON, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Kind = history.Kind(kind)
	rec.Language = api.Language(lang)
	if err := json.Unmarshal(verdictJSON, &rec.Verdict); err != nil {
		return nil, fmt.Errorf("unmarshaling verdict: %w", err)
	}
	return &rec, nil
}

// isDuplicateKey reports whether err is a PostgreSQL unique violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
