package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joblet/joblet/job"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ job.Store = (*Store)(nil)

// Store is a PostgreSQL-backed job.Store using pgxpool for connection
// pooling.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New connects to connString and returns a Store. It does not run
// migrations; call Migrate explicitly.
func New(ctx context.Context, connString string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("joblet/postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("joblet/postgres: connect: %w", err)
	}

	return NewFromPool(pool, opts...), nil
}

// NewFromPool builds a Store from an already-configured pool, letting the
// caller own pool lifecycle and tuning.
func NewFromPool(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func init() {
	job.RegisterBackend("postgres", func(ctx context.Context, uri *url.URL) (job.Store, error) {
		connString := uri.String()

		s, err := New(ctx, connString)
		if err != nil {
			return nil, err
		}

		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}

		return s, nil
	})
}

// Migrate applies every embedded migrations/*.sql file not yet recorded in
// joblet_migrations, in filename order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS joblet_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("joblet/postgres: create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("joblet/postgres: read migrations: %w", err)
	}

	sort.Slice(entries, func(i, k int) bool { return entries[i].Name() < entries[k].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var applied bool
		err = s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM joblet_migrations WHERE filename = $1)`,
			entry.Name(),
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("joblet/postgres: check migration %s: %w", entry.Name(), err)
		}
		if applied {
			continue
		}

		data, readErr := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if readErr != nil {
			return fmt.Errorf("joblet/postgres: read migration %s: %w", entry.Name(), readErr)
		}

		if _, execErr := s.pool.Exec(ctx, string(data)); execErr != nil {
			return fmt.Errorf("joblet/postgres: execute migration %s: %w", entry.Name(), execErr)
		}

		if _, recErr := s.pool.Exec(ctx,
			`INSERT INTO joblet_migrations (filename) VALUES ($1)`, entry.Name(),
		); recErr != nil {
			return fmt.Errorf("joblet/postgres: record migration %s: %w", entry.Name(), recErr)
		}

		s.logger.Info("applied migration", "file", entry.Name())
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool. Satisfies io.Closer so engine.Stop can
// disconnect the store on shutdown.
func (s *Store) Close() error {
	s.pool.Close()

	return nil
}

// Pool returns the underlying pgxpool.Pool for advanced usage outside the
// job.Store contract.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
