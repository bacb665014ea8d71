// Package sqlite provides a SQLite-backed implementation of the herd store.
// Each RunInTransaction call maps onto one database transaction, so a failed
// callback or a blocking rule leaves no partial writes behind.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register the sqlite driver

	"herdbook/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "herdbook.db"

// Store persists herd records in a SQLite database.
type Store struct {
	mu     sync.Mutex
	db     *sqlx.DB
	path   string
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStore opens (creating if needed) the database at path and applies the
// schema migrations.
func NewStore(ctx context.Context, path string, engine *domain.RulesEngine, opts ...Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps writers serialized and pragmas applied.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	s := &Store{
		db:     db,
		path:   path,
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle for tooling such as the legacy importer.
func (s *Store) DB() *sqlx.DB { return s.db }

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// RunInTransaction executes fn inside a database transaction. The transaction
// commits only when fn succeeds and the rules engine reports no blocking
// violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Tx) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Result{}, domain.Storage("begin", err)
	}
	tx := &transaction{
		queries: queries{ctx: ctx, q: sqlTx},
		now:     s.nowFn().UTC(),
	}

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, &tx.queries, tx.changes)
		if err != nil {
			_ = sqlTx.Rollback()
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			_ = sqlTx.Rollback()
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return domain.Result{}, domain.Storage("commit", err)
	}
	return result, nil
}

// View executes fn against a consistent read of the database.
func (s *Store) View(ctx context.Context, fn func(domain.TxView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Storage("begin", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&queries{ctx: ctx, q: sqlTx})
}
