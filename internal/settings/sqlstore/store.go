// Package sqlstore stores the option record in SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abczzz13/unprotect"
	"github.com/abczzz13/unprotect/internal/settings"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store implements settings.Store using SQL.
type Store struct {
	db   *sqlx.DB
	name string
}

type optionRow struct {
	Name      string    `db:"name"`
	Value     string    `db:"value"`
	Revision  string    `db:"revision"`
	UpdatedAt time.Time `db:"updated_at"`
}

// New connects to the database and runs migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := migrate(db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already migrated connection.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db, name: unprotect.OptionName}
}

func migrate(db *sqlx.DB, driver string) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Load(ctx context.Context) (*settings.Record, error) {
	var row optionRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT name, value, revision, updated_at FROM options WHERE name = ?`), s.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying option %s: %w", s.name, err)
	}

	var opts unprotect.Options
	if err := json.Unmarshal([]byte(row.Value), &opts); err != nil {
		return nil, fmt.Errorf("decoding option %s: %w", s.name, err)
	}

	return &settings.Record{
		Options:   opts,
		Revision:  row.Revision,
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) Save(ctx context.Context, rec *settings.Record) error {
	value, err := json.Marshal(rec.Options)
	if err != nil {
		return fmt.Errorf("encoding option %s: %w", s.name, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO options (name, value, revision, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value, revision = excluded.revision, updated_at = excluded.updated_at`),
		s.name, string(value), rec.Revision, rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upserting option %s: %w", s.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing option %s: %w", s.name, err)
	}
	return nil
}
