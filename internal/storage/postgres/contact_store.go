// Package postgres mirrors journal contacts into Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

const defaultTable = "journal_contacts"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// ContactStore writes one row per author.
//
// Expected schema:
//
//	CREATE TABLE journal_contacts (
//		run_id   TEXT NOT NULL,
//		journal  TEXT NOT NULL,
//		position INT  NOT NULL,
//		author   TEXT NOT NULL,
//		emails   JSONB NOT NULL,
//		PRIMARY KEY (run_id, journal, author)
//	);
type ContactStore struct {
	pool  txBeginner
	table string
}

// NewContactStore connects a pool using cfg.
func NewContactStore(ctx context.Context, cfg Config) (*ContactStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewContactStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewContactStoreWithPool constructs a store from an existing pool.
func NewContactStoreWithPool(pool txBeginner, table string) (*ContactStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ContactStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool.
func (s *ContactStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreContacts replaces the journal's rows for runID with contacts in one
// transaction, so a failed insert leaves the previous rows in place.
func (s *ContactStore) StoreContacts(ctx context.Context, runID, journal string, contacts *crawler.Contacts) error {
	if s == nil || s.pool == nil {
		return errors.New("contact store is not configured")
	}
	if journal == "" {
		return errors.New("journal is required")
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1 AND journal = $2`, s.table)
	insertQuery := fmt.Sprintf(`
INSERT INTO %s (run_id, journal, position, author, emails)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_id, journal, author) DO UPDATE SET emails = EXCLUDED.emails`, s.table)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteQuery, runID, journal); err != nil {
			return fmt.Errorf("clear contacts for %s: %w", journal, err)
		}
		var firstErr error
		position := 0
		contacts.Each(func(name string, emails []string) {
			if firstErr != nil {
				return
			}
			encoded, err := json.Marshal(emails)
			if err != nil {
				firstErr = fmt.Errorf("marshal emails for %s: %w", name, err)
				return
			}
			if _, err := tx.Exec(ctx, insertQuery, runID, journal, position, name, encoded); err != nil {
				firstErr = fmt.Errorf("insert contact %s: %w", name, err)
				return
			}
			position++
		})
		return firstErr
	})
}
