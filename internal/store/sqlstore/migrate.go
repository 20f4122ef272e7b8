package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations run in order, each inside its own transaction. Never edit a
// released migration; append a new one.
var migrations = []migration{
	{
		version: 1,
		name:    "create todos",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS todos (
				uid TEXT PRIMARY KEY NOT NULL,
				text TEXT NOT NULL,
				color BIGINT NOT NULL,
				importance TEXT NOT NULL DEFAULT 'NORMAL',
				created_at BIGINT NOT NULL,
				done BOOLEAN NOT NULL DEFAULT FALSE,
				deadline BIGINT
			)`,
		},
	},
	{
		version: 2,
		name:    "add changed_at",
		stmts: []string{
			`ALTER TABLE todos ADD COLUMN changed_at BIGINT NOT NULL DEFAULT 0`,
			`UPDATE todos SET changed_at = created_at`,
		},
	},
	{
		version: 3,
		name:    "add seq for stable ordering",
		stmts: []string{
			`ALTER TABLE todos ADD COLUMN seq BIGINT NOT NULL DEFAULT 0`,
			`UPDATE todos SET seq = (
				SELECT COUNT(*) FROM todos t2
				WHERE t2.created_at < todos.created_at
				   OR (t2.created_at = todos.created_at AND t2.uid <= todos.uid)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_todos_seq ON todos(seq)`,
		},
	},
}

// Version returns the applied schema version, 0 for a fresh database.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return int(v.Int64), nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		s.log.Info("applied migration", zap.Int("version", m.version), zap.String("name", m.name))
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO schema_version (version) VALUES (?)`), m.version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
