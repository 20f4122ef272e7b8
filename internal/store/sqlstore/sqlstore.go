// Package sqlstore keeps items in a relational table. SQLite (pure Go
// driver) is the default; Postgres is reachable through pgx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	db      *sql.DB
	dialect string
	log     *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects and migrates. For sqlite dsn is a file path (its directory
// is created); for postgres it is a pgx connection string.
func Open(ctx context.Context, driver, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("sqlstore")

	var sqlDriver string
	switch driver {
	case DriverSQLite, "":
		driver, sqlDriver = DriverSQLite, "sqlite"
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create directory: %w", err)
			}
		}
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unknown sql driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// one connection: sqlite serializes writers anyway, and :memory:
		// databases are per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	s := &Store{db: db, dialect: driver, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("sql store opened", zap.String("driver", driver))
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const selectColumns = `uid, text, color, importance, created_at, changed_at, done, deadline`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (model.Item, error) {
	var (
		it         model.Item
		color      int64
		importance string
		createdAt  int64
		changedAt  int64
		deadline   sql.NullInt64
	)
	if err := r.Scan(&it.UID, &it.Text, &color, &importance, &createdAt, &changedAt, &it.Done, &deadline); err != nil {
		return model.Item{}, err
	}
	it.Color = model.Color(uint32(color))
	it.Importance = importanceFromColumn(importance)
	if createdAt != 0 {
		it.CreatedAt = model.MillisTime(createdAt)
	}
	if changedAt != 0 {
		it.ChangedAt = model.MillisTime(changedAt)
	}
	if deadline.Valid {
		d := model.MillisTime(deadline.Int64)
		it.Deadline = &d
	}
	return it, nil
}

func importanceColumn(i model.Importance) string {
	switch i {
	case model.High:
		return "HIGH"
	case model.Low:
		return "LOW"
	default:
		return "NORMAL"
	}
}

func importanceFromColumn(s string) model.Importance {
	switch strings.ToUpper(s) {
	case "HIGH":
		return model.High
	case "LOW":
		return model.Low
	default:
		return model.Normal
	}
}

func itemArgs(it model.Item) []any {
	var deadline any
	if it.Deadline != nil {
		deadline = it.Deadline.UnixMilli()
	}
	return []any{
		it.UID, it.Text, int64(uint32(it.Color)), importanceColumn(it.Importance),
		model.TimeMillis(it.CreatedAt), model.TimeMillis(it.ChangedAt), it.Done, deadline,
	}
}

func (s *Store) LoadAll(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM todos ORDER BY seq, uid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	s.log.Debug("loaded items", zap.Int("count", len(items)))
	return items, nil
}

func (s *Store) Get(ctx context.Context, uid string) (model.Item, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+selectColumns+` FROM todos WHERE uid = ?`), uid)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, store.ErrNotFound
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("failed to get todo: %w", err)
	}
	return it, nil
}

// upsert appends new uids at the end (seq) and leaves seq and created_at
// alone for existing ones, so edits keep their position.
const upsertQuery = `INSERT INTO todos (uid, text, color, importance, created_at, changed_at, done, deadline, seq)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM todos))
ON CONFLICT (uid) DO UPDATE SET
	text = excluded.text,
	color = excluded.color,
	importance = excluded.importance,
	changed_at = excluded.changed_at,
	done = excluded.done,
	deadline = excluded.deadline`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsert(ctx context.Context, ex execer, it model.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = it.ChangedAt
	}
	if it.CreatedAt.IsZero() {
		it.Touch()
		it.CreatedAt = it.ChangedAt
	}
	if _, err := ex.ExecContext(ctx, s.rebind(upsertQuery), itemArgs(it)...); err != nil {
		return fmt.Errorf("failed to save todo %s: %w", it.UID, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, item model.Item) error {
	if err := s.upsert(ctx, s.db, item); err != nil {
		return err
	}
	s.log.Info("saved item", zap.String("uid", item.UID), zap.Int("text_len", len(item.Text)), zap.Bool("done", item.Done))
	return nil
}

func (s *Store) SaveAll(ctx context.Context, items []model.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM todos`); err != nil {
		return fmt.Errorf("failed to clear todos: %w", err)
	}
	for _, it := range items {
		if err := s.upsert(ctx, tx, it); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Info("saved items", zap.Int("count", len(items)))
	return nil
}

func (s *Store) Delete(ctx context.Context, uid string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM todos WHERE uid = ?`), uid)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	s.log.Info("delete", zap.String("uid", uid), zap.Int64("rows", n))
	return n > 0, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM todos`); err != nil {
		return fmt.Errorf("failed to clear todos: %w", err)
	}
	s.log.Info("cache cleared")
	return nil
}
