package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"expenses/internal/core"
)

// connPragmas are applied by the driver to every pooled connection. Write
// transactions take the lock at BEGIN so check-then-write sequences cannot
// interleave with another writer.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

const timestampLayout = "2006-01-02T15:04:05.000Z"

// nowSQL renders the current UTC time in the column format.
const nowSQL = "strftime('%Y-%m-%dT%H:%M:%fZ', 'now')"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dbPath == "" || strings.Contains(dbPath, ":memory:") {
		return nil, fmt.Errorf("sqlite path %q must name a file", dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Migrate before opening the pool so no connection sees a partial schema.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const userColumns = `id, name, email, status, created_at, updated_at`

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) ListActiveUsers(ctx context.Context) ([]core.User, error) {
	users, err := r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE status = ? ORDER BY name ASC`, core.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, nu core.NewUser) (core.User, error) {
	if err := nu.Validate(); err != nil {
		return core.User{}, err
	}
	status := nu.Status
	if status == "" {
		status = core.StatusActive
	}

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, status) VALUES (?, ?, ?) RETURNING `+userColumns,
		nu.Name, nu.Email, status)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrEmailTaken
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User saved to SQLite", "id", u.ID, "email", u.Email, "status", u.Status)
	return u, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]core.Category, 0)
	for rows.Next() {
		var (
			c       core.Category
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if c.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *SQLiteRepository) queryUsers(ctx context.Context, query string, args ...any) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (core.User, error) {
	var (
		u                core.User
		status           string
		created, updated string
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &status, &created, &updated); err != nil {
		return core.User{}, err
	}
	u.Status = core.UserStatus(status)

	var err error
	if u.CreatedAt, err = parseTimestamp(created); err != nil {
		return core.User{}, err
	}
	if u.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		// Rows written by hand may carry the plain CURRENT_TIMESTAMP format.
		if t, err2 := time.Parse(time.DateTime, s); err2 == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
