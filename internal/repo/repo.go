package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tempoline/internal/domain"
)

// Repo owns all SQL for the tempoline schema. Methods take a Querier so the
// same statement runs either directly on the pool or inside a transaction.
type Repo struct {
	DB *sql.DB
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate natural key")
)

// wrapUnique translates the driver's unique-index violation into ErrDuplicate
// so callers that raced past the pre-check still see a conflict, not a
// generic store failure.
func wrapUnique(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64PtrFromNull(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func (r Repo) InsertUser(ctx context.Context, q Querier, u domain.User) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO users(name,email,rank,created_at,updated_at) VALUES (?,?,?,?,?)`,
		u.Name, u.Email, string(u.Rank), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return 0, wrapUnique(err)
	}
	return res.LastInsertId()
}

func (r Repo) GetUser(ctx context.Context, q Querier, id int64) (domain.User, error) {
	var u domain.User
	err := q.QueryRowContext(ctx, `SELECT id,name,email,rank,created_at,updated_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Rank, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) ListUsers(ctx context.Context, q Querier) ([]domain.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,name,email,rank,created_at,updated_at FROM users ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Rank, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
