package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewAccountRepoPG(pool *pgxpool.Pool) AccountRepository { return &accountRepoPG{pool: pool} }

func (r *accountRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const accountCols = `id, name, email, phone, role, password_hash, is_blocked, created_at`

func (r *accountRepoPG) scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Role, &a.PasswordHash, &a.IsBlocked, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO accounts (id, name, email, phone, role, password_hash, is_blocked)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		a.ID, a.Name, a.Email, a.Phone, a.Role, a.PasswordHash, a.IsBlocked).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE email = $1`, email))
}

func (r *accountRepoPG) Update(ctx context.Context, a *Account) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE accounts SET name=$2, email=$3, phone=$4, password_hash=$5
		WHERE id = $1`,
		a.ID, a.Name, a.Email, a.Phone, a.PasswordHash)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepoPG) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE accounts SET is_blocked = $2 WHERE id = $1`, id, blocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes the account. Doctor profile, slots, appointments and
// treatments go with it through ON DELETE CASCADE.
func (r *accountRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepoPG) Search(ctx context.Context, role auth.Role, query string, limit, offset int) ([]*Account, int, error) {
	where := ` WHERE role = $1`
	args := []interface{}{role}
	idx := 2

	if query != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+query+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM accounts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + accountCols + ` FROM accounts` + where +
		fmt.Sprintf(` ORDER BY name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Account
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *accountRepoPG) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE role = $1`, role).Scan(&n)
	return n, err
}
