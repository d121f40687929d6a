package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// -- Department --

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

func (r *departmentRepoPG) Create(ctx context.Context, d *Department) error {
	d.ID = uuid.New()
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO departments (id, name, description) VALUES ($1, $2, $3)
		RETURNING created_at`, d.ID, d.Name, d.Description).Scan(&d.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDepartmentNameTaken
	}
	return err
}

func (r *departmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	var d Department
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, description, created_at FROM departments WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDepartmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *departmentRepoPG) List(ctx context.Context) ([]*Department, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, name, description, created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

func (r *departmentRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM departments`).Scan(&n)
	return n, err
}

// -- Doctor --

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const profileSelect = `
	SELECT a.id, a.name, a.email, a.phone, a.is_blocked, d.department_id, dep.name, d.description
	FROM doctors d
	JOIN accounts a ON a.id = d.account_id
	LEFT JOIN departments dep ON dep.id = d.department_id`

func scanProfile(row pgx.Row) (*DoctorProfile, error) {
	var p DoctorProfile
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.IsBlocked, &p.DepartmentID, &p.DepartmentName, &p.Description)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProfiles(rows pgx.Rows) ([]*DoctorProfile, error) {
	defer rows.Close()
	var items []*DoctorProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctors (account_id, department_id, description) VALUES ($1, $2, $3)`,
		d.AccountID, d.DepartmentID, d.Description)
	if db.IsForeignKeyViolation(err) {
		return ErrDepartmentNotFound
	}
	return err
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor, name string) error {
	q := conn(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE doctors SET department_id = $2, description = $3 WHERE account_id = $1`,
		d.AccountID, d.DepartmentID, d.Description)
	if db.IsForeignKeyViolation(err) {
		return ErrDepartmentNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	_, err = q.Exec(ctx, `UPDATE accounts SET name = $2 WHERE id = $1`, d.AccountID, name)
	return err
}

func (r *doctorRepoPG) GetProfile(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	p, err := scanProfile(conn(ctx, r.pool).QueryRow(ctx, profileSelect+` WHERE d.account_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	return p, err
}

func (r *doctorRepoPG) ListByDepartment(ctx context.Context, departmentID uuid.UUID) ([]*DoctorProfile, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, profileSelect+` WHERE d.department_id = $1 ORDER BY a.name`, departmentID)
	if err != nil {
		return nil, err
	}
	return collectProfiles(rows)
}

func (r *doctorRepoPG) Search(ctx context.Context, query string, limit, offset int) ([]*DoctorProfile, int, error) {
	q := conn(ctx, r.pool)
	where := ``
	args := []interface{}{}
	if query != "" {
		where = ` WHERE a.name ILIKE $1 OR dep.name ILIKE $1`
		args = append(args, "%"+query+"%")
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM doctors d JOIN accounts a ON a.id = d.account_id
		LEFT JOIN departments dep ON dep.id = d.department_id` + where
	if err := q.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	sql := profileSelect + where + fmt.Sprintf(` ORDER BY a.name, a.id LIMIT $%d OFFSET $%d`, n+1, n+2)
	rows, err := q.Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectProfiles(rows)
	return items, total, err
}

func (r *doctorRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&n)
	return n, err
}
