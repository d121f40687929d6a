package treatment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/domain/booking"
	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Create(ctx context.Context, t *Treatment) error {
	t.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatments (id, appointment_id, visit_type, tests_done, diagnosis, prescription, medicines)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		t.ID, t.AppointmentID, t.VisitType, t.TestsDone, t.Diagnosis, t.Prescription, t.Medicines).
		Scan(&t.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrTreatmentExists
	}
	if db.IsForeignKeyViolation(err) {
		return booking.ErrAppointmentNotFound
	}
	return err
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Record, error) {
	sql := `
		SELECT t.id, t.appointment_id, t.visit_type, t.tests_done, t.diagnosis, t.prescription, t.medicines, t.created_at,
		       a.patient_id, p.name, a.doctor_id, dr.name, a.slot_date, a.period
		FROM treatments t
		JOIN appointments a ON a.id = t.appointment_id
		JOIN accounts p ON p.id = a.patient_id
		JOIN accounts dr ON dr.id = a.doctor_id
		WHERE a.doctor_id = $1 AND a.status = 'completed'`
	args := []interface{}{f.DoctorID}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		sql += fmt.Sprintf(` AND a.patient_id = $%d`, len(args))
	}
	sql += ` ORDER BY t.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var date time.Time
		if err := rows.Scan(&rec.ID, &rec.AppointmentID, &rec.VisitType, &rec.TestsDone, &rec.Diagnosis,
			&rec.Prescription, &rec.Medicines, &rec.CreatedAt,
			&rec.PatientID, &rec.PatientName, &rec.DoctorID, &rec.DoctorName, &date, &rec.Period); err != nil {
			return nil, err
		}
		rec.SlotDate = booking.DateOf(date)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM treatments`).Scan(&n)
	return n, err
}
