package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

// Constraint and index names from migrations/001_core.sql.
const (
	constraintSlotUnique        = "slots_doctor_date_period_key"
	constraintPatientSlotUnique = "appointments_patient_slot_key"
	indexActiveBookingPerSlot   = "appointments_one_booked_per_slot"
	indexActiveBookingPerPeriod = "appointments_one_booked_per_patient_period"
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

// -- Slot --

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

const slotCols = `id, doctor_id, slot_date, period, created_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var date time.Time
	err := row.Scan(&s.ID, &s.DoctorID, &date, &s.Period, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Date = DateOf(date)
	return &s, nil
}

func (r *slotRepoPG) Create(ctx context.Context, s *Slot) error {
	s.ID = uuid.New()
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, slot_date, period)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		s.ID, s.DoctorID, s.Date.Time(), s.Period).Scan(&s.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateSlot
	}
	if db.IsForeignKeyViolation(err) {
		return ErrDoctorNotFound
	}
	return err
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+slotCols+` FROM slots WHERE id = $1`, id))
}

func (r *slotRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+slotCols+` FROM slots WHERE id = $1 FOR UPDATE`, id))
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	q := conn(ctx, r.pool)
	var discarded int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE slot_id = $1`, id).Scan(&discarded); err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrSlotNotFound
	}
	return discarded, nil
}

func (r *slotRepoPG) ListStates(ctx context.Context, doctorID uuid.UUID, from, to Date) ([]SlotState, error) {
	sql := `
		SELECT s.id, s.doctor_id, s.slot_date, s.period, s.created_at,
		       a.id, a.seq, a.patient_id, a.status, a.created_at,
		       EXISTS (
		           SELECT 1 FROM appointments h
		           WHERE h.slot_id = s.id AND h.status <> 'cancelled'
		       )
		FROM slots s
		LEFT JOIN LATERAL (
			SELECT id, seq, patient_id, status, created_at
			FROM appointments
			WHERE slot_id = s.id
			ORDER BY seq DESC
			LIMIT 1
		) a ON true
		WHERE s.doctor_id = $1 AND s.slot_date >= $2`
	args := []interface{}{doctorID, from.Time()}
	if !to.IsZero() {
		sql += ` AND s.slot_date < $3`
		args = append(args, to.Time())
	}
	sql += ` ORDER BY s.slot_date, s.period DESC`

	rows, err := conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []SlotState
	for rows.Next() {
		var (
			s         Slot
			date      time.Time
			apptID    *uuid.UUID
			seq       *int64
			patientID *uuid.UUID
			status    *Status
			createdAt *time.Time
			held      bool
		)
		if err := rows.Scan(&s.ID, &s.DoctorID, &date, &s.Period, &s.CreatedAt,
			&apptID, &seq, &patientID, &status, &createdAt, &held); err != nil {
			return nil, err
		}
		s.Date = DateOf(date)
		st := SlotState{Slot: &s, Held: held}
		if apptID != nil {
			st.Latest = &Appointment{
				ID:        *apptID,
				Seq:       *seq,
				PatientID: *patientID,
				DoctorID:  s.DoctorID,
				SlotID:    s.ID,
				SlotDate:  s.Date,
				Period:    s.Period,
				Status:    *status,
				CreatedAt: *createdAt,
			}
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func (r *slotRepoPG) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctors WHERE account_id = $1)`, doctorID).Scan(&exists)
	return exists, err
}

// -- Appointment --

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, seq, patient_id, doctor_id, slot_id, slot_date, period, status, created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	err := row.Scan(&a.ID, &a.Seq, &a.PatientID, &a.DoctorID, &a.SlotID, &date, &a.Period, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.SlotDate = DateOf(date)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, slot_id, slot_date, period, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at`,
		a.ID, a.PatientID, a.DoctorID, a.SlotID, a.SlotDate.Time(), a.Period, a.Status).
		Scan(&a.Seq, &a.CreatedAt)
	if constraint, ok := db.UniqueViolation(err); ok {
		return classifyBookingConflict(constraint)
	}
	return err
}

func classifyBookingConflict(constraint string) error {
	switch constraint {
	case indexActiveBookingPerPeriod:
		return ErrDoubleBooking
	case indexActiveBookingPerSlot, constraintPatientSlotUnique:
		return ErrSlotTaken
	default:
		return fmt.Errorf("%w (%s)", ErrSlotTaken, constraint)
	}
}

func (r *appointmentRepoPG) get(ctx context.Context, sql string, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(conn(ctx, r.pool).QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id)
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

func (r *appointmentRepoPG) Latest(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE slot_id = $1 ORDER BY seq DESC LIMIT 1`, slotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *appointmentRepoPG) HasUncancelled(ctx context.Context, slotID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments WHERE slot_id = $1 AND status <> 'cancelled'
		)`, slotID).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) HasBookedInPeriod(ctx context.Context, patientID uuid.UUID, date Date, period Period) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1 AND slot_date = $2 AND period = $3 AND status = 'booked'
		)`, patientID, date.Time(), period).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter) ([]*AppointmentDetails, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("a.doctor_id = $%d", *f.DoctorID)
	}
	if f.Status != nil {
		add("a.status = $%d", *f.Status)
	}
	if f.From != nil {
		add("a.slot_date >= $%d", f.From.Time())
	}
	if f.Before != nil {
		add("a.slot_date < $%d", f.Before.Time())
	}

	sql := `
		SELECT a.id, a.seq, a.patient_id, a.doctor_id, a.slot_id, a.slot_date, a.period, a.status, a.created_at,
		       p.name, dr.name, dep.name
		FROM appointments a
		JOIN accounts p ON p.id = a.patient_id
		JOIN accounts dr ON dr.id = a.doctor_id
		JOIN doctors d ON d.account_id = a.doctor_id
		LEFT JOIN departments dep ON dep.id = d.department_id`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	// 'morning' sorts after 'evening', so period DESC lists morning first.
	if f.Descending {
		sql += ` ORDER BY a.slot_date DESC, a.period DESC, a.seq DESC`
	} else {
		sql += ` ORDER BY a.slot_date ASC, a.period DESC, a.seq ASC`
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*AppointmentDetails
	for rows.Next() {
		var d AppointmentDetails
		var date time.Time
		if err := rows.Scan(&d.ID, &d.Seq, &d.PatientID, &d.DoctorID, &d.SlotID, &date, &d.Period, &d.Status, &d.CreatedAt,
			&d.PatientName, &d.DoctorName, &d.DepartmentName); err != nil {
			return nil, err
		}
		d.SlotDate = DateOf(date)
		items = append(items, &d)
	}
	return items, rows.Err()
}
