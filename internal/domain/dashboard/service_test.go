package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/booking"
	"github.com/hms/hms/internal/domain/catalog"
	"github.com/hms/hms/internal/domain/treatment"
	"github.com/hms/hms/internal/platform/auth"
)

type stubDepartments struct {
	depts   []*catalog.Department
	doctors int
}

func (s *stubDepartments) ListDepartments(context.Context) ([]*catalog.Department, error) {
	return s.depts, nil
}

func (s *stubDepartments) CountDoctors(context.Context) (int, error) { return s.doctors, nil }

type stubAppointments struct {
	byPatient map[uuid.UUID][]*booking.AppointmentDetails
	byDoctor  map[uuid.UUID][]*booking.AppointmentDetails
	upcoming  []*booking.AppointmentDetails
	past      []*booking.AppointmentDetails
	limits    []int
	err       error
}

func (s *stubAppointments) PatientUpcoming(_ context.Context, id uuid.UUID) ([]*booking.AppointmentDetails, error) {
	return s.byPatient[id], s.err
}

func (s *stubAppointments) DoctorUpcoming(_ context.Context, id uuid.UUID) ([]*booking.AppointmentDetails, error) {
	return s.byDoctor[id], s.err
}

func (s *stubAppointments) Upcoming(_ context.Context, limit int) ([]*booking.AppointmentDetails, error) {
	s.limits = append(s.limits, limit)
	return s.upcoming, s.err
}

func (s *stubAppointments) Past(_ context.Context, limit int) ([]*booking.AppointmentDetails, error) {
	s.limits = append(s.limits, limit)
	return s.past, s.err
}

type stubTreatments struct {
	records []*treatment.Record
	limit   int
}

func (s *stubTreatments) ByDoctor(_ context.Context, _ uuid.UUID, limit int) ([]*treatment.Record, error) {
	s.limit = limit
	return s.records, nil
}

func (s *stubTreatments) Count(context.Context) (int, error) { return len(s.records), nil }

type stubAccounts struct{ counts map[auth.Role]int }

func (s *stubAccounts) CountByRole(_ context.Context, role auth.Role) (int, error) {
	return s.counts[role], nil
}

var (
	patient = auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	doctor  = auth.Actor{ID: uuid.New(), Role: auth.RoleDoctor}
	admin   = auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}
)

func details(patientID, doctorID uuid.UUID) *booking.AppointmentDetails {
	return &booking.AppointmentDetails{Appointment: booking.Appointment{
		ID: uuid.New(), PatientID: patientID, DoctorID: doctorID, Status: booking.StatusBooked,
	}}
}

type fixture struct {
	svc   *Service
	appts *stubAppointments
	trs   *stubTreatments
}

func newFixture() *fixture {
	appts := &stubAppointments{
		byPatient: map[uuid.UUID][]*booking.AppointmentDetails{patient.ID: {details(patient.ID, doctor.ID)}},
		byDoctor:  map[uuid.UUID][]*booking.AppointmentDetails{doctor.ID: {details(patient.ID, doctor.ID)}},
		upcoming:  []*booking.AppointmentDetails{details(patient.ID, doctor.ID)},
	}
	trs := &stubTreatments{records: []*treatment.Record{{}, {}}}
	depts := &stubDepartments{depts: []*catalog.Department{{Name: "General"}}, doctors: 4}
	accounts := &stubAccounts{counts: map[auth.Role]int{auth.RolePatient: 12}}
	return &fixture{svc: NewService(depts, appts, trs, accounts, 100), appts: appts, trs: trs}
}

func TestService_Patient(t *testing.T) {
	f := newFixture()
	d, err := f.svc.Patient(context.Background(), patient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Departments) != 1 || len(d.Appointments) != 1 {
		t.Errorf("expected 1 department and 1 appointment, got %d and %d", len(d.Departments), len(d.Appointments))
	}

	// A patient without bookings gets an empty list, not null.
	d, err = f.svc.Patient(context.Background(), auth.Actor{ID: uuid.New(), Role: auth.RolePatient})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Appointments == nil {
		t.Error("expected non-nil appointments")
	}
}

func TestService_Doctor(t *testing.T) {
	f := newFixture()
	d, err := f.svc.Doctor(context.Background(), doctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Appointments) != 1 || len(d.Treatments) != 2 {
		t.Errorf("unexpected dashboard: %+v", d)
	}
	if f.trs.limit != recentTreatments {
		t.Errorf("expected treatment limit %d, got %d", recentTreatments, f.trs.limit)
	}
}

func TestService_Admin(t *testing.T) {
	f := newFixture()
	d, err := f.svc.Admin(context.Background(), admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TotalDoctors != 4 || d.TotalPatients != 12 || d.TotalTreatments != 2 {
		t.Errorf("unexpected counts: %+v", d)
	}
	if len(d.Upcoming) != 1 || d.Past == nil || len(d.Past) != 0 {
		t.Errorf("unexpected listings: upcoming=%d past=%v", len(d.Upcoming), d.Past)
	}
	for _, l := range f.appts.limits {
		if l != 100 {
			t.Errorf("expected list limit 100, got %d", l)
		}
	}
}

func TestService_WrongRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.Patient(ctx, doctor); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient dashboard for doctor: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Doctor(ctx, patient); !errors.Is(err, ErrForbidden) {
		t.Errorf("doctor dashboard for patient: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Admin(ctx, doctor); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin dashboard for doctor: expected ErrForbidden, got %v", err)
	}
}

func TestService_Admin_StorageError(t *testing.T) {
	f := newFixture()
	f.appts.err = errors.New("connection reset")
	if _, err := f.svc.Admin(context.Background(), admin); err == nil {
		t.Error("expected error")
	}
}

func TestHandler_Admin(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.ContextWithActor(req.Context(), admin))
	rec := httptest.NewRecorder()
	if err := h.Admin(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total_patients":12`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Doctor_Forbidden(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.ContextWithActor(req.Context(), admin))
	err := h.Doctor(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_Unauthenticated(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	err := h.Patient(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}
