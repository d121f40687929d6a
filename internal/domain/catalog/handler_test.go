package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	return NewHandler(env.svc), env, echo.New()
}

func newRequest(method, body string, actor auth.Actor) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.ContextWithActor(req.Context(), actor))
}

func assertStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestHandler_CreateDepartment(t *testing.T) {
	h, _, e := newTestHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, `{"name":"ENT","description":"Ear, nose and throat"}`, admin), rec)
	if err := h.CreateDepartment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c = e.NewContext(newRequest(http.MethodPost, `{"name":"ENT","description":"dup"}`, admin), httptest.NewRecorder())
	assertStatus(t, h.CreateDepartment(c), http.StatusConflict)

	c = e.NewContext(newRequest(http.MethodPost, `{"name":""}`, admin), httptest.NewRecorder())
	assertStatus(t, h.CreateDepartment(c), http.StatusBadRequest)
}

func TestHandler_ListDepartments_Empty(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "", admin), rec)

	if err := h.ListDepartments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_AddAndGetDoctor(t *testing.T) {
	h, env, e := newTestHandler()
	dept := env.department(t, "Cardiology")

	body := `{"name":"Dr. Rao","email":"rao@hms.com","password":"pw","description":"cardiologist","department_id":"` + dept.ID.String() + `"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, body, admin), rec)
	if err := h.AddDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var created DoctorProfile
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodGet, "", auth.Actor{ID: uuid.New(), Role: auth.RolePatient}), rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.GetDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Dr. Rao") {
		t.Errorf("expected doctor in body, got %s", rec.Body.String())
	}

	c = e.NewContext(newRequest(http.MethodPost, body, admin), httptest.NewRecorder())
	assertStatus(t, h.AddDoctor(c), http.StatusConflict)
}

func TestHandler_GetDoctor_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodGet, "", admin), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	assertStatus(t, h.GetDoctor(c), http.StatusNotFound)

	c = e.NewContext(newRequest(http.MethodGet, "", admin), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")
	assertStatus(t, h.GetDoctor(c), http.StatusBadRequest)
}

func TestHandler_SearchDoctors(t *testing.T) {
	h, env, e := newTestHandler()
	env.doctor(t, "Dr. Search", "search@hms.com", nil)

	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "", admin)
	req.URL.RawQuery = "q=search"
	c := e.NewContext(req, rec)
	if err := h.SearchDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one match, got %s", rec.Body.String())
	}
}
