package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:              "8000",
		Env:               "production",
		AuthSigningKey:    "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		AuthIssuer:        "hms",
		AuthTokenTTL:      time.Hour,
		ClinicTimezone:    "UTC",
		BookingWindowDays: 7,
		RateLimitRPS:      50,
		RateLimitBurst:    100,
		RequestTimeout:    5 * time.Second,
	}
}

func TestNewServer_Routes(t *testing.T) {
	e, err := newServer(testConfig(), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	want := []string{
		"GET /health",
		"GET /health/db",
		"POST /api/v1/auth/register",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/logout",
		"GET /api/v1/me",
		"PUT /api/v1/accounts/:id",
		"GET /api/v1/patients",
		"POST /api/v1/accounts/:id/toggle-block",
		"DELETE /api/v1/accounts/:id",
		"GET /api/v1/departments",
		"POST /api/v1/departments",
		"GET /api/v1/departments/:id",
		"GET /api/v1/doctors",
		"POST /api/v1/doctors",
		"GET /api/v1/doctors/:id",
		"PUT /api/v1/doctors/:id",
		"POST /api/v1/slots",
		"DELETE /api/v1/slots/:id",
		"GET /api/v1/doctors/:id/slots",
		"GET /api/v1/doctors/:id/availability",
		"POST /api/v1/slots/:id/book",
		"POST /api/v1/appointments/:id/cancel",
		"POST /api/v1/appointments/:id/complete",
		"POST /api/v1/appointments/:id/treatment",
		"GET /api/v1/appointments",
		"GET /api/v1/patients/:id/history",
		"GET /api/v1/patients/:id/treatments",
		"GET /api/v1/dashboard/patient",
		"GET /api/v1/dashboard/doctor",
		"GET /api/v1/dashboard/admin",
	}
	for _, route := range want {
		if !registered[route] {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestNewServer_RequiresToken(t *testing.T) {
	e, err := newServer(testConfig(), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", rec.Code)
	}
}

func TestNewServer_BadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ClinicTimezone = "Mars/Olympus_Mons"
	if _, err := newServer(cfg, zerolog.Nop(), nil, nil); err == nil {
		t.Error("expected error for unknown timezone")
	}

	cfg = testConfig()
	cfg.AuthSigningKey = "not-hex"
	if _, err := newServer(cfg, zerolog.Nop(), nil, nil); err == nil {
		t.Error("expected error for non-hex signing key")
	}
}

func TestNewRedis_Disabled(t *testing.T) {
	rdb, err := newRedis(context.Background(), "")
	if err != nil || rdb != nil {
		t.Errorf("expected nil client and no error, got %v, %v", rdb, err)
	}
}
