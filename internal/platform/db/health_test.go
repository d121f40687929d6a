package db

import (
	"context"
	"errors"
	"testing"
)

func TestCheckResults_AllHealthy(t *testing.T) {
	checks := map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	}

	results, healthy := CheckResults(context.Background(), checks)
	if !healthy {
		t.Error("expected all checks to pass")
	}
	if results["postgres"] != "ok" || results["redis"] != "ok" {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestCheckResults_OneFailing(t *testing.T) {
	checks := map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"kafka":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
	}

	results, healthy := CheckResults(context.Background(), checks)
	if healthy {
		t.Error("expected unhealthy result when a check fails")
	}
	if results["kafka"] != "dial tcp: connection refused" {
		t.Errorf("expected kafka error text, got %q", results["kafka"])
	}
	if results["postgres"] != "ok" {
		t.Errorf("expected postgres ok, got %q", results["postgres"])
	}
}

func TestCheckResults_Empty(t *testing.T) {
	results, healthy := CheckResults(context.Background(), nil)
	if !healthy {
		t.Error("expected no checks to be healthy")
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", results)
	}
}

func TestPoolStats_UnhealthyState(t *testing.T) {
	stats := &PoolStats{MaxConns: 20, AcquireDuration: "0s"}
	if stats.Healthy {
		t.Error("expected Healthy to be false when TotalConns is 0")
	}
}
