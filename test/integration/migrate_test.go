package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

func TestMigrator_UpDownRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	const schema = "migrate_roundtrip"
	t.Cleanup(func() {
		pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
	})

	m := db.NewMigrator(pool, findMigrationsDir())
	all, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	n, err := m.Up(ctx, schema)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if n != len(all) {
		t.Fatalf("expected %d migrations applied, got %d", len(all), n)
	}
	if n, err := m.Up(ctx, schema); err != nil || n != 0 {
		t.Fatalf("second up should be a no-op, got %d (%v)", n, err)
	}

	for i := len(all) - 1; i >= 0; i-- {
		mig, err := m.Down(ctx, schema)
		if err != nil {
			t.Fatalf("down: %v", err)
		}
		if mig == nil || mig.Version != all[i].Version {
			t.Fatalf("expected to revert version %d, got %+v", all[i].Version, mig)
		}
	}
	if mig, err := m.Down(ctx, schema); err != nil || mig != nil {
		t.Fatalf("down on an empty schema should be a no-op, got %+v (%v)", mig, err)
	}

	statuses, err := m.Status(ctx, schema)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, s := range statuses {
		if s.Applied {
			t.Errorf("%s still marked applied", s.Name)
		}
	}

	if _, err := m.Up(ctx, schema); err != nil {
		t.Fatalf("re-apply after full rollback: %v", err)
	}
}
