package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one NNN_name.sql file and, when present, its
// NNN_name.down.sql counterpart.
type Migration struct {
	Version int
	Name    string
	SQL     string
	DownSQL string
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// ErrNoDownMigration is returned when the last applied migration has no
// .down.sql file.
var ErrNoDownMigration = errors.New("migration has no down script")

var (
	schemaPattern   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	migrationPrefix = regexp.MustCompile(`^(\d+)_.+$`)
)

const downSuffix = ".down.sql"

// Migrator applies versioned SQL files to a schema and records them in its
// _migrations table. Runs against the same schema are serialised with an
// advisory lock, so replicas can all run `migrate up` on start.
type Migrator struct {
	pool *pgxpool.Pool
	dir  string
}

func NewMigrator(pool *pgxpool.Pool, migrationsDir string) *Migrator {
	return &Migrator{pool: pool, dir: migrationsDir}
}

func validateSchema(schema string) error {
	if !schemaPattern.MatchString(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	return nil
}

// LoadMigrations reads the migrations directory. Versions come from the
// numeric filename prefix; files without one are ignored, and two up
// scripts with the same version are an error.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory %s: %w", m.dir, err)
	}

	byVersion := make(map[int]*Migration)
	downs := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		match := migrationPrefix.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		content, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", name, err)
		}

		if strings.HasSuffix(name, downSuffix) {
			downs[version] = string(content)
			continue
		}
		if prev, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev.Name, name)
		}
		byVersion[version] = &Migration{Version: version, Name: name, SQL: string(content)}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for v, mig := range byVersion {
		mig.DownSQL = downs[v]
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// withLock runs fn on a dedicated connection holding the schema's migration
// lock, after making sure the schema and _migrations exist.
func (m *Migrator) withLock(ctx context.Context, schema string, fn func(conn *pgxpool.Conn) error) error {
	if err := validateSchema(schema); err != nil {
		return err
	}
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	key := "hms_migrate:" + schema
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("lock migrations for %s: %w", schema, err)
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", key)

	ddl := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %[1]s;
CREATE TABLE IF NOT EXISTS %[1]s._migrations (
    version    INTEGER PRIMARY KEY,
    name       VARCHAR(255) NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, schema)
	if _, err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create _migrations table in %s: %w", schema, err)
	}
	return fn(conn)
}

func appliedAt(ctx context.Context, conn *pgxpool.Conn, schema string) (map[int]time.Time, error) {
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT version, applied_at FROM %s._migrations`, schema))
	if err != nil {
		return nil, fmt.Errorf("query applied versions in %s: %w", schema, err)
	}
	applied := make(map[int]time.Time)
	var (
		v  int
		at time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&v, &at}, func() error {
		applied[v] = at
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read applied versions: %w", err)
	}
	return applied, nil
}

// Up applies all pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	return m.UpTo(ctx, schema, 0)
}

// UpTo applies pending migrations up to and including targetVersion; 0
// means all. Each migration runs in its own transaction.
func (m *Migrator) UpTo(ctx context.Context, schema string, targetVersion int) (int, error) {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}

	count := 0
	err = m.withLock(ctx, schema, func(conn *pgxpool.Conn) error {
		applied, err := appliedAt(ctx, conn, schema)
		if err != nil {
			return err
		}
		for _, mig := range pending(migrations, applied, targetVersion) {
			err := runInSchema(ctx, conn, schema, mig.SQL,
				"INSERT INTO _migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
			if err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
			}
			count++
		}
		return nil
	})
	return count, err
}

// Down reverts the most recently applied migration using its down script.
// It returns the reverted migration, or nil when nothing is applied.
func (m *Migrator) Down(ctx context.Context, schema string) (*Migration, error) {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}

	var reverted *Migration
	err = m.withLock(ctx, schema, func(conn *pgxpool.Conn) error {
		applied, err := appliedAt(ctx, conn, schema)
		if err != nil {
			return err
		}
		mig, ok := lastApplied(migrations, applied)
		if !ok {
			return nil
		}
		if strings.TrimSpace(mig.DownSQL) == "" {
			return fmt.Errorf("%w: %s", ErrNoDownMigration, mig.Name)
		}
		err = runInSchema(ctx, conn, schema, mig.DownSQL,
			"DELETE FROM _migrations WHERE version = $1", mig.Version)
		if err != nil {
			return fmt.Errorf("revert migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		reverted = &mig
		return nil
	})
	return reverted, err
}

// runInSchema executes script and the bookkeeping statement in one
// transaction with search_path pointed at schema.
func runInSchema(ctx context.Context, conn *pgxpool.Conn, schema, script, record string, args ...any) error {
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", schema)); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
		if _, err := tx.Exec(ctx, script); err != nil {
			return fmt.Errorf("execute SQL: %w", err)
		}
		if _, err := tx.Exec(ctx, record, args...); err != nil {
			return fmt.Errorf("record migration: %w", err)
		}
		return nil
	})
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}

	var statuses []MigrationStatus
	err = m.withLock(ctx, schema, func(conn *pgxpool.Conn) error {
		applied, err := appliedAt(ctx, conn, schema)
		if err != nil {
			return err
		}
		statuses = statusOf(migrations, applied)
		return nil
	})
	return statuses, err
}

func pending(migrations []Migration, applied map[int]time.Time, targetVersion int) []Migration {
	var out []Migration
	for _, mig := range migrations {
		if targetVersion > 0 && mig.Version > targetVersion {
			break
		}
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		out = append(out, mig)
	}
	return out
}

func lastApplied(migrations []Migration, applied map[int]time.Time) (Migration, bool) {
	for i := len(migrations) - 1; i >= 0; i-- {
		if _, ok := applied[migrations[i].Version]; ok {
			return migrations[i], true
		}
	}
	return Migration{}, false
}

func statusOf(migrations []Migration, applied map[int]time.Time) []MigrationStatus {
	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		status := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := applied[mig.Version]; ok {
			status.Applied = true
			status.AppliedAt = &at
		}
		statuses = append(statuses, status)
	}
	return statuses
}
