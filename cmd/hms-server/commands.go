package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/catalog"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/outbox"
)

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().String("schema", "public", "Target schema for migrations")
	cmd.PersistentFlags().String("dir", "./migrations", "Path to migrations directory")

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	// migrate down
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			mig, err := db.NewMigrator(pool, dir).Down(ctx, schema)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if mig == nil {
				fmt.Printf("No applied migrations in schema %s.\n", schema)
				return nil
			}
			fmt.Printf("Reverted %s.\n", mig.Name)
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin account and departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			// Seeding never issues or revokes tokens.
			identitySvc := identity.NewService(identity.NewAccountRepoPG(pool), nil, auth.NewTokenRevocationStore())
			catalogSvc := catalog.NewService(db.NewTxRunner(pool),
				catalog.NewDepartmentRepoPG(pool), catalog.NewDoctorRepoPG(pool), identitySvc)

			created, err := identitySvc.EnsureAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			if created {
				fmt.Printf("Created admin account %s\n", cfg.SeedAdminEmail)
			} else {
				fmt.Println("Admin account already exists.")
			}

			n, err := catalogSvc.EnsureDepartments(ctx)
			if err != nil {
				return fmt.Errorf("seed departments: %w", err)
			}
			fmt.Printf("Created %d department(s).\n", n)
			return nil
		},
	}
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Domain event outbox",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "relay",
		Short: "Publish committed outbox events to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(cfg.Env)
			relay := outbox.NewRelay(pool, outbox.NewRepository(pool), logger, outbox.RelayConfig{
				Brokers:   cfg.KafkaBrokers,
				PollEvery: cfg.OutboxPollInterval,
				BatchSize: cfg.OutboxBatchSize,
			})
			return relay.Run(ctx)
		},
	})
	return cmd
}

