package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/aquasense-core/internal/infrastructure/config"
	"github.com/nerrad567/aquasense-core/internal/infrastructure/database"
)

// newMigrateCmd groups the schema maintenance commands. The service applies
// pending migrations on start; these exist for inspection and rollback.
func newMigrateCmd(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the database schema",
	}

	action := func(fn func(ctx context.Context, db *database.DB, w io.Writer) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			return withDatabase(getConfigPath(*configFlag), func(db *database.DB) error {
				return fn(c.Context(), db, c.OutOrStdout())
			})
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE:  action(migrateStatus),
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  action(migrateUp),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE:  action(migrateDown),
		},
	)
	return cmd
}

// withDatabase opens the configured database for the duration of fn.
func withDatabase(configPath string, fn func(db *database.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly CLI path

	return fn(db)
}

func migrateStatus(ctx context.Context, db *database.DB, w io.Writer) error {
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "database: %s\n", db.Path())
	for _, m := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

func migrateUp(ctx context.Context, db *database.DB, w io.Writer) error {
	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	fmt.Fprintf(w, "applied %d migration(s) to %s\n", len(pending), db.Path())
	return nil
}

func migrateDown(ctx context.Context, db *database.DB, w io.Writer) error {
	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintf(w, "nothing to roll back in %s\n", db.Path())
		return nil
	}
	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	fmt.Fprintf(w, "rolled back %s in %s\n", applied[len(applied)-1].Version, db.Path())
	return nil
}
