package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aGit2048/virtual-debugger/internal/infrastructure/config"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/database"
	"github.com/aGit2048/virtual-debugger/internal/journal"
)

func newMigrateCmd(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the connection journal schema",
		Long: `Inspects or changes the schema of the SQLite database named by
database.path. The client applies pending migrations itself at startup;
these commands are for inspection and rollback.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), global.resolveConfigPath(), func(db *database.DB) error {
				return migrationStatus(cmd.Context(), db, cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), global.resolveConfigPath(), func(db *database.DB) error {
				return migrateUp(cmd.Context(), db, cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), global.resolveConfigPath(), func(db *database.DB) error {
				return migrateDown(cmd.Context(), db, cmd.OutOrStdout())
			})
		},
	})

	return cmd
}

// withDatabase opens the configured database for the duration of fn.
func withDatabase(ctx context.Context, configPath string, fn func(*database.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command

	return fn(db)
}

func migrationStatus(ctx context.Context, db *database.DB, w io.Writer) error {
	applied, pending, err := db.MigrationStatus(ctx, journal.Migrations())
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	for _, r := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", r.Version, r.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(w, "no migrations")
	}
	return nil
}

func migrateUp(ctx context.Context, db *database.DB, w io.Writer) error {
	_, pending, err := db.MigrationStatus(ctx, journal.Migrations())
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if err := db.Migrate(ctx, journal.Migrations()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for _, m := range pending {
		fmt.Fprintf(w, "applied %s (%s)\n", m.Version, m.Name)
	}
	if len(pending) == 0 {
		fmt.Fprintln(w, "schema is up to date")
	}
	return nil
}

func migrateDown(ctx context.Context, db *database.DB, w io.Writer) error {
	applied, _, err := db.MigrationStatus(ctx, journal.Migrations())
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(w, "nothing to roll back")
		return nil
	}

	if err := db.MigrateDown(ctx, journal.Migrations()); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	fmt.Fprintf(w, "rolled back %s\n", applied[len(applied)-1].Version)
	return nil
}
