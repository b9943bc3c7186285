package cmd

import (
	"context"
	"log"

	"github.com/frahmantamala/survey-management/db"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "run the embedded sql migrations, or those under --dir when given",
	}
	migrateRollback bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "", "sql migrations directory on disk; empty uses the embedded set")
}

func runMigration(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	sqlDB, err := goose.OpenDBWithDriver("pgx", cfg.Database.Source)
	if err != nil {
		log.Fatalf("goose: failed to open DB: %v\n", err)
	}
	defer sqlDB.Close()

	goose.SetTableName("schema_migrations")

	dir := migrateDir
	if dir == "" {
		goose.SetBaseFS(db.Migrations)
		dir = db.MigrationsDir
	}

	command := "up"
	if migrateRollback {
		command = "down"
	}
	if err := goose.RunContext(ctx, command, sqlDB, dir); err != nil {
		log.Fatalf("goose %s: %v", command, err)
	}

	return nil
}
