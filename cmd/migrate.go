package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the State Store schema",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			driver, db, err := openRawDB(cfg)
			if err != nil {
				fatalf("opening database: %s", err)
			}
			defer db.Close()

			mig := newMigrator(driver, db)
			defer mig.Close()

			if err := mig.Up(); err != nil {
				fatalf("applying migrations: %s", err)
			}
			fmt.Println("migrations applied")
		},
	}
}

func migrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all applied migrations",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			driver, db, err := openRawDB(cfg)
			if err != nil {
				fatalf("opening database: %s", err)
			}
			defer db.Close()

			mig := newMigrator(driver, db)
			defer mig.Close()

			if err := mig.Down(); err != nil {
				fatalf("rolling back migrations: %s", err)
			}
			fmt.Println("migrations rolled back")
		},
	}
}
