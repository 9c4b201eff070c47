package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/voxtask/internal/config"
	"github.com/nextlevelbuilder/voxtask/internal/store/sqlite"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()
			cfg := loadConfigOrExit()

			path := config.ExpandHome(cfg.Database.Path)
			db, err := sqlite.Open(path)
			if err != nil {
				slog.Error("migrate failed", "error", err)
				os.Exit(1)
			}
			defer db.Close()

			fmt.Printf("database %s is up to date\n", path)
		},
	}
}
