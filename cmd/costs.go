package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/voxtask/internal/config"
	"github.com/nextlevelbuilder/voxtask/internal/store/sqlite"
)

func costsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "costs",
		Short: "Show accumulated LLM spend",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()
			cfg := loadConfigOrExit()

			db, err := sqlite.Open(config.ExpandHome(cfg.Database.Path))
			if err != nil {
				slog.Error("costs failed", "error", err)
				os.Exit(1)
			}
			defer db.Close()

			totals, err := sqlite.NewCostStore(db).Totals(context.Background())
			if err != nil {
				slog.Error("costs failed", "error", err)
				os.Exit(1)
			}

			fmt.Printf("requests:     %d\n", totals.Requests)
			fmt.Printf("total tokens: %d\n", totals.TotalTokens)
			fmt.Printf("total cost:   $%.4f\n", totals.TotalCost)
		},
	}
}
