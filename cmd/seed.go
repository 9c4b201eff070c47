package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/voxtask/internal/config"
	"github.com/nextlevelbuilder/voxtask/internal/store"
	"github.com/nextlevelbuilder/voxtask/internal/store/sqlite"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo tasks for trying the assistant",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()
			cfg := loadConfigOrExit()

			db, err := sqlite.Open(config.ExpandHome(cfg.Database.Path))
			if err != nil {
				slog.Error("seed failed", "error", err)
				os.Exit(1)
			}
			defer db.Close()

			ctx := context.Background()
			tasks := sqlite.NewTaskStore(db)

			now := time.Now()
			at := func(days int, hour int) *time.Time {
				t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.Local).AddDate(0, 0, days)
				return &t
			}

			drafts := []store.TaskDraft{
				{Title: "Review quarterly report", Description: "Go through Q3 numbers before the board call", Priority: store.PriorityHigh, ScheduledDate: at(0, 14), Deadline: at(2, 17)},
				{Title: "Call the dentist", Priority: store.PriorityMedium, ScheduledDate: at(1, 10)},
				{Title: "Buy groceries", Notes: "Milk, eggs, coffee", Priority: store.PriorityLow, ScheduledDate: at(0, 18)},
				{Title: "Prepare sprint demo", Description: "Record a short walkthrough of the new flow", Priority: store.PriorityUrgent, ScheduledDate: at(1, 12), Deadline: at(3, 12)},
				{Title: "Renew gym membership", Priority: store.PriorityLow, ScheduledDate: at(5, 12)},
				{Title: "Quarterly compliance audit", Description: "Collect sign-offs from all team leads", Priority: store.PriorityHigh, ScheduledDate: at(4, 12), Deadline: at(7, 12)},
			}

			items, err := tasks.CreateMany(ctx, drafts)
			if err != nil {
				slog.Error("seed failed", "error", err)
				os.Exit(1)
			}
			created := 0
			for _, it := range items {
				if it.Err == "" {
					created++
				}
			}
			fmt.Printf("seeded %d demo tasks\n", created)
		},
	}
}
