package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DanielHall977/sqlalchemy-1/internal/cli/ui"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/history"
)

func newHistoryCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded create and drop runs",
		Long: `List the after_create and after_drop events recorded in the history
table (history.enabled), oldest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			sess, err := openSession(ctx, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			q, err := historyQuerier(sess)
			if err != nil {
				return err
			}

			tracker := history.NewTracker(history.WithTableName(cfg.History.Table))
			entries, err := tracker.Entries(ctx, q, sess.Backend())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				color.New(color.FgYellow).Fprintln(out, "No history recorded")
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			table := ui.NewTable(out, a.noColor, "Run", "Operation", "Event", "Object", "Recorded")
			for _, e := range entries {
				table.AddRow(shortID(e.RunID), e.Operation, e.Event, e.Object, e.RecordedAt.Format("2006-01-02 15:04:05"))
			}
			table.Render()
			fmt.Fprintf(out, "\n%d event(s)\n", len(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent entries")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
