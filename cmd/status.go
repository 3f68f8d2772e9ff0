package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/openharvest/harvester/internal/report"
)

var statusSessions int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the corpus summary and recent harvest sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := initStore()
		if err != nil {
			return err
		}
		doc, err := store.Load()
		if err != nil {
			return eris.Wrap(err, "load corpus")
		}

		fmt.Print(report.Format(nil, doc))

		rl, err := initRunLog(ctx)
		if err != nil {
			return err
		}
		if rl == nil {
			return nil
		}
		defer rl.Close()

		sessions, err := rl.List(ctx, statusSessions)
		if err != nil {
			return eris.Wrap(err, "list sessions")
		}
		if len(sessions) == 0 {
			return nil
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Collector", "Status", "Started", "Announcements", "Full Content", "Skipped", "Error"})
		for _, s := range sessions {
			t.AppendRow(table.Row{
				s.ID,
				s.Collector,
				s.Status,
				s.StartedAt.UTC().Format("2006-01-02 15:04"),
				s.Announcements,
				s.FullContent,
				s.Skipped,
				s.Error,
			})
		}
		fmt.Println("\nRecent sessions:")
		t.Render()
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusSessions, "sessions", 20, "how many recent sessions to show")
	rootCmd.AddCommand(statusCmd)
}
