package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var collectorsCmd = &cobra.Command{
	Use:   "collectors",
	Short: "List discovered collectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := initRegistry()
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Website", "Version", "Description"})

		for _, name := range reg.Names() {
			c, err := reg.Get(name)
			if err != nil {
				return err
			}
			info := c.Info()
			t.AppendRow(table.Row{info.Name, info.Website, info.Version, info.Description})
		}

		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectorsCmd)
}
