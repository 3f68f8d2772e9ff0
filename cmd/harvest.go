package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/corpus"
	"github.com/openharvest/harvester/internal/harvest"
	"github.com/openharvest/harvester/internal/report"
)

var (
	harvestStartDate  string
	harvestEndDate    string
	harvestCollectors []string
	harvestNoContent  bool
	harvestReportOnly bool
	harvestParallel   int
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run collectors over a date window and merge results into the corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reg, err := initRegistry()
		if err != nil {
			return err
		}
		for _, name := range harvestCollectors {
			if _, err := reg.Get(name); err != nil {
				return err
			}
		}

		store, err := initStore()
		if err != nil {
			return err
		}

		rl, err := initRunLog(ctx)
		if err != nil {
			return err
		}
		if rl != nil {
			defer rl.Close()
		}

		parallel := harvestParallel
		if parallel == 0 {
			parallel = cfg.Harvest.Parallel
		}

		engine := harvest.NewEngine(reg, store, rl)
		results, err := engine.Run(ctx, harvest.RunOpts{
			StartDate:   harvestStartDate,
			EndDate:     harvestEndDate,
			Collectors:  harvestCollectors,
			FullContent: !harvestNoContent,
			Parallel:    parallel,
			Options: collector.Options{
				MaxPages:  cfg.Harvest.MaxPages,
				Delay:     time.Duration(cfg.Harvest.DelayMS) * time.Millisecond,
				UserAgent: cfg.Harvest.UserAgent,
			},
		})
		if err != nil {
			return eris.Wrap(err, "harvest run")
		}

		var doc *corpus.Document
		if harvestReportOnly {
			doc, err = store.Load()
			if err != nil {
				return eris.Wrap(err, "load corpus")
			}
			zap.L().Info("report-only run, corpus unchanged")
		} else {
			doc, err = store.Merge(results)
			if err != nil {
				return eris.Wrap(err, "merge corpus")
			}
		}

		text := report.Format(results, doc)
		fmt.Print(text)
		writeReportFile(text)

		return nil
	},
}

// writeReportFile persists the rendered report next to the corpus. Failure
// is logged, never fatal.
func writeReportFile(text string) {
	name := fmt.Sprintf("harvest_report_%s.txt", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(cfg.Data.Dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		zap.L().Warn("report file write failed", zap.String("path", path), zap.Error(err))
		return
	}
	zap.L().Info("report written", zap.String("path", path))
}

func init() {
	harvestCmd.Flags().StringVar(&harvestStartDate, "start-date", "", "window start, YYYY-MM-DD (required)")
	harvestCmd.Flags().StringVar(&harvestEndDate, "end-date", "", "window end, YYYY-MM-DD (required)")
	harvestCmd.Flags().StringSliceVar(&harvestCollectors, "collector", nil, "restrict the run to named collectors (repeatable)")
	harvestCmd.Flags().BoolVar(&harvestNoContent, "no-full-content", false, "skip the full-content phase")
	harvestCmd.Flags().BoolVar(&harvestReportOnly, "report-only", false, "run collectors but do not merge into the corpus")
	harvestCmd.Flags().IntVar(&harvestParallel, "parallel", 0, "concurrent collectors (default from config)")
	_ = harvestCmd.MarkFlagRequired("start-date")
	_ = harvestCmd.MarkFlagRequired("end-date")
	rootCmd.AddCommand(harvestCmd)
}
