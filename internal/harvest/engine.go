package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/corpus"
	"github.com/openharvest/harvester/internal/model"
	"github.com/openharvest/harvester/internal/runlog"
)

// Engine orchestrates collector runs: it takes a fresh deduplication
// snapshot per run, sequences the listing and full-content phases, and
// isolates per-collector failures so one collector never blocks another.
type Engine struct {
	reg   *collector.Registry
	store *corpus.Store
	log   runlog.Log // optional; nil disables session logging
}

// RunOpts configures which collectors run and how.
type RunOpts struct {
	StartDate string // inclusive, YYYY-MM-DD
	EndDate   string // inclusive, YYYY-MM-DD

	// Collectors restricts the run to the named collectors. Empty means all
	// discovered collectors.
	Collectors []string

	// FullContent enables the second phase: fetching full content for the
	// URLs newly admitted in the listing phase.
	FullContent bool

	// Parallel caps how many collectors run concurrently. Values below 1
	// mean sequential execution. Safe because each collector's dedup
	// snapshot is a read-only view of the durable store and the single
	// merge happens after all collectors finish.
	Parallel int

	// Options is passed through to each collector.
	Options collector.Options
}

// NewEngine creates an Engine. rl may be nil.
func NewEngine(reg *collector.Registry, store *corpus.Store, rl runlog.Log) *Engine {
	return &Engine{reg: reg, store: store, log: rl}
}

// Run executes the selected collectors and returns their results keyed by
// collector name. Configuration errors (unknown collector, malformed date)
// and persistence errors abort the run; collector runtime failures are
// recorded in the per-collector result and never abort the others.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (map[string]*model.RunResult, error) {
	names := opts.Collectors
	if len(names) == 0 {
		names = e.reg.Names()
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*model.RunResult, len(names))
	)

	limit := opts.Parallel
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, name := range names {
		name := name
		g.Go(func() error {
			res, err := e.RunOne(gctx, name, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunOne executes a single collector through both phases. The returned
// error covers configuration and persistence failures only; collector
// runtime failures end up in the result's errors with whatever was
// accumulated before the failure.
func (e *Engine) RunOne(ctx context.Context, name string, opts RunOpts) (*model.RunResult, error) {
	c, err := e.reg.Get(name)
	if err != nil {
		return nil, err
	}

	if err := validateWindow(c, opts.StartDate, opts.EndDate); err != nil {
		return nil, err
	}

	info := c.Info()
	log := zap.L().With(
		zap.String("component", "harvest.engine"),
		zap.String("collector", name),
		zap.String("website", info.Website),
	)

	// Fresh snapshot per run, read straight from the durable store.
	known, err := e.store.KnownURLs(name)
	if err != nil {
		return nil, err
	}
	log.Info("starting run",
		zap.String("start_date", opts.StartDate),
		zap.String("end_date", opts.EndDate),
		zap.Int("known_urls", len(known)),
	)

	acc := NewAccumulator(info, known)
	sessionID := acc.SessionID()

	logID := e.logStart(ctx, name, sessionID, log)
	start := time.Now()

	raws, scrapeErr := c.ScrapeAnnouncements(ctx, opts.StartDate, opts.EndDate, opts.Options)
	for _, raw := range raws {
		acc.AdmitListing(raw)
	}
	if scrapeErr != nil {
		acc.AddError(fmt.Sprintf("scrape announcements: %v", scrapeErr))
		log.Warn("listing phase failed, keeping partial results", zap.Error(scrapeErr))
	}

	newURLs := acc.NewURLs()
	if opts.FullContent && scrapeErr == nil && len(newURLs) > 0 {
		contents, contentErr := c.ScrapeFullContent(ctx, newURLs, opts.Options)
		for _, raw := range contents {
			acc.AdmitContent(raw)
		}
		if contentErr != nil {
			acc.AddError(fmt.Sprintf("scrape full content: %v", contentErr))
			log.Warn("full-content phase failed, keeping partial results", zap.Error(contentErr))
		}
	}

	overrides := map[string]any{
		"date_range": fmt.Sprintf("%s to %s", opts.StartDate, opts.EndDate),
	}
	res := acc.Finalize(overrides)
	if n := len(res.Announcements); n > 0 {
		// Run-scoped diagnostic only; never persisted into entry statistics.
		res.Statistics["success_rate"] = float64(len(res.FullContent)) / float64(n)
	}

	e.logFinish(ctx, logID, res, log)

	log.Info("run complete",
		zap.Int("new_announcements", len(res.Announcements)),
		zap.Int("full_content", len(res.FullContent)),
		zap.Int("skipped_duplicates", res.SkippedDuplicates),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// validateWindow rejects malformed window bounds before any network work.
func validateWindow(c collector.Collector, startDate, endDate string) error {
	for _, d := range []string{startDate, endDate} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return eris.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
		if !c.ValidateDateFormat(d) {
			return eris.Errorf("date %q rejected by collector", d)
		}
	}
	return nil
}

func (e *Engine) logStart(ctx context.Context, name, sessionID string, log *zap.Logger) int64 {
	if e.log == nil {
		return 0
	}
	id, err := e.log.Start(ctx, name, sessionID)
	if err != nil {
		// Session logging is best-effort; never fatal to the harvest.
		log.Warn("run log start failed", zap.Error(err))
		return 0
	}
	return id
}

func (e *Engine) logFinish(ctx context.Context, logID int64, res *model.RunResult, log *zap.Logger) {
	if e.log == nil || logID == 0 {
		return
	}
	var err error
	if len(res.Errors) > 0 && len(res.Announcements) == 0 && len(res.FullContent) == 0 {
		err = e.log.Fail(ctx, logID, res.Errors[len(res.Errors)-1])
	} else {
		err = e.log.Complete(ctx, logID, len(res.Announcements), len(res.FullContent), res.SkippedDuplicates)
	}
	if err != nil {
		log.Warn("run log update failed", zap.Error(err))
	}
}
