package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/collectors"
	"github.com/openharvest/harvester/internal/corpus"
	"github.com/openharvest/harvester/internal/runlog"
)

// initRegistry registers the built-in collectors and discovers live
// instances. Zero live collectors is a configuration error.
func initRegistry() (*collector.Registry, error) {
	reg := collector.NewRegistry()
	collectors.RegisterBuiltins(reg)

	n := reg.Discover()
	if n == 0 {
		return nil, eris.New("no collectors discovered")
	}
	zap.L().Info("collectors discovered", zap.Int("count", n))
	return reg, nil
}

// initStore ensures the data directory exists and opens the corpus store.
func initStore() (*corpus.Store, error) {
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "create data dir %s", cfg.Data.Dir)
	}
	return corpus.NewStore(filepath.Join(cfg.Data.Dir, cfg.Data.MasterFile)), nil
}

// initRunLog opens the configured session log backend. Driver "off" returns
// nil, which disables session logging.
func initRunLog(ctx context.Context) (runlog.Log, error) {
	switch cfg.RunLog.Driver {
	case "", "off":
		return nil, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.RunLog.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "create run log dir %s", dir)
			}
		}
		return runlog.NewSQLite(cfg.RunLog.Path)
	case "postgres":
		return runlog.NewPostgres(ctx, cfg.RunLog.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown runlog driver %q (want off, sqlite or postgres)", cfg.RunLog.Driver)
	}
}
