package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/corpus"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the corpus read-only over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg, err := initRegistry()
		if err != nil {
			return err
		}
		store, err := initStore()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(store, reg),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the read-only API. Every handler loads the corpus fresh
// so a harvest running alongside the server is always visible.
func newRouter(store *corpus.Store, reg *collector.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/summary", func(w http.ResponseWriter, _ *http.Request) {
		doc, err := store.Load()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"scraping_history": doc.ScrapingHistory,
			"summary":          doc.Summary,
		})
	})

	r.Get("/api/collectors", func(w http.ResponseWriter, _ *http.Request) {
		infos := make([]any, 0, len(reg.Names()))
		for _, name := range reg.Names() {
			c, err := reg.Get(name)
			if err != nil {
				continue
			}
			infos = append(infos, c.Info())
		}
		writeJSON(w, http.StatusOK, infos)
	})

	r.Get("/api/results/{collector}", func(w http.ResponseWriter, req *http.Request) {
		doc, err := store.Load()
		if err != nil {
			writeError(w, err)
			return
		}
		name := chi.URLParam(req, "collector")
		entry, ok := doc.ResultsByScraper[name]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown collector: " + name})
			return
		}
		writeJSON(w, http.StatusOK, entry)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
