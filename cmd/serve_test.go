package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/corpus"
	"github.com/openharvest/harvester/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubCollector struct{}

func (stubCollector) Info() model.CollectorInfo {
	return model.CollectorInfo{Name: "fda", Website: "fda.gov", Version: "2.0"}
}
func (stubCollector) ValidateDateFormat(string) bool { return true }

func (stubCollector) ScrapeAnnouncements(context.Context, string, string, collector.Options) ([]map[string]any, error) {
	return nil, nil
}

func (stubCollector) ScrapeFullContent(context.Context, []string, collector.Options) ([]map[string]any, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, *corpus.Store) {
	t.Helper()

	reg := collector.NewRegistry()
	reg.Register("fda", func() (collector.Collector, error) { return stubCollector{}, nil })
	require.Equal(t, 1, reg.Discover())

	store := corpus.NewStore(filepath.Join(t.TempDir(), "master.json"))
	return newRouter(store, reg), store
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServeHealthz(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeSummary(t *testing.T) {
	h, store := newTestRouter(t)

	_, err := store.Merge(map[string]*model.RunResult{
		"fda": {
			ScraperInfo:   model.ScraperInfo{ScraperName: "fda", Website: "fda.gov"},
			Announcements: []model.Listing{{ID: "1", URL: "https://fda.test/a"}},
		},
	})
	require.NoError(t, err)

	rec := get(t, h, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Summary corpus.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Summary.TotalAnnouncements)
	assert.Equal(t, 1, body.Summary.ScrapersCount)
}

func TestServeCollectors(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/api/collectors")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []model.CollectorInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "fda", infos[0].Name)
}

func TestServeResultsByCollector(t *testing.T) {
	h, store := newTestRouter(t)

	_, err := store.Merge(map[string]*model.RunResult{
		"fda": {
			ScraperInfo:   model.ScraperInfo{ScraperName: "fda", Website: "fda.gov"},
			Announcements: []model.Listing{{ID: "1", URL: "https://fda.test/a"}},
		},
	})
	require.NoError(t, err)

	rec := get(t, h, "/api/results/fda")
	require.Equal(t, http.StatusOK, rec.Code)

	var entry corpus.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Len(t, entry.Announcements, 1)
	assert.Equal(t, "https://fda.test/a", entry.Announcements[0].URL)
}

func TestServeResultsUnknownCollector(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/api/results/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown collector")
}
