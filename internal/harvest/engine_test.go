package harvest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/corpus"
	"github.com/openharvest/harvester/internal/model"
)

// fakeCollector serves canned listing and content payloads and records the
// URLs the engine asked full content for.
type fakeCollector struct {
	name        string
	listings    []map[string]any
	listingErr  error
	contents    map[string]map[string]any
	contentErr  error
	requested   []string
	rejectDates bool
}

func (f *fakeCollector) Info() model.CollectorInfo {
	return model.CollectorInfo{Name: f.name, Website: f.name + ".test", Version: "1.0"}
}

func (f *fakeCollector) ValidateDateFormat(s string) bool {
	return !f.rejectDates
}

func (f *fakeCollector) ScrapeAnnouncements(_ context.Context, _, _ string, _ collector.Options) ([]map[string]any, error) {
	return f.listings, f.listingErr
}

func (f *fakeCollector) ScrapeFullContent(_ context.Context, urls []string, _ collector.Options) ([]map[string]any, error) {
	f.requested = append([]string(nil), urls...)
	var out []map[string]any
	for _, u := range urls {
		if c, ok := f.contents[u]; ok {
			out = append(out, c)
		}
	}
	return out, f.contentErr
}

func newTestEngine(t *testing.T, fakes ...*fakeCollector) (*Engine, *corpus.Store) {
	t.Helper()
	reg := collector.NewRegistry()
	for _, f := range fakes {
		reg.Register(f.name, func() (collector.Collector, error) { return f, nil })
	}
	require.Equal(t, len(fakes), reg.Discover())

	store := corpus.NewStore(filepath.Join(t.TempDir(), "master.json"))
	return NewEngine(reg, store, nil), store
}

func listing(url, title string) map[string]any {
	return map[string]any{"title": title, "url": url, "date": "2026-01-15"}
}

func content(url string) map[string]any {
	return map[string]any{"url": url, "full_content": "article body text", "word_count": 3}
}

func TestEngineFirstRunThenIncrementalRerun(t *testing.T) {
	fake := &fakeCollector{
		name: "fda",
		listings: []map[string]any{
			listing("https://fda.test/a", "first announcement"),
			listing("https://fda.test/b", "second announcement"),
		},
		contents: map[string]map[string]any{
			"https://fda.test/a": content("https://fda.test/a"),
			"https://fda.test/b": content("https://fda.test/b"),
		},
	}
	engine, store := newTestEngine(t, fake)

	opts := RunOpts{StartDate: "2026-01-01", EndDate: "2026-01-31", FullContent: true}

	results, err := engine.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Contains(t, results, "fda")

	res := results["fda"]
	assert.Len(t, res.Announcements, 2)
	assert.Len(t, res.FullContent, 2)
	assert.Zero(t, res.SkippedDuplicates)
	assert.Equal(t, []string{"https://fda.test/a", "https://fda.test/b"}, fake.requested)

	_, err = store.Merge(results)
	require.NoError(t, err)

	// Second run over the same window: everything is already known.
	fake.requested = nil
	results, err = engine.Run(context.Background(), opts)
	require.NoError(t, err)

	res = results["fda"]
	assert.Empty(t, res.Announcements)
	assert.Empty(t, res.FullContent)
	assert.Equal(t, 2, res.SkippedDuplicates)
	assert.Nil(t, fake.requested, "content phase must not run without new urls")
}

func TestEnginePartialOverlapFetchesOnlyUnseen(t *testing.T) {
	fake := &fakeCollector{
		name: "fda",
		listings: []map[string]any{
			listing("https://fda.test/a", "already harvested"),
			listing("https://fda.test/c", "new announcement"),
		},
		contents: map[string]map[string]any{
			"https://fda.test/a": content("https://fda.test/a"),
			"https://fda.test/c": content("https://fda.test/c"),
		},
	}
	engine, store := newTestEngine(t, fake)

	seed := map[string]*model.RunResult{
		"fda": {
			ScraperInfo:   model.ScraperInfo{ScraperName: "fda", Website: "fda.test"},
			Announcements: []model.Listing{{ID: "1", Title: "already harvested", URL: "https://fda.test/a"}},
			FullContent:   []model.Content{},
			Errors:        []string{},
		},
	}
	_, err := store.Merge(seed)
	require.NoError(t, err)

	results, err := engine.Run(context.Background(), RunOpts{
		StartDate: "2026-01-01", EndDate: "2026-01-31", FullContent: true,
	})
	require.NoError(t, err)

	res := results["fda"]
	require.Len(t, res.Announcements, 1)
	assert.Equal(t, "https://fda.test/c", res.Announcements[0].URL)
	assert.Equal(t, 1, res.SkippedDuplicates)
	assert.Equal(t, []string{"https://fda.test/c"}, fake.requested)
}

func TestEngineListingFailureKeepsPartialsAndSkipsContent(t *testing.T) {
	fake := &fakeCollector{
		name: "fda",
		listings: []map[string]any{
			listing("https://fda.test/partial", "gathered before failure"),
		},
		listingErr: eris.New("connection reset"),
		contents: map[string]map[string]any{
			"https://fda.test/partial": content("https://fda.test/partial"),
		},
	}
	engine, _ := newTestEngine(t, fake)

	results, err := engine.Run(context.Background(), RunOpts{
		StartDate: "2026-01-01", EndDate: "2026-01-31", FullContent: true,
	})
	require.NoError(t, err, "collector runtime failure must not abort the run")

	res := results["fda"]
	require.Len(t, res.Announcements, 1)
	assert.Empty(t, res.FullContent, "content phase must be skipped after a listing failure")
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "scrape announcements")
	assert.Nil(t, fake.requested)
}

func TestEngineContentFailureKeepsPartials(t *testing.T) {
	fake := &fakeCollector{
		name: "fda",
		listings: []map[string]any{
			listing("https://fda.test/a", "first announcement"),
			listing("https://fda.test/b", "second announcement"),
		},
		contents: map[string]map[string]any{
			"https://fda.test/a": content("https://fda.test/a"),
		},
		contentErr: eris.New("timeout on second url"),
	}
	engine, _ := newTestEngine(t, fake)

	results, err := engine.Run(context.Background(), RunOpts{
		StartDate: "2026-01-01", EndDate: "2026-01-31", FullContent: true,
	})
	require.NoError(t, err)

	res := results["fda"]
	assert.Len(t, res.Announcements, 2)
	assert.Len(t, res.FullContent, 1)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "scrape full content")
}

func TestEngineNoContentPhaseWhenDisabled(t *testing.T) {
	fake := &fakeCollector{
		name:     "fda",
		listings: []map[string]any{listing("https://fda.test/a", "listing only run")},
		contents: map[string]map[string]any{"https://fda.test/a": content("https://fda.test/a")},
	}
	engine, _ := newTestEngine(t, fake)

	results, err := engine.Run(context.Background(), RunOpts{
		StartDate: "2026-01-01", EndDate: "2026-01-31", FullContent: false,
	})
	require.NoError(t, err)

	assert.Empty(t, results["fda"].FullContent)
	assert.Nil(t, fake.requested)
}

func TestEngineUnknownCollector(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeCollector{name: "fda"})

	_, err := engine.Run(context.Background(), RunOpts{
		StartDate: "2026-01-01", EndDate: "2026-01-31",
		Collectors: []string{"nope"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope" not found`)
	assert.Contains(t, err.Error(), "fda")
}

func TestEngineRejectsMalformedDates(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeCollector{name: "fda"})

	_, err := engine.Run(context.Background(), RunOpts{StartDate: "01/15/2026", EndDate: "2026-01-31"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestEngineRejectsDatesCollectorRefuses(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeCollector{name: "fda", rejectDates: true})

	_, err := engine.Run(context.Background(), RunOpts{StartDate: "2026-01-01", EndDate: "2026-01-31"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected by collector")
}

func TestEngineRunsMultipleCollectors(t *testing.T) {
	fda := &fakeCollector{name: "fda", listings: []map[string]any{listing("https://fda.test/a", "fda announcement")}}
	cdc := &fakeCollector{name: "cdc", listings: []map[string]any{listing("https://cdc.test/b", "cdc announcement")}}
	engine, _ := newTestEngine(t, fda, cdc)

	results, err := engine.Run(context.Background(), RunOpts{
		StartDate: "2026-01-01", EndDate: "2026-01-31", Parallel: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results["fda"].Announcements, 1)
	assert.Len(t, results["cdc"].Announcements, 1)
}

func TestEngineSuccessRateDiagnostic(t *testing.T) {
	fake := &fakeCollector{
		name: "fda",
		listings: []map[string]any{
			listing("https://fda.test/a", "first announcement"),
			listing("https://fda.test/b", "second announcement"),
		},
		contents: map[string]map[string]any{
			"https://fda.test/a": content("https://fda.test/a"),
		},
	}
	engine, _ := newTestEngine(t, fake)

	results, err := engine.Run(context.Background(), RunOpts{
		StartDate: "2026-01-01", EndDate: "2026-01-31", FullContent: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.5, results["fda"].Statistics["success_rate"])
}
