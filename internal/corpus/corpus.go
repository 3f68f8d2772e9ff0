// Package corpus maintains the single persisted master document that
// aggregates every collector's results across all runs, and the merge
// algorithm that folds a run's output into it without loss or duplication.
package corpus

import (
	"time"

	"github.com/openharvest/harvester/internal/model"
)

// History tracks the lifetime of the corpus document.
type History struct {
	FirstScrape  time.Time `json:"first_scrape"`
	LastUpdated  time.Time `json:"last_updated"`
	TotalScrapes int       `json:"total_scrapes"`
}

// Summary holds store-wide aggregate counts. It is recomputed wholesale
// from the entries after every merge so it can never drift from the
// underlying data.
type Summary struct {
	TotalAnnouncements int       `json:"total_announcements"`
	TotalFullContent   int       `json:"total_full_content"`
	TotalErrors        int       `json:"total_errors"`
	ScrapersCount      int       `json:"scrapers_count"`
	LastUpdated        time.Time `json:"last_updated"`
}

// EntryStats holds per-collector aggregate counts. The totals are derived
// from array lengths at merge time, never from incremental counters; the
// last_scrape fields describe the most recent run folded in.
type EntryStats struct {
	TotalAnnouncements int       `json:"total_announcements"`
	TotalFullContent   int       `json:"total_full_content"`
	TotalErrors        int       `json:"total_errors"`
	LastScrapeNewItems int       `json:"last_scrape_new_items"`
	LastScrapeSkipped  int       `json:"last_scrape_skipped"`
	LastScrapeDate     time.Time `json:"last_scrape_date"`
}

// Entry is the durable, ever-growing history for one collector. After
// creation it is only ever appended to by the merge step.
type Entry struct {
	ScraperInfo   model.ScraperInfo `json:"scraper_info"`
	Statistics    EntryStats        `json:"statistics"`
	Announcements []model.Listing   `json:"announcements"`
	FullContent   []model.Content   `json:"full_content"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	Errors        []string          `json:"errors"`
}

// Document is the top-level shape of the persisted corpus.
type Document struct {
	ScrapingHistory  History           `json:"scraping_history"`
	Summary          Summary           `json:"summary"`
	ResultsByScraper map[string]*Entry `json:"results_by_scraper"`
}

// NewDocument returns the canonical empty-store shape.
func NewDocument(now time.Time) *Document {
	return &Document{
		ScrapingHistory: History{
			FirstScrape: now,
			LastUpdated: now,
		},
		ResultsByScraper: make(map[string]*Entry),
	}
}

// KnownURLs returns every URL present in the named collector's persisted
// announcements and full content. An empty name means all collectors. An
// empty or missing entry yields an empty set.
func (d *Document) KnownURLs(name string) map[string]struct{} {
	urls := make(map[string]struct{})

	var entries []*Entry
	if name != "" {
		if e, ok := d.ResultsByScraper[name]; ok {
			entries = append(entries, e)
		}
	} else {
		for _, e := range d.ResultsByScraper {
			entries = append(entries, e)
		}
	}

	for _, e := range entries {
		for _, a := range e.Announcements {
			if a.URL != "" {
				urls[a.URL] = struct{}{}
			}
		}
		for _, c := range e.FullContent {
			if c.URL != "" {
				urls[c.URL] = struct{}{}
			}
		}
	}

	return urls
}

// apply folds one run result into the document: insert a fresh entry for a
// collector seen for the first time, otherwise append announcements, full
// content and errors, and refresh scraper info so a version bump from the
// collector is recorded.
func (d *Document) apply(name string, res *model.RunResult) {
	entry, ok := d.ResultsByScraper[name]
	if !ok {
		entry = &Entry{Metadata: res.Metadata}
		d.ResultsByScraper[name] = entry
	}

	entry.ScraperInfo = res.ScraperInfo
	entry.Announcements = append(entry.Announcements, res.Announcements...)
	entry.FullContent = append(entry.FullContent, res.FullContent...)
	entry.Errors = append(entry.Errors, res.Errors...)

	entry.Statistics.LastScrapeNewItems = len(res.Announcements)
	entry.Statistics.LastScrapeSkipped = res.SkippedDuplicates
	entry.Statistics.LastScrapeDate = res.ScraperInfo.ScrapedAt
}

// recompute rebuilds every entry's totals from current array lengths and
// the store-wide summary by summing across entries.
func (d *Document) recompute(now time.Time) {
	var ann, full, errs int
	for _, e := range d.ResultsByScraper {
		e.Statistics.TotalAnnouncements = len(e.Announcements)
		e.Statistics.TotalFullContent = len(e.FullContent)
		e.Statistics.TotalErrors = len(e.Errors)

		ann += len(e.Announcements)
		full += len(e.FullContent)
		errs += len(e.Errors)
	}

	d.Summary = Summary{
		TotalAnnouncements: ann,
		TotalFullContent:   full,
		TotalErrors:        errs,
		ScrapersCount:      len(d.ResultsByScraper),
		LastUpdated:        now,
	}
}
