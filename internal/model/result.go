package model

import "time"

// ScraperInfo identifies the run that produced a result: which collector,
// which site, when, and under which session.
type ScraperInfo struct {
	ScraperName string    `json:"scraper_name"`
	Website     string    `json:"website"`
	ScrapedAt   time.Time `json:"scraped_at"`
	SessionID   string    `json:"session_id"`
}

// RunResult is the ephemeral output of one collector invocation. It is
// owned exclusively by the run that produced it, folded into the corpus by
// the merge step, and then discarded. SkippedDuplicates and NewURLs are
// run-scoped counters that never reach the persisted corpus.
type RunResult struct {
	ScraperInfo   ScraperInfo    `json:"scraper_info"`
	Statistics    map[string]any `json:"statistics"`
	Announcements []Listing      `json:"announcements"`
	FullContent   []Content      `json:"full_content"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Errors        []string       `json:"errors"`

	SkippedDuplicates int      `json:"-"`
	NewURLs           []string `json:"-"`
}
