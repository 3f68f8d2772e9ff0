package harvest

import (
	"time"

	"github.com/google/uuid"

	"github.com/openharvest/harvester/internal/model"
)

// Accumulator collects one run's records, applying the deduplication
// snapshot to the listing phase. It owns the run's RunResult until
// Finalize hands it over.
type Accumulator struct {
	norm    *Normalizer
	known   map[string]struct{}
	newURLs map[string]struct{}
	result  model.RunResult
}

// NewAccumulator creates an Accumulator for one collector run. known is the
// snapshot of URLs already present in the durable corpus for this
// collector; it is treated as immutable for the run's duration.
func NewAccumulator(info model.CollectorInfo, known map[string]struct{}) *Accumulator {
	if known == nil {
		known = make(map[string]struct{})
	}
	now := time.Now().UTC()
	return &Accumulator{
		norm:    NewNormalizer(info.Website, now),
		known:   known,
		newURLs: make(map[string]struct{}),
		result: model.RunResult{
			ScraperInfo: model.ScraperInfo{
				ScraperName: info.Name,
				Website:     info.Website,
				ScrapedAt:   now,
				SessionID:   uuid.New().String(),
			},
			Announcements: []model.Listing{},
			FullContent:   []model.Content{},
			Errors:        []string{},
		},
	}
}

// AdmitListing normalizes and appends a raw listing record unless its URL
// was already seen, either in the durable snapshot or earlier in this run.
// Records with an empty URL cannot be deduplicated and are always admitted;
// they may re-accumulate across runs, which is accepted behavior. Returns
// false when the record was skipped as a duplicate.
func (a *Accumulator) AdmitListing(raw map[string]any) bool {
	listing := a.norm.Listing(raw)

	if listing.URL != "" {
		if _, dup := a.known[listing.URL]; dup {
			a.result.SkippedDuplicates++
			return false
		}
		if _, dup := a.newURLs[listing.URL]; dup {
			a.result.SkippedDuplicates++
			return false
		}
	}

	a.result.Announcements = append(a.result.Announcements, listing)
	if listing.URL != "" {
		a.newURLs[listing.URL] = struct{}{}
		a.result.NewURLs = append(a.result.NewURLs, listing.URL)
	}
	return true
}

// AdmitContent normalizes and appends a raw full-content record. No dedup
// check happens here: the full-content phase is gated upstream by only ever
// fetching URLs that passed AdmitListing, so callers must preserve the
// two-phase ordering.
func (a *Accumulator) AdmitContent(raw map[string]any) {
	a.result.FullContent = append(a.result.FullContent, a.norm.Content(raw))
}

// AddError records a run error. Errors never abort accumulation; a partial
// run remains a valid, mergeable result.
func (a *Accumulator) AddError(msg string) {
	a.result.Errors = append(a.result.Errors, msg)
}

// SessionID returns the opaque identifier of this run.
func (a *Accumulator) SessionID() string {
	return a.result.ScraperInfo.SessionID
}

// NewURLs returns the URLs admitted so far this run, in admission order.
// This is the input set for the full-content phase.
func (a *Accumulator) NewURLs() []string {
	out := make([]string, len(a.result.NewURLs))
	copy(out, a.result.NewURLs)
	return out
}

// Finalize merges caller-supplied statistics over the standard run counters
// and returns the completed result. The accumulator must not be used after
// Finalize.
func (a *Accumulator) Finalize(overrides map[string]any) *model.RunResult {
	stats := map[string]any{
		"total_announcements": len(a.result.Announcements),
		"total_full_content":  len(a.result.FullContent),
		"total_errors":        len(a.result.Errors),
		"skipped_duplicates":  a.result.SkippedDuplicates,
		"new_urls_found":      len(a.result.NewURLs),
	}
	for k, v := range overrides {
		stats[k] = v
	}
	a.result.Statistics = stats
	return &a.result
}
