// Package collector defines the contract every site collector must satisfy
// and the registry through which the engine discovers them.
package collector

import (
	"context"
	"time"

	"github.com/openharvest/harvester/internal/model"
)

// Options carries per-run tuning for a collector. Collectors are free to
// ignore fields that don't apply to them.
type Options struct {
	// MaxPages caps how many listing pages are walked. Zero means the
	// collector's own default.
	MaxPages int

	// Delay is the politeness pause between requests to the target site.
	Delay time.Duration

	// UserAgent overrides the collector's default user agent when non-empty.
	UserAgent string
}

// Collector is the capability set the engine requires from any site plugin.
// Implementations own all site-specific concerns: markup structure, rate
// limiting, anti-bot handling. The engine only sequences the two phases and
// never interprets raw payloads itself.
type Collector interface {
	// Info returns the collector's self-reported metadata. Name and Website
	// must be non-empty; the registry rejects collectors that report neither.
	Info() model.CollectorInfo

	// ValidateDateFormat reports whether the collector accepts the given
	// date string for its scrape window bounds.
	ValidateDateFormat(s string) bool

	// ScrapeAnnouncements returns raw listing records for the inclusive
	// window [startDate, endDate], both ISO YYYY-MM-DD. A malformed bound
	// yields a descriptive error. Records already gathered before a failure
	// are returned alongside the error.
	ScrapeAnnouncements(ctx context.Context, startDate, endDate string, opts Options) ([]map[string]any, error)

	// ScrapeFullContent fetches full content for the given URLs, one attempt
	// per URL, omitting URLs that yield no usable content. Like
	// ScrapeAnnouncements, partial results accompany any error.
	ScrapeFullContent(ctx context.Context, urls []string, opts Options) ([]map[string]any, error)
}
