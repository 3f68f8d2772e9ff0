// Package model defines the record shapes shared across the harvester:
// the two standardized record types produced by a run (Listing and
// Content), collector metadata, and the per-run result container.
package model

import "time"

// Listing is one announcement harvested from a collector's listing phase.
// URL is the natural key for deduplication; ID is synthetic and never used
// for dedup. RawData preserves the collector's original payload untouched.
type Listing struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	Date          string         `json:"date"`
	Category      string         `json:"category"`
	Excerpt       string         `json:"excerpt"`
	SourceWebsite string         `json:"source_website"`
	ScrapedAt     time.Time      `json:"scraped_at"`
	RawData       map[string]any `json:"raw_data,omitempty"`
}

// Image is an image reference found in a content page.
type Image struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// Link is a hyperlink found in a content page.
type Link struct {
	URL   string `json:"url"`
	Text  string `json:"text,omitempty"`
	Title string `json:"title,omitempty"`
}

// Comment is a reader comment attached to a content page.
type Comment struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// Content is the full-content record for one announcement URL. It relates
// to a Listing by matching URL, but a Listing may exist without a Content
// when the full-content fetch failed or yielded nothing usable.
type Content struct {
	ID            string         `json:"id"`
	URL           string         `json:"url"`
	Title         string         `json:"title"`
	DatePublished string         `json:"date_published"`
	FullContent   string         `json:"full_content"`
	WordCount     int            `json:"word_count"`
	Images        []Image        `json:"images"`
	Links         []Link         `json:"links"`
	ContactInfo   string         `json:"contact_info"`
	Tags          []string       `json:"tags"`
	Comments      []Comment      `json:"comments"`
	Metadata      map[string]any `json:"metadata"`
	SourceWebsite string         `json:"source_website"`
	ScrapedAt     time.Time      `json:"scraped_at"`
	RawData       map[string]any `json:"raw_data,omitempty"`
}

// CollectorInfo is the self-reported metadata of a collector.
type CollectorInfo struct {
	Name        string            `json:"name"`
	Website     string            `json:"website"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
