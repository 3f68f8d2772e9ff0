// Package harvest implements the incremental orchestration core: record
// normalization, run accumulation gated by the deduplication snapshot, and
// the engine that sequences the two collection phases per collector.
package harvest

import (
	"time"

	"github.com/google/uuid"

	"github.com/openharvest/harvester/internal/model"
)

// Normalizer coerces arbitrary collector output into the fixed record
// schema, filling defaults and preserving the raw payload. One Normalizer
// serves one run: every record it produces carries the run's website label
// and timestamp.
type Normalizer struct {
	website   string
	scrapedAt time.Time
}

// NewNormalizer creates a Normalizer stamping records for the given site.
func NewNormalizer(website string, scrapedAt time.Time) *Normalizer {
	return &Normalizer{website: website, scrapedAt: scrapedAt}
}

// Listing standardizes a raw listing record. A missing id is generated;
// category defaults to "General".
func (n *Normalizer) Listing(raw map[string]any) model.Listing {
	return model.Listing{
		ID:            stringOr(raw, "id", uuid.New().String()),
		Title:         stringField(raw, "title"),
		URL:           stringField(raw, "url"),
		Date:          stringField(raw, "date"),
		Category:      stringOr(raw, "category", "General"),
		Excerpt:       stringField(raw, "excerpt"),
		SourceWebsite: n.website,
		ScrapedAt:     n.scrapedAt,
		RawData:       raw,
	}
}

// Content standardizes a raw full-content record.
func (n *Normalizer) Content(raw map[string]any) model.Content {
	return model.Content{
		ID:            stringOr(raw, "id", uuid.New().String()),
		URL:           stringField(raw, "url"),
		Title:         stringField(raw, "title"),
		DatePublished: stringField(raw, "date_published"),
		FullContent:   stringField(raw, "full_content"),
		WordCount:     intField(raw, "word_count"),
		Images:        imageSlice(raw, "images"),
		Links:         linkSlice(raw, "links"),
		ContactInfo:   stringField(raw, "contact_info"),
		Tags:          stringSlice(raw, "tags"),
		Comments:      commentSlice(raw, "comments"),
		Metadata:      mapField(raw, "metadata"),
		SourceWebsite: n.website,
		ScrapedAt:     n.scrapedAt,
		RawData:       raw,
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func stringOr(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func mapField(m map[string]any, key string) map[string]any {
	if mv, ok := m[key].(map[string]any); ok {
		return mv
	}
	return map[string]any{}
}

func stringSlice(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// anyMaps flattens a raw slice value into its map elements, tolerating both
// []map[string]any and []any payloads.
func anyMaps(m map[string]any, key string) []map[string]any {
	switch v := m[key].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if mv, ok := item.(map[string]any); ok {
				out = append(out, mv)
			}
		}
		return out
	}
	return nil
}

func imageSlice(m map[string]any, key string) []model.Image {
	maps := anyMaps(m, key)
	out := make([]model.Image, 0, len(maps))
	for _, im := range maps {
		out = append(out, model.Image{
			Src:   stringField(im, "src"),
			Alt:   stringField(im, "alt"),
			Title: stringField(im, "title"),
		})
	}
	return out
}

func linkSlice(m map[string]any, key string) []model.Link {
	maps := anyMaps(m, key)
	out := make([]model.Link, 0, len(maps))
	for _, lm := range maps {
		out = append(out, model.Link{
			URL:   stringField(lm, "url"),
			Text:  stringField(lm, "text"),
			Title: stringField(lm, "title"),
		})
	}
	return out
}

func commentSlice(m map[string]any, key string) []model.Comment {
	maps := anyMaps(m, key)
	out := make([]model.Comment, 0, len(maps))
	for _, cm := range maps {
		out = append(out, model.Comment{
			Content: stringField(cm, "content"),
			Source:  stringField(cm, "source"),
		})
	}
	return out
}
