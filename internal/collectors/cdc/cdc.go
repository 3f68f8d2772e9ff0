// Package cdc collects press releases from the CDC newsroom.
package cdc

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/model"
)

const (
	defaultBaseURL  = "https://www.cdc.gov"
	listingPath     = "/media/releases"
	defaultMaxPages = 10
	defaultDelay    = time.Second
)

var (
	releaseHrefRe = regexp.MustCompile(`/media/releases/\d{4}/`)
	dateAnyRe     = regexp.MustCompile(`([A-Za-z]+ \d{1,2}, \d{4})`)
	isoDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Collector scrapes the CDC newsroom release listing and article pages.
type Collector struct {
	baseURL string
	host    string
	log     *zap.Logger
}

// New creates a Collector against the production CDC site.
func New() (*Collector, error) {
	return NewWithBaseURL(defaultBaseURL)
}

// NewWithBaseURL creates a Collector against an alternate host. Tests point
// it at an httptest server.
func NewWithBaseURL(baseURL string) (*Collector, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "cdc: parse base url %q", baseURL)
	}
	return &Collector{
		baseURL: strings.TrimRight(baseURL, "/"),
		host:    u.Hostname(),
		log:     zap.L().With(zap.String("collector", "cdc")),
	}, nil
}

func (c *Collector) Info() model.CollectorInfo {
	return model.CollectorInfo{
		Name:        "cdc",
		Website:     "cdc.gov",
		Version:     "1.0",
		Description: "CDC newsroom press releases and full article content",
		Metadata: map[string]string{
			"supported_date_format": "YYYY-MM-DD",
			"categories":            "Outbreak, Vaccination, Health Advisory, General",
		},
	}
}

func (c *Collector) ValidateDateFormat(s string) bool {
	if !isoDateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func (c *Collector) newCollector(opts collector.Options) *colly.Collector {
	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; harvester/1.0)"
	}
	col := colly.NewCollector(
		colly.UserAgent(ua),
		colly.AllowedDomains(c.host),
	)
	col.SetRequestTimeout(30 * time.Second)

	delay := opts.Delay
	if delay <= 0 {
		delay = defaultDelay
	}
	col.Limit(&colly.LimitRule{DomainGlob: "*", Delay: delay})
	return col
}

// ScrapeAnnouncements walks listing pages newest first, keeping releases
// inside the window and stopping once a page past the first yields anything
// older than the window.
func (c *Collector) ScrapeAnnouncements(ctx context.Context, startDate, endDate string, opts collector.Options) ([]map[string]any, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, eris.Wrapf(err, "cdc: invalid start date %q", startDate)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, eris.Wrapf(err, "cdc: invalid end date %q", endDate)
	}

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var all []map[string]any
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, eris.Wrap(err, "cdc: listing interrupted")
		}

		raws, err := c.scrapeListingPage(opts, page)
		if err != nil {
			return all, err
		}
		if len(raws) == 0 {
			c.log.Debug("empty listing page, stopping", zap.Int("page", page))
			break
		}

		olderThanStart := false
		included := 0
		for _, raw := range raws {
			dateStr, _ := raw["date"].(string)
			if dateStr == "" {
				continue
			}
			d, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				continue
			}
			switch {
			case d.Before(start):
				olderThanStart = true
			case !d.After(end):
				all = append(all, raw)
				included++
			}
		}
		c.log.Debug("listing page scraped",
			zap.Int("page", page),
			zap.Int("found", len(raws)),
			zap.Int("in_window", included),
		)

		if olderThanStart && page > 0 {
			break
		}
	}

	return all, nil
}

func (c *Collector) scrapeListingPage(opts collector.Options, page int) ([]map[string]any, error) {
	col := c.newCollector(opts)

	var raws []map[string]any
	seen := make(map[string]struct{})

	col.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if !releaseHrefRe.MatchString(href) {
			return
		}

		fullURL := href
		if strings.HasPrefix(href, "/") {
			fullURL = c.baseURL + href
		}
		if _, dup := seen[fullURL]; dup {
			return
		}
		seen[fullURL] = struct{}{}

		title := strings.TrimSpace(e.Text)
		if len(title) < 10 {
			return
		}

		date := time.Time{}
		if m := dateAnyRe.FindString(e.DOM.Parent().Text()); m != "" {
			date = parseDate(m)
		}
		dateStr := ""
		if !date.IsZero() {
			dateStr = date.Format("2006-01-02")
		}

		raws = append(raws, map[string]any{
			"id":       uuid.New().String(),
			"title":    title,
			"url":      fullURL,
			"date":     dateStr,
			"category": categorize(title),
			"excerpt":  excerpt(title),
			"source":   "CDC Newsroom Releases",
		})
	})

	u := c.baseURL + listingPath
	if page > 0 {
		u = fmt.Sprintf("%s?page=%d", u, page)
	}
	if err := col.Visit(u); err != nil {
		return raws, eris.Wrapf(err, "cdc: fetch listing page %d", page)
	}
	return raws, nil
}

// ScrapeFullContent fetches each release page and extracts the article. A
// URL that fails or yields no text is skipped.
func (c *Collector) ScrapeFullContent(ctx context.Context, urls []string, opts collector.Options) ([]map[string]any, error) {
	var out []map[string]any
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "cdc: full content interrupted")
		}

		raw, err := c.scrapeArticle(opts, u)
		if err != nil {
			c.log.Warn("skipping article", zap.String("url", u), zap.Error(err))
			continue
		}
		if raw["full_content"] == "" {
			c.log.Warn("no content extracted", zap.String("url", u))
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

func (c *Collector) scrapeArticle(opts collector.Options, pageURL string) (map[string]any, error) {
	col := c.newCollector(opts)

	var body []byte
	col.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})

	if err := col.Visit(pageURL); err != nil {
		return nil, eris.Wrapf(err, "cdc: fetch %s", pageURL)
	}
	if len(body) == 0 {
		return nil, eris.Errorf("cdc: empty response from %s", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "cdc: parse article %s", pageURL)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	datePublished := extractPublished(doc)
	content := extractBody(doc)
	if content == "" {
		content = readabilityFallback(body, pageURL)
	}

	return map[string]any{
		"id":             uuid.New().String(),
		"url":            pageURL,
		"title":          title,
		"date_published": datePublished,
		"full_content":   content,
		"word_count":     len(strings.Fields(content)),
		"images":         []map[string]any{},
		"links":          []map[string]any{},
		"contact_info":   "",
		"tags":           []string{},
		"comments":       []map[string]any{},
		"metadata":       extractMetadata(doc),
	}, nil
}

func extractPublished(doc *goquery.Document) string {
	for _, sel := range []string{"time", ".release-date", ".date", `[class*="date"]`} {
		elem := doc.Find(sel).First()
		if elem.Length() == 0 {
			continue
		}
		if dt, ok := elem.Attr("datetime"); ok && dt != "" {
			return dt
		}
		if t := strings.TrimSpace(elem.Text()); t != "" {
			return t
		}
	}
	return ""
}

func extractBody(doc *goquery.Document) string {
	for _, sel := range []string{".syndicate", ".release-content", ".content", "main", `[role="main"]`} {
		elem := doc.Find(sel).First()
		if elem.Length() == 0 {
			continue
		}
		elem.Find("nav, aside, .sidebar, .menu").Remove()

		var parts []string
		elem.Find("p, li").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}

	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > 20 {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func readabilityFallback(body []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func extractMetadata(doc *goquery.Document) map[string]any {
	metadata := map[string]any{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok {
			name, _ = s.Attr("property")
		}
		content, _ := s.Attr("content")
		if name != "" && content != "" {
			metadata[name] = content
		}
	})
	return metadata
}

func parseDate(text string) time.Time {
	text = strings.Join(strings.Fields(text), " ")
	for _, layout := range []string{"January 2, 2006", "Jan 2, 2006", "01/02/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

func categorize(title string) string {
	lower := strings.ToLower(title)
	switch {
	case containsAny(lower, "outbreak", "cases", "infection"):
		return "Outbreak"
	case containsAny(lower, "vaccine", "vaccination", "immunization"):
		return "Vaccination"
	case containsAny(lower, "advisory", "warning", "alert"):
		return "Health Advisory"
	}
	return "General"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func excerpt(title string) string {
	if len(title) <= 200 {
		return title
	}
	return title[:200] + "..."
}
