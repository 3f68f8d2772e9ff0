// Package fda collects press announcements from the FDA newsroom.
package fda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	readability "github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openharvest/harvester/internal/collector"
	"github.com/openharvest/harvester/internal/model"
	"github.com/openharvest/harvester/internal/resilience"
)

const (
	defaultBaseURL  = "https://www.fda.gov"
	listingPath     = "/news-events/fda-newsroom/press-announcements"
	defaultMaxPages = 10
	defaultDelay    = time.Second
)

var (
	datePrefixRe = regexp.MustCompile(`^([A-Za-z]+ \d{1,2}, \d{4})\s*-\s*`)
	dateLeadRe   = regexp.MustCompile(`^([A-Za-z]+ \d{1,2}, \d{4})`)
	dateAnyRe    = regexp.MustCompile(`([A-Za-z]+ \d{1,2}, \d{4})`)
	isoDateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	contactRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Media Inquiries:?\s*([^,\n]+)`),
		regexp.MustCompile(`(?i)Contact:?\s*([^,\n]+)`),
		regexp.MustCompile(`(?i)For more information:?\s*([^,\n]+)`),
		regexp.MustCompile(`(\d{3}-\d{3}-\d{4})`),
		regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`),
	}
)

// Collector scrapes the FDA press announcement listing and article pages.
type Collector struct {
	baseURL string
	client  *resty.Client
	log     *zap.Logger
}

// New creates a Collector against the production FDA site.
func New() (*Collector, error) {
	return NewWithBaseURL(defaultBaseURL)
}

// NewWithBaseURL creates a Collector against an alternate host. Tests point
// it at an httptest server.
func NewWithBaseURL(baseURL string) (*Collector, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, eris.Wrapf(err, "fda: parse base url %q", baseURL)
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; harvester/1.0)")
	return &Collector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     zap.L().With(zap.String("collector", "fda")),
	}, nil
}

func (c *Collector) Info() model.CollectorInfo {
	return model.CollectorInfo{
		Name:        "fda",
		Website:     "fda.gov",
		Version:     "2.0",
		Description: "FDA press announcements and full article content",
		Metadata: map[string]string{
			"supported_date_format": "YYYY-MM-DD",
			"categories":            "Drug Safety, Food Safety, Medical Device, Tobacco Products, General",
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

// ScrapeAnnouncements walks listing pages until the window is exhausted. A
// page past the first that contains anything older than the window stops the
// walk, since the listing is newest first.
func (c *Collector) ScrapeAnnouncements(ctx context.Context, startDate, endDate string, opts collector.Options) ([]map[string]any, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, eris.Wrapf(err, "fda: invalid start date %q", startDate)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, eris.Wrapf(err, "fda: invalid end date %q", endDate)
	}

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	limiter := c.limiter(opts)

	var all []map[string]any
	for page := 0; page < maxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return all, eris.Wrap(err, "fda: wait for rate limit")
		}

		doc, err := c.fetchListing(ctx, page, opts)
		if err != nil {
			return all, err
		}

		raws := c.parseListing(doc)
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

func (c *Collector) fetchListing(ctx context.Context, page int, opts collector.Options) (*goquery.Document, error) {
	u := c.baseURL + listingPath
	if page > 0 {
		u = fmt.Sprintf("%s?page=%d", u, page)
	}
	body, err := c.get(ctx, u, opts)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "fda: parse listing page %d", page)
	}
	return doc, nil
}

// parseListing extracts announcement records from one listing page. Links
// into /press-announcements/ are candidates; navigation links back to the
// newsroom and bare section links are not.
func (c *Collector) parseListing(doc *goquery.Document) []map[string]any {
	var raws []map[string]any
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "/press-announcements/") ||
			strings.HasSuffix(href, "/press-announcements") ||
			strings.Contains(href, "fda-newsroom") {
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

		rawTitle := strings.TrimSpace(sel.Text())
		if len(rawTitle) < 10 {
			return
		}

		title := cleanTitle(rawTitle)
		date := extractDate(rawTitle)
		if date.IsZero() {
			if parent := sel.Parent(); parent.Length() > 0 {
				if m := dateAnyRe.FindString(parent.Text()); m != "" {
					date = parseDate(m)
				}
			}
		}

		dateStr := ""
		if !date.IsZero() {
			dateStr = date.Format("2006-01-02")
		}

		raws = append(raws, map[string]any{
			"id":        uuid.New().String(),
			"title":     title,
			"url":       fullURL,
			"date":      dateStr,
			"category":  categorize(title),
			"excerpt":   excerpt(title),
			"raw_title": rawTitle,
			"source":    "FDA Press Announcements",
		})
	})

	return raws
}

// ScrapeFullContent fetches each announcement page and extracts the article.
// A URL that fails or yields no text is skipped; cancellation returns what
// was gathered so far together with the context error.
func (c *Collector) ScrapeFullContent(ctx context.Context, urls []string, opts collector.Options) ([]map[string]any, error) {
	limiter := c.limiter(opts)

	var out []map[string]any
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "fda: full content interrupted")
		}
		if err := limiter.Wait(ctx); err != nil {
			return out, eris.Wrap(err, "fda: wait for rate limit")
		}

		body, err := c.get(ctx, u, opts)
		if err != nil {
			c.log.Warn("skipping article", zap.String("url", u), zap.Error(err))
			continue
		}

		raw, err := c.extractArticle(body, u)
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

func (c *Collector) extractArticle(body []byte, pageURL string) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "fda: parse article %s", pageURL)
	}

	title := firstText(doc, "h1", ".page-title", ".node-title", `[class*="title"]`)
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
		"images":         c.extractImages(doc),
		"links":          c.extractLinks(doc),
		"contact_info":   extractContacts(doc),
		"tags":           extractTags(doc),
		"comments":       []map[string]any{},
		"metadata":       extractMetadata(doc),
	}, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func extractPublished(doc *goquery.Document) string {
	for _, sel := range []string{"time", ".date", ".published", `[class*="date"]`} {
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
	selectors := []string{
		".field--name-body",
		".content",
		".node-content",
		".press-release-content",
		".main-content",
		"main",
		`[role="main"]`,
	}
	for _, sel := range selectors {
		elem := doc.Find(sel).First()
		if elem.Length() == 0 {
			continue
		}
		elem.Find("nav, aside, .sidebar, .menu, .navigation").Remove()

		var parts []string
		elem.Find("p, div, li").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}

	// Last resort inside the markup itself: every paragraph on the page.
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

func (c *Collector) extractImages(doc *goquery.Document) []map[string]any {
	images := []map[string]any{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			return
		}
		if strings.HasPrefix(src, "/") {
			src = c.baseURL + src
		}
		alt, _ := s.Attr("alt")
		title, _ := s.Attr("title")
		images = append(images, map[string]any{"src": src, "alt": alt, "title": title})
	})
	return images
}

func (c *Collector) extractLinks(doc *goquery.Document) []map[string]any {
	links := []map[string]any{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.HasPrefix(href, "/") {
			href = c.baseURL + href
		}
		title, _ := s.Attr("title")
		links = append(links, map[string]any{
			"url":   href,
			"text":  strings.TrimSpace(s.Text()),
			"title": title,
		})
	})
	return links
}

func extractContacts(doc *goquery.Document) string {
	fullText := doc.Text()
	seen := make(map[string]struct{})
	var contacts []string
	for _, re := range contactRes {
		for _, m := range re.FindAllStringSubmatch(fullText, -1) {
			v := strings.TrimSpace(m[len(m)-1])
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			contacts = append(contacts, v)
		}
	}
	return strings.Join(contacts, ", ")
}

func extractTags(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, sel := range []string{".tags a", ".categories a", ".field--name-field-tags a"} {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			t := strings.TrimSpace(s.Text())
			if t == "" {
				return
			}
			if _, dup := seen[t]; dup {
				return
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		})
	}
	return tags
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
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var structured any
		if err := json.Unmarshal([]byte(s.Text()), &structured); err != nil {
			return true
		}
		metadata["structured_data"] = structured
		return false
	})
	return metadata
}

// get fetches a URL with retries on transient failures.
func (c *Collector) get(ctx context.Context, u string, opts collector.Options) ([]byte, error) {
	body, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) ([]byte, error) {
		req := c.client.R().SetContext(ctx)
		if opts.UserAgent != "" {
			req.SetHeader("User-Agent", opts.UserAgent)
		}
		resp, err := req.Get(u)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &resilience.StatusError{URL: u, Code: resp.StatusCode()}
		}
		return resp.Body(), nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fda: fetch %s", u)
	}
	return body, nil
}

func (c *Collector) limiter(opts collector.Options) *rate.Limiter {
	delay := opts.Delay
	if delay <= 0 {
		delay = defaultDelay
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func cleanTitle(raw string) string {
	return strings.TrimSpace(datePrefixRe.ReplaceAllString(raw, ""))
}

func extractDate(rawTitle string) time.Time {
	m := dateLeadRe.FindStringSubmatch(rawTitle)
	if m == nil {
		return time.Time{}
	}
	return parseDate(m[1])
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
	case containsAny(lower, "drug", "medication", "pharmaceutical"):
		return "Drug Safety"
	case containsAny(lower, "food", "recall", "contamination"):
		return "Food Safety"
	case containsAny(lower, "medical device", "device"):
		return "Medical Device"
	case containsAny(lower, "tobacco", "cigarette", "vaping"):
		return "Tobacco Products"
	case strings.Contains(lower, "roundup"):
		return "Roundup"
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
