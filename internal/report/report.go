// Package report renders human-readable summaries of harvest runs and the
// accumulated corpus.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/openharvest/harvester/internal/corpus"
	"github.com/openharvest/harvester/internal/model"
)

// Format renders the outcome of a run followed by the state of the corpus.
// results may be nil or empty (status-only invocations); doc may be nil when
// the corpus was never loaded.
func Format(results map[string]*model.RunResult, doc *corpus.Document) string {
	var b strings.Builder

	b.WriteString("HARVEST REPORT\n")
	b.WriteString("Generated: " + time.Now().UTC().Format("2006-01-02 15:04:05 UTC") + "\n\n")

	if len(results) > 0 {
		writeRunSection(&b, results)
	}
	if doc != nil {
		writeCorpusSection(&b, doc)
	}

	return b.String()
}

func writeRunSection(b *strings.Builder, results map[string]*model.RunResult) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable()
	t.AppendHeader(table.Row{"Collector", "New Items", "New Content", "Skipped", "Errors"})

	var totalAnn, totalFull, totalSkipped, totalErrs int
	for _, name := range names {
		res := results[name]
		t.AppendRow(table.Row{
			name,
			len(res.Announcements),
			len(res.FullContent),
			res.SkippedDuplicates,
			len(res.Errors),
		})
		totalAnn += len(res.Announcements)
		totalFull += len(res.FullContent)
		totalSkipped += res.SkippedDuplicates
		totalErrs += len(res.Errors)
	}
	t.AppendFooter(table.Row{"TOTAL", totalAnn, totalFull, totalSkipped, totalErrs})

	b.WriteString("This run:\n")
	b.WriteString(t.Render())
	b.WriteString("\n")

	for _, name := range names {
		res := results[name]
		if len(res.Errors) == 0 {
			continue
		}
		fmt.Fprintf(b, "\nErrors from %s:\n", name)
		for _, e := range res.Errors {
			fmt.Fprintf(b, "  - %s\n", e)
		}
	}
	b.WriteString("\n")
}

func writeCorpusSection(b *strings.Builder, doc *corpus.Document) {
	names := make([]string, 0, len(doc.ResultsByScraper))
	for name := range doc.ResultsByScraper {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable()
	t.AppendHeader(table.Row{"Collector", "Announcements", "Full Content", "Errors", "Last Scraped"})

	for _, name := range names {
		e := doc.ResultsByScraper[name]
		last := ""
		if !e.Statistics.LastScrapeDate.IsZero() {
			last = e.Statistics.LastScrapeDate.UTC().Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{
			name,
			e.Statistics.TotalAnnouncements,
			e.Statistics.TotalFullContent,
			e.Statistics.TotalErrors,
			last,
		})
	}

	b.WriteString("Corpus:\n")
	b.WriteString(t.Render())
	b.WriteString("\n\n")

	fmt.Fprintf(b, "Collectors tracked:   %d\n", doc.Summary.ScrapersCount)
	fmt.Fprintf(b, "Total announcements:  %d\n", doc.Summary.TotalAnnouncements)
	fmt.Fprintf(b, "Total full content:   %d\n", doc.Summary.TotalFullContent)
	fmt.Fprintf(b, "Total errors:         %d\n", doc.Summary.TotalErrors)
	fmt.Fprintf(b, "Total sessions:       %d\n", doc.ScrapingHistory.TotalScrapes)
	if !doc.ScrapingHistory.FirstScrape.IsZero() {
		fmt.Fprintf(b, "First scrape:         %s\n",
			doc.ScrapingHistory.FirstScrape.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if !doc.ScrapingHistory.LastUpdated.IsZero() {
		fmt.Fprintf(b, "Last updated:         %s\n",
			doc.ScrapingHistory.LastUpdated.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}
