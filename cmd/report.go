package cmd

import (
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
	"github.com/JakeFAU/eop-tender-crawler/internal/keywords"
)

const objectiveWidth = 60

func printRunSummary(w io.Writer, res crawler.Result, snapshotPath string) {
	meta := res.Snapshot.Metadata
	stop := "last page reached"
	if res.StoppedOnStale {
		stop = "tender older than today"
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Scraping summary")
	t.AppendRows([]table.Row{
		{"Run", meta.RunID},
		{"Tenders extracted", meta.TotalTenders},
		{"Skipped old tenders", meta.SkippedOldTenders},
		{"Dropped tenders", meta.FailedTenders},
		{"Pages processed", meta.PagesProcessed},
		{"Stopped on", stop},
		{"Output file", snapshotPath},
		{"Filter", meta.FilterApplied},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printMatches(w io.Writer, matches []keywords.Match, total int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Order", "Objective", "Buyer", "Keywords"})
	for i, m := range matches {
		t.AppendRow(table.Row{
			i + 1,
			m.Record.OrderNumber,
			truncate(m.Record.TenderObjective, objectiveWidth),
			truncate(m.Record.Buyer, objectiveWidth/2),
			strings.Join(m.Terms, ", "),
		})
	}
	t.AppendFooter(table.Row{"", "", "IT-related", len(matches), "of " + strconv.Itoa(total)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
