// Package main hosts the tender crawler entrypoint.
//
// Architecture overview:
//   - Crawl loop: internal/crawler.Engine opens the listing at site.start_url, reads the tender links of the
//     current page and opens each one in its own browser context so no cookies or storage leak between tenders.
//     The loop stops at the first tender published before today (Europe/Sofia) or when the next-page control is
//     missing or disabled.
//   - Fetching: browser.item_mode=headless drives Chrome through chromedp (internal/fetcher/headless); static
//     mode uses colly against server-rendered markup (internal/fetcher/static) and is what the tests run against.
//   - Persistence: after every page the full snapshot is rewritten atomically to output.snapshot_path and,
//     when mirror.kind is local or gcs, copied under <prefix>/<run_id>/.
//   - Post-processing: the filter command matches objective, documentation and buyer against the IT keyword
//     list; the analyze command sends the snapshot to the Anthropic Messages API and writes a timestamped report.
//   - Plumbing: Viper loads YAML and TENDER_* environment variables (plus .env files), zap logs, Prometheus
//     collectors can be exported to a textfile, and a run summary can be posted to a webhook or Pub/Sub topic.
//
// Quick checklist:
//   - Chrome or Chromium must be on PATH for headless mode.
//   - Set ANTHROPIC_API_KEY (or TENDER_ANALYSIS_API_KEY) to enable analysis; without it analysis is skipped.
//   - Run locally: go run ./cmd/tendercrawler scrape --filter --analyze
package main
