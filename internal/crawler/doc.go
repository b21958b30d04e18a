// Package crawler implements the tender crawl loop: it walks the paginated
// listing in a single browser session, opens every listing item in its own
// browsing context, extracts the labelled fields, stops at the first tender
// published before today and checkpoints the accumulated records after every
// page.
package crawler
