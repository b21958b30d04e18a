// Package analysis forwards a crawl snapshot to a text-completion service
// and stores the returned narrative next to the snapshot.
//
// The stage is best effort. Every failure is returned to the caller, which
// logs it; the snapshot on disk is only ever read.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/checkpoint"
	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
	"github.com/JakeFAU/eop-tender-crawler/internal/storage"
)

// ErrNoCredential is returned when no completion service is configured.
var ErrNoCredential = errors.New("analysis credential not configured")

const (
	reportPrefix    = "it_tender_analysis_"
	reportTimestamp = "20060102_150405"
	headerTitle     = "IT TENDER ANALYSIS REPORT"
	separator       = "================================================================================"
)

const instructions = `You are reviewing public procurement notices published on the Bulgarian
Centralized Automated Information System for Electronic Public Procurement.

Identify every tender below that is related to information technology:
software, hardware, networks, telecommunications, cloud or hosting services,
cybersecurity, information systems, digitalisation, data processing, or IT
consulting and support.

For each IT-related tender report:
- order number and URL
- tender objective (translated to English)
- buyer
- estimated amount
- submission deadline
- one sentence on why it is IT-related

Finish with a short summary: how many of the tenders are IT-related, the
total estimated value of those, and any deadlines that fall within the next
seven days. Answer in English.`

// Clock supplies the report timestamp.
type Clock interface {
	Now() time.Time
}

// Report describes a written analysis file.
type Report struct {
	Path        string
	MirrorURI   string
	GeneratedAt time.Time
	Tenders     int
	Text        string
}

// Forwarder runs the analysis stage.
type Forwarder struct {
	completer Completer
	dir       string
	clock     Clock
	mirror    storage.BlobStore
	prefix    string
	logger    *zap.Logger
}

// Option customizes a Forwarder.
type Option func(*Forwarder)

// WithMirror uploads each report to store under prefix.
func WithMirror(store storage.BlobStore, prefix string) Option {
	return func(f *Forwarder) {
		f.mirror = store
		f.prefix = prefix
	}
}

// WithClock overrides the report clock.
func WithClock(c Clock) Option {
	return func(f *Forwarder) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Forwarder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewForwarder writes reports into dir. completer may be nil, in which case
// Forward always reports ErrNoCredential.
func NewForwarder(completer Completer, dir string, opts ...Option) *Forwarder {
	if dir == "" {
		dir = "."
	}
	f := &Forwarder{
		completer: completer,
		dir:       dir,
		clock:     systemClock{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward analyzes the snapshot at snapshotPath. It returns a nil report
// with an error on any failure.
func (f *Forwarder) Forward(ctx context.Context, snapshotPath string) (*Report, error) {
	if f.completer == nil {
		return nil, ErrNoCredential
	}
	snapshot, err := checkpoint.Load(snapshotPath)
	if err != nil {
		return nil, err
	}
	prompt, err := BuildPrompt(snapshot)
	if err != nil {
		return nil, err
	}

	f.logger.Info("sending tenders for analysis", zap.Int("tenders", len(snapshot.Tenders)))
	text, err := f.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("complete analysis: %w", err)
	}

	now := f.clock.Now()
	report := &Report{
		Path:        filepath.Join(f.dir, ReportName(now)),
		GeneratedAt: now,
		Tenders:     len(snapshot.Tenders),
		Text:        text,
	}
	body := renderReport(report, snapshotPath)
	if err := writeExclusive(report.Path, body); err != nil {
		return nil, err
	}

	if f.mirror != nil {
		key := path.Join(f.prefix, filepath.Base(report.Path))
		uri, err := f.mirror.PutObject(ctx, key, "text/plain; charset=utf-8", bytes.NewReader(body))
		if err != nil {
			f.logger.Warn("report mirror failed", zap.String("key", key), zap.Error(err))
		} else {
			report.MirrorURI = uri
		}
	}
	f.logger.Info("analysis saved", zap.String("path", report.Path))
	return report, nil
}

// ReportName returns the file name for a report generated at t.
func ReportName(t time.Time) string {
	return reportPrefix + t.Format(reportTimestamp) + ".txt"
}

// BuildPrompt embeds the metadata and every tender as indented JSON after
// the fixed instructions.
func BuildPrompt(snapshot crawler.Snapshot) (string, error) {
	meta, err := marshalIndent(snapshot.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	tenders := snapshot.Tenders
	if tenders == nil {
		tenders = []crawler.Record{}
	}
	body, err := marshalIndent(tenders)
	if err != nil {
		return "", fmt.Errorf("encode tenders: %w", err)
	}
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nMETADATA:\n")
	b.Write(meta)
	b.WriteString("\nTENDERS:\n")
	b.Write(body)
	return b.String(), nil
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderReport(r *Report, source string) []byte {
	var b bytes.Buffer
	b.WriteString(headerTitle + "\n")
	fmt.Fprintf(&b, "Analysis date: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source file: %s\n", source)
	fmt.Fprintf(&b, "Total tenders analyzed: %d\n", r.Tenders)
	b.WriteString(separator + "\n\n")
	b.WriteString(r.Text)
	if !strings.HasSuffix(r.Text, "\n") {
		b.WriteString("\n")
	}
	return b.Bytes()
}

// writeExclusive creates target and fails if it already exists.
func writeExclusive(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	// #nosec G304 -- report path is derived from the configured directory.
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}
