// Package bgdate normalizes the Bulgarian date strings shown on the tender portal,
// e.g. "15 яну 2025 (ср), 10:30", into time.Time values.
package bgdate

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// CanonicalLayout is the human readable form stored next to every parsed date.
const CanonicalLayout = "2006-01-02 15:04"

const sourceLayout = "2 Jan 2006 15:04"

// Kind names the precondition a raw date string violated.
type Kind string

// Parse failure kinds.
const (
	KindMissingParen   Kind = "missing_paren"
	KindExtraParen     Kind = "extra_paren"
	KindMissingComma   Kind = "missing_comma"
	KindExtraComma     Kind = "extra_comma"
	KindMisplacedComma Kind = "misplaced_comma"
	KindUnknownMonth   Kind = "unknown_month"
	KindLayout         Kind = "layout"
)

// Sentinels matching each Kind, usable with errors.Is.
var (
	ErrMissingParen   = errors.New("no weekday parenthesis")
	ErrExtraParen     = errors.New("more than one parenthesis")
	ErrMissingComma   = errors.New("no comma before the time of day")
	ErrExtraComma     = errors.New("more than one comma")
	ErrMisplacedComma = errors.New("comma precedes the weekday parenthesis")
	ErrUnknownMonth   = errors.New("unrecognized month abbreviation")
	ErrLayout         = errors.New("does not match day month year hour:minute")
)

// ParseError reports why a raw date could not be normalized.
type ParseError struct {
	Kind  Kind
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse date %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type month struct {
	abbr      string
	canonical string
}

// Order matters: the first abbreviation that matches wins.
var months = []month{
	{"яну", "Jan"},
	{"фев", "Feb"},
	{"март", "Mar"},
	{"апр", "Apr"},
	{"май", "May"},
	{"юни", "Jun"},
	{"юли", "Jul"},
	{"авг", "Aug"},
	{"сеп", "Sep"},
	{"окт", "Oct"},
	{"ное", "Nov"},
	{"дек", "Dec"},
}

// Parse converts raw into an instant in loc. The weekday in parentheses is
// discarded and the time of day after the comma is reattached to the date.
func Parse(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(raw)

	open, err := single(s, "(", KindMissingParen, ErrMissingParen, KindExtraParen, ErrExtraParen)
	if err != nil {
		return time.Time{}, err
	}
	comma, err := single(s, ",", KindMissingComma, ErrMissingComma, KindExtraComma, ErrExtraComma)
	if err != nil {
		return time.Time{}, err
	}
	if comma < open {
		return time.Time{}, &ParseError{Kind: KindMisplacedComma, Input: raw, Err: ErrMisplacedComma}
	}

	fields := strings.Fields(s[:open])
	if len(fields) != 3 {
		return time.Time{}, &ParseError{
			Kind:  KindLayout,
			Input: raw,
			Err:   fmt.Errorf("%w: want 3 date fields, got %d", ErrLayout, len(fields)),
		}
	}
	mon, ok := canonicalMonth(fields[1])
	if !ok {
		return time.Time{}, &ParseError{
			Kind:  KindUnknownMonth,
			Input: raw,
			Err:   fmt.Errorf("%w: %q", ErrUnknownMonth, fields[1]),
		}
	}

	clock := strings.TrimSpace(s[comma+1:])
	normalized := strings.Join([]string{fields[0], mon, fields[2], clock}, " ")
	t, err := time.ParseInLocation(sourceLayout, normalized, loc)
	if err != nil {
		return time.Time{}, &ParseError{
			Kind:  KindLayout,
			Input: raw,
			Err:   fmt.Errorf("%w: %v", ErrLayout, err),
		}
	}
	return t, nil
}

func single(s, sep string, missingKind Kind, missing error, extraKind Kind, extra error) (int, error) {
	switch strings.Count(s, sep) {
	case 0:
		return -1, &ParseError{Kind: missingKind, Input: s, Err: missing}
	case 1:
		return strings.Index(s, sep), nil
	default:
		return -1, &ParseError{Kind: extraKind, Input: s, Err: extra}
	}
}

// canonicalMonth maps a source-locale month token to its English abbreviation.
// A trailing dot is ignored and short forms such as "мар" still resolve.
func canonicalMonth(token string) (string, bool) {
	token = strings.TrimSuffix(strings.ToLower(token), ".")
	for _, m := range months {
		if strings.HasPrefix(token, m.abbr) {
			return m.canonical, true
		}
		if utf8.RuneCountInString(token) >= 3 && strings.HasPrefix(m.abbr, token) {
			return m.canonical, true
		}
	}
	return "", false
}

// Format renders t in CanonicalLayout.
func Format(t time.Time) string {
	return t.Format(CanonicalLayout)
}

// ParseCanonical is the inverse of Format.
func ParseCanonical(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(CanonicalLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse canonical date %q: %w", s, err)
	}
	return t, nil
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
