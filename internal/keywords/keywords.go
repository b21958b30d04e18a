// Package keywords flags IT-related tenders locally with a multi-pattern
// substring search, as a free approximation of the analysis stage.
package keywords

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/cases"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
)

// DefaultTerms returns the built-in Bulgarian and English IT vocabulary.
func DefaultTerms() []string {
	return []string{
		// Bulgarian
		"софтуер",
		"хардуер",
		"компютър",
		"компютри",
		"компютърн",
		"сървър",
		"сървърн",
		"информационн",
		"информационна система",
		"информационни технологии",
		"лиценз",
		"мрежов",
		"киберсигурност",
		"дигитализация",
		"цифровизация",
		"електронно управление",
		"уеб сайт",
		"уебсайт",
		"база данни",
		"бази данни",
		"облачн",
		"телекомуникац",
		"ИКТ",
		// English
		"software",
		"hardware",
		"computer",
		"server",
		"network",
		"information system",
		"information technology",
		"cybersecurity",
		"database",
		"cloud",
		"website",
		"licence",
		"license",
	}
}

// Filter matches records against a fixed term list. It is safe for
// concurrent use.
type Filter struct {
	terms []string
	// folded[i] is the case-folded form of terms[i]; empty terms are dropped.
	folded  []string
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

// Match is one record that hit at least one term.
type Match struct {
	Record crawler.Record
	Terms  []string
}

// New builds a Filter. Duplicate terms, after folding, are merged.
func New(terms []string) *Filter {
	f := &Filter{}
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		folded := fold(term)
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		f.terms = append(f.terms, term)
		f.folded = append(f.folded, folded)
	}
	if len(f.folded) > 0 {
		f.matcher = ahocorasick.NewStringMatcher(f.folded)
	}
	return f
}

// Terms returns the effective term list.
func (f *Filter) Terms() []string {
	return append([]string(nil), f.terms...)
}

// Haystack is the text a record is matched against: objective,
// documentation and buyer, one per line, case-folded.
func Haystack(r crawler.Record) string {
	return fold(strings.Join([]string{r.TenderObjective, r.Documentation, r.Buyer}, "\n"))
}

// Match returns the terms found in r, in term list order.
func (f *Filter) Match(r crawler.Record) []string {
	if f.matcher == nil {
		return nil
	}
	text := []byte(Haystack(r))

	// The matcher keeps per-search state.
	f.mu.Lock()
	hits := f.matcher.Match(text)
	f.mu.Unlock()

	if len(hits) == 0 {
		return nil
	}
	found := make([]bool, len(f.terms))
	for _, idx := range hits {
		if idx >= 0 && idx < len(found) {
			found[idx] = true
		}
	}
	matched := make([]string, 0, len(hits))
	for i, ok := range found {
		if ok {
			matched = append(matched, f.terms[i])
		}
	}
	return matched
}

// Apply returns the records that match at least one term, in input order.
func (f *Filter) Apply(records []crawler.Record) []Match {
	var out []Match
	for _, r := range records {
		if terms := f.Match(r); len(terms) > 0 {
			out = append(out, Match{Record: r, Terms: terms})
		}
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(s)
}
