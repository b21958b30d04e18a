package keywords

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eop-tender-crawler/internal/crawler"
)

func TestMatchIsCaseInsensitiveAcrossScripts(t *testing.T) {
	t.Parallel()

	f := New(DefaultTerms())
	tests := []struct {
		name   string
		record crawler.Record
		want   []string
	}{
		{
			name:   "cyrillic upper case objective",
			record: crawler.Record{TenderObjective: "ДОСТАВКА НА СЪРВЪРНО ОБОРУДВАНЕ"},
			want:   []string{"сървър", "сървърн"},
		},
		{
			name:   "english in documentation",
			record: crawler.Record{Documentation: "Supply of Software licenses"},
			want:   []string{"software", "license"},
		},
		{
			name:   "buyer field counts",
			record: crawler.Record{Buyer: "Агенция за киберсигурност"},
			want:   []string{"киберсигурност"},
		},
		{
			name:   "other fields are ignored",
			record: crawler.Record{TenderMethod: "софтуер", ContactPerson: "server"},
		},
		{
			name:   "no match",
			record: crawler.Record{TenderObjective: "Ремонт на покрив", Buyer: "Община Русе"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, f.Match(tt.record))
		})
	}
}

func TestMatchDoesNotSpanFields(t *testing.T) {
	t.Parallel()

	f := New([]string{"software"})
	r := crawler.Record{TenderObjective: "Supply of soft", Documentation: "ware licences"}
	require.Nil(t, f.Match(r))
	require.Equal(t, "supply of soft\nware licences\n", Haystack(r))

	r.Buyer = "Software Agency"
	require.Equal(t, []string{"software"}, f.Match(r))
}

func TestApplyKeepsOrder(t *testing.T) {
	t.Parallel()

	records := []crawler.Record{
		{URL: "a", TenderObjective: "Облачни услуги"},
		{URL: "b", TenderObjective: "Асфалтиране"},
		{URL: "c", Documentation: "Database migration"},
	}
	got := New(DefaultTerms()).Apply(records)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Record.URL)
	require.Equal(t, "c", got[1].Record.URL)
	require.Equal(t, []string{"database"}, got[1].Terms)
}

func TestNewDropsEmptyAndDuplicateTerms(t *testing.T) {
	t.Parallel()

	f := New([]string{" ", "Server", "SERVER", "", "мрежа"})
	require.Equal(t, []string{"Server", "мрежа"}, f.Terms())
	require.Nil(t, New(nil).Match(crawler.Record{TenderObjective: "server"}))
}

// A record matches iff some folded term is a substring of its folded haystack.
func TestMatchAgreesWithSubstringSearch(t *testing.T) {
	t.Parallel()

	terms := []string{"софт", "софтуер", "уер", "мрежа", "net", "network", "work", "ИКТ", "cloud"}
	f := New(terms)
	pieces := []string{
		"Софтуер", "МРЕЖА", "мреж", "Net", "NETWORK", "wor", "облак", "ик", "Т", "cLoUd",
		"доставка", " ", "\n", "уе", "р", "е", "икт", "workshop",
	}
	rng := rand.New(rand.NewSource(7))
	build := func() string {
		var b strings.Builder
		for n := rng.Intn(5); n >= 0; n-- {
			b.WriteString(pieces[rng.Intn(len(pieces))])
		}
		return b.String()
	}

	for i := 0; i < 500; i++ {
		rec := crawler.Record{TenderObjective: build(), Documentation: build(), Buyer: build()}
		hay := Haystack(rec)
		var want []string
		for _, term := range terms {
			if strings.Contains(hay, fold(term)) {
				want = append(want, term)
			}
		}
		require.Equal(t, want, f.Match(rec), "haystack %q", hay)
	}
}
