package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eop-tender-crawler/internal/testutil"
)

func TestFieldXPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{
			name:  "sibling",
			field: Field{Label: "Краен срок за подаване", Axis: FollowingSibling, Offset: 1},
			want:  "//*[contains(text(), 'Краен срок за подаване')]/following-sibling::*[1]",
		},
		{
			name:  "following div with offset",
			field: Field{Label: "Възложител", Axis: Following, Offset: 2},
			want:  "//*[contains(text(), 'Възложител')]/following::div[2]",
		},
		{
			name:  "zero offset clamps to first",
			field: Field{Label: "x", Axis: Following},
			want:  "//*[contains(text(), 'x')]/following::div[1]",
		},
		{
			name:  "single quote",
			field: Field{Label: "O'Neil", Axis: Following, Offset: 1},
			want:  `//*[contains(text(), "O'Neil")]/following::div[1]`,
		},
		{
			name:  "both quotes",
			field: Field{Label: `a'b"c`, Axis: Following, Offset: 1},
			want:  `//*[contains(text(), concat('a', "'", 'b"c'))]/following::div[1]`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.field.XPath())
		})
	}
}

func TestDefaultFieldsOrder(t *testing.T) {
	t.Parallel()

	var names []string
	for _, f := range DefaultFields() {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{
		SubmissionDeadline, PublicationDate, OrderNumber, TenderMethod, TenderObjective,
		EstimatedAmount, OfferOpening, Buyer, ContactPerson, Documentation,
	}, names)

	f, ok := Lookup(DefaultFields(), Buyer)
	require.True(t, ok)
	require.Equal(t, "Възложител", f.Label)
	_, ok = Lookup(DefaultFields(), "missing")
	require.False(t, ok)
}

func TestExtractFromFixture(t *testing.T) {
	t.Parallel()

	detail := testutil.DefaultDetail("20 март 2025 (чт), 17:00", "10 март 2025 (пн), 09:15")
	doc, err := ParseHTML(strings.NewReader(detail.HTML()))
	require.NoError(t, err)

	want := map[string]string{
		SubmissionDeadline: "20 март 2025 (чт), 17:00",
		PublicationDate:    "10 март 2025 (пн), 09:15",
		OrderNumber:        detail.OrderNumber,
		TenderMethod:       detail.TenderMethod,
		TenderObjective:    detail.TenderObjective,
		EstimatedAmount:    detail.EstimatedAmount,
		OfferOpening:       detail.OfferOpening,
		Buyer:              detail.Buyer,
		ContactPerson:      detail.ContactPerson,
		Documentation:      detail.Documentation,
	}
	for _, f := range DefaultFields() {
		got, err := Extract(context.Background(), doc, f)
		require.NoError(t, err, f.Name)
		require.Equal(t, want[f.Name], got, f.Name)
	}
}

func TestExtractMissingLabel(t *testing.T) {
	t.Parallel()

	detail := testutil.DefaultDetail("20 март 2025 (чт), 17:00", "10 март 2025 (пн), 09:15")
	detail.Omit = []string{Buyer}
	doc, err := ParseHTML(strings.NewReader(detail.HTML()))
	require.NoError(t, err)

	buyer, _ := Lookup(DefaultFields(), Buyer)
	_, err = Extract(context.Background(), doc, buyer)
	require.ErrorIs(t, err, ErrLabelNotFound)
	require.Contains(t, err.Error(), Buyer)
}

type failingQuerier struct{ err error }

func (f failingQuerier) Text(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func TestExtractPropagatesQueryErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("tab crashed")
	_, err := Extract(context.Background(), failingQuerier{err: boom}, DefaultFields()[0])
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrLabelNotFound)
}

func TestDocumentHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	doc, err := ParseHTML(strings.NewReader("<html><body><div>x</div></body></html>"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = doc.Text(ctx, "//div")
	require.ErrorIs(t, err, context.Canceled)
}
