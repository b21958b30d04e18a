// Package extract locates labelled values on tender detail pages.
//
// A value is found by anchoring on the node whose text contains a known label
// and then stepping a fixed structural offset along an XPath axis. Fields are
// plain data so the list can be evaluated against live pages or fixture HTML.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Axis is the XPath axis walked from the label node to the value node.
type Axis string

// Supported axes.
const (
	FollowingSibling Axis = "following-sibling"
	Following        Axis = "following"
)

// Field names, also used as JSON keys in the snapshot.
const (
	SubmissionDeadline = "submission_deadline"
	PublicationDate    = "publication_date"
	OrderNumber        = "order_number"
	TenderMethod       = "tender_method"
	TenderObjective    = "tender_objective"
	EstimatedAmount    = "estimated_amount"
	OfferOpening       = "offer_opening"
	Buyer              = "buyer"
	ContactPerson      = "contact_person"
	Documentation      = "documentation"
)

// ErrLabelNotFound is returned when no value node exists for a field's label.
var ErrLabelNotFound = errors.New("label not found")

// Field describes how to read one labelled value.
type Field struct {
	Name   string
	Label  string
	Axis   Axis
	Offset int
}

// XPath renders the query for f. Siblings match any element; the following
// axis is restricted to div elements, which is where the portal keeps values.
func (f Field) XPath() string {
	test := "*"
	if f.Axis == Following {
		test = "div"
	}
	offset := f.Offset
	if offset < 1 {
		offset = 1
	}
	return fmt.Sprintf("//*[contains(text(), %s)]/%s::%s[%d]", quote(f.Label), f.Axis, test, offset)
}

// quote produces an XPath 1.0 string literal. XPath has no escapes, so a label
// holding both quote kinds is assembled with concat().
func quote(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	default:
		parts := strings.Split(s, "'")
		quoted := make([]string, 0, len(parts)*2)
		for i, p := range parts {
			if i > 0 {
				quoted = append(quoted, `"'"`)
			}
			quoted = append(quoted, "'"+p+"'")
		}
		return "concat(" + strings.Join(quoted, ", ") + ")"
	}
}

// DefaultFields returns the detail page fields in extraction order.
func DefaultFields() []Field {
	return []Field{
		{Name: SubmissionDeadline, Label: "Краен срок за подаване", Axis: FollowingSibling, Offset: 1},
		{Name: PublicationDate, Label: "Дата на публикуване", Axis: Following, Offset: 1},
		{Name: OrderNumber, Label: "Уникален номер на поръчката", Axis: Following, Offset: 1},
		{Name: TenderMethod, Label: "Начин на възлагане / пазарни консултации", Axis: Following, Offset: 1},
		{Name: TenderObjective, Label: "Обект на поръчката", Axis: Following, Offset: 1},
		{Name: EstimatedAmount, Label: "Прогнозна стойност", Axis: Following, Offset: 1},
		{Name: OfferOpening, Label: "Дата на отваряне на заявления/оферти", Axis: Following, Offset: 1},
		{Name: Buyer, Label: "Възложител", Axis: Following, Offset: 1},
		{Name: ContactPerson, Label: "Лице за контакт", Axis: Following, Offset: 1},
		{Name: Documentation, Label: "Кратко описание / документация", Axis: Following, Offset: 1},
	}
}

// TextQuerier evaluates an XPath and returns the text content of the first
// matching node. found is false when nothing matched.
type TextQuerier interface {
	Text(ctx context.Context, xpath string) (text string, found bool, err error)
}

// Extract reads f from q and returns the trimmed value.
func Extract(ctx context.Context, q TextQuerier, f Field) (string, error) {
	text, found, err := q.Text(ctx, f.XPath())
	if err != nil {
		return "", fmt.Errorf("query %s: %w", f.Name, err)
	}
	if !found {
		return "", fmt.Errorf("%s (%q): %w", f.Name, f.Label, ErrLabelNotFound)
	}
	return strings.TrimSpace(text), nil
}

// Lookup returns the field named name from fields.
func Lookup(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
