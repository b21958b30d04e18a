// Package testutil renders tender portal fixtures for tests.
package testutil

import (
	"fmt"
	"html"
	"strings"
)

// Detail holds the label values shown on a tender detail page. Field names
// listed in Omit are dropped from the rendered page entirely.
type Detail struct {
	SubmissionDeadline string
	PublicationDate    string
	OrderNumber        string
	TenderMethod       string
	TenderObjective    string
	EstimatedAmount    string
	OfferOpening       string
	Buyer              string
	ContactPerson      string
	Documentation      string
	Omit               []string
}

// DefaultDetail returns a fully populated detail with the given dates.
func DefaultDetail(deadline, published string) Detail {
	return Detail{
		SubmissionDeadline: deadline,
		PublicationDate:    published,
		OrderNumber:        "00123-2025-0045",
		TenderMethod:       "Публично състезание",
		TenderObjective:    "Доставка на сървърно оборудване и софтуерни лицензи",
		EstimatedAmount:    "125 000.00 BGN",
		OfferOpening:       "21 март 2025 (пт), 10:00",
		Buyer:              "Община Пловдив",
		ContactPerson:      "Иван Петров, +359 32 000 000",
		Documentation:      "Документацията е достъпна в ЦАИС ЕОП.",
	}
}

// HTML renders d the way the portal lays out its detail view: the deadline
// value is a sibling of its label, every other value is the next div.
func (d Detail) HTML() string {
	omit := make(map[string]bool, len(d.Omit))
	for _, name := range d.Omit {
		omit[name] = true
	}
	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset=\"utf-8\"><title>Поръчка</title></head><body>\n")
	b.WriteString("<header><div class=\"brand\">ЦАИС ЕОП</div></header>\n<main>\n")
	if !omit["submission_deadline"] {
		fmt.Fprintf(&b, "<p class=\"deadline\"><span>Краен срок за подаване</span><strong>%s</strong></p>\n",
			html.EscapeString(d.SubmissionDeadline))
	}
	rows := []struct{ name, label, value string }{
		{"publication_date", "Дата на публикуване", d.PublicationDate},
		{"order_number", "Уникален номер на поръчката", d.OrderNumber},
		{"tender_method", "Начин на възлагане / пазарни консултации", d.TenderMethod},
		{"tender_objective", "Обект на поръчката", d.TenderObjective},
		{"estimated_amount", "Прогнозна стойност", d.EstimatedAmount},
		{"offer_opening", "Дата на отваряне на заявления/оферти", d.OfferOpening},
		{"buyer", "Възложител", d.Buyer},
		{"contact_person", "Лице за контакт", d.ContactPerson},
		{"documentation", "Кратко описание / документация", d.Documentation},
	}
	for _, r := range rows {
		if omit[r.name] {
			continue
		}
		fmt.Fprintf(&b, "<section class=\"field\"><h4>%s</h4><div class=\"value\">\n  %s\n</div></section>\n",
			html.EscapeString(r.label), html.EscapeString(r.value))
	}
	b.WriteString("</main></body></html>\n")
	return b.String()
}

// ListingHTML renders a listing page with one anchor per href inside the
// item list container. An empty href renders an anchor without the attribute.
// next is the href of the pagination link; empty renders it disabled.
func ListingHTML(hrefs []string, next string) string {
	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset=\"utf-8\"></head><body>\n<div class=\"nxlist-group\">\n")
	for i, href := range hrefs {
		if href == "" {
			fmt.Fprintf(&b, "  <a class=\"item\">Поръчка %d</a>\n", i+1)
			continue
		}
		fmt.Fprintf(&b, "  <a class=\"item\" href=\"%s\">Поръчка %d</a>\n", html.EscapeString(href), i+1)
	}
	b.WriteString("</div>\n")
	if next == "" {
		b.WriteString("<a rel=\"next\" aria-disabled=\"true\">Следваща</a>\n")
	} else {
		fmt.Fprintf(&b, "<a rel=\"next\" href=\"%s\">Следваща</a>\n", html.EscapeString(next))
	}
	b.WriteString("</body></html>\n")
	return b.String()
}
