package delivery

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/courierdash/internal/models"
)

const PerPage = 10

type Stats struct {
	Total     int
	Pending   int
	InTransit int
	Completed int

	// Sum of prices of delivered deliveries
	Revenue decimal.Decimal
}

// Summarize counts deliveries the way dashboard cards group them
func Summarize(list []models.Delivery) Stats {
	st := Stats{Total: len(list), Revenue: decimal.Zero}

	for _, d := range list {
		switch d.Status {
		case models.DeliveryStatusAwaitingRecipient, models.DeliveryStatusPending:
			st.Pending++
		case models.DeliveryStatusAccepted, models.DeliveryStatusPickedUp, models.DeliveryStatusInTransit:
			st.InTransit++
		case models.DeliveryStatusDelivered:
			st.Completed++
			st.Revenue = st.Revenue.Add(d.Price)
		}
	}
	return st
}

// Search keeps deliveries whose public id, description or status contains the query, case insensitive.
// Empty query keeps everything
func Search(list []models.Delivery, query string) []models.Delivery {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return list
	}

	found := make([]models.Delivery, 0, len(list))
	for _, d := range list {
		if strings.Contains(strings.ToLower(d.PublicID), query) ||
			strings.Contains(strings.ToLower(d.Description), query) ||
			strings.Contains(strings.ToLower(d.Status), query) {
			found = append(found, d)
		}
	}
	return found
}

type Page struct {
	Items []models.Delivery

	Number     int
	TotalPages int
	Total      int

	// 1-based positions of the first and the last item, 0 when the page is empty
	Start int
	End   int
}

// Paginate returns the page with the given 1-based number.
// Out of range numbers are clamped. There is always at least one page
func Paginate(list []models.Delivery, number int) Page {
	total := len(list)
	pages := (total + PerPage - 1) / PerPage
	if pages == 0 {
		pages = 1
	}
	number = max(1, min(number, pages))

	from := min((number-1)*PerPage, total)
	to := min(number*PerPage, total)

	p := Page{
		Items:      list[from:to],
		Number:     number,
		TotalPages: pages,
		Total:      total,
	}
	if to > from {
		p.Start, p.End = from+1, to
	}
	return p
}
