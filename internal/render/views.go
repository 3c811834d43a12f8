package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/service/delivery"
	"github.com/nkiryanov/courierdash/internal/service/tracking"
	"github.com/nkiryanov/courierdash/internal/session"
)

const dateLayout = "Jan 2, 2006 15:04"

// Badge colors of delivery statuses
var statusColors = map[string]string{
	models.DeliveryStatusDelivered: "#E4FF2C",
	models.DeliveryStatusPickedUp:  "#4ADE80",
	models.DeliveryStatusInTransit: "#4ADE80",
	models.DeliveryStatusAccepted:  "#60A5FA",
	models.DeliveryStatusPending:   "#FACC15",
	models.DeliveryStatusCancelled: "#FF6B6B",
}

func (p *Printer) badge(status string) string {
	style := p.renderer.NewStyle()
	if c, ok := statusColors[status]; ok {
		style = style.Foreground(lipgloss.Color(c))
	}
	return style.Render(tracking.Label(status))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "Pending"
	}
	return t.Format(dateLayout)
}

func formatPrice(d models.Delivery) string {
	if d.Price.IsZero() {
		return "-"
	}
	return "ETB " + d.Price.StringFixed(2)
}

// DeliveryPage prints one page of deliveries with a position footer
func (p *Printer) DeliveryPage(page delivery.Page) error {
	if ok, err := p.encode(page.Items); ok {
		return err
	}
	if page.Total == 0 {
		return p.Message("No deliveries found")
	}

	rows := make([][]string, 0, len(page.Items))
	for _, d := range page.Items {
		rows = append(rows, []string{
			strconv.FormatInt(d.ID, 10),
			d.PublicID,
			p.badge(d.Status),
			formatPrice(d),
			d.Description,
			d.CreatedAt.Format(dateLayout),
		})
	}

	return p.println(
		p.table([]string{"ID", "Tracking ID", "Status", "Price", "Description", "Created"}, rows),
		fmt.Sprintf("Showing %d-%d of %d deliveries, page %d of %d", page.Start, page.End, page.Total, page.Number, page.TotalPages),
	)
}

func (p *Printer) Delivery(d models.Delivery) error {
	if ok, err := p.encode(d); ok {
		return err
	}

	pairs := [][2]string{
		{"ID", strconv.FormatInt(d.ID, 10)},
		{"Tracking ID", d.PublicID},
		{"Status", p.badge(d.Status)},
		{"Price", formatPrice(d)},
		{"Description", d.Description},
		{"Created", d.CreatedAt.Format(dateLayout)},
		{"Accepted", formatTime(d.AcceptedAt)},
		{"Picked up", formatTime(d.PickedUpAt)},
		{"Delivered", formatTime(d.DeliveredAt)},
	}
	if d.CancelledAt != nil {
		pairs = append(pairs, [2]string{"Cancelled", formatTime(d.CancelledAt)})
	}
	out := []string{p.fields(pairs)}

	if len(d.Stops) > 0 {
		rows := make([][]string, 0, len(d.Stops))
		for _, s := range d.Stops {
			rows = append(rows, []string{
				s.Kind,
				joinNonEmpty(", ", s.Address1, s.Address2, s.City, s.Region, s.CountryCode),
				joinNonEmpty(" ", s.ContactName, s.ContactPhone),
			})
		}
		out = append(out, p.table([]string{"Stop", "Address", "Contact"}, rows))
	}

	if len(d.Items) > 0 {
		rows := make([][]string, 0, len(d.Items))
		for _, it := range d.Items {
			rows = append(rows, []string{it.Name, strconv.Itoa(it.Quantity)})
		}
		out = append(out, p.table([]string{"Item", "Quantity"}, rows))
	}

	return p.println(out...)
}

func (p *Printer) Stats(st delivery.Stats) error {
	if ok, err := p.encode(map[string]any{
		"total":      st.Total,
		"pending":    st.Pending,
		"in_transit": st.InTransit,
		"completed":  st.Completed,
		"revenue":    st.Revenue,
	}); ok {
		return err
	}

	return p.println(p.table(
		[]string{"Total", "Pending", "In Transit", "Completed", "Revenue"},
		[][]string{{
			strconv.Itoa(st.Total),
			strconv.Itoa(st.Pending),
			strconv.Itoa(st.InTransit),
			strconv.Itoa(st.Completed),
			"ETB " + st.Revenue.StringFixed(2),
		}},
	))
}

func (p *Printer) Locations(list []models.BusinessLocation) error {
	if ok, err := p.encode(list); ok {
		return err
	}
	if len(list) == 0 {
		return p.Message("No business locations yet")
	}

	rows := make([][]string, 0, len(list))
	for _, l := range list {
		active := "no"
		if l.Active {
			active = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatInt(l.ID, 10),
			l.Name,
			joinNonEmpty(", ", l.Address1, l.City, l.Region, l.CountryCode),
			active,
		})
	}
	return p.println(p.table([]string{"ID", "Name", "Address", "Active"}, rows))
}

func (p *Printer) Location(l models.BusinessLocation) error {
	if ok, err := p.encode(l); ok {
		return err
	}
	return p.Locations([]models.BusinessLocation{l})
}

// Tracking prints public delivery view with its timeline
func (p *Printer) Tracking(t models.Tracking) error {
	if ok, err := p.encode(t); ok {
		return err
	}

	pairs := [][2]string{
		{"Tracking ID", t.PublicID},
		{"Status", p.badge(t.Status)},
	}
	if t.Business != nil {
		pairs = append(pairs, [2]string{"From", t.Business.Name})
	}
	if t.Driver != nil {
		pairs = append(pairs, [2]string{"Driver", joinNonEmpty(" ", t.Driver.FullName, t.Driver.Phone, t.Driver.VehicleType)})
	}
	if t.Pickup != nil {
		pairs = append(pairs, [2]string{"Pickup", joinNonEmpty(", ", t.Pickup.Address1, t.Pickup.City, t.Pickup.Region)})
	}
	if t.Dropoff != nil {
		pairs = append(pairs, [2]string{"Dropoff", joinNonEmpty(", ", t.Dropoff.Address1, t.Dropoff.City, t.Dropoff.Region)})
	}
	out := []string{p.fields(pairs)}

	if events := tracking.Timeline(t); len(events) > 0 {
		done := p.renderer.NewStyle().Foreground(lipgloss.Color("#E4FF2C"))
		lines := make([]string, 0, len(events))
		for _, e := range events {
			mark := "○"
			if e.Completed {
				mark = done.Render("●")
			}
			lines = append(lines, fmt.Sprintf("%s %-14s %s", mark, e.Status, formatTime(e.At)))
		}
		out = append(out, strings.Join(lines, "\n"))
	}

	return p.println(out...)
}

// Session prints who is logged in and until when
func (p *Printer) Session(s session.Session, now time.Time) error {
	type view struct {
		Authenticated bool       `json:"authenticated"`
		Email         string     `json:"email,omitempty"`
		Roles         []string   `json:"roles,omitempty"`
		Business      string     `json:"business,omitempty"`
		ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	}
	v := view{Authenticated: s.IsAuthenticated, ExpiresAt: s.ExpiresAt}
	if s.User != nil {
		v.Email = s.User.Email
		v.Roles = s.User.Roles
	}
	if s.Business != nil {
		v.Business = s.Business.Name
	}

	if ok, err := p.encode(v); ok {
		return err
	}
	if !s.IsAuthenticated {
		return p.Message("Not logged in")
	}

	pairs := [][2]string{{"Email", v.Email}, {"Roles", strings.Join(v.Roles, ", ")}}
	if v.Business != "" {
		pairs = append(pairs, [2]string{"Business", v.Business})
	}
	expires := "unknown"
	if left, ok := s.Remaining(now); ok {
		expires = fmt.Sprintf("%s (in %s)", s.ExpiresAt.Local().Format(dateLayout), left.Round(time.Second))
	}
	pairs = append(pairs, [2]string{"Token expires", expires})

	return p.println(p.fields(pairs))
}

// Update prints one line per watched change
func (p *Printer) Update(u tracking.Update) error {
	if ok, err := p.encode(map[string]any{
		"token":    u.Token,
		"tracking": u.Tracking,
		"error":    errorText(u.Err),
	}); ok {
		return err
	}

	if u.Err != nil {
		return p.Message("%s: %s", u.Token, Describe(u.Err))
	}
	return p.Message("%s: %s %s", u.Token, u.Tracking.PublicID, p.badge(u.Tracking.Status))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return Describe(err)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, sep)
}
