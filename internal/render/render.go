// Package render prints command results as styled tables, JSON or YAML
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/validate"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q, use table, json or yaml", s)
	}
}

type Printer struct {
	out    io.Writer
	format Format

	// Colors are dropped when out is not a terminal
	renderer *lipgloss.Renderer
}

func New(out io.Writer, format Format) *Printer {
	return &Printer{
		out:      out,
		format:   format,
		renderer: lipgloss.NewRenderer(out),
	}
}

func (p *Printer) Format() Format {
	return p.format
}

// encode writes v as JSON or YAML. ok=false in table format
func (p *Printer) encode(v any) (bool, error) {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case FormatYAML:
		// Through JSON to keep JSON field names and decimal prices as strings
		data, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return true, err
		}
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

func (p *Printer) println(lines ...string) error {
	_, err := fmt.Fprintln(p.out, strings.Join(lines, "\n"))
	return err
}

func (p *Printer) table(headers []string, rows [][]string) string {
	headerStyle := p.renderer.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := p.renderer.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.renderer.NewStyle().Foreground(lipgloss.Color("#444444"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

// fields prints key value pairs, one per line
func (p *Printer) fields(pairs [][2]string) string {
	key := p.renderer.NewStyle().Foreground(lipgloss.Color("#888888"))

	width := 0
	for _, kv := range pairs {
		width = max(width, len(kv[0]))
	}

	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(key.Render(fmt.Sprintf("%-*s", width, kv[0])))
		b.WriteString("  ")
		b.WriteString(kv[1])
	}
	return b.String()
}

// Message prints a plain line whatever the format is
func (p *Printer) Message(format string, args ...any) error {
	_, err := fmt.Fprintf(p.out, format+"\n", args...)
	return err
}

// Error prints user facing error text. Validation errors are listed per field
func (p *Printer) Error(err error) error {
	var fieldErrs *validate.FieldErrors
	if errors.As(err, &fieldErrs) {
		names := make([]string, 0, len(fieldErrs.Fields))
		for name := range fieldErrs.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		lines := []string{"Please fix the following fields:"}
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("  %s: %s", name, fieldErrs.Fields[name]))
		}
		return p.println(lines...)
	}

	return p.println(p.renderer.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("Error: " + Describe(err)))
}

// Describe turns err into a sentence a user can act on
func Describe(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return apperrors.Message(err, "Invalid email or password")
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrNoRefreshToken):
		return "Your session has ended. Please log in again"
	case errors.Is(err, apperrors.ErrNetwork):
		return "Unable to connect to the server. Check your connection and try again"
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.Message(err, "Not found")
	case errors.Is(err, apperrors.ErrLinkExpired):
		return apperrors.Message(err, "This link has expired")
	case errors.Is(err, apperrors.ErrTooManyRequests):
		return fmt.Sprintf("Too many requests, retry in %s", apperrors.RetryAfter(err))
	case errors.Is(err, apperrors.ErrAlreadyConfirmed),
		errors.Is(err, apperrors.ErrNotCancellable),
		errors.Is(err, apperrors.ErrValidation):
		return apperrors.Message(err, err.Error())
	default:
		return err.Error()
	}
}
