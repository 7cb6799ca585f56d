// Package export renders case listings for download or the terminal.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"fiscalia/internal/domain"
	"fiscalia/internal/errs"
)

// Format names an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists the supported renderings.
var Formats = []Format{FormatText, FormatCSV, FormatMarkdown, FormatHTML}

// ParseFormat accepts a format name case-insensitively. Empty means text.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errs.Validation(errs.CodeInvalidField, "format", fmt.Sprintf("unknown export format %q", s))
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Header is the fixed column order of the case report.
var Header = table.Row{"id_caso", "descripcion", "estado", "id_fiscal"}

// Cases writes the cases in the requested format.
func Cases(w io.Writer, cases []domain.Case, f Format) error {
	tw := table.NewWriter()
	tw.AppendHeader(Header)
	for _, c := range cases {
		tw.AppendRow(table.Row{c.ID, c.Description, string(c.Status), c.FiscalID})
	}
	var out string
	switch f {
	case FormatCSV:
		out = tw.RenderCSV()
	case FormatMarkdown:
		out = tw.RenderMarkdown()
	case FormatHTML:
		out = tw.RenderHTML()
	case FormatText, "":
		tw.SetStyle(table.StyleLight)
		out = tw.Render()
	default:
		return errs.Validation(errs.CodeInvalidField, "format", fmt.Sprintf("unknown export format %q", f))
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}

// Statistics writes the per-fiscal summary as a table.
func Statistics(w io.Writer, rows []domain.StatisticsRow, f Format) error {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"id_fiscal", "nombre", "total_casos", "pendientes", "en_proceso", "cerrados"})
	var pending, inProcess, closed, total int
	for _, r := range rows {
		tw.AppendRow(table.Row{r.FiscalID, r.FiscalName, r.TotalCases, r.PendingCount, r.InProcessCount, r.ClosedCount})
		total += r.TotalCases
		pending += r.PendingCount
		inProcess += r.InProcessCount
		closed += r.ClosedCount
	}
	tw.AppendFooter(table.Row{"", "total", total, pending, inProcess, closed})
	var out string
	switch f {
	case FormatCSV:
		out = tw.RenderCSV()
	case FormatMarkdown:
		out = tw.RenderMarkdown()
	case FormatHTML:
		out = tw.RenderHTML()
	default:
		tw.SetStyle(table.StyleLight)
		out = tw.Render()
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}
