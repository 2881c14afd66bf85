package export

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
	"github.com/odyssey-erp/odyssey-aging/report"
)

// ErrPDFUnavailable is returned when a PDF is requested without a renderer.
var ErrPDFUnavailable = errors.New("export: pdf renderer not configured")

// PDFRenderer converts HTML into a PDF document. *report.Client satisfies it.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string, page report.Page) ([]byte, error)
}

// RenderReportPDF lays the report out as an HTML table and has it rendered in
// landscape A4.
func RenderReportPDF(ctx context.Context, renderer PDFRenderer, rep aging.Report) ([]byte, error) {
	if renderer == nil {
		return nil, ErrPDFUnavailable
	}
	data, err := renderer.RenderHTML(ctx, BuildHTML(rep), report.Page{Landscape: true, Width: 8.27, Height: 11.7})
	if errors.Is(err, report.ErrNotConfigured) {
		return nil, fmt.Errorf("%w: %w", ErrPDFUnavailable, err)
	}
	return data, err
}

// BuildHTML renders the standalone HTML document sent to the PDF renderer.
func BuildHTML(rep aging.Report) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><style>")
	b.WriteString("body{font-family:sans-serif;margin:18px;font-size:10px;}h1{font-size:16px;}table{width:100%;border-collapse:collapse;margin-bottom:16px;}th,td{border:1px solid #ddd;padding:4px;text-align:right;}th{background:#f5f5f5;}td.text{text-align:left;}tfoot td{font-weight:bold;}")
	b.WriteString("</style></head><body>")
	b.WriteString("<h1>Vendor Aging Report as of ")
	b.WriteString(rep.AsOf.Format(time.DateOnly))
	b.WriteString("</h1>")
	if len(rep.Accounts) > 0 {
		b.WriteString("<p>Accounts: ")
		b.WriteString(html.EscapeString(strings.Join(rep.Accounts, ListSeparator)))
		b.WriteString("</p>")
	}

	b.WriteString("<table><thead><tr>")
	for _, col := range rep.Columns() {
		b.WriteString("<th>")
		b.WriteString(html.EscapeString(col))
		b.WriteString("</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, record := range Records(rep) {
		b.WriteString("<tr>")
		for i, cell := range record {
			if i > 0 && i < 4 {
				b.WriteString("<td class=\"text\">")
			} else {
				b.WriteString("<td>")
			}
			b.WriteString(html.EscapeString(cell))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody>")
	if len(rep.Rows) > 0 {
		b.WriteString("<tfoot><tr><td class=\"text\" colspan=\"4\">Grand Total</td>")
		for range rep.Buckets {
			b.WriteString("<td></td>")
		}
		b.WriteString("<td>")
		b.WriteString(formatAmount(GrandTotal(rep)))
		b.WriteString("</td></tr></tfoot>")
	}
	b.WriteString("</table>")

	if len(rep.Flagged) > 0 {
		b.WriteString("<h2>Future-dated entries</h2><table><thead><tr>")
		for _, col := range FlaggedColumns {
			b.WriteString("<th>")
			b.WriteString(html.EscapeString(col))
			b.WriteString("</th>")
		}
		b.WriteString("</tr></thead><tbody>")
		for _, entry := range rep.Flagged {
			b.WriteString("<tr>")
			for _, cell := range flaggedRecord(entry) {
				b.WriteString("<td class=\"text\">")
				b.WriteString(html.EscapeString(cell))
				b.WriteString("</td>")
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody></table>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
