package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

// Format names an output document type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for unsupported output formats.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat normalises a format name; an empty name selects XLSX.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV, FormatPDF, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ContentType is the HTTP media type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatJSON:
		return "application/json"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// DefaultFileName is the timestamped report name used when no output path is given.
func DefaultFileName(now time.Time, format Format) string {
	if format == "" {
		format = FormatXLSX
	}
	return fmt.Sprintf("aging_report_%s.%s", now.Format("20060102150405"), format)
}

// Write renders the report in the given format.
func Write(ctx context.Context, w io.Writer, format Format, report aging.Report, pdf PDFRenderer) error {
	switch format {
	case FormatXLSX, "":
		return WriteReportXLSX(w, report)
	case FormatCSV:
		return WriteReportCSV(w, report)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatPDF:
		data, err := RenderReportPDF(ctx, pdf, report)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile renders the report into path, choosing the format from its
// extension. The file is only created once rendering succeeded.
func WriteFile(ctx context.Context, path string, report aging.Report, pdf PDFRenderer) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(ctx, &buf, format, report, pdf); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
