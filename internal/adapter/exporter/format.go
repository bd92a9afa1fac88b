package exporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
)

type Format string

const (
	FormatTXT  Format = "txt"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts txt, json or csv (case-insensitive).
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatTXT, FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render produces the export body for iocs. Unknown formats fail with
// domain.ErrUnsupportedFormat and no output.
func Render(format Format, iocs []domain.IOC, generated time.Time) (string, error) {
	switch format {
	case FormatTXT:
		return renderTXT(iocs, generated), nil
	case FormatJSON:
		return renderJSON(iocs, generated)
	case FormatCSV:
		return renderCSV(iocs), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
