package exporter

import (
	"strconv"
	"strings"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
)

// CSVHeader is the fixed column order downstream importers rely on.
var CSVHeader = []string{
	"id", "type", "value", "description", "severity", "source",
	"reporter", "reporterEmail", "dateReported", "status",
	"tags", "tlp", "confidence", "notes",
}

// renderCSV wraps every string column in double quotes and doubles any
// embedded quote (RFC 4180). Enum, timestamp and number columns are bare.
func renderCSV(iocs []domain.IOC) string {
	var output strings.Builder

	output.WriteString(strings.Join(CSVHeader, ","))
	output.WriteString("\n")

	for _, ioc := range iocs {
		row := []string{
			quote(ioc.ID),
			string(ioc.Type),
			quote(ioc.Value),
			quote(ioc.Description),
			string(ioc.Severity),
			quote(ioc.Source),
			quote(ioc.Reporter),
			quote(ioc.ReporterEmail),
			isoTime(ioc.DateReported),
			string(ioc.Status),
			quote(strings.Join(ioc.Tags, ";")),
			string(ioc.TLP),
			strconv.Itoa(ioc.Confidence),
			quote(ioc.Notes),
		}
		output.WriteString(strings.Join(row, ","))
		output.WriteString("\n")
	}

	return output.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
