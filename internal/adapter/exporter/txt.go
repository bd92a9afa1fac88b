package exporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
)

// renderTXT writes a comment header followed by one raw value per line,
// suitable for a plain denylist feed.
func renderTXT(iocs []domain.IOC, generated time.Time) string {
	var output strings.Builder

	output.WriteString("# IoC export\n")
	fmt.Fprintf(&output, "# Generated: %s\n", isoTime(generated))
	fmt.Fprintf(&output, "# Total IoCs: %d\n\n", len(iocs))

	for _, ioc := range iocs {
		output.WriteString(ioc.Value)
		output.WriteString("\n")
	}

	return output.String()
}
