package exporter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
)

type JSONExport struct {
	Metadata JSONMetadata `json:"metadata"`
	IOCs     []JSONIOC    `json:"iocs"`
}

type JSONMetadata struct {
	Generated string `json:"generated"`
	Total     int    `json:"total"`
	Format    string `json:"format"`
}

// JSONIOC is an indicator with its dates rendered as ISO-8601 strings.
type JSONIOC struct {
	ID            string          `json:"id"`
	Type          domain.IOCType  `json:"type"`
	Value         string          `json:"value"`
	Description   string          `json:"description"`
	Severity      domain.Severity `json:"severity"`
	Source        string          `json:"source"`
	Reporter      string          `json:"reporter"`
	ReporterEmail string          `json:"reporterEmail"`
	DateReported  string          `json:"dateReported"`
	Status        domain.Status   `json:"status"`
	Tags          []string        `json:"tags"`
	TLP           domain.TLP      `json:"tlp"`
	Confidence    int             `json:"confidence"`
	FirstSeen     string          `json:"firstSeen,omitempty"`
	LastSeen      string          `json:"lastSeen,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	References    []string        `json:"references,omitempty"`
}

func toJSONIOC(ioc domain.IOC) JSONIOC {
	out := JSONIOC{
		ID:            ioc.ID,
		Type:          ioc.Type,
		Value:         ioc.Value,
		Description:   ioc.Description,
		Severity:      ioc.Severity,
		Source:        ioc.Source,
		Reporter:      ioc.Reporter,
		ReporterEmail: ioc.ReporterEmail,
		DateReported:  isoTime(ioc.DateReported),
		Status:        ioc.Status,
		Tags:          ioc.Tags,
		TLP:           ioc.TLP,
		Confidence:    ioc.Confidence,
		Notes:         ioc.Notes,
		References:    ioc.References,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if ioc.FirstSeen != nil {
		out.FirstSeen = isoTime(*ioc.FirstSeen)
	}
	if ioc.LastSeen != nil {
		out.LastSeen = isoTime(*ioc.LastSeen)
	}
	return out
}

func renderJSON(iocs []domain.IOC, generated time.Time) (string, error) {
	export := JSONExport{
		Metadata: JSONMetadata{
			Generated: isoTime(generated),
			Total:     len(iocs),
			Format:    string(FormatJSON),
		},
		IOCs: make([]JSONIOC, 0, len(iocs)),
	}

	for _, ioc := range iocs {
		export.IOCs = append(export.IOCs, toJSONIOC(ioc))
	}

	jsonData, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON export: %w", err)
	}

	return string(jsonData), nil
}
