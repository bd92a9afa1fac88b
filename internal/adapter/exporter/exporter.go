package exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/core/ports"
	"github.com/hive-corporation/ioc-console/internal/metrics"
)

// ErrNoStore is returned by Publish when no object store is configured.
var ErrNoStore = errors.New("no export store configured")

// Export is one rendered artefact ready for download or upload.
type Export struct {
	Format         Format
	Filename       string
	ContentType    string
	Content        string
	Generated      time.Time
	Total          int
	Approved       int
	HighOrCritical int
}

// Exporter renders the whole collection of a repository.
type Exporter struct {
	repo  ports.IOCRepository
	store ports.ObjectStore
	now   func() time.Time
}

// NewExporter builds an exporter. store may be nil, in which case Publish
// fails with ErrNoStore.
func NewExporter(repo ports.IOCRepository, store ports.ObjectStore) *Exporter {
	return &Exporter{repo: repo, store: store, now: time.Now}
}

func (e *Exporter) Export(ctx context.Context, format Format) (*Export, error) {
	iocs, err := e.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch IOCs: %w", err)
	}

	generated := e.now()
	content, err := Render(format, iocs, generated)
	if err != nil {
		return nil, err
	}
	metrics.RecordExport(string(format))

	export := &Export{
		Format:      format,
		Filename:    fmt.Sprintf("fortigate_iocs_%s.%s", generated.UTC().Format(time.DateOnly), format),
		ContentType: format.ContentType(),
		Content:     content,
		Generated:   generated,
		Total:       len(iocs),
	}
	for _, ioc := range iocs {
		if ioc.Status == domain.StatusApproved {
			export.Approved++
		}
		if ioc.Severity == domain.SeverityHigh || ioc.Severity == domain.SeverityCritical {
			export.HighOrCritical++
		}
	}

	return export, nil
}

// Publish renders format and uploads it to the configured object store,
// returning the stored object's location.
func (e *Exporter) Publish(ctx context.Context, format Format) (string, error) {
	if e.store == nil {
		return "", ErrNoStore
	}

	export, err := e.Export(ctx, format)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/%s/%s", export.Generated.UTC().Format("2006/01/02"), export.Filename)
	location, err := e.store.Put(ctx, key, export.ContentType, []byte(export.Content))
	if err != nil {
		return "", fmt.Errorf("failed to publish export: %w", err)
	}
	return location, nil
}
