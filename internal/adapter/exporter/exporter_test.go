package exporter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hive-corporation/ioc-console/internal/adapter/repository"
	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generated = time.Date(2024, 7, 5, 12, 30, 0, 0, time.UTC)

func fixtures() []domain.IOC {
	first := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	return []domain.IOC{
		{
			ID:            "1",
			Type:          domain.IPAddress,
			Value:         "192.168.1.100",
			Description:   "Suspicious IP seen in network traffic",
			Severity:      domain.SeverityHigh,
			Source:        "Network Monitoring",
			Reporter:      "Juan Pérez",
			ReporterEmail: "juan.perez@example.com",
			DateReported:  time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			Status:        domain.StatusApproved,
			Tags:          []string{"malware", "botnet"},
			TLP:           domain.TLPAmber,
			Confidence:    85,
			FirstSeen:     &first,
			Notes:         `contacted "known" C2`,
			References:    []string{"https://threatintel.example.com/report/123"},
		},
		{
			ID:            "2",
			Type:          domain.FileHash,
			Value:         "a1b2c3d4e5f6789012345678901234567890abcd",
			Description:   "Malware hash",
			Severity:      domain.SeverityMedium,
			Source:        "Endpoint Detection",
			Reporter:      "Security Team",
			ReporterEmail: "security@example.com",
			DateReported:  time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC),
			Status:        domain.StatusPending,
			TLP:           domain.TLPGreen,
			Confidence:    70,
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"txt", "JSON", " csv "} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}

	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestRender_UnsupportedFormat(t *testing.T) {
	out, err := Render(Format("xml"), fixtures(), generated)

	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Empty(t, out)
}

func TestRender_TXT(t *testing.T) {
	out, err := Render(FormatTXT, fixtures(), generated)
	require.NoError(t, err)

	want := "# IoC export\n" +
		"# Generated: 2024-07-05T12:30:00.000Z\n" +
		"# Total IoCs: 2\n\n" +
		"192.168.1.100\n" +
		"a1b2c3d4e5f6789012345678901234567890abcd\n"
	assert.Equal(t, want, out)
}

func TestRender_JSONRoundTrip(t *testing.T) {
	iocs := fixtures()

	out, err := Render(FormatJSON, iocs, generated)
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"metadata\": {\n    \"generated\"")

	var parsed JSONExport
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))

	assert.Equal(t, JSONMetadata{Generated: "2024-07-05T12:30:00.000Z", Total: 2, Format: "json"}, parsed.Metadata)
	require.Len(t, parsed.IOCs, len(iocs))

	for i, ioc := range iocs {
		got := parsed.IOCs[i]
		reported, err := time.Parse(time.RFC3339, got.DateReported)
		require.NoError(t, err)
		assert.True(t, ioc.DateReported.Equal(reported))

		// dates compared above
		want := toJSONIOC(ioc)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ioc %s mismatch (-want +got):\n%s", ioc.ID, diff)
		}
	}
	assert.Equal(t, "2024-06-30T00:00:00.000Z", parsed.IOCs[0].FirstSeen)
	assert.Empty(t, parsed.IOCs[1].FirstSeen)
	assert.Equal(t, []string{}, parsed.IOCs[1].Tags)
}

func TestRender_CSV(t *testing.T) {
	out, err := Render(FormatCSV, fixtures(), generated)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "id,type,value,description,severity,source,reporter,reporterEmail,dateReported,status,tags,tlp,confidence,notes", lines[0])
	assert.Len(t, CSVHeader, 14)

	assert.Equal(t,
		`"1",ip,"192.168.1.100","Suspicious IP seen in network traffic",high,"Network Monitoring","Juan Pérez","juan.perez@example.com",2024-07-01T00:00:00.000Z,approved,"malware;botnet",amber,85,"contacted ""known"" C2"`,
		lines[1])
	assert.Equal(t,
		`"2",hash,"a1b2c3d4e5f6789012345678901234567890abcd","Malware hash",medium,"Endpoint Detection","Security Team","security@example.com",2024-07-03T00:00:00.000Z,pending,"",green,70,""`,
		lines[2])
}

func TestRender_CSVKeepsColumnCount(t *testing.T) {
	iocs := fixtures()
	iocs[0].ReporterEmail = `a,"b"@example.com`
	iocs[1].Description = "comma, separated"
	iocs[1].Tags = []string{"x,y", `q"t`}

	in := domain.NewIOC{
		Type: domain.IPAddress, Value: "10.0.0.1", Description: "d", Severity: domain.SeverityLow,
		Source: "s", Reporter: "r", ReporterEmail: iocs[0].ReporterEmail, TLP: domain.TLPGreen,
	}
	require.NoError(t, in.Validate(), "the address passes creation rules")

	out, err := Render(FormatCSV, iocs, generated)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Len(t, rec, len(CSVHeader), "row %d", i)
	}
	assert.Equal(t, `a,"b"@example.com`, records[1][7])
	assert.Equal(t, "comma, separated", records[2][3])
	assert.Equal(t, `x,y;q"t`, records[2][10])
}

type fakeStore struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (f *fakeStore) Put(_ context.Context, key, contentType string, body []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.key, f.contentType, f.body = key, contentType, body
	return "s3://bucket/" + key, nil
}

func newTestExporter(store *fakeStore) *Exporter {
	repo := repository.NewMemoryRepository(repository.WithSeed(fixtures()...))
	var e *Exporter
	if store != nil {
		e = NewExporter(repo, store)
	} else {
		e = NewExporter(repo, nil)
	}
	e.now = func() time.Time { return generated }
	return e
}

func TestExporter_Export(t *testing.T) {
	e := newTestExporter(nil)

	export, err := e.Export(context.Background(), FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "fortigate_iocs_2024-07-05.csv", export.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", export.ContentType)
	assert.Equal(t, 2, export.Total)
	assert.Equal(t, 1, export.Approved)
	assert.Equal(t, 1, export.HighOrCritical)
}

func TestExporter_Publish(t *testing.T) {
	store := &fakeStore{}
	e := newTestExporter(store)

	location, err := e.Publish(context.Background(), FormatTXT)
	require.NoError(t, err)

	assert.Equal(t, "exports/2024/07/05/fortigate_iocs_2024-07-05.txt", store.key)
	assert.Equal(t, "s3://bucket/"+store.key, location)
	assert.Contains(t, string(store.body), "192.168.1.100\n")
}

func TestExporter_PublishErrors(t *testing.T) {
	_, err := newTestExporter(nil).Publish(context.Background(), FormatTXT)
	assert.ErrorIs(t, err, ErrNoStore)

	store := &fakeStore{err: errors.New("boom")}
	_, err = newTestExporter(store).Publish(context.Background(), FormatTXT)
	assert.ErrorContains(t, err, "boom")
}
