package seed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	data, err := Default()
	require.NoError(t, err)

	require.Len(t, data.Users, 3)
	assert.Equal(t, "admin", data.Users[0].Username)
	assert.Equal(t, domain.RoleAdmin, data.Users[0].Role)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), data.Users[1].CreatedAt.UTC())
	require.Len(t, data.Credentials, 3)

	require.Len(t, data.IOCs, 4)
	first := data.IOCs[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, domain.IPAddress, first.Type)
	assert.Equal(t, "192.168.1.100", first.Value)
	assert.Equal(t, domain.StatusApproved, first.Status)
	assert.Equal(t, []string{"malware", "botnet"}, first.Tags)
	require.NotNil(t, first.FirstSeen)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), first.DateReported)

	hash := data.IOCs[2]
	assert.Equal(t, domain.FileHash, hash.Type)
	assert.Nil(t, hash.FirstSeen)
	assert.Empty(t, hash.References)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - {id: "9", username: ops, email: ops@example.com, role: user, created_at: 2024-03-01T00:00:00Z}
credentials:
  - {username: ops, password: s3cret}
iocs:
  - id: a
    type: domain
    value: bad.example.org
    description: test
    source: unit
    reporter: ops
    reporter_email: ops@example.com
    date_reported: 2024-03-02T10:00:00Z
`), 0o600))

	data, err := Load(path)
	require.NoError(t, err)
	require.Len(t, data.IOCs, 1)
	assert.Equal(t, domain.StatusPending, data.IOCs[0].Status)
	assert.Equal(t, domain.SeverityMedium, data.IOCs[0].Severity)
	assert.Equal(t, domain.TLPGreen, data.IOCs[0].TLP)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "user without credential",
			raw:  "users:\n  - {id: '1', username: ghost, email: g@x.io, role: user}\n",
			want: "no credential",
		},
		{
			name: "missing id",
			raw:  "iocs:\n  - {type: ip, value: 10.0.0.1, description: d, source: s, reporter: r, reporter_email: r@x.io}\n",
			want: "has no id",
		},
		{
			name: "duplicate id",
			raw: "iocs:\n" +
				"  - {id: x, type: ip, value: 10.0.0.1, description: d, source: s, reporter: r, reporter_email: r@x.io}\n" +
				"  - {id: x, type: ip, value: 10.0.0.2, description: d, source: s, reporter: r, reporter_email: r@x.io}\n",
			want: "duplicated",
		},
		{
			name: "bad status",
			raw:  "iocs:\n  - {id: x, status: closed, type: ip, value: 10.0.0.1, description: d, source: s, reporter: r, reporter_email: r@x.io}\n",
			want: "invalid status",
		},
		{
			name: "not yaml",
			raw:  "iocs: [",
			want: "failed to parse seed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_InvalidIOCIsValidationError(t *testing.T) {
	_, err := Parse([]byte("iocs:\n  - {id: x, type: ip, value: not-an-ip, description: d, source: s, reporter: r, reporter_email: r@x.io}\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestReadIOCs_MultipleDocuments(t *testing.T) {
	in := strings.NewReader(`
iocs:
  - {type: ip, value: 10.0.0.1}
---
iocs:
  - {type: domain, value: evil.test}
  - {type: hash, value: d41d8cd98f00b204e9800998ecf8427e}
`)
	got, err := ReadIOCs(in)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Domain, got[1].Type)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", got[2].Value)
}
