// Package seed loads demo users, credentials and indicators from YAML.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hive-corporation/ioc-console/internal/adapter/auth"
	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

type Data struct {
	Users       []domain.User
	Credentials []auth.Credential
	IOCs        []domain.IOC
}

type record struct {
	ID            string        `yaml:"id"`
	DateReported  time.Time     `yaml:"date_reported"`
	Status        domain.Status `yaml:"status"`
	domain.NewIOC `yaml:",inline"`
}

type document struct {
	Users       []domain.User     `yaml:"users"`
	Credentials []auth.Credential `yaml:"credentials"`
	IOCs        []record          `yaml:"iocs"`
}

// Default returns the embedded demo data.
func Default() (*Data, error) {
	return Parse(defaultSeed)
}

// Load reads seed data from path, or the embedded default when path is empty.
func Load(path string) (*Data, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a seed document. Every user must have a credential and
// every indicator must pass creation validation.
func Parse(raw []byte) (*Data, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	creds := make(map[string]bool, len(doc.Credentials))
	for _, c := range doc.Credentials {
		creds[c.Username] = true
	}
	for _, u := range doc.Users {
		if !creds[u.Username] {
			return nil, fmt.Errorf("seed user %q has no credential", u.Username)
		}
	}

	data := &Data{Users: doc.Users, Credentials: doc.Credentials}
	seen := make(map[string]bool, len(doc.IOCs))
	for i, r := range doc.IOCs {
		if r.ID == "" {
			return nil, fmt.Errorf("seed ioc #%d has no id", i+1)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("seed ioc id %q is duplicated", r.ID)
		}
		seen[r.ID] = true

		in := r.NewIOC.Normalize()
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("seed ioc %q: %w", r.ID, err)
		}
		status := r.Status
		if status == "" {
			status = domain.StatusPending
		}
		if !status.Valid() {
			return nil, fmt.Errorf("seed ioc %q: invalid status %q", r.ID, status)
		}

		data.IOCs = append(data.IOCs, domain.IOC{
			ID:            r.ID,
			Type:          in.Type,
			Value:         in.Value,
			Description:   in.Description,
			Severity:      in.Severity,
			Source:        in.Source,
			Reporter:      in.Reporter,
			ReporterEmail: in.ReporterEmail,
			DateReported:  r.DateReported.UTC(),
			Status:        status,
			Tags:          in.Tags,
			TLP:           in.TLP,
			Confidence:    in.ConfidenceValue(),
			FirstSeen:     in.FirstSeen,
			LastSeen:      in.LastSeen,
			Notes:         in.Notes,
			References:    in.References,
		})
	}
	return data, nil
}

// ReadIOCs decodes a stream of YAML documents, each holding an "iocs"
// list of indicators to create. Records are returned as given; the
// caller validates them.
func ReadIOCs(r io.Reader) ([]domain.NewIOC, error) {
	dec := yaml.NewDecoder(r)
	var out []domain.NewIOC
	for {
		var doc struct {
			IOCs []domain.NewIOC `yaml:"iocs"`
		}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode iocs: %w", err)
		}
		out = append(out, doc.IOCs...)
	}
}
