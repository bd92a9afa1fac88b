package domain

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	ipv4Pattern   = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	domainPattern = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	hashPattern   = regexp.MustCompile(`^[a-fA-F0-9]{32,128}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidValue reports whether value is syntactically a member of iocType.
func ValidValue(iocType IOCType, value string) bool {
	switch iocType {
	case IPAddress:
		return ipv4Pattern.MatchString(value)
	case Domain:
		return domainPattern.MatchString(value)
	case URL:
		u, err := url.Parse(value)
		return err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "")
	case FileHash:
		return hashPattern.MatchString(value)
	default:
		return false
	}
}

const (
	MinConfidence     = 0
	MaxConfidence     = 100
	DefaultConfidence = 50
)

// Normalize trims free-text fields, fills form defaults and drops blank
// tags and references.
func (n NewIOC) Normalize() NewIOC {
	n.Value = strings.TrimSpace(n.Value)
	n.Description = strings.TrimSpace(n.Description)
	n.Source = strings.TrimSpace(n.Source)
	n.Reporter = strings.TrimSpace(n.Reporter)
	n.ReporterEmail = strings.TrimSpace(n.ReporterEmail)
	n.Notes = strings.TrimSpace(n.Notes)
	if n.Severity == "" {
		n.Severity = SeverityMedium
	}
	if n.TLP == "" {
		n.TLP = TLPGreen
	}
	if n.Confidence == nil {
		c := DefaultConfidence
		n.Confidence = &c
	}
	n.Tags = cleanList(n.Tags, true)
	if n.Tags == nil {
		n.Tags = []string{}
	}
	n.References = cleanList(n.References, false)
	return n
}

// ConfidenceValue returns the supplied confidence or DefaultConfidence.
func (n NewIOC) ConfidenceValue() int {
	if n.Confidence == nil {
		return DefaultConfidence
	}
	return *n.Confidence
}

// Validate checks every creation rule and returns a *ValidationError
// listing all violations, or nil.
func (n NewIOC) Validate() error {
	verr := &ValidationError{}

	if !n.Type.Valid() {
		verr.add("type", "must be one of ip, domain, url, hash")
	}

	switch {
	case n.Value == "":
		verr.add("value", "is required")
	case n.Type.Valid() && !ValidValue(n.Type, n.Value):
		verr.add("value", invalidValueMessage(n.Type))
	}

	if n.Description == "" {
		verr.add("description", "is required")
	}
	if !n.Severity.Valid() {
		verr.add("severity", "must be one of low, medium, high, critical")
	}
	if n.Source == "" {
		verr.add("source", "is required")
	}
	if n.Reporter == "" {
		verr.add("reporter", "is required")
	}

	switch {
	case n.ReporterEmail == "":
		verr.add("reporterEmail", "is required")
	case !emailPattern.MatchString(n.ReporterEmail):
		verr.add("reporterEmail", "invalid email format")
	}

	if !n.TLP.Valid() {
		verr.add("tlp", "must be one of white, green, amber, red")
	}
	if c := n.ConfidenceValue(); c < MinConfidence || c > MaxConfidence {
		verr.add("confidence", "must be between 0 and 100")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func invalidValueMessage(t IOCType) string {
	switch t {
	case IPAddress:
		return "invalid IP format (e.g. 192.168.1.1)"
	case Domain:
		return "invalid domain format (e.g. example.com)"
	case URL:
		return "invalid URL format (e.g. https://example.com)"
	case FileHash:
		return "invalid hash format (MD5, SHA1, SHA256, ...)"
	}
	return "invalid value"
}

func cleanList(in []string, dedupe bool) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool)
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if dedupe {
			if seen[s] {
				continue
			}
			seen[s] = true
		}
		out = append(out, s)
	}
	return out
}
