package domain

import "time"

type IOCType string

const (
	IPAddress IOCType = "ip"
	Domain    IOCType = "domain"
	URL       IOCType = "url"
	FileHash  IOCType = "hash"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// TLP is the Traffic Light Protocol sharing level.
type TLP string

const (
	TLPWhite TLP = "white"
	TLPGreen TLP = "green"
	TLPAmber TLP = "amber"
	TLPRed   TLP = "red"
)

var (
	IOCTypes   = []IOCType{IPAddress, Domain, URL, FileHash}
	Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	Statuses   = []Status{StatusPending, StatusApproved, StatusRejected}
	TLPs       = []TLP{TLPWhite, TLPGreen, TLPAmber, TLPRed}
)

func (t IOCType) Valid() bool  { return contains(IOCTypes, t) }
func (s Severity) Valid() bool { return contains(Severities, s) }
func (s Status) Valid() bool   { return contains(Statuses, s) }
func (t TLP) Valid() bool      { return contains(TLPs, t) }

// IOC is a single indicator record as stored by a repository.
// ID and DateReported are assigned by the repository on creation and never change.
type IOC struct {
	ID            string     `json:"id"`
	Type          IOCType    `json:"type"`
	Value         string     `json:"value"`
	Description   string     `json:"description"`
	Severity      Severity   `json:"severity"`
	Source        string     `json:"source"`
	Reporter      string     `json:"reporter"`
	ReporterEmail string     `json:"reporterEmail"`
	DateReported  time.Time  `json:"dateReported"`
	Status        Status     `json:"status"`
	Tags          []string   `json:"tags"`
	TLP           TLP        `json:"tlp"`
	Confidence    int        `json:"confidence"`
	FirstSeen     *time.Time `json:"firstSeen,omitempty"`
	LastSeen      *time.Time `json:"lastSeen,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	References    []string   `json:"references,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate repository state.
func (i IOC) Clone() IOC {
	out := i
	if i.Tags != nil {
		out.Tags = append(make([]string, 0, len(i.Tags)), i.Tags...)
	}
	if i.References != nil {
		out.References = append([]string(nil), i.References...)
	}
	if i.FirstSeen != nil {
		t := *i.FirstSeen
		out.FirstSeen = &t
	}
	if i.LastSeen != nil {
		t := *i.LastSeen
		out.LastSeen = &t
	}
	return out
}

// NewIOC carries the caller-supplied fields of an indicator to be created.
type NewIOC struct {
	Type          IOCType    `json:"type" yaml:"type"`
	Value         string     `json:"value" yaml:"value"`
	Description   string     `json:"description" yaml:"description"`
	Severity      Severity   `json:"severity" yaml:"severity"`
	Source        string     `json:"source" yaml:"source"`
	Reporter      string     `json:"reporter" yaml:"reporter"`
	ReporterEmail string     `json:"reporterEmail" yaml:"reporter_email"`
	Tags          []string   `json:"tags" yaml:"tags"`
	TLP           TLP        `json:"tlp" yaml:"tlp"`
	Confidence    *int       `json:"confidence,omitempty" yaml:"confidence"`
	FirstSeen     *time.Time `json:"firstSeen,omitempty" yaml:"first_seen"`
	LastSeen      *time.Time `json:"lastSeen,omitempty" yaml:"last_seen"`
	Notes         string     `json:"notes,omitempty" yaml:"notes"`
	References    []string   `json:"references,omitempty" yaml:"references"`
}

// IOCPatch is a partial update. Nil fields are left untouched.
type IOCPatch struct {
	Type          *IOCType   `json:"type,omitempty"`
	Value         *string    `json:"value,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Severity      *Severity  `json:"severity,omitempty"`
	Source        *string    `json:"source,omitempty"`
	Reporter      *string    `json:"reporter,omitempty"`
	ReporterEmail *string    `json:"reporterEmail,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	Tags          *[]string  `json:"tags,omitempty"`
	TLP           *TLP       `json:"tlp,omitempty"`
	Confidence    *int       `json:"confidence,omitempty"`
	FirstSeen     *time.Time `json:"firstSeen,omitempty"`
	LastSeen      *time.Time `json:"lastSeen,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	References    *[]string  `json:"references,omitempty"`
}

// Apply shallow-merges the patch into ioc. No validation is re-run.
func (p IOCPatch) Apply(ioc *IOC) {
	if p.Type != nil {
		ioc.Type = *p.Type
	}
	if p.Value != nil {
		ioc.Value = *p.Value
	}
	if p.Description != nil {
		ioc.Description = *p.Description
	}
	if p.Severity != nil {
		ioc.Severity = *p.Severity
	}
	if p.Source != nil {
		ioc.Source = *p.Source
	}
	if p.Reporter != nil {
		ioc.Reporter = *p.Reporter
	}
	if p.ReporterEmail != nil {
		ioc.ReporterEmail = *p.ReporterEmail
	}
	if p.Status != nil {
		ioc.Status = *p.Status
	}
	if p.Tags != nil {
		ioc.Tags = append(make([]string, 0, len(*p.Tags)), (*p.Tags)...)
	}
	if p.TLP != nil {
		ioc.TLP = *p.TLP
	}
	if p.Confidence != nil {
		ioc.Confidence = *p.Confidence
	}
	if p.FirstSeen != nil {
		t := *p.FirstSeen
		ioc.FirstSeen = &t
	}
	if p.LastSeen != nil {
		t := *p.LastSeen
		ioc.LastSeen = &t
	}
	if p.Notes != nil {
		ioc.Notes = *p.Notes
	}
	if p.References != nil {
		ioc.References = append([]string(nil), (*p.References)...)
	}
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
