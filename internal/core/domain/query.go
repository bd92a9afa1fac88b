package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Filter narrows a list of indicators. Empty fields match everything.
type Filter struct {
	Type     IOCType
	Severity Severity
	Status   Status
	Search   string // case-insensitive substring of value, description or reporter
}

func (f Filter) Match(ioc IOC) bool {
	if f.Type != "" && ioc.Type != f.Type {
		return false
	}
	if f.Severity != "" && ioc.Severity != f.Severity {
		return false
	}
	if f.Status != "" && ioc.Status != f.Status {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		return strings.Contains(strings.ToLower(ioc.Value), q) ||
			strings.Contains(strings.ToLower(ioc.Description), q) ||
			strings.Contains(strings.ToLower(ioc.Reporter), q)
	}
	return true
}

type SortField string

const (
	SortByType         SortField = "type"
	SortByValue        SortField = "value"
	SortBySeverity     SortField = "severity"
	SortByStatus       SortField = "status"
	SortByReporter     SortField = "reporter"
	SortByDateReported SortField = "dateReported"
	SortByConfidence   SortField = "confidence"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

type Sort struct {
	Field SortField
	Order SortOrder
}

// DefaultSort is newest first.
var DefaultSort = Sort{Field: SortByDateReported, Order: Desc}

// ParseSort builds a Sort from user input, falling back to DefaultSort
// for empty values.
func ParseSort(field, order string) (Sort, error) {
	s := DefaultSort
	if field != "" {
		s.Field = SortField(field)
		switch s.Field {
		case SortByType, SortByValue, SortBySeverity, SortByStatus,
			SortByReporter, SortByDateReported, SortByConfidence:
		default:
			return Sort{}, fmt.Errorf("unknown sort field %q", field)
		}
	}
	if order != "" {
		s.Order = SortOrder(strings.ToLower(order))
		if s.Order != Asc && s.Order != Desc {
			return Sort{}, fmt.Errorf("unknown sort order %q", order)
		}
	}
	return s, nil
}

func (s Sort) less(a, b IOC) bool {
	var c int
	switch s.Field {
	case SortByDateReported:
		c = a.DateReported.Compare(b.DateReported)
	case SortByConfidence:
		c = a.Confidence - b.Confidence
	default:
		c = strings.Compare(strings.ToLower(s.stringKey(a)), strings.ToLower(s.stringKey(b)))
	}
	if s.Order == Asc {
		return c < 0
	}
	return c > 0
}

func (s Sort) stringKey(ioc IOC) string {
	switch s.Field {
	case SortByType:
		return string(ioc.Type)
	case SortByValue:
		return ioc.Value
	case SortBySeverity:
		return string(ioc.Severity)
	case SortByStatus:
		return string(ioc.Status)
	case SortByReporter:
		return ioc.Reporter
	}
	return ""
}

// ApplyQuery returns the indicators matching f, ordered by s. The input is not modified.
func ApplyQuery(iocs []IOC, f Filter, s Sort) []IOC {
	out := make([]IOC, 0, len(iocs))
	for _, ioc := range iocs {
		if f.Match(ioc) {
			out = append(out, ioc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.less(out[i], out[j])
	})
	return out
}
