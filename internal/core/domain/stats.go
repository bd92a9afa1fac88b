package domain

import (
	"sort"
	"time"
)

const (
	TopReportersLimit   = 5
	RecentActivityLimit = 10
	TrendDays           = 7
)

type ReporterCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

// DashboardStats is the aggregate view over an IOC collection.
// Category maps omit values with no records.
type DashboardStats struct {
	TotalIOCs      int              `json:"totalIoCs"`
	IOCsByType     map[IOCType]int  `json:"iocsByType"`
	IOCsBySeverity map[Severity]int `json:"iocsBySeverity"`
	IOCsByStatus   map[Status]int   `json:"iocsByStatus"`
	RecentActivity []IOC            `json:"recentActivity"`
	TopReporters   []ReporterCount  `json:"topReporters"`
	WeeklyTrend    []DayCount       `json:"weeklyTrend"`
}

// ComputeStats aggregates iocs as of now. It does not modify its input.
func ComputeStats(iocs []IOC, now time.Time) DashboardStats {
	stats := DashboardStats{
		TotalIOCs:      len(iocs),
		IOCsByType:     make(map[IOCType]int),
		IOCsBySeverity: make(map[Severity]int),
		IOCsByStatus:   make(map[Status]int),
	}

	for _, ioc := range iocs {
		stats.IOCsByType[ioc.Type]++
		stats.IOCsBySeverity[ioc.Severity]++
		stats.IOCsByStatus[ioc.Status]++
	}

	stats.TopReporters = topReporters(iocs, TopReportersLimit)
	stats.WeeklyTrend = weeklyTrend(iocs, now)
	stats.RecentActivity = recentActivity(iocs, RecentActivityLimit)

	return stats
}

func topReporters(iocs []IOC, limit int) []ReporterCount {
	index := make(map[string]int)
	var counts []ReporterCount

	for _, ioc := range iocs {
		if i, ok := index[ioc.Reporter]; ok {
			counts[i].Count++
			continue
		}
		index[ioc.Reporter] = len(counts)
		counts = append(counts, ReporterCount{Name: ioc.Reporter, Count: 1})
	}

	// Stable keeps first-seen order among equal counts.
	sort.SliceStable(counts, func(a, b int) bool {
		return counts[a].Count > counts[b].Count
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	if counts == nil {
		counts = []ReporterCount{}
	}
	return counts
}

func weeklyTrend(iocs []IOC, now time.Time) []DayCount {
	today := now.UTC()
	days := make([]DayCount, TrendDays)
	slot := make(map[string]int, TrendDays)

	for i := 0; i < TrendDays; i++ {
		d := today.AddDate(0, 0, -(TrendDays - 1 - i)).Format(time.DateOnly)
		days[i] = DayCount{Date: d}
		slot[d] = i
	}

	for _, ioc := range iocs {
		if i, ok := slot[ioc.DateReported.UTC().Format(time.DateOnly)]; ok {
			days[i].Count++
		}
	}
	return days
}

func recentActivity(iocs []IOC, limit int) []IOC {
	sorted := make([]IOC, len(iocs))
	copy(sorted, iocs)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].DateReported.After(sorted[b].DateReported)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
