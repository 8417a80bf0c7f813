package service

import (
	"sort"
	"time"

	"gfi-bot/internal/github"
	"gfi-bot/internal/schema"
)

// monthStart truncates t to the first instant of its month in UTC.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthlySeries buckets event timestamps into per-month counts, ordered by
// month ascending. Months with no events are omitted rather than zero-filled.
func monthlySeries(events []time.Time) []schema.MonthlyCount {
	buckets := make(map[time.Time]int)
	for _, e := range events {
		buckets[monthStart(e)]++
	}

	series := make([]schema.MonthlyCount, 0, len(buckets))
	for month, count := range buckets {
		series = append(series, schema.MonthlyCount{Month: month, Count: count})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Month.Before(series[j].Month)
	})
	return series
}

// splitIssues separates real issues from pull requests, which GitHub returns
// on the same endpoint.
func splitIssues(items []github.Issue) (issues, pulls []github.Issue) {
	for _, it := range items {
		if it.IsPullRequest() {
			pulls = append(pulls, it)
		} else {
			issues = append(issues, it)
		}
	}
	return issues, pulls
}

// medianResolveDays computes the median open-to-close duration, in days, over
// closed issues. The second return is false when no issue has been resolved.
func medianResolveDays(issues []github.Issue) (float64, bool) {
	var durations []float64
	for _, issue := range issues {
		if issue.ClosedAt == nil {
			continue
		}
		d := issue.ClosedAt.Sub(issue.CreatedAt)
		if d < 0 {
			continue
		}
		durations = append(durations, d.Hours()/24)
	}
	if len(durations) == 0 {
		return 0, false
	}

	sort.Float64s(durations)
	mid := len(durations) / 2
	if len(durations)%2 == 1 {
		return durations[mid], true
	}
	return (durations[mid-1] + durations[mid]) / 2, true
}

// issueTimes projects issue creation timestamps for monthly bucketing.
func issueTimes(issues []github.Issue) []time.Time {
	times := make([]time.Time, 0, len(issues))
	for _, issue := range issues {
		times = append(times, issue.CreatedAt)
	}
	return times
}
