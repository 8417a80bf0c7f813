package service

import (
	"testing"
	"time"

	"gfi-bot/internal/github"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlySeries(t *testing.T) {
	events := []time.Time{
		time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 28, 23, 59, 0, 0, time.UTC),
		// Local-zone timestamps land in the UTC month they belong to.
		time.Date(2026, 1, 31, 23, 0, 0, 0, time.FixedZone("", -2*3600)),
	}

	series := monthlySeries(events)
	require.Len(t, series, 2)

	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), series[0].Month)
	assert.Equal(t, 2, series[0].Count)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), series[1].Month)
	assert.Equal(t, 2, series[1].Count)
}

func TestMonthlySeriesEmpty(t *testing.T) {
	assert.Empty(t, monthlySeries(nil))
}

func TestMedianResolveDays(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	closed := func(after time.Duration) github.Issue {
		c := created.Add(after)
		return github.Issue{CreatedAt: created, ClosedAt: &c, State: "closed"}
	}

	tests := []struct {
		name   string
		issues []github.Issue
		want   float64
		ok     bool
	}{
		{
			name:   "odd count",
			issues: []github.Issue{closed(24 * time.Hour), closed(72 * time.Hour), closed(240 * time.Hour)},
			want:   3,
			ok:     true,
		},
		{
			name:   "even count averages the middle pair",
			issues: []github.Issue{closed(24 * time.Hour), closed(72 * time.Hour)},
			want:   2,
			ok:     true,
		},
		{
			name:   "open issues are skipped",
			issues: []github.Issue{{CreatedAt: created, State: "open"}, closed(48 * time.Hour)},
			want:   2,
			ok:     true,
		},
		{
			name:   "nothing resolved",
			issues: []github.Issue{{CreatedAt: created, State: "open"}},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := medianResolveDays(tt.issues)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestSplitIssues(t *testing.T) {
	pr := github.Issue{Number: 1}
	pr.PullRequest = &struct {
		URL string `json:"url"`
	}{URL: "https://api.github.com/repos/o/r/pulls/1"}
	issue := github.Issue{Number: 2}

	issues, pulls := splitIssues([]github.Issue{pr, issue})
	require.Len(t, issues, 1)
	require.Len(t, pulls, 1)
	assert.Equal(t, 2, issues[0].Number)
	assert.Equal(t, 1, pulls[0].Number)
}
