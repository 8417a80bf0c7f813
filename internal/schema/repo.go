package schema

import (
	"fmt"
	"time"
)

// RepoQuery identifies a repository by owner and name. It is a lookup key,
// never persisted, and both parts must be non-empty.
type RepoQuery struct {
	Owner string
	Name  string
}

func ValidateRepoQuery(raw map[string]any) (RepoQuery, error) {
	d := newDecoder(raw)
	q := RepoQuery{
		Owner: d.requiredString("owner"),
		Name:  d.requiredString("name"),
	}
	if q.Owner == "" && !d.hasFailure("owner") {
		d.fail("owner", "must not be empty")
	}
	if q.Name == "" && !d.hasFailure("name") {
		d.fail("name", "must not be empty")
	}
	return q, d.err()
}

func (q RepoQuery) Encode() map[string]any {
	return map[string]any{
		"owner": q.Owner,
		"name":  q.Name,
	}
}

// RepoBrief is the light-weight repository record used for search results
// and list views.
type RepoBrief struct {
	Name        string
	Owner       string
	Description Nullable[string]
	Language    Nullable[string]
	Topics      []string
}

func ValidateRepoBrief(raw map[string]any) (RepoBrief, error) {
	d := newDecoder(raw)
	b := decodeRepoBrief(d)
	return b, d.err()
}

func decodeRepoBrief(d *decoder) RepoBrief {
	return RepoBrief{
		Name:        d.requiredString("name"),
		Owner:       d.requiredString("owner"),
		Description: d.nullableString("description"),
		Language:    d.nullableString("language"),
		Topics:      d.requiredStringSlice("topics"),
	}
}

func (b RepoBrief) Encode() map[string]any {
	raw := map[string]any{
		"name":   b.Name,
		"owner":  b.Owner,
		"topics": encodeStrings(b.Topics),
	}
	putNullableString(raw, "description", b.Description)
	putNullableString(raw, "language", b.Language)
	return raw
}

// MonthlyCount is one data point of a month-granularity time series. The
// producer truncates month to month boundaries; that is not re-checked
// here, and neither is count sign (kept permissive for compatibility).
type MonthlyCount struct {
	Month time.Time
	Count int
}

func ValidateMonthlyCount(raw map[string]any) (MonthlyCount, error) {
	d := newDecoder(raw)
	m := MonthlyCount{
		Month: d.requiredTime("month"),
		Count: d.requiredInt("count"),
	}
	return m, d.err()
}

func (m MonthlyCount) Encode() map[string]any {
	return map[string]any{
		"month": encodeTime(m.Month),
		"count": m.Count,
	}
}

// RepoDetail is the full repository profile with activity history. Each
// series is ordered chronologically ascending by its producer.
type RepoDetail struct {
	Name           string
	Owner          string
	Description    Nullable[string]
	Language       Nullable[string]
	Topics         []string
	MonthlyStars   []MonthlyCount
	MonthlyCommits []MonthlyCount
	MonthlyIssues  []MonthlyCount
	MonthlyPulls   []MonthlyCount
}

func ValidateRepoDetail(raw map[string]any) (RepoDetail, error) {
	d := newDecoder(raw)
	brief := decodeRepoBrief(d)
	detail := RepoDetail{
		Name:           brief.Name,
		Owner:          brief.Owner,
		Description:    brief.Description,
		Language:       brief.Language,
		Topics:         brief.Topics,
		MonthlyStars:   decodeMonthlySeries(d, "monthly_stars"),
		MonthlyCommits: decodeMonthlySeries(d, "monthly_commits"),
		MonthlyIssues:  decodeMonthlySeries(d, "monthly_issues"),
		MonthlyPulls:   decodeMonthlySeries(d, "monthly_pulls"),
	}
	return detail, d.err()
}

func decodeMonthlySeries(d *decoder, key string) []MonthlyCount {
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.fail(key, reasonMissing)
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		d.fail(key, reasonArray)
		return nil
	}
	out := make([]MonthlyCount, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			d.fail(fmt.Sprintf("%s[%d]", key, i), reasonObject)
			continue
		}
		count, err := ValidateMonthlyCount(m)
		if err != nil {
			d.failNested(fmt.Sprintf("%s[%d]", key, i), err)
			continue
		}
		out = append(out, count)
	}
	return out
}

func (r RepoDetail) Encode() map[string]any {
	raw := map[string]any{
		"name":            r.Name,
		"owner":           r.Owner,
		"topics":          encodeStrings(r.Topics),
		"monthly_stars":   encodeMonthlySeries(r.MonthlyStars),
		"monthly_commits": encodeMonthlySeries(r.MonthlyCommits),
		"monthly_issues":  encodeMonthlySeries(r.MonthlyIssues),
		"monthly_pulls":   encodeMonthlySeries(r.MonthlyPulls),
	}
	putNullableString(raw, "description", r.Description)
	putNullableString(raw, "language", r.Language)
	return raw
}

func encodeMonthlySeries(series []MonthlyCount) []any {
	out := make([]any, len(series))
	for i, m := range series {
		out[i] = m.Encode()
	}
	return out
}

func encodeStrings(values []string) []any {
	out := make([]any, len(values))
	for i, s := range values {
		out[i] = s
	}
	return out
}

// RepoSort enumerates the supported repository ranking criteria.
type RepoSort string

const (
	RepoSortStars               RepoSort = "popularity"
	RepoSortGFIs                RepoSort = "gfis"
	RepoSortIssueCloseTime      RepoSort = "median_issue_resolve_time"
	RepoSortNewcomerResolveRate RepoSort = "newcomer_friendly"
)

// RepoSorts lists every member of the closed enumeration.
var RepoSorts = []RepoSort{
	RepoSortStars,
	RepoSortGFIs,
	RepoSortIssueCloseTime,
	RepoSortNewcomerResolveRate,
}

// ParseRepoSort validates enumeration membership; any other string fails.
func ParseRepoSort(s string) (RepoSort, error) {
	for _, sort := range RepoSorts {
		if s == string(sort) {
			return sort, nil
		}
	}
	return "", &ValidationError{Fields: []FieldError{{
		Path:   "sort",
		Reason: fmt.Sprintf("must be one of %q", RepoSorts),
	}}}
}

// UserSearchedRepo logs a user search hit against a repository. Increment
// is a search-hit counter; positivity is not enforced at this layer.
type UserSearchedRepo struct {
	Name      string
	Owner     string
	CreatedAt time.Time
	Increment int
}

func ValidateUserSearchedRepo(raw map[string]any) (UserSearchedRepo, error) {
	d := newDecoder(raw)
	s := UserSearchedRepo{
		Name:      d.requiredString("name"),
		Owner:     d.requiredString("owner"),
		CreatedAt: d.requiredTime("created_at"),
		Increment: d.requiredInt("increment"),
	}
	return s, d.err()
}

func (s UserSearchedRepo) Encode() map[string]any {
	return map[string]any{
		"name":       s.Name,
		"owner":      s.Owner,
		"created_at": encodeTime(s.CreatedAt),
		"increment":  s.Increment,
	}
}
