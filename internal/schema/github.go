package schema

import (
	"fmt"
	"strings"
)

// GitHubRepo maps GitHub's "owner/repo" naming back to the internal owner
// field. Owner is derived, never stored: it is not an input field and is
// not emitted on encode.
type GitHubRepo struct {
	FullName string
	Name     string
}

// Owner returns the segment of FullName before the first separator. It is
// recomputed on every call. For a FullName without a separator it returns
// "" rather than echoing the whole string back; validation rejects such
// input before it gets here.
func (r GitHubRepo) Owner() string {
	owner, _, found := strings.Cut(r.FullName, "/")
	if !found {
		return ""
	}
	return owner
}

func ValidateGitHubRepo(raw map[string]any) (GitHubRepo, error) {
	d := newDecoder(raw)
	r := GitHubRepo{
		FullName: d.requiredString("full_name"),
		Name:     d.requiredString("name"),
	}
	if r.FullName != "" && !strings.Contains(r.FullName, "/") {
		d.fail("full_name", `must contain an "owner/name" separator`)
	}
	return r, d.err()
}

func (r GitHubRepo) Encode() map[string]any {
	return map[string]any{
		"full_name": r.FullName,
		"name":      r.Name,
	}
}

// GitHubAppWebhookResponse is the deliberately loose shape of GitHub App
// webhook deliveries. Payloads vary by action; only the known skeleton is
// validated here and the open-ended sender/issue objects pass through
// opaquely. Correlating action with which optional fields are populated is
// the consumer's job.
type GitHubAppWebhookResponse struct {
	Sender              map[string]any
	Action              string
	Issue               Nullable[map[string]any]
	Repository          Nullable[GitHubRepo]
	Repositories        Nullable[[]GitHubRepo]
	RepositoriesAdded   Nullable[[]GitHubRepo]
	RepositoriesRemoved Nullable[[]GitHubRepo]
}

func ValidateGitHubAppWebhookResponse(raw map[string]any) (GitHubAppWebhookResponse, error) {
	d := newDecoder(raw)
	w := GitHubAppWebhookResponse{
		Sender:              d.requiredObject("sender"),
		Action:              d.requiredString("action"),
		Issue:               d.nullableObject("issue"),
		Repository:          decodeNullableGitHubRepo(d, "repository"),
		Repositories:        decodeGitHubRepoList(d, "repositories"),
		RepositoriesAdded:   decodeGitHubRepoList(d, "repositories_added"),
		RepositoriesRemoved: decodeGitHubRepoList(d, "repositories_removed"),
	}
	return w, d.err()
}

func decodeNullableGitHubRepo(d *decoder, key string) Nullable[GitHubRepo] {
	v, ok := d.raw[key]
	if !ok {
		return Nullable[GitHubRepo]{}
	}
	if v == nil {
		return Null[GitHubRepo]()
	}
	m, ok := v.(map[string]any)
	if !ok {
		d.fail(key, reasonObject)
		return Nullable[GitHubRepo]{}
	}
	repo, err := ValidateGitHubRepo(m)
	if err != nil {
		d.failNested(key, err)
		return Nullable[GitHubRepo]{}
	}
	return Value(repo)
}

func decodeGitHubRepoList(d *decoder, key string) Nullable[[]GitHubRepo] {
	v, ok := d.raw[key]
	if !ok {
		return Nullable[[]GitHubRepo]{}
	}
	if v == nil {
		return Null[[]GitHubRepo]()
	}
	items, ok := v.([]any)
	if !ok {
		d.fail(key, reasonArray)
		return Nullable[[]GitHubRepo]{}
	}
	out := make([]GitHubRepo, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			d.fail(fmt.Sprintf("%s[%d]", key, i), reasonObject)
			continue
		}
		repo, err := ValidateGitHubRepo(m)
		if err != nil {
			d.failNested(fmt.Sprintf("%s[%d]", key, i), err)
			continue
		}
		out = append(out, repo)
	}
	return Value(out)
}

func (w GitHubAppWebhookResponse) Encode() map[string]any {
	raw := map[string]any{
		"sender": w.Sender,
		"action": w.Action,
	}
	if w.Issue.Present {
		if w.Issue.Valid {
			raw["issue"] = w.Issue.Value
		} else {
			raw["issue"] = nil
		}
	}
	if w.Repository.Present {
		if w.Repository.Valid {
			raw["repository"] = w.Repository.Value.Encode()
		} else {
			raw["repository"] = nil
		}
	}
	putGitHubRepoList(raw, "repositories", w.Repositories)
	putGitHubRepoList(raw, "repositories_added", w.RepositoriesAdded)
	putGitHubRepoList(raw, "repositories_removed", w.RepositoriesRemoved)
	return raw
}

func putGitHubRepoList(raw map[string]any, key string, repos Nullable[[]GitHubRepo]) {
	if !repos.Present {
		return
	}
	if !repos.Valid {
		raw[key] = nil
		return
	}
	items := make([]any, len(repos.Value))
	for i, r := range repos.Value {
		items[i] = r.Encode()
	}
	raw[key] = items
}

// GitHubUserInfo is the profile data kept for a GitHub account. ID is the
// stable identity key within this system.
type GitHubUserInfo struct {
	ID              string
	Login           string
	Name            string
	AvatarURL       Nullable[string]
	Email           Nullable[string]
	URL             Nullable[string]
	TwitterUsername Nullable[string]
}

func ValidateGitHubUserInfo(raw map[string]any) (GitHubUserInfo, error) {
	d := newDecoder(raw)
	u := GitHubUserInfo{
		ID:              d.requiredString("id"),
		Login:           d.requiredString("login"),
		Name:            d.requiredString("name"),
		AvatarURL:       d.nullableString("avatar_url"),
		Email:           d.nullableString("email"),
		URL:             d.nullableString("url"),
		TwitterUsername: d.nullableString("twitter_username"),
	}
	return u, d.err()
}

func (u GitHubUserInfo) Encode() map[string]any {
	raw := map[string]any{
		"id":    u.ID,
		"login": u.Login,
		"name":  u.Name,
	}
	putNullableString(raw, "avatar_url", u.AvatarURL)
	putNullableString(raw, "email", u.Email)
	putNullableString(raw, "url", u.URL)
	putNullableString(raw, "twitter_username", u.TwitterUsername)
	return raw
}
