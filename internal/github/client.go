package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "gfi-bot/internal/errors"
)

var baseURL = "https://api.github.com"

// RateLimitInfo stores GitHub API rate limit information
type RateLimitInfo struct {
	Remaining int
	Reset     time.Time
	Limit     int
}

// Client handles interactions with the GitHub API
type Client struct {
	httpClient *http.Client
	token      string

	// Rate limiting
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

// NewClient creates a new GitHub API client
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
		token: token,
		rateLimit: RateLimitInfo{
			Remaining: 60, // Default GitHub API limit
			Reset:     time.Now().Add(time.Hour),
			Limit:     60,
		},
	}
}

// Repository represents the GitHub repository response
type Repository struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	Language        string    `json:"language"`
	Topics          []string  `json:"topics"`
	StargazersCount int       `json:"stargazers_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Issue represents the GitHub issue response. Pull requests arrive on the
// same endpoint and are told apart by the pull_request marker.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}

// IsPullRequest reports whether this item is a pull request.
func (i Issue) IsPullRequest() bool {
	return i.PullRequest != nil
}

// Stargazer represents one starring event from the star+json media type.
type Stargazer struct {
	StarredAt time.Time `json:"starred_at"`
}

// Commit represents the subset of the GitHub commit response the sync
// pipeline needs.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// User represents the GitHub user response
type User struct {
	ID              int64  `json:"id"`
	Login           string `json:"login"`
	Name            string `json:"name"`
	AvatarURL       string `json:"avatar_url"`
	Email           string `json:"email"`
	HTMLURL         string `json:"html_url"`
	TwitterUsername string `json:"twitter_username"`
}

// GetRateLimitInfo returns the current rate limit information
func (c *Client) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

// updateRateLimit updates rate limit information from response headers
func (c *Client) updateRateLimit(resp *http.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			c.rateLimit.Reset = time.Unix(val, 0)
		}
	}

	if limit := resp.Header.Get("X-RateLimit-Limit"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
}

// checkRateLimit checks if we should wait due to rate limiting
func (c *Client) checkRateLimit(ctx context.Context) error {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()

	if c.rateLimit.Remaining == 0 {
		waitTime := time.Until(c.rateLimit.Reset)
		if waitTime > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
				return nil
			}
		}
	}
	return nil
}

// doRequest performs an HTTP request with rate limit handling
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if err := c.checkRateLimit(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	c.updateRateLimit(resp)

	if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		return nil, fmt.Errorf("%w, resets at %v", apperrors.ErrRateLimit, c.rateLimit.Reset)
	}

	return resp, nil
}

// GetRepository fetches repository information from GitHub
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", baseURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(req, "")
	resp, err := c.doRequest(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var repository Repository
	if err := json.NewDecoder(resp.Body).Decode(&repository); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &repository, nil
}

// GetIssues fetches issues (and pull requests) updated since a specific
// time, walking every page.
func (c *Client) GetIssues(ctx context.Context, owner, name string, since time.Time) ([]Issue, error) {
	var allIssues []Issue
	page := 1
	perPage := 100 // GitHub's maximum per page

	for {
		url := fmt.Sprintf("%s/repos/%s/%s/issues?state=all&since=%s&page=%d&per_page=%d",
			baseURL, owner, name, since.Format(time.RFC3339), page, perPage)

		var pageIssues []Issue
		if err := c.getJSON(ctx, url, "", &pageIssues); err != nil {
			return nil, err
		}

		allIssues = append(allIssues, pageIssues...)

		if len(pageIssues) < perPage {
			break
		}
		page++
	}

	return allIssues, nil
}

// GetStargazers fetches starring events with their timestamps. Requires the
// star+json media type; GitHub caps the listing at 400 pages.
func (c *Client) GetStargazers(ctx context.Context, owner, name string) ([]Stargazer, error) {
	var allStars []Stargazer
	page := 1
	perPage := 100

	for {
		url := fmt.Sprintf("%s/repos/%s/%s/stargazers?page=%d&per_page=%d",
			baseURL, owner, name, page, perPage)

		var pageStars []Stargazer
		if err := c.getJSON(ctx, url, "application/vnd.github.star+json", &pageStars); err != nil {
			return nil, err
		}

		allStars = append(allStars, pageStars...)

		if len(pageStars) < perPage || page >= 400 {
			break
		}
		page++
	}

	return allStars, nil
}

// GetCommits fetches commits from GitHub since a specific time
func (c *Client) GetCommits(ctx context.Context, owner, name string, since time.Time) ([]Commit, error) {
	var allCommits []Commit
	page := 1
	perPage := 100

	for {
		url := fmt.Sprintf("%s/repos/%s/%s/commits?since=%s&page=%d&per_page=%d",
			baseURL, owner, name, since.Format(time.RFC3339), page, perPage)

		var pageCommits []Commit
		if err := c.getJSON(ctx, url, "", &pageCommits); err != nil {
			return nil, err
		}

		allCommits = append(allCommits, pageCommits...)

		if len(pageCommits) < perPage {
			break
		}
		page++
	}

	return allCommits, nil
}

// GetUser fetches a user's public profile
func (c *Client) GetUser(ctx context.Context, login string) (*User, error) {
	var user User
	url := fmt.Sprintf("%s/users/%s", baseURL, login)
	if err := c.getJSON(ctx, url, "", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// getJSON performs a GET request and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, url, accept string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(req, accept)
	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// setHeaders sets the required headers for GitHub API requests
func (c *Client) setHeaders(req *http.Request, accept string) {
	if accept == "" {
		accept = "application/vnd.github.v3+json"
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
}
