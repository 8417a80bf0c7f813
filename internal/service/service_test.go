package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gfi-bot/internal/config"
	"gfi-bot/internal/database"
	"gfi-bot/internal/github"
	"gfi-bot/internal/schema"
	"gfi-bot/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *testutil.TestPostgres {
	ctx := context.Background()
	pg, err := testutil.NewTestPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pg.Close(ctx))
	})
	return pg
}

func testDefaults() config.DefaultsConfig {
	return config.DefaultsConfig{
		NewcomerThreshold: 5,
		GFIThreshold:      0.5,
		NeedComment:       true,
		IssueTag:          "good first issue",
	}
}

func newTestService(db Database, gh GitHubClient) *Service {
	logger := zerolog.Nop()
	return New(gh, db, testDefaults(), 24*time.Hour, &logger)
}

// MockGitHubClient implements the minimal GitHub client interface for testing
type MockGitHubClient struct {
	getRepoErr   error
	getIssuesErr error
	issues       []github.Issue
	stargazers   []github.Stargazer
	commits      []github.Commit
	user         *github.User
}

func (m *MockGitHubClient) GetRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	if m.getRepoErr != nil {
		return nil, m.getRepoErr
	}
	return &github.Repository{
		ID:              1,
		Name:            name,
		FullName:        owner + "/" + name,
		Description:     "Test repo",
		Language:        "Go",
		Topics:          []string{"go"},
		StargazersCount: 7,
		CreatedAt:       time.Now().Add(-24 * time.Hour),
		UpdatedAt:       time.Now(),
	}, nil
}

func (m *MockGitHubClient) GetIssues(ctx context.Context, owner, name string, since time.Time) ([]github.Issue, error) {
	if m.getIssuesErr != nil {
		return nil, m.getIssuesErr
	}
	return m.issues, nil
}

func (m *MockGitHubClient) GetStargazers(ctx context.Context, owner, name string) ([]github.Stargazer, error) {
	return m.stargazers, nil
}

func (m *MockGitHubClient) GetCommits(ctx context.Context, owner, name string, since time.Time) ([]github.Commit, error) {
	return m.commits, nil
}

func (m *MockGitHubClient) GetUser(ctx context.Context, login string) (*github.User, error) {
	if m.user == nil {
		return nil, fmt.Errorf("user not found")
	}
	return m.user, nil
}

func (m *MockGitHubClient) GetRateLimitInfo() github.RateLimitInfo {
	return github.RateLimitInfo{
		Remaining: 1000,
		Limit:     5000,
		Reset:     time.Now().Add(time.Hour),
	}
}

func issueAt(number int, created time.Time, closedAfter time.Duration) github.Issue {
	issue := github.Issue{Number: number, State: "open", CreatedAt: created}
	if closedAfter > 0 {
		closed := created.Add(closedAfter)
		issue.ClosedAt = &closed
		issue.State = "closed"
	}
	return issue
}

func TestSyncRepository(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	jan := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		owner   string
		repo    string
		wantErr bool
		client  *MockGitHubClient
	}{
		{
			name:  "Valid repository sync",
			owner: "testowner",
			repo:  "testrepo",
			client: &MockGitHubClient{
				issues: []github.Issue{
					issueAt(1, jan, 48*time.Hour),
					issueAt(2, feb, 0),
				},
				stargazers: []github.Stargazer{{StarredAt: jan}, {StarredAt: feb}},
				commits:    []github.Commit{},
			},
		},
		{
			name:    "Repository not found upstream",
			owner:   "nonexistent",
			repo:    "nonexistent",
			wantErr: true,
			client:  &MockGitHubClient{getRepoErr: fmt.Errorf("repository not found")},
		},
		{
			name:    "Issue listing fails",
			owner:   "testowner",
			repo:    "testrepo",
			wantErr: true,
			client:  &MockGitHubClient{getIssuesErr: fmt.Errorf("API rate limit exceeded")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := database.NewFromDB(pg.DB)
			svc := newTestService(db, tt.client)

			err := svc.SyncRepository(context.Background(), tt.owner, tt.repo, time.Time{})
			if (err != nil) != tt.wantErr {
				t.Errorf("SyncRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSyncRepositoryStoresSeries(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	jan := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)

	db := database.NewFromDB(pg.DB)
	svc := newTestService(db, &MockGitHubClient{
		issues: []github.Issue{
			issueAt(1, jan, 24*time.Hour),
			issueAt(2, jan, 72*time.Hour),
			issueAt(3, feb, 0),
		},
		stargazers: []github.Stargazer{{StarredAt: jan}, {StarredAt: jan}, {StarredAt: feb}},
	})

	ctx := context.Background()
	require.NoError(t, svc.SyncRepository(ctx, "testowner", "testrepo", time.Time{}))

	detail, err := svc.GetRepositoryDetail(ctx, "testowner", "testrepo")
	require.NoError(t, err)

	require.Len(t, detail.MonthlyStars, 2)
	assert.Equal(t, 2, detail.MonthlyStars[0].Count)
	assert.Equal(t, 1, detail.MonthlyStars[1].Count)
	assert.True(t, detail.MonthlyStars[0].Month.Before(detail.MonthlyStars[1].Month))

	require.Len(t, detail.MonthlyIssues, 2)
	assert.Equal(t, 2, detail.MonthlyIssues[0].Count)

	repo, err := db.GetRepository(ctx, "testowner", "testrepo")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.True(t, repo.LastSyncedAt.Valid)
	// Median of the two resolved issues: 1 day and 3 days.
	require.True(t, repo.MedianResolveDays.Valid)
	assert.InDelta(t, 2.0, repo.MedianResolveDays.Float64, 0.001)
}

func TestOnboardRepository(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	db := database.NewFromDB(pg.DB)
	svc := newTestService(db, &MockGitHubClient{})
	ctx := context.Background()

	cfg, err := svc.OnboardRepository(ctx, "neworg", "newrepo")
	require.NoError(t, err)
	assert.Equal(t, "neworg/newrepo", cfg.UpdateConfig.TaskID)
	assert.Equal(t, 86400, cfg.UpdateConfig.Interval)
	assert.Equal(t, 0.5, cfg.RepoConfig.GFIThreshold)

	exists, err := svc.RepositoryExists(ctx, "neworg", "newrepo")
	require.NoError(t, err)
	assert.True(t, exists)

	// Re-onboarding keeps the stored config.
	saved := *cfg
	saved.RepoConfig.GFIThreshold = 0.9
	require.NoError(t, svc.SaveConfig(ctx, "neworg", "newrepo", saved))

	again, err := svc.OnboardRepository(ctx, "neworg", "newrepo")
	require.NoError(t, err)
	assert.Equal(t, 0.9, again.RepoConfig.GFIThreshold)
}

func TestRemoveRepository(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	db := database.NewFromDB(pg.DB)
	svc := newTestService(db, &MockGitHubClient{})
	ctx := context.Background()

	require.NoError(t, svc.RemoveRepository(ctx, "testowner", "testrepo"))

	exists, err := svc.RepositoryExists(ctx, "testowner", "testrepo")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = svc.GetConfig(ctx, "testowner", "testrepo")
	assert.Error(t, err)

	// Double delete reports an error.
	assert.Error(t, svc.RemoveRepository(ctx, "testowner", "testrepo"))
}

func TestGFIPredictions(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	db := database.NewFromDB(pg.DB)
	svc := newTestService(db, &MockGitHubClient{})
	ctx := context.Background()

	gfis, err := svc.ListGFIs(ctx, "testowner", "testrepo")
	require.NoError(t, err)
	require.Len(t, gfis, 2)
	// Most probable first.
	assert.Equal(t, 101, gfis[0].Number)
	assert.True(t, gfis[0].Title.Valid)
	assert.False(t, gfis[1].Title.Valid)

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	update := []schema.GFIBrief{{
		Name:        "testrepo",
		Owner:       "testowner",
		Number:      101,
		Threshold:   0.5,
		Probability: 0.97,
		LastUpdated: now,
		State:       schema.Value("open"),
		Title:       schema.Value("Fix typo in README"),
	}}
	require.NoError(t, svc.SaveGFIPredictions(ctx, update))

	gfis, err = svc.ListGFIs(ctx, "testowner", "testrepo")
	require.NoError(t, err)
	require.Len(t, gfis, 2)
	assert.Equal(t, 0.97, gfis[0].Probability)
}

func TestTrainingResultRoundTrip(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	db := database.NewFromDB(pg.DB)
	svc := newTestService(db, &MockGitHubClient{})
	ctx := context.Background()

	got, err := svc.GetTrainingResult(ctx, "testowner", "testrepo")
	require.NoError(t, err)
	assert.Equal(t, 900, got.IssuesTrain)
	assert.True(t, got.AUC.Valid)

	_, err = svc.GetTrainingResult(ctx, "testowner", "quietrepo")
	assert.Error(t, err)

	result := schema.TrainingResult{
		Owner:             "testowner",
		Name:              "quietrepo",
		IssuesTrain:       10,
		IssuesTest:        2,
		NResolvedIssues:   6,
		NNewcomerResolved: 1,
		Accuracy:          schema.Null[float64](),
		AUC:               schema.Null[float64](),
		LastUpdated:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.SaveTrainingResult(ctx, result))

	got, err = svc.GetTrainingResult(ctx, "testowner", "quietrepo")
	require.NoError(t, err)
	assert.Equal(t, 10, got.IssuesTrain)
	assert.False(t, got.Accuracy.Valid)
	assert.True(t, got.Accuracy.Present)
}

func TestRecordSearch(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	db := database.NewFromDB(pg.DB)
	svc := newTestService(db, &MockGitHubClient{})
	ctx := context.Background()

	// Fixture starts testowner/testrepo at 3 hits.
	count, err := svc.RecordSearch(ctx, schema.UserSearchedRepo{
		Name:      "testrepo",
		Owner:     "testowner",
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Increment: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	count, err = svc.RecordSearch(ctx, schema.UserSearchedRepo{
		Name:      "quietrepo",
		Owner:     "testowner",
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Increment: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListRepositoriesSorting(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	db := database.NewFromDB(pg.DB)
	svc := newTestService(db, &MockGitHubClient{})
	ctx := context.Background()

	byStars, err := svc.ListRepositories(ctx, schema.RepoSortStars, 10, 0)
	require.NoError(t, err)
	require.Len(t, byStars, 2)
	assert.Equal(t, "testrepo", byStars[0].Name)

	byResolve, err := svc.ListRepositories(ctx, schema.RepoSortIssueCloseTime, 10, 0)
	require.NoError(t, err)
	require.Len(t, byResolve, 2)
	// quietrepo has no median and sorts last.
	assert.Equal(t, "testrepo", byResolve[0].Name)
	assert.Equal(t, "quietrepo", byResolve[1].Name)
}

func TestGetUserInfo(t *testing.T) {
	svc := newTestService(nil, &MockGitHubClient{
		user: &github.User{
			ID:        583231,
			Login:     "octocat",
			Name:      "The Octocat",
			AvatarURL: "https://avatars.githubusercontent.com/u/583231",
		},
	})

	info, err := svc.GetUserInfo(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Equal(t, "583231", info.ID)
	assert.Equal(t, "octocat", info.Login)
	assert.True(t, info.AvatarURL.Valid)
	assert.False(t, info.Email.Valid)
	assert.True(t, info.Email.Present)
}

func TestApplyWebhookEvent(t *testing.T) {
	pg := setupTestDB(t)
	require.NoError(t, pg.LoadFixtures())

	db := database.NewFromDB(pg.DB)
	svc := newTestService(db, &MockGitHubClient{})
	ctx := context.Background()

	added := schema.GitHubAppWebhookResponse{
		Sender: map[string]any{"login": "octocat"},
		Action: "added",
		RepositoriesAdded: schema.Value([]schema.GitHubRepo{
			{FullName: "neworg/newrepo", Name: "newrepo"},
		}),
	}
	require.NoError(t, svc.ApplyWebhookEvent(ctx, added))

	exists, err := svc.RepositoryExists(ctx, "neworg", "newrepo")
	require.NoError(t, err)
	assert.True(t, exists)

	removed := schema.GitHubAppWebhookResponse{
		Sender: map[string]any{"login": "octocat"},
		Action: "removed",
		RepositoriesRemoved: schema.Value([]schema.GitHubRepo{
			{FullName: "neworg/newrepo", Name: "newrepo"},
		}),
	}
	require.NoError(t, svc.ApplyWebhookEvent(ctx, removed))

	exists, err = svc.RepositoryExists(ctx, "neworg", "newrepo")
	require.NoError(t, err)
	assert.False(t, exists)

	// Unknown actions are ignored.
	require.NoError(t, svc.ApplyWebhookEvent(ctx, schema.GitHubAppWebhookResponse{
		Sender: map[string]any{"login": "octocat"},
		Action: "ping",
	}))
}
