package service

import (
	"context"
	"time"

	"gfi-bot/internal/database"
	"gfi-bot/internal/github"
	"gfi-bot/internal/schema"
)

// GitHubClient defines the interface for GitHub operations
type GitHubClient interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	GetIssues(ctx context.Context, owner, name string, since time.Time) ([]github.Issue, error)
	GetStargazers(ctx context.Context, owner, name string) ([]github.Stargazer, error)
	GetCommits(ctx context.Context, owner, name string, since time.Time) ([]github.Commit, error)
	GetUser(ctx context.Context, login string) (*github.User, error)
	GetRateLimitInfo() github.RateLimitInfo
}

// Database defines the interface for database operations
type Database interface {
	UpsertRepository(ctx context.Context, repo *database.Repository) error
	GetRepository(ctx context.Context, owner, name string) (*database.Repository, error)
	ListRepositories(ctx context.Context, sort schema.RepoSort, limit, offset int) ([]*database.Repository, error)
	DeleteRepository(ctx context.Context, owner, name string) error
	UpdateLastSynced(ctx context.Context, owner, name string, syncedAt time.Time) error

	ReplaceMonthlyCounts(ctx context.Context, repoID int64, kind string, counts []schema.MonthlyCount) error
	GetMonthlyCounts(ctx context.Context, repoID int64, kind string) ([]schema.MonthlyCount, error)
	ListSyncTargets(ctx context.Context) ([]database.SyncTarget, error)

	UpsertGFIs(ctx context.Context, gfis []schema.GFIBrief) error
	ListGFIs(ctx context.Context, owner, name string) ([]schema.GFIBrief, error)
	UpsertTrainingResult(ctx context.Context, result schema.TrainingResult) error
	GetTrainingResult(ctx context.Context, owner, name string) (*schema.TrainingResult, error)

	SaveRepoConfig(ctx context.Context, owner, name string, cfg schema.Config) error
	GetRepoConfig(ctx context.Context, owner, name string) (*schema.Config, error)
	RecordSearch(ctx context.Context, search schema.UserSearchedRepo) error
	GetSearchCount(ctx context.Context, owner, name string) (int, error)

	// Connection management
	Close() error
}
