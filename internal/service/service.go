package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gfi-bot/internal/config"
	"gfi-bot/internal/database"
	"gfi-bot/internal/errors"
	"gfi-bot/internal/schema"

	"github.com/rs/zerolog"
)

// Package service provides the core business logic for the GFI recommendation service

// Monthly series kinds stored per repository.
const (
	KindStars   = "stars"
	KindCommits = "commits"
	KindIssues  = "issues"
	KindPulls   = "pulls"
)

// Service handles the core business logic
type Service struct {
	github   GitHubClient
	db       Database
	defaults config.DefaultsConfig
	interval time.Duration
	logger   *zerolog.Logger
}

// New creates a new service instance. defaults seed the per-repository
// config written at onboarding; interval is the default sync cadence.
func New(githubClient GitHubClient, db Database, defaults config.DefaultsConfig, interval time.Duration, logger *zerolog.Logger) *Service {
	return &Service{
		github:   githubClient,
		db:       db,
		defaults: defaults,
		interval: interval,
		logger:   logger,
	}
}

// DB returns the database instance
func (s *Service) DB() Database {
	return s.db
}

// Close closes the service and its resources
func (s *Service) Close() error {
	return s.db.Close()
}

// SyncRepository refreshes a repository's metadata and monthly activity
// series from GitHub. since bounds the issue and commit history fetched;
// stargazers are always fetched from the beginning because GitHub offers
// no since parameter for them.
func (s *Service) SyncRepository(ctx context.Context, owner, name string, since time.Time) error {
	repo, err := s.github.GetRepository(ctx, owner, name)
	if err != nil {
		return errors.NewGitHubError("GetRepository", fmt.Sprintf("%s/%s", owner, name), err)
	}

	items, err := s.github.GetIssues(ctx, owner, name, since)
	if err != nil {
		return errors.NewGitHubError("GetIssues", fmt.Sprintf("%s/%s", owner, name), err)
	}
	issues, pulls := splitIssues(items)

	stargazers, err := s.github.GetStargazers(ctx, owner, name)
	if err != nil {
		return errors.NewGitHubError("GetStargazers", fmt.Sprintf("%s/%s", owner, name), err)
	}

	commits, err := s.github.GetCommits(ctx, owner, name, since)
	if err != nil {
		return errors.NewGitHubError("GetCommits", fmt.Sprintf("%s/%s", owner, name), err)
	}

	stored := &database.Repository{
		Owner:      owner,
		Name:       repo.Name,
		Topics:     repo.Topics,
		StarsCount: repo.StargazersCount,
	}
	if repo.Description != "" {
		stored.Description = &repo.Description
	}
	if repo.Language != "" {
		stored.Language = &repo.Language
	}
	if median, ok := medianResolveDays(issues); ok {
		stored.MedianResolveDays.Float64 = median
		stored.MedianResolveDays.Valid = true
	}

	if err := s.db.UpsertRepository(ctx, stored); err != nil {
		return errors.NewRepositoryError(owner, name, "UpsertRepository", err)
	}

	starTimes := make([]time.Time, 0, len(stargazers))
	for _, sg := range stargazers {
		starTimes = append(starTimes, sg.StarredAt)
	}
	commitTimes := make([]time.Time, 0, len(commits))
	for _, c := range commits {
		commitTimes = append(commitTimes, c.Commit.Committer.Date)
	}

	series := map[string][]schema.MonthlyCount{
		KindStars:   monthlySeries(starTimes),
		KindCommits: monthlySeries(commitTimes),
		KindIssues:  monthlySeries(issueTimes(issues)),
		KindPulls:   monthlySeries(issueTimes(pulls)),
	}
	for kind, counts := range series {
		if err := s.db.ReplaceMonthlyCounts(ctx, stored.ID, kind, counts); err != nil {
			return errors.NewRepositoryError(owner, name, "ReplaceMonthlyCounts "+kind, err)
		}
	}

	if err := s.db.UpdateLastSynced(ctx, owner, name, time.Now().UTC()); err != nil {
		return errors.NewRepositoryError(owner, name, "UpdateLastSynced", err)
	}

	s.logger.Info().
		Str("owner", owner).
		Str("name", name).
		Int("issues", len(issues)).
		Int("pulls", len(pulls)).
		Int("stars", len(stargazers)).
		Int("commits", len(commits)).
		Msg("Repository synchronized")

	return nil
}

// OnboardRepository verifies the repository exists on GitHub, stores a
// minimal row for it, and writes the default per-repository config. It is
// idempotent; re-onboarding refreshes the row but keeps an existing config.
func (s *Service) OnboardRepository(ctx context.Context, owner, name string) (*schema.Config, error) {
	repo, err := s.github.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, errors.NewGitHubError("GetRepository", fmt.Sprintf("%s/%s", owner, name), err)
	}

	stored := &database.Repository{
		Owner:      owner,
		Name:       repo.Name,
		Topics:     repo.Topics,
		StarsCount: repo.StargazersCount,
	}
	if repo.Description != "" {
		stored.Description = &repo.Description
	}
	if repo.Language != "" {
		stored.Language = &repo.Language
	}
	if err := s.db.UpsertRepository(ctx, stored); err != nil {
		return nil, errors.NewRepositoryError(owner, name, "UpsertRepository", err)
	}

	existing, err := s.db.GetRepoConfig(ctx, owner, name)
	if err != nil {
		return nil, errors.NewDatabaseError("GetRepoConfig", err)
	}
	if existing != nil {
		return existing, nil
	}

	cfg := s.defaultConfig(owner, name)
	if err := s.db.SaveRepoConfig(ctx, owner, name, cfg); err != nil {
		return nil, errors.NewRepositoryError(owner, name, "SaveRepoConfig", err)
	}

	s.logger.Info().
		Str("owner", owner).
		Str("name", name).
		Msg("Repository onboarded")

	return &cfg, nil
}

// defaultConfig builds the config written for a freshly onboarded repository.
func (s *Service) defaultConfig(owner, name string) schema.Config {
	return schema.Config{
		UpdateConfig: schema.UpdateConfig{
			TaskID:    fmt.Sprintf("%s/%s", owner, name),
			Interval:  int(s.interval.Seconds()),
			BeginTime: time.Now().UTC(),
		},
		RepoConfig: schema.RepoConfig{
			NewcomerThreshold: s.defaults.NewcomerThreshold,
			GFIThreshold:      s.defaults.GFIThreshold,
			NeedComment:       s.defaults.NeedComment,
			IssueTag:          s.defaults.IssueTag,
		},
	}
}

// RemoveRepository deletes a repository and all its dependent rows.
func (s *Service) RemoveRepository(ctx context.Context, owner, name string) error {
	if err := s.db.DeleteRepository(ctx, owner, name); err != nil {
		return errors.NewRepositoryError(owner, name, "DeleteRepository", err)
	}
	s.logger.Info().
		Str("owner", owner).
		Str("name", name).
		Msg("Repository removed")
	return nil
}

// RepositoryExists reports whether the repository has been onboarded.
func (s *Service) RepositoryExists(ctx context.Context, owner, name string) (bool, error) {
	repo, err := s.db.GetRepository(ctx, owner, name)
	if err != nil {
		return false, errors.NewDatabaseError("GetRepository", err)
	}
	return repo != nil, nil
}

// ListRepositories returns stored repositories as wire briefs, ordered by
// the requested sort.
func (s *Service) ListRepositories(ctx context.Context, sort schema.RepoSort, limit, offset int) ([]schema.RepoBrief, error) {
	repos, err := s.db.ListRepositories(ctx, sort, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("ListRepositories", err)
	}

	briefs := make([]schema.RepoBrief, 0, len(repos))
	for _, repo := range repos {
		briefs = append(briefs, repo.Brief())
	}
	return briefs, nil
}

// GetRepositoryDetail returns the brief plus the four monthly activity
// series. Missing repositories return ErrNotFound.
func (s *Service) GetRepositoryDetail(ctx context.Context, owner, name string) (*schema.RepoDetail, error) {
	repo, err := s.db.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, errors.NewDatabaseError("GetRepository", err)
	}
	if repo == nil {
		return nil, errors.NewRepositoryError(owner, name, "GetRepository", errors.ErrNotFound)
	}

	brief := repo.Brief()
	detail := &schema.RepoDetail{
		Name:        brief.Name,
		Owner:       brief.Owner,
		Description: brief.Description,
		Language:    brief.Language,
		Topics:      brief.Topics,
	}

	for kind, dst := range map[string]*[]schema.MonthlyCount{
		KindStars:   &detail.MonthlyStars,
		KindCommits: &detail.MonthlyCommits,
		KindIssues:  &detail.MonthlyIssues,
		KindPulls:   &detail.MonthlyPulls,
	} {
		counts, err := s.db.GetMonthlyCounts(ctx, repo.ID, kind)
		if err != nil {
			return nil, errors.NewDatabaseError("GetMonthlyCounts "+kind, err)
		}
		*dst = counts
	}
	return detail, nil
}

// ListGFIs returns the stored predictions for a repository, most probable
// first.
func (s *Service) ListGFIs(ctx context.Context, owner, name string) ([]schema.GFIBrief, error) {
	gfis, err := s.db.ListGFIs(ctx, owner, name)
	if err != nil {
		return nil, errors.NewGFIError(owner, name, 0, "ListGFIs", err)
	}
	return gfis, nil
}

// SaveGFIPredictions stores a batch of predictions, replacing any previous
// prediction for the same issue.
func (s *Service) SaveGFIPredictions(ctx context.Context, gfis []schema.GFIBrief) error {
	if len(gfis) == 0 {
		return nil
	}
	if err := s.db.UpsertGFIs(ctx, gfis); err != nil {
		return errors.NewGFIError(gfis[0].Owner, gfis[0].Name, 0, "UpsertGFIs", err)
	}
	return nil
}

// GetTrainingResult returns the latest model metrics for a repository, or
// ErrNotFound when no training has been reported.
func (s *Service) GetTrainingResult(ctx context.Context, owner, name string) (*schema.TrainingResult, error) {
	result, err := s.db.GetTrainingResult(ctx, owner, name)
	if err != nil {
		return nil, errors.NewDatabaseError("GetTrainingResult", err)
	}
	if result == nil {
		return nil, errors.NewRepositoryError(owner, name, "GetTrainingResult", errors.ErrNotFound)
	}
	return result, nil
}

// SaveTrainingResult stores the metrics reported by a training run.
func (s *Service) SaveTrainingResult(ctx context.Context, result schema.TrainingResult) error {
	if err := s.db.UpsertTrainingResult(ctx, result); err != nil {
		return errors.NewDatabaseError("UpsertTrainingResult", err)
	}
	return nil
}

// GetConfig returns the per-repository config, or ErrNotFound when the
// repository has no config row.
func (s *Service) GetConfig(ctx context.Context, owner, name string) (*schema.Config, error) {
	cfg, err := s.db.GetRepoConfig(ctx, owner, name)
	if err != nil {
		return nil, errors.NewDatabaseError("GetRepoConfig", err)
	}
	if cfg == nil {
		return nil, errors.NewRepositoryError(owner, name, "GetRepoConfig", errors.ErrNotFound)
	}
	return cfg, nil
}

// SaveConfig replaces the per-repository config.
func (s *Service) SaveConfig(ctx context.Context, owner, name string, cfg schema.Config) error {
	if err := s.db.SaveRepoConfig(ctx, owner, name, cfg); err != nil {
		return errors.NewRepositoryError(owner, name, "SaveRepoConfig", err)
	}
	return nil
}

// RecordSearch accumulates a user search event for popularity tracking and
// returns the repository's total search count.
func (s *Service) RecordSearch(ctx context.Context, search schema.UserSearchedRepo) (int, error) {
	if err := s.db.RecordSearch(ctx, search); err != nil {
		return 0, errors.NewDatabaseError("RecordSearch", err)
	}
	count, err := s.db.GetSearchCount(ctx, search.Owner, search.Name)
	if err != nil {
		return 0, errors.NewDatabaseError("GetSearchCount", err)
	}
	return count, nil
}

// GetUserInfo fetches a GitHub user and maps it to the wire record. Fields
// GitHub omits for the user come back as explicit nulls.
func (s *Service) GetUserInfo(ctx context.Context, login string) (*schema.GitHubUserInfo, error) {
	user, err := s.github.GetUser(ctx, login)
	if err != nil {
		return nil, errors.NewGitHubError("GetUser", login, err)
	}

	info := &schema.GitHubUserInfo{
		ID:              strconv.FormatInt(user.ID, 10),
		Login:           user.Login,
		Name:            user.Name,
		AvatarURL:       optionalString(user.AvatarURL),
		Email:           optionalString(user.Email),
		URL:             optionalString(user.HTMLURL),
		TwitterUsername: optionalString(user.TwitterUsername),
	}
	return info, nil
}

func optionalString(s string) schema.Nullable[string] {
	if s == "" {
		return schema.Null[string]()
	}
	return schema.Value(s)
}

// ApplyWebhookEvent reacts to a GitHub App installation event. Added
// repositories are onboarded with default config; removed ones are deleted.
// Unrecognized actions are logged and ignored.
func (s *Service) ApplyWebhookEvent(ctx context.Context, event schema.GitHubAppWebhookResponse) error {
	switch event.Action {
	case "created", "added":
		for _, repo := range webhookRepos(event.Repositories, event.RepositoriesAdded) {
			if repo.Owner() == "" {
				s.logger.Warn().
					Str("full_name", repo.FullName).
					Msg("Skipping webhook repository with malformed full name")
				continue
			}
			if _, err := s.OnboardRepository(ctx, repo.Owner(), repo.Name); err != nil {
				return err
			}
		}
	case "deleted", "removed":
		for _, repo := range webhookRepos(event.Repositories, event.RepositoriesRemoved) {
			if repo.Owner() == "" {
				continue
			}
			if err := s.RemoveRepository(ctx, repo.Owner(), repo.Name); err != nil {
				return err
			}
		}
	default:
		s.logger.Debug().
			Str("action", event.Action).
			Msg("Ignoring webhook action")
	}
	return nil
}

// webhookRepos merges the repository lists an installation event may carry.
func webhookRepos(lists ...schema.Nullable[[]schema.GitHubRepo]) []schema.GitHubRepo {
	var repos []schema.GitHubRepo
	for _, list := range lists {
		if list.Present && list.Valid {
			repos = append(repos, list.Value...)
		}
	}
	return repos
}
