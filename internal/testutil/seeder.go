package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gfi-bot/internal/database"
	"gfi-bot/internal/github"
	"gfi-bot/internal/schema"
)

// SeedLiveRepository fetches a real repository from GitHub and stores it
// along with naive GFI predictions for its open issues carrying issueTag.
// Intended for integration tests that run against the live API.
func SeedLiveRepository(ctx context.Context, db *database.DB, token, owner, name, issueTag string) error {
	client := github.NewClient(token)

	repo, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("failed to fetch repository %s/%s: %w", owner, name, err)
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
	if err := db.UpsertRepository(ctx, stored); err != nil {
		return fmt.Errorf("failed to store repository record: %w", err)
	}

	// Recent issues only, to keep live runs quick.
	since := time.Now().AddDate(0, -3, 0)
	issues, err := client.GetIssues(ctx, owner, name, since)
	if err != nil {
		return fmt.Errorf("failed to fetch issues for %s/%s: %w", owner, name, err)
	}

	var gfis []schema.GFIBrief
	for _, issue := range issues {
		if issue.IsPullRequest() || issue.State != "open" || !hasLabel(issue, issueTag) {
			continue
		}
		gfis = append(gfis, schema.GFIBrief{
			Name:        name,
			Owner:       owner,
			Number:      issue.Number,
			Threshold:   0.5,
			Probability: 1.0,
			LastUpdated: time.Now().UTC(),
			State:       schema.Value(issue.State),
			Title:       schema.Value(issue.Title),
		})
	}
	if len(gfis) > 0 {
		if err := db.UpsertGFIs(ctx, gfis); err != nil {
			return fmt.Errorf("failed to store seeded predictions: %w", err)
		}
	}

	return nil
}

func hasLabel(issue github.Issue, tag string) bool {
	for _, label := range issue.Labels {
		if strings.EqualFold(label.Name, tag) {
			return true
		}
	}
	return false
}
