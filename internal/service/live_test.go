package service

import (
	"context"
	"os"
	"testing"

	"gfi-bot/internal/database"
	"gfi-bot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLiveRepositorySeeding exercises the full seed path against the real
// GitHub API. It only runs when GITHUB_TOKEN is set.
func TestLiveRepositorySeeding(t *testing.T) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		t.Skip("Skipping test: GITHUB_TOKEN not set")
	}

	ctx := context.Background()
	pg := setupTestDB(t)

	db := database.NewFromDB(pg.DB)
	err := testutil.SeedLiveRepository(ctx, db, token, "microsoft", "vscode", "good first issue")
	require.NoError(t, err, "Failed to seed live repository data")

	svc := newTestService(db, &MockGitHubClient{})

	t.Run("RepositoryStored", func(t *testing.T) {
		detail, err := svc.GetRepositoryDetail(ctx, "microsoft", "vscode")
		require.NoError(t, err)
		assert.Equal(t, "vscode", detail.Name)
		assert.True(t, detail.Language.Valid)
	})

	t.Run("PredictionsOrdered", func(t *testing.T) {
		gfis, err := svc.ListGFIs(ctx, "microsoft", "vscode")
		require.NoError(t, err)
		for i := 1; i < len(gfis); i++ {
			assert.GreaterOrEqual(t, gfis[i-1].Probability, gfis[i].Probability)
		}
		for _, g := range gfis {
			assert.Equal(t, "microsoft", g.Owner)
			assert.Positive(t, g.Number)
		}
	})
}
