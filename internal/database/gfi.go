package database

import (
	"context"
	"database/sql"

	"gfi-bot/internal/schema"
)

// UpsertGFIs stores classifier output, replacing earlier predictions for
// the same issues.
func (d *DB) UpsertGFIs(ctx context.Context, gfis []schema.GFIBrief) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO gfis (owner, name, number, threshold, probability, last_updated, state, title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner, name, number) DO UPDATE SET
			threshold = EXCLUDED.threshold,
			probability = EXCLUDED.probability,
			last_updated = EXCLUDED.last_updated,
			state = EXCLUDED.state,
			title = EXCLUDED.title`

	for _, g := range gfis {
		if _, err := tx.ExecContext(ctx, query,
			g.Owner, g.Name, g.Number, g.Threshold, g.Probability,
			g.LastUpdated, nullableToSQL(g.State), nullableToSQL(g.Title),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListGFIs returns predictions for a repository, highest probability first.
func (d *DB) ListGFIs(ctx context.Context, owner, name string) ([]schema.GFIBrief, error) {
	query := `
		SELECT owner, name, number, threshold, probability, last_updated, state, title
		FROM gfis
		WHERE owner = $1 AND name = $2
		ORDER BY probability DESC, number ASC`

	rows, err := d.db.QueryContext(ctx, query, owner, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gfis := []schema.GFIBrief{}
	for rows.Next() {
		var g schema.GFIBrief
		var state, title sql.NullString
		if err := rows.Scan(
			&g.Owner, &g.Name, &g.Number, &g.Threshold, &g.Probability,
			&g.LastUpdated, &state, &title,
		); err != nil {
			return nil, err
		}
		g.LastUpdated = g.LastUpdated.UTC()
		g.State = sqlToNullable(state)
		g.Title = sqlToNullable(title)
		gfis = append(gfis, g)
	}
	return gfis, rows.Err()
}

// UpsertTrainingResult stores model metrics for a repository.
func (d *DB) UpsertTrainingResult(ctx context.Context, r schema.TrainingResult) error {
	query := `
		INSERT INTO training_results (
			owner, name, issues_train, issues_test,
			n_resolved_issues, n_newcomer_resolved, accuracy, auc, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner, name) DO UPDATE SET
			issues_train = EXCLUDED.issues_train,
			issues_test = EXCLUDED.issues_test,
			n_resolved_issues = EXCLUDED.n_resolved_issues,
			n_newcomer_resolved = EXCLUDED.n_newcomer_resolved,
			accuracy = EXCLUDED.accuracy,
			auc = EXCLUDED.auc,
			last_updated = EXCLUDED.last_updated`

	_, err := d.db.ExecContext(ctx, query,
		r.Owner, r.Name, r.IssuesTrain, r.IssuesTest,
		r.NResolvedIssues, r.NNewcomerResolved,
		nullableFloatToSQL(r.Accuracy), nullableFloatToSQL(r.AUC), r.LastUpdated,
	)
	return err
}

// GetTrainingResult retrieves model metrics, nil when absent.
func (d *DB) GetTrainingResult(ctx context.Context, owner, name string) (*schema.TrainingResult, error) {
	query := `
		SELECT owner, name, issues_train, issues_test,
			n_resolved_issues, n_newcomer_resolved, accuracy, auc, last_updated
		FROM training_results WHERE owner = $1 AND name = $2`

	var r schema.TrainingResult
	var accuracy, auc sql.NullFloat64
	err := d.db.QueryRowContext(ctx, query, owner, name).Scan(
		&r.Owner, &r.Name, &r.IssuesTrain, &r.IssuesTest,
		&r.NResolvedIssues, &r.NNewcomerResolved, &accuracy, &auc, &r.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.LastUpdated = r.LastUpdated.UTC()
	r.Accuracy = sqlToNullableFloat(accuracy)
	r.AUC = sqlToNullableFloat(auc)
	return &r, nil
}

// SaveRepoConfig stores the per-repository config pair.
func (d *DB) SaveRepoConfig(ctx context.Context, owner, name string, cfg schema.Config) error {
	query := `
		INSERT INTO repo_configs (
			owner, name, task_id, interval, begin_time,
			newcomer_threshold, gfi_threshold, need_comment, issue_tag
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner, name) DO UPDATE SET
			task_id = EXCLUDED.task_id,
			interval = EXCLUDED.interval,
			begin_time = EXCLUDED.begin_time,
			newcomer_threshold = EXCLUDED.newcomer_threshold,
			gfi_threshold = EXCLUDED.gfi_threshold,
			need_comment = EXCLUDED.need_comment,
			issue_tag = EXCLUDED.issue_tag`

	_, err := d.db.ExecContext(ctx, query,
		owner, name,
		cfg.UpdateConfig.TaskID, cfg.UpdateConfig.Interval, cfg.UpdateConfig.BeginTime,
		cfg.RepoConfig.NewcomerThreshold, cfg.RepoConfig.GFIThreshold,
		cfg.RepoConfig.NeedComment, cfg.RepoConfig.IssueTag,
	)
	return err
}

// GetRepoConfig retrieves the per-repository config, nil when absent.
func (d *DB) GetRepoConfig(ctx context.Context, owner, name string) (*schema.Config, error) {
	query := `
		SELECT task_id, interval, begin_time,
			newcomer_threshold, gfi_threshold, need_comment, issue_tag
		FROM repo_configs WHERE owner = $1 AND name = $2`

	var cfg schema.Config
	err := d.db.QueryRowContext(ctx, query, owner, name).Scan(
		&cfg.UpdateConfig.TaskID, &cfg.UpdateConfig.Interval, &cfg.UpdateConfig.BeginTime,
		&cfg.RepoConfig.NewcomerThreshold, &cfg.RepoConfig.GFIThreshold,
		&cfg.RepoConfig.NeedComment, &cfg.RepoConfig.IssueTag,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.UpdateConfig.BeginTime = cfg.UpdateConfig.BeginTime.UTC()
	return &cfg, nil
}

// RecordSearch accumulates a search hit against a repository.
func (d *DB) RecordSearch(ctx context.Context, s schema.UserSearchedRepo) error {
	query := `
		INSERT INTO user_searches (owner, name, created_at, increment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, name) DO UPDATE SET
			increment = user_searches.increment + EXCLUDED.increment,
			created_at = EXCLUDED.created_at`

	_, err := d.db.ExecContext(ctx, query, s.Owner, s.Name, s.CreatedAt, s.Increment)
	return err
}

// GetSearchCount returns the accumulated hit count for a repository.
func (d *DB) GetSearchCount(ctx context.Context, owner, name string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT increment FROM user_searches WHERE owner = $1 AND name = $2`,
		owner, name,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

func nullableToSQL(v schema.Nullable[string]) sql.NullString {
	return sql.NullString{String: v.Value, Valid: v.Valid}
}

func sqlToNullable(v sql.NullString) schema.Nullable[string] {
	if !v.Valid {
		return schema.Null[string]()
	}
	return schema.Value(v.String)
}

func nullableFloatToSQL(v schema.Nullable[float64]) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.Value, Valid: v.Valid}
}

func sqlToNullableFloat(v sql.NullFloat64) schema.Nullable[float64] {
	if !v.Valid {
		return schema.Null[float64]()
	}
	return schema.Value(v.Float64)
}
