package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "gfi-bot/internal/errors"
	"gfi-bot/internal/schema"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

// DB wraps the PostgreSQL store for repositories and GFI data.
type DB struct {
	db *sql.DB
}

// Repository is the stored form of an onboarded repository. Description
// and language are nullable columns; topics keep their display order.
type Repository struct {
	ID                int64
	Owner             string
	Name              string
	Description       *string
	Language          *string
	Topics            []string
	StarsCount        int
	MedianResolveDays sql.NullFloat64
	LastSyncedAt      sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Brief converts the stored row to its wire record. NULL columns encode as
// explicit nulls, matching what the API has always emitted for them.
func (r *Repository) Brief() schema.RepoBrief {
	brief := schema.RepoBrief{
		Name:        r.Name,
		Owner:       r.Owner,
		Description: schema.Null[string](),
		Language:    schema.Null[string](),
		Topics:      r.Topics,
	}
	if r.Description != nil {
		brief.Description = schema.Value(*r.Description)
	}
	if r.Language != nil {
		brief.Language = schema.Value(*r.Language)
	}
	if brief.Topics == nil {
		brief.Topics = []string{}
	}
	return brief
}

// SyncTarget is one repository due for background synchronization together
// with its update-config cadence.
type SyncTarget struct {
	Owner        string
	Name         string
	Interval     int // seconds, from the repository's update config
	BeginTime    time.Time
	LastSyncedAt sql.NullTime
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	return &DB{db: db}, nil
}

// NewFromDB creates a new DB instance from an existing *sql.DB
func NewFromDB(db *sql.DB) *DB {
	return &DB{db: db}
}

// Migrate applies all pending migrations from the given directory.
func Migrate(db *sql.DB, migrationsPath string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("error creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("error creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error applying migrations: %w", err)
	}
	return nil
}

// Migrate applies migrations against this connection.
func (d *DB) Migrate(migrationsPath string) error {
	return Migrate(d.db, migrationsPath)
}

// DB exposes the underlying connection for components that share it.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// UpsertRepository inserts a repository or refreshes its metadata.
func (d *DB) UpsertRepository(ctx context.Context, repo *Repository) error {
	query := `
		INSERT INTO repositories (
			owner, name, description, language, topics,
			stars_count, median_resolve_days
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner, name) DO UPDATE SET
			description = EXCLUDED.description,
			language = EXCLUDED.language,
			topics = EXCLUDED.topics,
			stars_count = EXCLUDED.stars_count,
			median_resolve_days = EXCLUDED.median_resolve_days,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id`

	return d.db.QueryRowContext(ctx, query,
		repo.Owner, repo.Name, repo.Description, repo.Language,
		pq.Array(repo.Topics), repo.StarsCount, repo.MedianResolveDays,
	).Scan(&repo.ID)
}

// GetRepository retrieves a repository by owner and name, nil when absent.
func (d *DB) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	query := `
		SELECT id, owner, name, description, language, topics,
			stars_count, median_resolve_days, last_synced_at, created_at, updated_at
		FROM repositories WHERE owner = $1 AND name = $2`

	repo := &Repository{}
	var topics pq.StringArray
	err := d.db.QueryRowContext(ctx, query, owner, name).Scan(
		&repo.ID, &repo.Owner, &repo.Name, &repo.Description, &repo.Language,
		&topics, &repo.StarsCount, &repo.MedianResolveDays,
		&repo.LastSyncedAt, &repo.CreatedAt, &repo.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	repo.Topics = topics
	return repo, err
}

// ListRepositories returns onboarded repositories ordered by the given
// ranking criterion.
func (d *DB) ListRepositories(ctx context.Context, sort schema.RepoSort, limit, offset int) ([]*Repository, error) {
	var order string
	switch sort {
	case schema.RepoSortStars:
		order = `r.stars_count DESC`
	case schema.RepoSortGFIs:
		order = `(SELECT COUNT(*) FROM gfis g
			WHERE g.owner = r.owner AND g.name = r.name
			AND g.probability >= g.threshold) DESC`
	case schema.RepoSortIssueCloseTime:
		order = `r.median_resolve_days ASC NULLS LAST`
	case schema.RepoSortNewcomerResolveRate:
		order = `(SELECT t.n_newcomer_resolved::float / NULLIF(t.n_resolved_issues, 0)
			FROM training_results t
			WHERE t.owner = r.owner AND t.name = r.name) DESC NULLS LAST`
	default:
		return nil, fmt.Errorf("unsupported sort: %s", sort)
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.owner, r.name, r.description, r.language, r.topics,
			r.stars_count, r.median_resolve_days, r.last_synced_at, r.created_at, r.updated_at
		FROM repositories r
		ORDER BY %s, r.owner, r.name
		LIMIT $1 OFFSET $2`, order)

	rows, err := d.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []*Repository
	for rows.Next() {
		repo := &Repository{}
		var topics pq.StringArray
		err := rows.Scan(
			&repo.ID, &repo.Owner, &repo.Name, &repo.Description, &repo.Language,
			&topics, &repo.StarsCount, &repo.MedianResolveDays,
			&repo.LastSyncedAt, &repo.CreatedAt, &repo.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		repo.Topics = topics
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// DeleteRepository removes a repository; monthly counts cascade, the rest
// is keyed by owner/name and removed explicitly.
func (d *DB) DeleteRepository(ctx context.Context, owner, name string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM gfis WHERE owner = $1 AND name = $2`,
		`DELETE FROM training_results WHERE owner = $1 AND name = $2`,
		`DELETE FROM repo_configs WHERE owner = $1 AND name = $2`,
		`DELETE FROM user_searches WHERE owner = $1 AND name = $2`,
	} {
		if _, err := tx.ExecContext(ctx, query, owner, name); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM repositories WHERE owner = $1 AND name = $2`, owner, name)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("repository %s/%s: %w", owner, name, apperrors.ErrNotFound)
	}

	return tx.Commit()
}

// UpdateLastSynced records a successful sync.
func (d *DB) UpdateLastSynced(ctx context.Context, owner, name string, syncedAt time.Time) error {
	query := `UPDATE repositories SET last_synced_at = $1 WHERE owner = $2 AND name = $3`
	_, err := d.db.ExecContext(ctx, query, syncedAt, owner, name)
	return err
}

// ReplaceMonthlyCounts swaps one activity series for a repository. Counts
// are stored as produced; callers keep them chronologically ascending.
func (d *DB) ReplaceMonthlyCounts(ctx context.Context, repoID int64, kind string, counts []schema.MonthlyCount) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM monthly_counts WHERE repository_id = $1 AND kind = $2`,
		repoID, kind,
	); err != nil {
		return err
	}

	for _, c := range counts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO monthly_counts (repository_id, kind, month, count) VALUES ($1, $2, $3, $4)`,
			repoID, kind, c.Month, c.Count,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetMonthlyCounts returns one activity series, chronologically ascending.
func (d *DB) GetMonthlyCounts(ctx context.Context, repoID int64, kind string) ([]schema.MonthlyCount, error) {
	query := `
		SELECT month, count FROM monthly_counts
		WHERE repository_id = $1 AND kind = $2
		ORDER BY month ASC`

	rows, err := d.db.QueryContext(ctx, query, repoID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []schema.MonthlyCount{}
	for rows.Next() {
		var c schema.MonthlyCount
		if err := rows.Scan(&c.Month, &c.Count); err != nil {
			return nil, err
		}
		c.Month = c.Month.UTC()
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ListSyncTargets returns every repository that has an update config,
// joined with its last sync time.
func (d *DB) ListSyncTargets(ctx context.Context) ([]SyncTarget, error) {
	query := `
		SELECT c.owner, c.name, c.interval, c.begin_time, r.last_synced_at
		FROM repo_configs c
		JOIN repositories r ON r.owner = c.owner AND r.name = c.name
		ORDER BY c.owner, c.name`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []SyncTarget
	for rows.Next() {
		var t SyncTarget
		if err := rows.Scan(&t.Owner, &t.Name, &t.Interval, &t.BeginTime, &t.LastSyncedAt); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
