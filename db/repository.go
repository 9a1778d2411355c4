package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"githubhotspot/models"
)

const repositoryColumns = `
	id, github_id, name, full_name, description, owner, language,
	stars, forks, open_issues, created_at, updated_at, pushed_at,
	html_url, clone_url, hotspot_score, last_analyzed`

const upsertRepositoryQuery = `
	INSERT INTO repositories (
		github_id, name, full_name, description, owner, language,
		stars, forks, open_issues, created_at, updated_at, pushed_at,
		html_url, clone_url, hotspot_score, last_analyzed
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (github_id) DO UPDATE SET
		name = EXCLUDED.name,
		full_name = EXCLUDED.full_name,
		description = EXCLUDED.description,
		owner = EXCLUDED.owner,
		language = EXCLUDED.language,
		stars = EXCLUDED.stars,
		forks = EXCLUDED.forks,
		open_issues = EXCLUDED.open_issues,
		updated_at = EXCLUDED.updated_at,
		pushed_at = EXCLUDED.pushed_at,
		html_url = EXCLUDED.html_url,
		clone_url = EXCLUDED.clone_url,
		hotspot_score = EXCLUDED.hotspot_score,
		last_analyzed = EXCLUDED.last_analyzed
`

func validateRepository(repo models.Repository) error {
	if repo.Name == "" || repo.Owner == "" {
		return fmt.Errorf("%w: repository name and owner cannot be empty", ErrInvalidInput)
	}
	if repo.GitHubID == 0 {
		return fmt.Errorf("%w: repository %s has no github id", ErrInvalidInput, repo.FullName)
	}
	return nil
}

func upsertArgs(repo models.Repository, analyzed time.Time) []any {
	return []any{
		repo.GitHubID, repo.Name, repo.FullName, repo.Description, repo.Owner, repo.Language,
		repo.Stars, repo.Forks, repo.OpenIssues, repo.CreatedAt, repo.UpdatedAt, repo.PushedAt,
		repo.HTMLURL, repo.CloneURL, repo.HotspotScore, analyzed,
	}
}

// StoreRepository upserts a single repository keyed by its GitHub id
func (db *DB) StoreRepository(ctx context.Context, repo models.Repository) error {
	if err := validateRepository(repo); err != nil {
		return err
	}

	safeLogInfo("Storing repository", zap.String("repo", repo.FullName))
	if _, err := db.conn.ExecContext(ctx, upsertRepositoryQuery, upsertArgs(repo, time.Now().UTC())...); err != nil {
		return fmt.Errorf("failed to store repository %s: %w", repo.FullName, err)
	}
	return nil
}

// StoreRepositories upserts a batch of repositories in one transaction and
// stamps each with the same analysis time. An empty batch is a no-op.
func (db *DB) StoreRepositories(ctx context.Context, repos []models.Repository) error {
	if len(repos) == 0 {
		return nil
	}
	for _, repo := range repos {
		if err := validateRepository(repo); err != nil {
			return err
		}
	}

	safeLogInfo("Starting batch upsert of repositories", zap.Int("count", len(repos)))
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertRepositoryQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare repository upsert statement: %w", err)
	}
	defer stmt.Close()

	analyzed := time.Now().UTC()
	for _, repo := range repos {
		if _, err := stmt.ExecContext(ctx, upsertArgs(repo, analyzed)...); err != nil {
			return fmt.Errorf("failed to upsert repository %s: %w", repo.FullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Successfully stored repositories", zap.Int("count", len(repos)))
	return nil
}

// GetByFullName retrieves a repository by its owner/name identifier
func (db *DB) GetByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	if fullName == "" {
		return nil, fmt.Errorf("%w: repository name cannot be empty", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, `SELECT`+repositoryColumns+`
		FROM repositories
		WHERE LOWER(full_name) = LOWER($1)
		LIMIT 1`)
	if err != nil {
		return nil, err
	}

	var repo models.Repository
	if err := stmt.GetContext(ctx, &repo, fullName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, fullName)
		}
		return nil, fmt.Errorf("failed to get repository %s: %w", fullName, err)
	}
	return &repo, nil
}

// Search returns repositories whose name, full name or description contains
// query, highest score first
func (db *DB) Search(ctx context.Context, query string, limit int) ([]models.Repository, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", ErrInvalidInput)
	}
	if limit < 1 {
		return []models.Repository{}, nil
	}

	pattern := "%" + escapeLike(query) + "%"
	repos := []models.Repository{}
	err := db.conn.SelectContext(ctx, &repos, `SELECT`+repositoryColumns+`
		FROM repositories
		WHERE name ILIKE $1 OR full_name ILIKE $1 OR description ILIKE $1
		ORDER BY hotspot_score DESC, id
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search repositories: %w", err)
	}
	return repos, nil
}

// FindInWindow returns repositories created or updated at or after cutoff,
// optionally restricted to one language (case-insensitive). Rows come back
// highest score first.
func (db *DB) FindInWindow(ctx context.Context, language string, cutoff time.Time) ([]models.Repository, error) {
	repos := []models.Repository{}
	err := db.conn.SelectContext(ctx, &repos, `SELECT`+repositoryColumns+`
		FROM repositories
		WHERE (created_at >= $1 OR updated_at >= $1)
			AND ($2 = '' OR LOWER(language) = LOWER($2))
		ORDER BY hotspot_score DESC, id`, cutoff, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories in window: %w", err)
	}
	return repos, nil
}

// ListRepositories returns every stored repository
func (db *DB) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	repos := []models.Repository{}
	if err := db.conn.SelectContext(ctx, &repos, `SELECT`+repositoryColumns+`
		FROM repositories
		ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	return repos, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
