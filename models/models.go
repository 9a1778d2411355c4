// Package models defines the core data structures used throughout the application.
package models

import (
	"encoding/json"
	"time"
)

// Repository represents a GitHub repository together with its hotspot score
type Repository struct {
	ID           int       `db:"id" json:"id"`
	GitHubID     int64     `db:"github_id" json:"gitHubId"`
	Name         string    `db:"name" json:"name"`
	FullName     string    `db:"full_name" json:"fullName"`
	Description  string    `db:"description" json:"description"`
	Owner        string    `db:"owner" json:"owner"`
	Language     string    `db:"language" json:"language"`
	Stars        int       `db:"stars" json:"stars"`
	Forks        int       `db:"forks" json:"forks"`
	OpenIssues   int       `db:"open_issues" json:"openIssues"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	PushedAt     time.Time `db:"pushed_at" json:"pushedAt"`
	HTMLURL      string    `db:"html_url" json:"htmlUrl"`
	CloneURL     string    `db:"clone_url" json:"cloneUrl"`
	HotspotScore float64   `db:"hotspot_score" json:"hotspotScore"`
	LastAnalyzed time.Time `db:"last_analyzed" json:"lastAnalyzed"`
}

// DaysSinceCreated returns the whole days elapsed since creation, floored at 1.
func (r Repository) DaysSinceCreated(now time.Time) int {
	return wholeDays(now.Sub(r.CreatedAt))
}

// DaysSinceLastPush returns the whole days elapsed since the last push, floored at 1.
func (r Repository) DaysSinceLastPush(now time.Time) int {
	return wholeDays(now.Sub(r.PushedAt))
}

func wholeDays(d time.Duration) int {
	days := int(d / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}

// MarshalJSON adds the derived day counters the frontend displays.
func (r Repository) MarshalJSON() ([]byte, error) {
	type plain Repository
	now := time.Now().UTC()
	return json.Marshal(struct {
		plain
		DaysSinceCreated  int `json:"daysSinceCreated"`
		DaysSinceLastPush int `json:"daysSinceLastPush"`
	}{
		plain:             plain(r),
		DaysSinceCreated:  r.DaysSinceCreated(now),
		DaysSinceLastPush: r.DaysSinceLastPush(now),
	})
}

// LanguageStats aggregates stored repositories sharing a language.
type LanguageStats struct {
	Language        string  `json:"language" yaml:"language"`
	RepositoryCount int     `json:"repositoryCount" yaml:"repositoryCount"`
	AverageStars    float64 `json:"averageStars" yaml:"averageStars"`
	AverageScore    float64 `json:"averageScore" yaml:"averageScore"`
}

// TrendingRequest selects a page of trending repositories
type TrendingRequest struct {
	Language   string        `json:"language,omitempty"`
	TimePeriod TimePeriod    `json:"timePeriod"`
	Limit      int           `json:"limit"`
	Page       int           `json:"page"`
	Weights    *WeightConfig `json:"weights,omitempty"`
}

// TrendingResponse is one page of ranked repositories
type TrendingResponse struct {
	Repositories []Repository `json:"repositories"`
	TotalCount   int          `json:"totalCount"`
	Page         int          `json:"page"`
	PageSize     int          `json:"pageSize"`
	Language     string       `json:"language,omitempty"`
	TimePeriod   TimePeriod   `json:"timePeriod"`
	GeneratedAt  time.Time    `json:"generatedAt"`
}

// PaginationParams represents parameters for paginated queries
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPaginationParams creates a new PaginationParams with validated values.
// If page or pageSize are less than 1, they will be set to their default values.
func NewPaginationParams(page, pageSize int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
	}
}
