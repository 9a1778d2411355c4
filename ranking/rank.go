package ranking

import (
	"errors"
	"slices"
	"strings"
	"time"

	"githubhotspot/models"
)

// maxLanguageGroups caps the language statistics list.
const maxLanguageGroups = 20

// Engine scores batches of repositories against a clock.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an Engine reading the current time from clock.
// A nil clock uses the wall clock in UTC.
func NewEngine(clock func() time.Time) *Engine {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{now: clock}
}

// Now returns the engine's current instant.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Score computes a single repository's score at the engine's current time.
func (e *Engine) Score(repo models.Repository, weights models.WeightConfig) (float64, error) {
	return ComputeScore(repo, weights, e.now())
}

// Result is the output of RankBatch.
type Result struct {
	// Repositories holds copies of the input, scored and sorted by score descending.
	Repositories []models.Repository
	// Anomalies lists the records whose score was degraded to zero.
	Anomalies []*Anomaly
}

// RankBatch scores every repository and returns them ordered by score,
// highest first. Equal scores keep their input order. The input slice is
// not modified.
func (e *Engine) RankBatch(repos []models.Repository, weights models.WeightConfig) Result {
	now := e.now()
	ranked := make([]models.Repository, len(repos))
	var anomalies []*Anomaly

	for i, repo := range repos {
		score, err := ComputeScore(repo, weights, now)
		if err != nil {
			var anomaly *Anomaly
			if errors.As(err, &anomaly) {
				anomalies = append(anomalies, anomaly)
			}
		}
		repo.HotspotScore = score
		ranked[i] = repo
	}

	SortByScore(ranked)
	return Result{Repositories: ranked, Anomalies: anomalies}
}

// SortByScore stable-sorts repos by HotspotScore, highest first.
func SortByScore(repos []models.Repository) {
	slices.SortStableFunc(repos, func(a, b models.Repository) int {
		switch {
		case a.HotspotScore > b.HotspotScore:
			return -1
		case a.HotspotScore < b.HotspotScore:
			return 1
		default:
			return 0
		}
	})
}

// InWindow reports whether repo was created or updated at or after cutoff.
func InWindow(repo models.Repository, cutoff time.Time) bool {
	return !repo.CreatedAt.Before(cutoff) || !repo.UpdatedAt.Before(cutoff)
}

// TopRepositories filters repos by language (case-insensitive, empty means
// any) and time window, and returns the limit highest already-scored entries.
func TopRepositories(repos []models.Repository, language string, period models.TimePeriod, limit int, now time.Time) []models.Repository {
	if limit <= 0 {
		return []models.Repository{}
	}

	cutoff := period.Cutoff(now)
	filtered := make([]models.Repository, 0, len(repos))
	for _, repo := range repos {
		if language != "" && !strings.EqualFold(repo.Language, language) {
			continue
		}
		if !InWindow(repo, cutoff) {
			continue
		}
		filtered = append(filtered, repo)
	}

	SortByScore(filtered)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// LanguageStats groups repos by non-empty language and returns at most 20
// groups ordered by repository count, largest first.
func LanguageStats(repos []models.Repository) []models.LanguageStats {
	type acc struct {
		count      int
		starsTotal float64
		scoreTotal float64
	}
	groups := make(map[string]*acc)

	for _, repo := range repos {
		if repo.Language == "" {
			continue
		}
		g, ok := groups[repo.Language]
		if !ok {
			g = &acc{}
			groups[repo.Language] = g
		}
		g.count++
		g.starsTotal += float64(repo.Stars)
		g.scoreTotal += repo.HotspotScore
	}

	stats := make([]models.LanguageStats, 0, len(groups))
	for lang, g := range groups {
		stats = append(stats, models.LanguageStats{
			Language:        lang,
			RepositoryCount: g.count,
			AverageStars:    g.starsTotal / float64(g.count),
			AverageScore:    g.scoreTotal / float64(g.count),
		})
	}

	slices.SortFunc(stats, func(a, b models.LanguageStats) int {
		if a.RepositoryCount != b.RepositoryCount {
			return b.RepositoryCount - a.RepositoryCount
		}
		return strings.Compare(a.Language, b.Language)
	})
	if len(stats) > maxLanguageGroups {
		stats = stats[:maxLanguageGroups]
	}
	return stats
}

// Paginate returns the requested page of repos. Pages past the end are empty.
func Paginate(repos []models.Repository, params models.PaginationParams) []models.Repository {
	params = models.NewPaginationParams(params.Page, params.PageSize)
	start := (params.Page - 1) * params.PageSize
	if start >= len(repos) {
		return []models.Repository{}
	}
	end := min(start+params.PageSize, len(repos))
	return repos[start:end]
}
