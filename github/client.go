package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"githubhotspot/logger"
	"githubhotspot/models"
)

// maxPerPage is the largest page GitHub's search API will return
const maxPerPage = 100

const userAgent = "githubhotspot/1.0"

var popularLanguages = []string{
	"JavaScript", "Python", "Java", "TypeScript", "C#", "PHP", "C++", "C", "Shell", "Ruby",
	"Go", "Rust", "Kotlin", "Swift", "Scala", "Dart", "R", "Objective-C", "Perl", "Haskell",
}

// Client fetches repository metrics from the GitHub REST API
type Client struct {
	api *gh.Client
	// anon is the unauthenticated fallback used when the token is rejected.
	// It is nil when no token was configured.
	anon    *gh.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClient builds a client against api.github.com allowing perMinute
// requests per minute locally
func NewClient(token string, perMinute int) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return NewClientWithHTTP(httpClient, token, NewLimiter(perMinute))
}

// NewLimiter returns a token bucket refilling perMinute tokens per minute
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// NewClientWithHTTP builds a client on top of httpClient. Tests pass a mocked
// transport here.
func NewClientWithHTTP(httpClient *http.Client, token string, limiter *rate.Limiter) *Client {
	base := gh.NewClient(httpClient)
	base.UserAgent = userAgent

	c := &Client{
		api:     base,
		limiter: limiter,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if token != "" {
		c.api = base.WithAuthToken(token)
		c.anon = base
	}

	logger.Info("Initializing GitHub client",
		zap.String("base_url", base.BaseURL.String()),
		zap.Bool("authenticated", token != ""),
		zap.Int("rate_per_minute", limiter.Burst()))
	return c
}

// PopularLanguages returns the languages offered as filters
func (c *Client) PopularLanguages() []string {
	out := make([]string, len(popularLanguages))
	copy(out, popularLanguages)
	return out
}

// SearchQuery builds the search expression for repositories created after the
// period's cutoff, optionally restricted to a language
func SearchQuery(language string, period models.TimePeriod, now time.Time) string {
	query := "created:>" + period.Cutoff(now).Format(time.DateOnly)
	if language = strings.TrimSpace(language); language != "" {
		if strings.ContainsAny(language, " \t") {
			language = `"` + language + `"`
		}
		query += " language:" + language
	}
	return query
}

// SearchRecent returns up to limit repositories created within period, most
// starred first. Only one page is requested. Items missing an id, name or
// owner are skipped.
func (c *Client) SearchRecent(ctx context.Context, language string, period models.TimePeriod, limit int) ([]models.Repository, error) {
	if limit < 1 {
		return []models.Repository{}, nil
	}
	if !c.limiter.Allow() {
		logger.Warn("Local GitHub rate limit reached, use a token or wait for the limit to reset")
		return nil, ErrRateLimitReached
	}

	query := SearchQuery(language, period, c.now())
	opts := &gh.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: gh.ListOptions{
			Page:    1,
			PerPage: min(limit, maxPerPage),
		},
	}

	logger.Info("Searching repositories",
		zap.String("query", query),
		zap.Int("per_page", opts.PerPage))

	result, _, err := c.api.Search.Repositories(ctx, query, opts)
	if isUnauthorized(err) && c.anon != nil {
		logger.Warn("GitHub rejected the token, retrying without authentication")
		result, _, err = c.anon.Search.Repositories(ctx, query, opts)
	}
	if err != nil {
		return nil, c.handleRequestError(err)
	}

	repos := make([]models.Repository, 0, len(result.Repositories))
	for _, item := range result.Repositories {
		repo, ok := toRepository(item)
		if !ok {
			logger.Debug("Repository with invalid information skipped",
				zap.Int64("github_id", item.GetID()))
			continue
		}
		repos = append(repos, repo)
		if len(repos) == limit {
			break
		}
	}

	logger.Info("Search returned repositories",
		zap.String("query", query),
		zap.Int("count", len(repos)),
		zap.Int("total", result.GetTotal()))
	return repos, nil
}

// FetchRepo returns the current metrics of a single repository
func (c *Client) FetchRepo(ctx context.Context, owner, name string) (*models.Repository, error) {
	if owner == "" || name == "" {
		return nil, fmt.Errorf("%w: owner and name are required", ErrFetch)
	}
	if !c.limiter.Allow() {
		logger.Warn("Local GitHub rate limit reached, use a token or wait for the limit to reset")
		return nil, ErrRateLimitReached
	}

	logger.Info("Fetching repository", zap.String("owner", owner), zap.String("name", name))

	item, _, err := c.api.Repositories.Get(ctx, owner, name)
	if isUnauthorized(err) && c.anon != nil {
		logger.Warn("GitHub rejected the token, retrying without authentication")
		item, _, err = c.anon.Repositories.Get(ctx, owner, name)
	}
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, owner, name)
		}
		return nil, c.handleRequestError(err)
	}

	repo, ok := toRepository(item)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s returned incomplete data", ErrFetch, owner, name)
	}
	return &repo, nil
}

// handleRequestError classifies a go-github error. GitHub rate limit errors
// also drain the local bucket so it stays in step with the server.
func (c *Client) handleRequestError(err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		c.limiter.AllowN(time.Now(), c.limiter.Burst())
		logger.Warn("GitHub rate limit reached, use a token or wait for the limit to reset")
		return fmt.Errorf("%w: %v", ErrRateLimitReached, err)
	}

	logger.Error("Error fetching data from GitHub", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrFetch, err)
}

func statusCode(err error) int {
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

func isUnauthorized(err error) bool {
	return err != nil && statusCode(err) == http.StatusUnauthorized
}

func toRepository(item *gh.Repository) (models.Repository, bool) {
	if item == nil || item.ID == nil || item.Name == nil || item.Owner == nil || item.Owner.Login == nil {
		return models.Repository{}, false
	}

	created := item.GetCreatedAt().Time.UTC()
	updated := item.GetUpdatedAt().Time.UTC()
	pushed := item.GetPushedAt().Time.UTC()
	if item.PushedAt == nil {
		pushed = updated
	}

	fullName := item.GetFullName()
	if fullName == "" {
		fullName = item.Owner.GetLogin() + "/" + item.GetName()
	}

	return models.Repository{
		GitHubID:    item.GetID(),
		Name:        item.GetName(),
		FullName:    fullName,
		Description: item.GetDescription(),
		Owner:       item.Owner.GetLogin(),
		Language:    item.GetLanguage(),
		Stars:       item.GetStargazersCount(),
		Forks:       item.GetForksCount(),
		OpenIssues:  item.GetOpenIssuesCount(),
		CreatedAt:   created,
		UpdatedAt:   updated,
		PushedAt:    pushed,
		HTMLURL:     item.GetHTMLURL(),
		CloneURL:    item.GetCloneURL(),
	}, true
}
