package github

import "fmt"

// Common errors
var (
	ErrNotFound         = fmt.Errorf("repository not found on github")
	ErrRateLimitReached = fmt.Errorf("github rate limit reached")
	ErrFetch            = fmt.Errorf("failed to fetch from github")
)
