// Package ranking computes hotspot scores and orders, filters and aggregates
// repositories by them. Everything here is pure and safe for concurrent use.
package ranking

import (
	"errors"
	"fmt"
	"math"
	"time"

	"githubhotspot/models"
)

// scoreScale stretches the weighted sum into a readable range.
const scoreScale = 10.0

// Floors applied to the decay factors so old repositories keep a baseline.
const (
	minFreshness = 0.1
	minActivity  = 0.1
)

// ErrScoringAnomaly marks a record whose score was degraded to zero.
var ErrScoringAnomaly = errors.New("scoring anomaly")

// Anomaly describes why one repository could not be scored.
type Anomaly struct {
	FullName string
	Reason   string
}

func (a *Anomaly) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrScoringAnomaly, a.FullName, a.Reason)
}

func (a *Anomaly) Unwrap() error {
	return ErrScoringAnomaly
}

// ComputeScore returns the hotspot score of repo at instant now.
// It never fails: on unexpected numeric state the score is 0 and the
// returned error describes the anomaly.
func ComputeScore(repo models.Repository, weights models.WeightConfig, now time.Time) (float64, error) {
	if reason := checkInputs(repo, weights); reason != "" {
		return 0, &Anomaly{FullName: repo.FullName, Reason: reason}
	}

	daysCreated := float64(repo.DaysSinceCreated(now))
	daysPushed := float64(repo.DaysSinceLastPush(now))

	var score float64
	switch weights.Policy {
	case models.PolicyVelocity:
		score = velocityScore(repo, weights, daysCreated, daysPushed)
	case models.PolicyFiveFactor, "":
		score = fiveFactorScore(repo, weights, daysCreated, daysPushed)
	default:
		return 0, &Anomaly{FullName: repo.FullName, Reason: fmt.Sprintf("unknown policy %q", weights.Policy)}
	}

	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return 0, &Anomaly{FullName: repo.FullName, Reason: fmt.Sprintf("non-finite or negative score %v", score)}
	}
	return score, nil
}

func checkInputs(repo models.Repository, w models.WeightConfig) string {
	if repo.Stars < 0 || repo.Forks < 0 || repo.OpenIssues < 0 {
		return fmt.Sprintf("negative counts stars=%d forks=%d issues=%d", repo.Stars, repo.Forks, repo.OpenIssues)
	}
	for _, v := range w.Active() {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Sprintf("invalid weight %v", v)
		}
	}
	return ""
}

// fiveFactorScore blends star and fork velocity, issue interest, freshness
// and push activity, each compressed before weighting.
func fiveFactorScore(repo models.Repository, w models.WeightConfig, daysCreated, daysPushed float64) float64 {
	starScore := math.Log10(float64(repo.Stars)/daysCreated + 1)
	forkScore := math.Log10(float64(repo.Forks)/daysCreated + 1)
	issueScore := math.Log10(float64(repo.OpenIssues)+1) / daysCreated
	freshnessScore := math.Max(minFreshness, 1/math.Sqrt(daysCreated))
	activityScore := math.Max(minActivity, 1/daysPushed)

	sum := w.Stars*starScore +
		w.Forks*forkScore +
		w.Issues*issueScore +
		w.Freshness*freshnessScore +
		w.Activity*activityScore
	return scoreScale * sum
}

// velocityScore weights raw star and fork velocity plus activity and
// compresses the total.
func velocityScore(repo models.Repository, w models.WeightConfig, daysCreated, daysPushed float64) float64 {
	starVelocity := float64(repo.Stars) / daysCreated
	forkVelocity := float64(repo.Forks) / daysCreated
	activityFactor := math.Max(minActivity, 1/daysPushed)

	raw := w.Stars*starVelocity + w.Forks*forkVelocity + w.Commits*activityFactor
	return scoreScale * math.Log10(raw+1)
}
