package ranking

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"githubhotspot/models"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return fixedNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func fixtureRepo() models.Repository {
	return models.Repository{
		FullName:   "octo/fixture",
		Stars:      100,
		Forks:      20,
		OpenIssues: 5,
		CreatedAt:  daysAgo(10),
		UpdatedAt:  daysAgo(1),
		PushedAt:   daysAgo(1),
	}
}

func TestComputeScoreGolden(t *testing.T) {
	tests := []struct {
		name     string
		weights  models.WeightConfig
		expected float64
	}{
		{
			name:     "five-factor defaults",
			weights:  models.DefaultWeights(models.PolicyFiveFactor),
			expected: 6.428741871435747,
		},
		{
			name:     "velocity defaults",
			weights:  models.DefaultWeights(models.PolicyVelocity),
			expected: 7.708520116421442,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := ComputeScore(fixtureRepo(), tt.weights, fixedNow)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, score, 1e-9)
		})
	}
}

func TestComputeScoreEmptyPolicyUsesFiveFactor(t *testing.T) {
	w := models.DefaultWeights(models.PolicyFiveFactor)
	w.Policy = ""

	score, err := ComputeScore(fixtureRepo(), w, fixedNow)
	require.NoError(t, err)
	assert.InDelta(t, 6.428741871435747, score, 1e-9)
}

func TestComputeScoreDeterministic(t *testing.T) {
	w := models.DefaultWeights(models.PolicyFiveFactor)
	first, err := ComputeScore(fixtureRepo(), w, fixedNow)
	require.NoError(t, err)
	for range 50 {
		again, err := ComputeScore(fixtureRepo(), w, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(first), math.Float64bits(again))
	}
}

func TestComputeScoreFloorsDays(t *testing.T) {
	repo := fixtureRepo()
	repo.CreatedAt = fixedNow.Add(time.Hour)
	repo.PushedAt = fixedNow.Add(time.Hour)

	brandNew := fixtureRepo()
	brandNew.CreatedAt = fixedNow
	brandNew.PushedAt = fixedNow

	w := models.DefaultWeights(models.PolicyFiveFactor)
	a, err := ComputeScore(repo, w, fixedNow)
	require.NoError(t, err)
	b, err := ComputeScore(brandNew, w, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeScoreOldRepositoryKeepsFloors(t *testing.T) {
	repo := models.Repository{CreatedAt: daysAgo(10000), PushedAt: daysAgo(10000)}
	w := models.WeightConfig{Policy: models.PolicyFiveFactor, Freshness: 0.5, Activity: 0.5}

	score, err := ComputeScore(repo, w, fixedNow)
	require.NoError(t, err)
	assert.InDelta(t, 10*(0.5*0.1+0.5*0.1), score, 1e-12)
}

func TestComputeScoreAnomalies(t *testing.T) {
	tests := []struct {
		name    string
		repo    models.Repository
		weights models.WeightConfig
	}{
		{
			name:    "negative stars",
			repo:    models.Repository{FullName: "bad/stars", Stars: -1, CreatedAt: daysAgo(3)},
			weights: models.DefaultWeights(models.PolicyFiveFactor),
		},
		{
			name:    "negative weight",
			repo:    fixtureRepo(),
			weights: models.WeightConfig{Policy: models.PolicyVelocity, Stars: -0.5, Forks: 1, Commits: 0.5},
		},
		{
			name:    "NaN weight",
			repo:    fixtureRepo(),
			weights: models.WeightConfig{Policy: models.PolicyFiveFactor, Stars: math.NaN()},
		},
		{
			name:    "unknown policy",
			repo:    fixtureRepo(),
			weights: models.WeightConfig{Policy: "quadratic", Stars: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := ComputeScore(tt.repo, tt.weights, fixedNow)
			assert.Equal(t, 0.0, score)
			assert.ErrorIs(t, err, ErrScoringAnomaly)

			var anomaly *Anomaly
			require.ErrorAs(t, err, &anomaly)
			assert.Equal(t, tt.repo.FullName, anomaly.FullName)
			assert.NotEmpty(t, anomaly.Reason)
		})
	}
}

func TestComputeScoreIgnoresUnusedWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights models.WeightConfig
	}{
		{
			name: "five-factor with negative commits",
			weights: models.WeightConfig{Policy: models.PolicyFiveFactor,
				Stars: 0.35, Forks: 0.25, Issues: 0.15, Freshness: 0.15, Activity: 0.10, Commits: -1},
		},
		{
			name: "velocity with NaN freshness",
			weights: models.WeightConfig{Policy: models.PolicyVelocity,
				Stars: 0.4, Forks: 0.3, Commits: 0.3, Freshness: math.NaN()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := ComputeScore(fixtureRepo(), tt.weights, fixedNow)
			require.NoError(t, err)
			assert.Greater(t, score, 0.0)
		})
	}
}

func TestComputeScoreFiniteAndNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := range 2000 {
		raw := models.WeightConfig{
			Policy:    models.PolicyFiveFactor,
			Stars:     rng.Float64(),
			Forks:     rng.Float64(),
			Issues:    rng.Float64(),
			Freshness: rng.Float64(),
			Activity:  rng.Float64(),
			Commits:   rng.Float64(),
		}
		if i%2 == 1 {
			raw.Policy = models.PolicyVelocity
		}
		w := raw.Normalize()
		require.True(t, w.IsValid())

		repo := models.Repository{
			Stars:      rng.Intn(1_000_000),
			Forks:      rng.Intn(100_000),
			OpenIssues: rng.Intn(10_000),
			CreatedAt:  daysAgo(rng.Intn(5000) - 10),
			PushedAt:   daysAgo(rng.Intn(5000) - 10),
		}

		score, err := ComputeScore(repo, w, fixedNow)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(score) || math.IsInf(score, 0))
		assert.GreaterOrEqual(t, score, 0.0)
	}
}
