package fetcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"githubhotspot/models"
	"githubhotspot/ranking"
)

// MockDB is a mock implementation of the database interface
type MockDB struct {
	mock.Mock
}

func (m *MockDB) StoreRepositories(ctx context.Context, repos []models.Repository) error {
	args := m.Called(ctx, repos)
	return args.Error(0)
}

// MockGitHubClient is a mock implementation of the GitHub client
type MockGitHubClient struct {
	mock.Mock
}

func (m *MockGitHubClient) SearchRecent(ctx context.Context, language string, period models.TimePeriod, limit int) ([]models.Repository, error) {
	args := m.Called(ctx, language, period, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Repository), args.Error(1)
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testEngine() *ranking.Engine {
	return ranking.NewEngine(func() time.Time { return fixedNow })
}

func searchResult() []models.Repository {
	return []models.Repository{
		{GitHubID: 1, Name: "slow", Owner: "a", FullName: "a/slow", Stars: 2,
			CreatedAt: fixedNow.AddDate(0, 0, -6), PushedAt: fixedNow.AddDate(0, 0, -5)},
		{GitHubID: 2, Name: "fast", Owner: "b", FullName: "b/fast", Stars: 900, Forks: 40,
			CreatedAt: fixedNow.AddDate(0, 0, -2), PushedAt: fixedNow.AddDate(0, 0, -1)},
		{GitHubID: 3, Name: "broken", Owner: "c", FullName: "c/broken", Stars: -1,
			CreatedAt: fixedNow.AddDate(0, 0, -2), PushedAt: fixedNow.AddDate(0, 0, -1)},
	}
}

func TestFetchAndStore(t *testing.T) {
	testCases := []struct {
		name          string
		setupMocks    func(*MockDB, *MockGitHubClient)
		expectedNames []string
		expectedError string
	}{
		{
			name: "successful fetch ranks and stores",
			setupMocks: func(db *MockDB, client *MockGitHubClient) {
				client.On("SearchRecent", mock.Anything, "Go", models.Weekly, 50).Return(searchResult(), nil)
				db.On("StoreRepositories", mock.Anything, mock.MatchedBy(func(repos []models.Repository) bool {
					return len(repos) == 3 && repos[0].FullName == "b/fast" && repos[0].HotspotScore > 0
				})).Return(nil)
			},
			expectedNames: []string{"b/fast", "a/slow", "c/broken"},
		},
		{
			name: "search failure",
			setupMocks: func(db *MockDB, client *MockGitHubClient) {
				client.On("SearchRecent", mock.Anything, "Go", models.Weekly, 50).Return(nil, errors.New("rate limited"))
			},
			expectedError: "failed to search repositories",
		},
		{
			name: "store failure",
			setupMocks: func(db *MockDB, client *MockGitHubClient) {
				client.On("SearchRecent", mock.Anything, "Go", models.Weekly, 50).Return(searchResult(), nil)
				db.On("StoreRepositories", mock.Anything, mock.Anything).Return(errors.New("db down"))
			},
			expectedError: "failed to store repositories",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockDB := new(MockDB)
			mockClient := new(MockGitHubClient)
			tc.setupMocks(mockDB, mockClient)

			repos, err := FetchAndStore(context.Background(), mockDB, mockClient, testEngine(),
				models.DefaultWeights(models.PolicyFiveFactor), "Go", models.Weekly, 50)

			if tc.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedError)
			} else {
				require.NoError(t, err)
				names := []string{}
				for _, r := range repos {
					names = append(names, r.FullName)
				}
				assert.Equal(t, tc.expectedNames, names)
				assert.Zero(t, repos[2].HotspotScore)
			}

			mockDB.AssertExpectations(t)
			mockClient.AssertExpectations(t)
		})
	}
}

func TestFetchAndStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FetchAndStore(ctx, new(MockDB), new(MockGitHubClient), testEngine(),
		models.DefaultWeights(models.PolicyFiveFactor), "", models.Daily, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTargets(t *testing.T) {
	targets := Targets([]string{"Go", "Rust"}, []models.TimePeriod{models.Daily, models.Weekly})
	assert.Equal(t, []Target{
		{Language: "Go", Period: models.Daily},
		{Language: "Go", Period: models.Weekly},
		{Language: "Rust", Period: models.Daily},
		{Language: "Rust", Period: models.Weekly},
	}, targets)

	assert.Equal(t, []Target{{Language: "", Period: models.Monthly}},
		Targets(nil, []models.TimePeriod{models.Monthly}))
}

func TestPollerRunOnce(t *testing.T) {
	mockDB := new(MockDB)
	mockClient := new(MockGitHubClient)

	mockClient.On("SearchRecent", mock.Anything, "Go", models.Weekly, 20).Return(searchResult(), nil)
	mockClient.On("SearchRecent", mock.Anything, "Rust", models.Weekly, 20).Return(nil, errors.New("boom"))
	mockClient.On("SearchRecent", mock.Anything, "", models.Weekly, 20).Return([]models.Repository{}, nil)
	mockDB.On("StoreRepositories", mock.Anything, mock.Anything).Return(nil)

	var refreshed atomic.Int32
	var weightReads atomic.Int32
	poller := NewPoller(mockDB, mockClient, testEngine(),
		func() models.WeightConfig {
			weightReads.Add(1)
			return models.DefaultWeights(models.PolicyVelocity)
		},
		PollerConfig{
			Targets:          Targets([]string{"Go", "Rust", ""}, []models.TimePeriod{models.Weekly}),
			Limit:            20,
			MaxParallelTasks: 2,
			OnRefresh:        func() { refreshed.Add(1) },
		})

	err := poller.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 targets")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int32(1), refreshed.Load())
	assert.Equal(t, int32(1), weightReads.Load())

	mockClient.AssertExpectations(t)
	mockDB.AssertNumberOfCalls(t, "StoreRepositories", 2)
}

func TestPollerRunOnceAllFailSkipsRefreshHook(t *testing.T) {
	mockClient := new(MockGitHubClient)
	mockClient.On("SearchRecent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("offline"))

	called := false
	poller := NewPoller(new(MockDB), mockClient, testEngine(),
		func() models.WeightConfig { return models.DefaultWeights(models.PolicyFiveFactor) },
		PollerConfig{
			Targets:   Targets(nil, []models.TimePeriod{models.Daily}),
			Limit:     5,
			OnRefresh: func() { called = true },
		})

	assert.Error(t, poller.RunOnce(context.Background()))
	assert.False(t, called)
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	mockClient := new(MockGitHubClient)
	mockDB := new(MockDB)
	mockClient.On("SearchRecent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Repository{}, nil)
	mockDB.On("StoreRepositories", mock.Anything, mock.Anything).Return(nil)

	var passes atomic.Int32
	poller := NewPoller(mockDB, mockClient, testEngine(),
		func() models.WeightConfig { return models.DefaultWeights(models.PolicyFiveFactor) },
		PollerConfig{
			Targets:   Targets(nil, []models.TimePeriod{models.Weekly}),
			Limit:     5,
			OnRefresh: func() { passes.Add(1) },
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return passes.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
