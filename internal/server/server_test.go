package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ace-league/internal/config"
	"ace-league/internal/domain"
	"ace-league/internal/middleware"
	"ace-league/internal/service"
)

type stubStateStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	updated map[string]time.Time
}

func (s *stubStateStore) LoadState(_ context.Context, cluster string) (*domain.LeagueState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[cluster]
	if !ok {
		return nil, false, nil
	}
	state := domain.NewLeagueState()
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, false, err
	}
	return state, true, nil
}

func (s *stubStateStore) SaveState(_ context.Context, cluster string, state *domain.LeagueState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[cluster] = raw
	s.updated[cluster] = time.Now()
	return nil
}

func (s *stubStateStore) LastUpdated(_ context.Context, cluster string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated[cluster], nil
}

func (s *stubStateStore) ListClusters(_ context.Context) ([]string, error) {
	return []string{"Default"}, nil
}

type stubStatusStore struct {
	mu      sync.Mutex
	docs    map[string]*domain.SessionStatus
	updated map[string]time.Time
}

func (s *stubStatusStore) LoadStatus(_ context.Context, key string) (*domain.SessionStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	copied := *status
	return &copied, true, nil
}

func (s *stubStatusStore) SaveStatus(_ context.Context, key string, status *domain.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *status
	s.docs[key] = &copied
	s.updated[key] = time.Now()
	return nil
}

func (s *stubStatusStore) LastUpdated(_ context.Context, key string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated[key], nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{Cluster: "Default", AdminPassword: "secret"}
	svc := service.NewLeagueService(
		&stubStateStore{docs: map[string][]byte{}, updated: map[string]time.Time{}},
		&stubStatusStore{docs: map[string]*domain.SessionStatus{}, updated: map[string]time.Time{}},
		cfg,
		zerolog.Nop(),
	)
	require.NoError(t, svc.Refresh(context.Background()))

	srv := httptest.NewServer(NewLeagueServer(svc, cfg, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, admin bool) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if admin {
		req.Header.Set(middleware.AdminHeader, "secret")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestReadEndpointsAreOpen(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/state", "/api/leaderboard", "/api/history", "/api/stats", "/api/session", "/api/clusters"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestMutationsRequireAdminPassword(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/session/open", map[string]interface{}{"sessionNum": 1}, false)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/session/open", map[string]interface{}{"sessionNum": 1}, true)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/api/export/csv")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestApplicantSignupIsOpen(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/session/open", map[string]interface{}{"sessionNum": 1, "resetApplicants": true}, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/applicants", map[string]string{"name": "walk-in"}, false)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/applicants/some-id", nil, false)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/session/open", map[string]interface{}{"sessionNum": 1, "resetApplicants": true}, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, name := range []string{"a", "b", "c", "d"} {
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/applicants", map[string]string{"name": name}, true)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/schedule", map[string]string{}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var schedule []domain.ScheduledMatch
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schedule))
	resp.Body.Close()
	require.Len(t, schedule, 3)

	for _, m := range schedule {
		for team := 1; team <= 2; team++ {
			score := 6
			if team == 2 {
				score = 4
			}
			resp = doJSON(t, http.MethodPut, srv.URL+"/api/schedule/"+m.ID+"/score",
				map[string]interface{}{"team": team, "score": score}, true)
			resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/session/commit", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result service.CommitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, 3, result.Matches)
	assert.Equal(t, 4, result.NewMembers)

	resp, err := http.Get(srv.URL + "/api/leaderboard")
	require.NoError(t, err)
	var lb []service.LeaderboardEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lb))
	resp.Body.Close()
	assert.Len(t, lb, 4)
}

func TestSplitPreviewValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/split/preview?n=9")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/split/preview?n=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/split/preview?n=9&split=3,6")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCommitWithoutScheduleFails(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/session/commit", nil, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "no schedule")
}
