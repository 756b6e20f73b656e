package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ace-league/internal/config"
	"ace-league/internal/domain"
	"ace-league/internal/middleware"
	"ace-league/internal/service"
)

// LeagueServer exposes the league over a JSON HTTP API. Reads are open,
// mutations sit behind the admin password gate.
type LeagueServer struct {
	svc    *service.LeagueService
	cfg    *config.Config
	logger zerolog.Logger
}

func NewLeagueServer(svc *service.LeagueService, cfg *config.Config, logger zerolog.Logger) *LeagueServer {
	return &LeagueServer{svc: svc, cfg: cfg, logger: logger}
}

func (s *LeagueServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
		r.Get("/session", s.handleSession)
		r.Get("/split/preview", s.handleSplitPreview)
		r.Get("/clusters", s.handleClusters)
		r.Get("/charts/leaderboard.png", s.handleLeaderboardChart)
		r.Get("/charts/trend/{memberID}.png", s.handleTrendChart)

		// players sign themselves up while registration is open
		r.Post("/applicants", s.handleAddApplicant)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(s.cfg.AdminPassword))

			r.Post("/session/open", s.handleOpenSession)
			r.Post("/session/commit", s.handleCommitSession)
			r.Delete("/applicants/{id}", s.handleRemoveApplicant)
			r.Post("/schedule", s.handleGenerateSchedule)
			r.Put("/schedule/{id}/score", s.handleUpdateScore)
			r.Put("/schedule/{id}/players", s.handleEditPlayers)
			r.Put("/history/{id}", s.handleEditHistory)
			r.Delete("/history/{id}", s.handleDeleteHistory)
			r.Get("/export/csv", s.handleExportCSV)
			r.Get("/export/xlsx", s.handleExportXLSX)
		})
	})

	return r
}

type stateResponse struct {
	Session    domain.SessionStatus     `json:"session"`
	Applicants []service.ApplicantEntry `json:"applicants"`
	Schedule   []domain.ScheduledMatch  `json:"schedule"`
}

func (s *LeagueServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, stateResponse{
		Session:    s.svc.Session(),
		Applicants: s.svc.Applicants(),
		Schedule:   s.svc.Schedule(),
	})
}

func (s *LeagueServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Leaderboard())
}

func (s *LeagueServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.HistorySessions())
}

func (s *LeagueServer) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *LeagueServer) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Session())
}

func (s *LeagueServer) handleClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.svc.Clusters(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, clusters)
}

func (s *LeagueServer) handleSplitPreview(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil {
		s.writeError(w, r, domain.Validationf("query parameter n must be an integer"))
		return
	}
	preview, err := s.svc.PreviewSplit(n, r.URL.Query().Get("split"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, preview)
}

type openSessionRequest struct {
	SessionNum      int  `json:"sessionNum"`
	ResetApplicants bool `json:"resetApplicants"`
}

func (s *LeagueServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.OpenRegistration(r.Context(), req.SessionNum, req.ResetApplicants); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Session())
}

type addApplicantRequest struct {
	Name string `json:"name"`
}

func (s *LeagueServer) handleAddApplicant(w http.ResponseWriter, r *http.Request) {
	var req addApplicantRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.AddApplicant(r.Context(), req.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.svc.Applicants())
}

func (s *LeagueServer) handleRemoveApplicant(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveApplicant(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Applicants())
}

type generateScheduleRequest struct {
	Split string `json:"split"`
}

func (s *LeagueServer) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req generateScheduleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.GenerateSchedule(r.Context(), req.Split); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.svc.Schedule())
}

type updateScoreRequest struct {
	Team  int  `json:"team"`
	Score *int `json:"score"`
}

func (s *LeagueServer) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	var req updateScoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.UpdateScore(r.Context(), chi.URLParam(r, "id"), req.Team, req.Score); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Schedule())
}

type editPlayersRequest struct {
	Names [4]string `json:"names"`
}

func (s *LeagueServer) handleEditPlayers(w http.ResponseWriter, r *http.Request) {
	var req editPlayersRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.EditScheduledMatch(r.Context(), chi.URLParam(r, "id"), req.Names); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Schedule())
}

func (s *LeagueServer) handleCommitSession(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.CommitSession(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type editHistoryRequest struct {
	T1Names []string `json:"t1Names"`
	T2Names []string `json:"t2Names"`
	Score1  int      `json:"score1"`
	Score2  int      `json:"score2"`
}

func (s *LeagueServer) handleEditHistory(w http.ResponseWriter, r *http.Request) {
	var req editHistoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.svc.EditHistoryMatch(r.Context(), chi.URLParam(r, "id"), req.T1Names, req.T2Names, req.Score1, req.Score2)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.HistorySessions())
}

func (s *LeagueServer) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteHistoryMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.HistorySessions())
}

func (s *LeagueServer) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ExportCSV()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="league-history.csv"`)
	w.Write(out)
}

func (s *LeagueServer) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ExportXLSX()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="league-history.xlsx"`)
	w.Write(out)
}

func (s *LeagueServer) handleLeaderboardChart(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.LeaderboardChart()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(out)
}

func (s *LeagueServer) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.TrendChart(chi.URLParam(r, "memberID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(out)
}

func (s *LeagueServer) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, domain.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *LeagueServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *LeagueServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var verr *domain.ValidationError
	var perr *domain.PersistenceError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.As(err, &perr):
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
