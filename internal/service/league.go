package service

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"ace-league/internal/config"
	"ace-league/internal/constants"
	"ace-league/internal/domain"
	"ace-league/internal/engine"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// StateStore is the cluster-document side of the persistence boundary:
// whole-document load and last-writer-wins replace, nothing finer.
type StateStore interface {
	LoadState(ctx context.Context, cluster string) (*domain.LeagueState, bool, error)
	SaveState(ctx context.Context, cluster string, state *domain.LeagueState) error
	LastUpdated(ctx context.Context, cluster string) (time.Time, error)
	ListClusters(ctx context.Context) ([]string, error)
}

type StatusStore interface {
	LoadStatus(ctx context.Context, key string) (*domain.SessionStatus, bool, error)
	SaveStatus(ctx context.Context, key string, status *domain.SessionStatus) error
	LastUpdated(ctx context.Context, key string) (time.Time, error)
}

// LeagueService owns the in-memory league state for one cluster and runs
// every mutation as a read-modify-write cycle: mutate, persist the full
// snapshot, then replay the rating engine. All of it is single-threaded
// behind one mutex; the engine itself has no internal parallelism.
type LeagueService struct {
	states    StateStore
	statuses  StatusStore
	cluster   string
	statusKey string
	logger    zerolog.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	state     *domain.LeagueState
	standings *domain.Standings
	session   *domain.SessionStatus

	stateSyncedAt  time.Time
	statusSyncedAt time.Time
}

func NewLeagueService(states StateStore, statuses StatusStore, cfg *config.Config, logger zerolog.Logger) *LeagueService {
	return &LeagueService{
		states:    states,
		statuses:  statuses,
		cluster:   cfg.Cluster,
		statusKey: constants.SessionStatusPrefix + cfg.Cluster,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		state:     domain.NewLeagueState(),
		standings: domain.NewStandings(),
		session:   &domain.SessionStatus{Status: domain.StatusIdle, SessionNum: 1},
	}
}

// Refresh reloads both documents from the store and replays the rating
// engine. It is called on startup and whenever either document changes,
// regardless of which process wrote it.
func (s *LeagueService) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	var (
		state       *domain.LeagueState
		stateFound  bool
		status      *domain.SessionStatus
		statusFound bool
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state, stateFound, err = s.states.LoadState(gCtx, s.cluster)
		return err
	})
	g.Go(func() error {
		var err error
		status, statusFound, err = s.statuses.LoadStatus(gCtx, s.statusKey)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("cluster", s.cluster).Msg("failed to load documents")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !stateFound {
		state = s.bootstrapState(ctx)
	}
	s.state = state

	if !statusFound {
		status = &domain.SessionStatus{
			Status:     domain.StatusIdle,
			SessionNum: engine.NextSessionNum(state.MatchHistory),
		}
		if err := s.statuses.SaveStatus(ctx, s.statusKey, status); err != nil {
			s.logger.Warn().Err(err).Msg("failed to seed session status")
		}
	}
	s.session = status

	now := time.Now()
	s.stateSyncedAt = now
	s.statusSyncedAt = now

	s.replayLocked()
	s.logger.Info().
		Str("cluster", s.cluster).
		Int("members", len(s.state.Members)).
		Int("history", len(s.state.MatchHistory)).
		Str("status", s.session.Status).
		Msg("state refreshed")
	return nil
}

// bootstrapState handles a missing cluster document. The default cluster
// gets the one-time legacy copy; everything else starts empty. The fresh
// document is persisted immediately so other readers see it.
func (s *LeagueService) bootstrapState(ctx context.Context) *domain.LeagueState {
	state := domain.NewLeagueState()

	if s.cluster == constants.DefaultCluster {
		legacy, found, err := s.states.LoadState(ctx, constants.LegacyCluster)
		if err != nil {
			s.logger.Warn().Err(err).Msg("legacy document check failed")
		} else if found {
			s.logger.Info().Msg("migrating legacy document into default cluster")
			state = legacy
		}
	}

	if err := s.states.SaveState(ctx, s.cluster, state); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist bootstrap state")
	}
	return state
}

// Watch polls the store and refreshes whenever another writer has replaced
// either document. Runs until ctx is cancelled.
func (s *LeagueService) Watch(ctx context.Context) {
	ticker := time.NewTicker(constants.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.storeChanged(ctx) {
				if err := s.Refresh(ctx); err != nil {
					s.logger.Warn().Err(err).Msg("refresh after external change failed")
				}
			}
		}
	}
}

func (s *LeagueService) storeChanged(ctx context.Context) bool {
	stateAt, err := s.states.LastUpdated(ctx, s.cluster)
	if err != nil {
		s.logger.Warn().Err(err).Msg("state poll failed")
		return false
	}
	statusAt, err := s.statuses.LastUpdated(ctx, s.statusKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("status poll failed")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return stateAt.After(s.stateSyncedAt) || statusAt.After(s.statusSyncedAt)
}

// replayLocked recomputes ratings and standings from the full history.
// Caller holds the mutex.
func (s *LeagueService) replayLocked() {
	s.standings = engine.Recalculate(s.state, s.rng, s.logger)
}

func (s *LeagueService) saveStateLocked(ctx context.Context) error {
	if err := s.states.SaveState(ctx, s.cluster, s.state); err != nil {
		return err
	}
	s.stateSyncedAt = time.Now()
	return nil
}

func (s *LeagueService) saveStatusLocked(ctx context.Context, status *domain.SessionStatus) error {
	if err := s.statuses.SaveStatus(ctx, s.statusKey, status); err != nil {
		return err
	}
	s.session = status
	s.statusSyncedAt = time.Now()
	return nil
}

// OpenRegistration moves the session to recruiting under the given session
// number, optionally clearing leftover applicants from a previous round.
func (s *LeagueService) OpenRegistration(ctx context.Context, sessionNum int, resetApplicants bool) error {
	if sessionNum < 1 {
		return domain.Validationf("session number must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveStatusLocked(ctx, &domain.SessionStatus{
		Status:     domain.StatusRecruiting,
		SessionNum: sessionNum,
	}); err != nil {
		return err
	}

	if resetApplicants && len(s.state.Applicants) > 0 {
		s.state.Applicants = []*domain.Applicant{}
		if err := s.saveStateLocked(ctx); err != nil {
			return err
		}
	}

	s.logger.Info().Int("session_num", sessionNum).Msg("registration opened")
	return nil
}

// AddApplicant signs a player up for the next session. A name matching an
// existing member reuses that member's identity; anyone else becomes a
// placeholder that only turns into a Member when a session with their
// matches is committed.
func (s *LeagueService) AddApplicant(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Validationf("name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status != domain.StatusRecruiting {
		return domain.Validationf("registration is not open")
	}

	for _, a := range s.state.Applicants {
		if a.Name == name {
			return nil // already signed up
		}
	}

	applicant := &domain.Applicant{
		ID:     gonanoid.Must(),
		Name:   name,
		Rating: engine.InitialRating,
	}
	if m := s.state.MemberByName(name); m != nil {
		applicant.ID = m.ID
		applicant.Rating = m.Rating
		applicant.MatchCount = m.MatchCount
	}

	s.state.Applicants = append(s.state.Applicants, applicant)
	if err := s.saveStateLocked(ctx); err != nil {
		return err
	}

	s.logger.Info().Str("name", name).Str("id", applicant.ID).Msg("applicant added")
	return nil
}

func (s *LeagueService) RemoveApplicant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.state.Applicants[:0]
	for _, a := range s.state.Applicants {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	s.state.Applicants = kept
	return s.saveStateLocked(ctx)
}

// GenerateSchedule turns the applicant list into group round-robin
// matches, flips the session to playing, and clears the applicant list.
// customSplit is an optional comma-separated partition override.
func (s *LeagueService) GenerateSchedule(ctx context.Context, customSplit string) error {
	split, err := engine.ParseSplit(customSplit)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.SessionNum < 1 {
		return domain.Validationf("no active session number")
	}

	ranked := make(map[string]bool, len(s.state.Applicants))
	for _, a := range s.state.Applicants {
		if _, ok := s.standings.RankMap[a.ID]; ok {
			ranked[a.ID] = true
		}
	}

	schedule, err := engine.BuildSchedule(engine.ScheduleRequest{
		Applicants:  s.state.Applicants,
		Ranked:      ranked,
		MemberCount: len(s.state.Members),
		SessionNum:  strconv.Itoa(s.session.SessionNum),
		CustomSplit: split,
	}, s.rng)
	if err != nil {
		return err
	}

	s.state.CurrentSchedule = schedule
	s.state.Applicants = []*domain.Applicant{}

	if err := s.saveStateLocked(ctx); err != nil {
		return err
	}
	if err := s.saveStatusLocked(ctx, &domain.SessionStatus{
		Status:     domain.StatusPlaying,
		SessionNum: s.session.SessionNum,
	}); err != nil {
		return err
	}

	s.logger.Info().
		Int("session_num", s.session.SessionNum).
		Int("matches", len(schedule)).
		Msg("schedule generated")
	return nil
}

// UpdateScore records one team's live score on a scheduled match. score
// nil clears the entry; values clamp to the 0..6 badminton game range.
func (s *LeagueService) UpdateScore(ctx context.Context, matchID string, team int, score *int) error {
	if team != 1 && team != 2 {
		return domain.Validationf("team must be 1 or 2")
	}
	if score != nil {
		clamped := *score
		if clamped < 0 {
			clamped = 0
		}
		if clamped > constants.MaxMatchScore {
			clamped = constants.MaxMatchScore
		}
		score = &clamped
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	match := s.scheduledMatchLocked(matchID)
	if match == nil {
		return domain.Validationf("unknown match %q", matchID)
	}
	if team == 1 {
		match.S1 = score
	} else {
		match.S2 = score
	}
	return s.saveStateLocked(ctx)
}

// EditScheduledMatch fixes up the four player names on a live match.
func (s *LeagueService) EditScheduledMatch(ctx context.Context, matchID string, names [4]string) error {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return domain.Validationf("name must not be empty")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	match := s.scheduledMatchLocked(matchID)
	if match == nil {
		return domain.Validationf("unknown match %q", matchID)
	}
	match.T1[0].Name = names[0]
	match.T1[1].Name = names[1]
	match.T2[0].Name = names[2]
	match.T2[1].Name = names[3]
	return s.saveStateLocked(ctx)
}

// CommitResult summarizes a confirmed session.
type CommitResult struct {
	SessionNum string
	Matches    int
	NewMembers int
}

// CommitSession confirms the finished schedule: unknown players become
// Members, every match is appended to history, the schedule and applicant
// list are emptied, the session returns to idle with the next number
// suggested, and the full replay runs.
func (s *LeagueService) CommitSession(ctx context.Context) (*CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.CurrentSchedule) == 0 {
		return nil, domain.Validationf("no schedule in progress")
	}
	unscored := 0
	for _, m := range s.state.CurrentSchedule {
		if !m.Scored() {
			unscored++
		}
	}
	if unscored > 0 {
		return nil, domain.Validationf("%d matches still unscored", unscored)
	}

	sessionNum := s.state.CurrentSchedule[0].SessionNum
	date := time.Now().Format("2006-01-02")
	newMembers := 0

	for _, m := range s.state.CurrentSchedule {
		players := append(append([]domain.Player{}, m.T1...), m.T2...)
		for _, p := range players {
			if p.ID == "" {
				s.logger.Warn().Str("match_id", m.ID).Msg("scheduled player without id, skipped")
				continue
			}
			if s.state.MemberByID(p.ID) == nil {
				s.state.Members = append(s.state.Members, &domain.Member{
					ID:            p.ID,
					Name:          p.Name,
					Rating:        engine.InitialRating,
					Participation: []string{},
				})
				newMembers++
			}
		}

		s.state.MatchHistory = append(s.state.MatchHistory, &domain.HistoryMatch{
			ID:         gonanoid.Must(),
			Date:       date,
			SessionNum: m.SessionNum,
			T1IDs:      []string{m.T1[0].ID, m.T1[1].ID},
			T2IDs:      []string{m.T2[0].ID, m.T2[1].ID},
			T1Names:    []string{m.T1[0].Name, m.T1[1].Name},
			T2Names:    []string{m.T2[0].Name, m.T2[1].Name},
			Score1:     *m.S1,
			Score2:     *m.S2,
		})
	}

	matches := len(s.state.CurrentSchedule)
	s.state.CurrentSchedule = []*domain.ScheduledMatch{}
	s.state.Applicants = []*domain.Applicant{}

	if err := s.saveStateLocked(ctx); err != nil {
		return nil, err
	}

	next := engine.NextSessionNum(s.state.MatchHistory)
	if num, err := strconv.Atoi(sessionNum); err == nil {
		next = num + 1
	}
	if err := s.saveStatusLocked(ctx, &domain.SessionStatus{
		Status:     domain.StatusIdle,
		SessionNum: next,
	}); err != nil {
		return nil, err
	}

	s.replayLocked()
	s.logger.Info().
		Str("session_num", sessionNum).
		Int("matches", matches).
		Int("new_members", newMembers).
		Msg("session committed")

	return &CommitResult{SessionNum: sessionNum, Matches: matches, NewMembers: newMembers}, nil
}

// EditHistoryMatch rewrites names and scores on a confirmed match, then
// replays everything. ids stay untouched.
func (s *LeagueService) EditHistoryMatch(ctx context.Context, id string, t1Names, t2Names []string, score1, score2 int) error {
	if len(t1Names) != 2 || len(t2Names) != 2 {
		return domain.Validationf("each team needs exactly 2 names")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var match *domain.HistoryMatch
	for _, h := range s.state.MatchHistory {
		if h.ID == id {
			match = h
			break
		}
	}
	if match == nil {
		return domain.Validationf("unknown history match %q", id)
	}

	match.T1Names = append([]string{}, t1Names...)
	match.T2Names = append([]string{}, t2Names...)
	match.Score1 = score1
	match.Score2 = score2

	if err := s.saveStateLocked(ctx); err != nil {
		return err
	}
	s.replayLocked()
	return nil
}

func (s *LeagueService) DeleteHistoryMatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.state.MatchHistory[:0]
	found := false
	for _, h := range s.state.MatchHistory {
		if h.ID == id {
			found = true
			continue
		}
		kept = append(kept, h)
	}
	if !found {
		return domain.Validationf("unknown history match %q", id)
	}
	s.state.MatchHistory = kept

	if err := s.saveStateLocked(ctx); err != nil {
		return err
	}
	s.replayLocked()
	return nil
}

func (s *LeagueService) Clusters(ctx context.Context) ([]string, error) {
	return s.states.ListClusters(ctx)
}

func (s *LeagueService) scheduledMatchLocked(id string) *domain.ScheduledMatch {
	for _, m := range s.state.CurrentSchedule {
		if m.ID == id {
			return m
		}
	}
	return nil
}
