package service

import (
	"math"
	"sort"
	"strconv"

	"ace-league/internal/domain"
	"ace-league/internal/engine"
)

type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	RankChange int     `json:"rankChange"`
	IsNew      bool    `json:"isNew"`
	MemberID   string  `json:"memberId"`
	Name       string  `json:"name"`
	Rating     int     `json:"rating"`
	Wins       int     `json:"wins"`
	Draws      int     `json:"draws"`
	Losses     int     `json:"losses"`
	WinRate    int     `json:"winRate"`
	ScoreDiff  int     `json:"scoreDiff"`
	Attendance int     `json:"attendance"`
	RawRating  float64 `json:"-"`
}

type ApplicantEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Rank  int    `json:"rank,omitempty"`
	IsNew bool   `json:"isNew"`
}

type StatsSummary struct {
	TotalMembers  int    `json:"totalMembers"`
	TotalSessions int    `json:"totalSessions"`
	TotalMatches  int    `json:"totalMatches"`
	TopMember     string `json:"topMember"`
}

type SplitPreview struct {
	Participants int   `json:"participants"`
	Split        []int `json:"split"`
	TotalGames   int   `json:"totalGames"`
	WithinCap    bool  `json:"withinCap"`
}

// HistoryMatchView presents one confirmed match with the winning side
// first; on a draw the underdog (lower cached expected score) leads.
// Ranks are the ones valid at that match's session, zero meaning the
// player was brand new at the time.
type HistoryMatchView struct {
	ID       string   `json:"id"`
	T1Names  []string `json:"t1Names"`
	T2Names  []string `json:"t2Names"`
	T1Ranks  []int    `json:"t1Ranks"`
	T2Ranks  []int    `json:"t2Ranks"`
	Score1   int      `json:"score1"`
	Score2   int      `json:"score2"`
	EloDelta float64  `json:"eloDelta"`
}

type PlayerSessionSummary struct {
	MemberID string  `json:"memberId"`
	Name     string  `json:"name"`
	Rank     int     `json:"rank,omitempty"`
	Wins     int     `json:"wins"`
	Draws    int     `json:"draws"`
	Losses   int     `json:"losses"`
	EloSum   float64 `json:"eloSum"`
}

type SessionHistory struct {
	SessionNum string                 `json:"sessionNum"`
	Date       string                 `json:"date"`
	Matches    []HistoryMatchView     `json:"matches"`
	Players    []PlayerSessionSummary `json:"players"`
}

func (s *LeagueService) Session() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.session
}

// Leaderboard returns every member ordered by rating descending, with the
// derived rank deltas and attendance. Exact-rating ties keep the order the
// replay's random tie-break produced.
func (s *LeagueService) Leaderboard() []LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	totalSessions := len(s.standings.SessionIDs)

	entries := make([]LeaderboardEntry, 0, len(s.state.Members))
	for _, m := range s.state.Members {
		info := s.standings.RankMap[m.ID]

		winRate := 0
		if m.MatchCount > 0 {
			winRate = int(math.Round(float64(m.Wins) / float64(m.MatchCount) * 100))
		}
		attendance := 0
		if totalSessions > 0 {
			attendance = int(math.Round(float64(len(m.Participation)) / float64(totalSessions) * 100))
		}

		entries = append(entries, LeaderboardEntry{
			Rank:       info.Rank,
			RankChange: info.Change,
			IsNew:      !info.Known || len(m.Participation) == 1,
			MemberID:   m.ID,
			Name:       m.Name,
			Rating:     int(math.Round(m.Rating)),
			Wins:       m.Wins,
			Draws:      m.Draws,
			Losses:     m.Losses,
			WinRate:    winRate,
			ScoreDiff:  m.ScoreDiff,
			Attendance: attendance,
			RawRating:  m.Rating,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Rank < entries[j].Rank
	})
	return entries
}

func (s *LeagueService) Applicants() []ApplicantEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]ApplicantEntry, 0, len(s.state.Applicants))
	for _, a := range s.state.Applicants {
		entry := ApplicantEntry{ID: a.ID, Name: a.Name, IsNew: true}
		if info, ok := s.standings.RankMap[a.ID]; ok {
			entry.Rank = info.Rank
			entry.IsNew = false
		}
		entries = append(entries, entry)
	}
	// ranked applicants first, by current rank
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := entries[i].Rank, entries[j].Rank
		if ri == 0 {
			ri = int(^uint(0) >> 1)
		}
		if rj == 0 {
			rj = int(^uint(0) >> 1)
		}
		return ri < rj
	})
	return entries
}

// Schedule returns a copy of the in-progress match list.
func (s *LeagueService) Schedule() []domain.ScheduledMatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ScheduledMatch, 0, len(s.state.CurrentSchedule))
	for _, m := range s.state.CurrentSchedule {
		copied := *m
		copied.T1 = append([]domain.Player{}, m.T1...)
		copied.T2 = append([]domain.Player{}, m.T2...)
		out = append(out, copied)
	}
	return out
}

func (s *LeagueService) Stats() StatsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := StatsSummary{
		TotalMembers:  len(s.state.Members),
		TotalSessions: len(s.standings.SessionIDs),
		TotalMatches:  len(s.state.MatchHistory),
	}

	best := ""
	bestRating := math.Inf(-1)
	for _, m := range s.state.Members {
		if m.Rating > bestRating {
			bestRating = m.Rating
			best = m.Name
		}
	}
	summary.TopMember = best
	return summary
}

// PreviewSplit reports the partition the splitter would pick for n
// participants, or the validated override.
func (s *LeagueService) PreviewSplit(n int, customSplit string) (*SplitPreview, error) {
	split, err := engine.ParseSplit(customSplit)
	if err != nil {
		return nil, err
	}
	if split != nil {
		if err := engine.ValidateSplit(split, n); err != nil {
			return nil, err
		}
	} else {
		split = engine.Split(n)
	}

	games := engine.TotalGames(split)
	return &SplitPreview{
		Participants: n,
		Split:        split,
		TotalGames:   games,
		WithinCap:    games <= engine.MaxSessionGames,
	}, nil
}

// HistorySessions groups confirmed matches by session, newest session
// first, with both the per-match and per-player renditions.
func (s *LeagueService) HistorySessions() []SessionHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	grouped := map[string][]*domain.HistoryMatch{}
	var order []string
	for _, h := range s.state.MatchHistory {
		if _, ok := grouped[h.SessionNum]; !ok {
			order = append(order, h.SessionNum)
		}
		grouped[h.SessionNum] = append(grouped[h.SessionNum], h)
	}
	sort.SliceStable(order, func(i, j int) bool {
		ni, _ := strconv.Atoi(order[i])
		nj, _ := strconv.Atoi(order[j])
		return ni > nj
	})

	sessions := make([]SessionHistory, 0, len(order))
	for _, sid := range order {
		matches := grouped[sid]
		session := SessionHistory{
			SessionNum: sid,
			Date:       matches[0].Date,
			Matches:    make([]HistoryMatchView, 0, len(matches)),
			Players:    s.playerSummariesLocked(sid, matches),
		}
		for _, h := range matches {
			session.Matches = append(session.Matches, s.matchViewLocked(h))
		}
		sessions = append(sessions, session)
	}
	return sessions
}

func (s *LeagueService) matchViewLocked(h *domain.HistoryMatch) HistoryMatchView {
	swap := false
	if h.Score1 < h.Score2 {
		swap = true
	} else if h.Score1 == h.Score2 && h.EloAtMatch != nil && h.EloAtMatch.Expected > 0.5 {
		swap = true
	}

	t1IDs, t2IDs := h.T1IDs, h.T2IDs
	t1Names, t2Names := h.T1Names, h.T2Names
	score1, score2 := h.Score1, h.Score2
	delta := 0.0
	if h.EloAtMatch != nil {
		delta = h.EloAtMatch.Change1
	}
	if swap {
		t1IDs, t2IDs = t2IDs, t1IDs
		t1Names, t2Names = t2Names, t1Names
		score1, score2 = score2, score1
		if h.EloAtMatch != nil {
			delta = h.EloAtMatch.Change2
		}
	}

	return HistoryMatchView{
		ID:       h.ID,
		T1Names:  append([]string{}, t1Names...),
		T2Names:  append([]string{}, t2Names...),
		T1Ranks:  s.snapshotRanksLocked(h.SessionNum, t1IDs),
		T2Ranks:  s.snapshotRanksLocked(h.SessionNum, t2IDs),
		Score1:   score1,
		Score2:   score2,
		EloDelta: delta,
	}
}

func (s *LeagueService) snapshotRanksLocked(sessionNum string, ids []string) []int {
	ranks := make([]int, len(ids))
	snapshot := s.standings.SessionSnapshots[sessionNum]
	for i, id := range ids {
		ranks[i] = snapshot[id] // zero when unknown: brand new at the time
	}
	return ranks
}

func (s *LeagueService) playerSummariesLocked(sid string, matches []*domain.HistoryMatch) []PlayerSessionSummary {
	byID := map[string]*PlayerSessionSummary{}
	var order []string

	record := func(ids, names []string, score, oppScore int, change float64) {
		for i, id := range ids {
			p, ok := byID[id]
			if !ok {
				p = &PlayerSessionSummary{MemberID: id, Name: names[i]}
				if snapshot := s.standings.SessionSnapshots[sid]; snapshot != nil {
					p.Rank = snapshot[id]
				}
				byID[id] = p
				order = append(order, id)
			}
			switch {
			case score > oppScore:
				p.Wins++
			case score < oppScore:
				p.Losses++
			default:
				p.Draws++
			}
			p.EloSum += change
		}
	}

	for _, h := range matches {
		var change1, change2 float64
		if h.EloAtMatch != nil {
			change1, change2 = h.EloAtMatch.Change1, h.EloAtMatch.Change2
		}
		if len(h.T1IDs) == len(h.T1Names) {
			record(h.T1IDs, h.T1Names, h.Score1, h.Score2, change1)
		}
		if len(h.T2IDs) == len(h.T2Names) {
			record(h.T2IDs, h.T2Names, h.Score2, h.Score1, change2)
		}
	}

	summaries := make([]PlayerSessionSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *byID[id])
	}
	// session-rank order, unknowns last
	sort.SliceStable(summaries, func(i, j int) bool {
		ri, rj := summaries[i].Rank, summaries[j].Rank
		if ri == 0 {
			ri = int(^uint(0) >> 1)
		}
		if rj == 0 {
			rj = int(^uint(0) >> 1)
		}
		return ri < rj
	})
	return summaries
}

// TrendSeries reconstructs a member's rating after each session from the
// cached per-match deltas, starting at the initial rating.
func (s *LeagueService) TrendSeries(memberID string) (labels []string, ratings []float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.MemberByID(memberID) == nil {
		return nil, nil, domain.Validationf("unknown member %q", memberID)
	}

	labels = []string{"start"}
	ratings = []float64{engine.InitialRating}
	current := float64(engine.InitialRating)

	for _, sid := range s.standings.SessionIDs {
		for _, h := range s.state.MatchHistory {
			if h.SessionNum != sid || h.EloAtMatch == nil {
				continue
			}
			if containsID(h.T1IDs, memberID) {
				current += h.EloAtMatch.Change1
			}
			if containsID(h.T2IDs, memberID) {
				current += h.EloAtMatch.Change2
			}
		}
		labels = append(labels, sid)
		ratings = append(ratings, current)
	}
	return labels, ratings, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
