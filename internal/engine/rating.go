package engine

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"ace-league/internal/domain"

	"github.com/rs/zerolog"
)

const (
	InitialRating = 1500.0
	KFactor       = 32.0

	// ShutoutDiff is the score differential at which the shutout bonus
	// multiplies both teams' rating changes.
	ShutoutDiff  = 6
	ShutoutBonus = 1.5
)

// Recalculate replays the entire match history from the initial rating and
// returns the derived standings. Members are reset first, so the result is
// a pure function of the history; the rating field on a member is never
// trusted as input. Malformed history rows are logged and skipped, never
// fatal.
//
// The shuffle of never-played members and the tie-break between equal
// ratings draw from rng; both are display-only and feed nothing back into
// the rating math.
func Recalculate(state *domain.LeagueState, rng *rand.Rand, logger zerolog.Logger) *domain.Standings {
	standings := domain.NewStandings()

	for _, m := range state.Members {
		m.Rating = InitialRating
		m.PrevRating = InitialRating
		m.MatchCount = 0
		m.Wins = 0
		m.Losses = 0
		m.Draws = 0
		m.ScoreDiff = 0
		m.Participation = []string{}
	}

	byID := make(map[string]*domain.Member, len(state.Members))
	for _, m := range state.Members {
		byID[m.ID] = m
	}

	sessionIDs := SessionIDs(state.MatchHistory)
	standings.SessionIDs = sessionIDs

	var previousRanking []string
	for idx, sid := range sessionIDs {
		if idx == len(sessionIDs)-1 {
			// basis for the rank-change deltas after the final session
			for _, m := range state.Members {
				m.PrevRating = m.Rating
			}
			previousRanking = idsByRating(state.Members)
		}

		snapshot := make(map[string]float64, len(state.Members))
		for _, m := range state.Members {
			snapshot[m.ID] = m.Rating
		}
		standings.SessionSnapshots[sid] = buildRankSnapshot(state.Members, rng)
		standings.SessionStartRatings[sid] = snapshot

		for _, h := range state.MatchHistory {
			if h.SessionNum != sid {
				continue
			}
			replayMatch(h, sid, snapshot, byID, logger)
		}
	}

	applyCurrentRanking(standings, state.Members, previousRanking, rng)
	return standings
}

// replayMatch applies one historical match on top of the live ratings.
// Expected scores come from the pre-session snapshot so match order within
// a session cannot bias the result; rating changes still accumulate live.
func replayMatch(h *domain.HistoryMatch, sid string, snapshot map[string]float64, byID map[string]*domain.Member, logger zerolog.Logger) {
	team1 := resolveTeam(h.T1IDs, byID)
	team2 := resolveTeam(h.T2IDs, byID)
	if len(team1) != 2 || len(team2) != 2 {
		logger.Warn().
			Str("match_id", h.ID).
			Str("session", sid).
			Msg("match references unknown members, skipped")
		return
	}

	avg1 := (snapshotRating(snapshot, team1[0].ID) + snapshotRating(snapshot, team1[1].ID)) / 2
	avg2 := (snapshotRating(snapshot, team2[0].ID) + snapshotRating(snapshot, team2[1].ID)) / 2

	exp1 := expectedScore(avg1, avg2)
	exp2 := expectedScore(avg2, avg1)

	act1, act2 := 0.5, 0.5
	switch {
	case h.Score1 > h.Score2:
		act1, act2 = 1, 0
	case h.Score1 < h.Score2:
		act1, act2 = 0, 1
	}

	// Each team's change uses its own expected value, so the two deltas
	// are not mirror images of each other.
	change1 := KFactor * (act1 - exp1)
	change2 := KFactor * (act2 - exp2)
	if abs(h.Score1-h.Score2) >= ShutoutDiff {
		change1 *= ShutoutBonus
		change2 *= ShutoutBonus
	}

	h.EloAtMatch = &domain.EloAtMatch{
		T1Before: avg1,
		T2Before: avg2,
		Expected: exp1,
		Change1:  change1,
		Change2:  change2,
	}

	for _, p := range append(append([]*domain.Member{}, team1...), team2...) {
		p.MatchCount++
		if !contains(p.Participation, sid) {
			p.Participation = append(p.Participation, sid)
		}
	}
	for _, p := range team1 {
		p.Rating += change1
		p.ScoreDiff += h.Score1 - h.Score2
		tally(p, act1)
	}
	for _, p := range team2 {
		p.Rating += change2
		p.ScoreDiff += h.Score2 - h.Score1
		tally(p, act2)
	}
}

// expectedScore is the standard Elo expectation for a side rated a against
// a side rated b.
func expectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

// SessionIDs extracts the distinct session ids from the history, sorted
// numerically ascending. Blank and non-numeric ids carry no replay order
// and are excluded.
func SessionIDs(history []*domain.HistoryMatch) []string {
	seen := map[string]bool{}
	type numbered struct {
		id  string
		num int
	}
	var ids []numbered
	for _, h := range history {
		if h.SessionNum == "" || seen[h.SessionNum] {
			continue
		}
		num, err := strconv.Atoi(h.SessionNum)
		if err != nil {
			continue
		}
		seen[h.SessionNum] = true
		ids = append(ids, numbered{id: h.SessionNum, num: num})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].num < ids[j].num })
	out := make([]string, len(ids))
	for i, n := range ids {
		out[i] = n.id
	}
	return out
}

// NextSessionNum suggests the session number after the highest one on
// record.
func NextSessionNum(history []*domain.HistoryMatch) int {
	max := 0
	for _, h := range history {
		if num, err := strconv.Atoi(h.SessionNum); err == nil && num > max {
			max = num
		}
	}
	return max + 1
}

func resolveTeam(ids []string, byID map[string]*domain.Member) []*domain.Member {
	var team []*domain.Member
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			team = append(team, m)
		}
	}
	return team
}

func snapshotRating(snapshot map[string]float64, id string) float64 {
	if r, ok := snapshot[id]; ok {
		return r
	}
	return InitialRating
}

func tally(m *domain.Member, actual float64) {
	switch actual {
	case 1:
		m.Wins++
	case 0:
		m.Losses++
	default:
		m.Draws++
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
