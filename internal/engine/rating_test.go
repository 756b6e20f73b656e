package engine

import (
	"math/rand"
	"testing"

	"ace-league/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(id string) *domain.Member {
	return &domain.Member{ID: id, Name: id, Rating: InitialRating}
}

func historyMatch(session string, t1, t2 []string, s1, s2 int) *domain.HistoryMatch {
	return &domain.HistoryMatch{
		ID:         session + "-" + t1[0] + t2[0],
		SessionNum: session,
		T1IDs:      t1,
		T2IDs:      t2,
		T1Names:    t1,
		T2Names:    t2,
		Score1:     s1,
		Score2:     s2,
	}
}

func testState(members []*domain.Member, history []*domain.HistoryMatch) *domain.LeagueState {
	state := domain.NewLeagueState()
	state.Members = members
	state.MatchHistory = history
	return state
}

func TestReplayMatchFavoredTeamWins(t *testing.T) {
	a1, a2, b1, b2 := member("a1"), member("a2"), member("b1"), member("b2")
	byID := map[string]*domain.Member{"a1": a1, "a2": a2, "b1": b1, "b2": b2}
	snapshot := map[string]float64{"a1": 1600, "a2": 1600, "b1": 1500, "b2": 1500}
	a1.Rating, a2.Rating = 1600, 1600

	h := historyMatch("1", []string{"a1", "a2"}, []string{"b1", "b2"}, 6, 2)
	replayMatch(h, "1", snapshot, byID, zerolog.Nop())

	require.NotNil(t, h.EloAtMatch)
	assert.InDelta(t, 0.64, h.EloAtMatch.Expected, 0.005)
	assert.InDelta(t, 11.52, h.EloAtMatch.Change1, 0.01)
	assert.InDelta(t, 1611.52, a1.Rating, 0.01)
	assert.Equal(t, 1, a1.Wins)
	assert.Equal(t, 1, b1.Losses)
	assert.Equal(t, 4, a1.ScoreDiff)
	assert.Equal(t, -4, b1.ScoreDiff)
}

func TestReplayMatchShutoutBonus(t *testing.T) {
	a1, a2, b1, b2 := member("a1"), member("a2"), member("b1"), member("b2")
	byID := map[string]*domain.Member{"a1": a1, "a2": a2, "b1": b1, "b2": b2}
	snapshot := map[string]float64{"a1": 1500, "a2": 1500, "b1": 1500, "b2": 1500}

	h := historyMatch("1", []string{"a1", "a2"}, []string{"b1", "b2"}, 6, 0)
	replayMatch(h, "1", snapshot, byID, zerolog.Nop())

	// K * (1 - 0.5) * 1.5
	assert.InDelta(t, 24, h.EloAtMatch.Change1, 0.001)
	assert.InDelta(t, -24, h.EloAtMatch.Change2, 0.001)
	assert.InDelta(t, 1524, a1.Rating, 0.001)
	assert.InDelta(t, 1476, b1.Rating, 0.001)
}

func TestReplayMatchDraw(t *testing.T) {
	a1, a2, b1, b2 := member("a1"), member("a2"), member("b1"), member("b2")
	byID := map[string]*domain.Member{"a1": a1, "a2": a2, "b1": b1, "b2": b2}
	snapshot := map[string]float64{"a1": 1500, "a2": 1500, "b1": 1500, "b2": 1500}

	h := historyMatch("1", []string{"a1", "a2"}, []string{"b1", "b2"}, 3, 3)
	replayMatch(h, "1", snapshot, byID, zerolog.Nop())

	assert.InDelta(t, 0, h.EloAtMatch.Change1, 0.001)
	assert.Equal(t, 1, a1.Draws)
	assert.Equal(t, 1, b2.Draws)
	assert.InDelta(t, 1500, a1.Rating, 0.001)
}

func TestRecalculateIdempotent(t *testing.T) {
	build := func() *domain.LeagueState {
		return testState(
			[]*domain.Member{member("a"), member("b"), member("c"), member("d")},
			[]*domain.HistoryMatch{
				historyMatch("1", []string{"a", "b"}, []string{"c", "d"}, 6, 4),
				historyMatch("1", []string{"a", "c"}, []string{"b", "d"}, 2, 6),
				historyMatch("2", []string{"a", "d"}, []string{"b", "c"}, 6, 0),
			},
		)
	}

	first := build()
	second := build()
	Recalculate(first, rand.New(rand.NewSource(1)), zerolog.Nop())
	Recalculate(second, rand.New(rand.NewSource(99)), zerolog.Nop())

	for i := range first.Members {
		assert.Equal(t, first.Members[i].Rating, second.Members[i].Rating, first.Members[i].ID)
		assert.Equal(t, first.Members[i].Wins, second.Members[i].Wins)
		assert.Equal(t, first.Members[i].ScoreDiff, second.Members[i].ScoreDiff)
		assert.Equal(t, first.Members[i].Participation, second.Members[i].Participation)
	}
}

func TestRecalculateUsesPreSessionRatings(t *testing.T) {
	state := testState(
		[]*domain.Member{member("a"), member("b"), member("c"), member("d")},
		[]*domain.HistoryMatch{
			historyMatch("1", []string{"a", "b"}, []string{"c", "d"}, 6, 0),
			historyMatch("1", []string{"a", "b"}, []string{"c", "d"}, 6, 0),
		},
	)
	Recalculate(state, rand.New(rand.NewSource(1)), zerolog.Nop())

	// both matches in the session read the same 1500-average snapshot even
	// though ratings change after the first one
	first := state.MatchHistory[0].EloAtMatch
	second := state.MatchHistory[1].EloAtMatch
	assert.Equal(t, first.T1Before, second.T1Before)
	assert.Equal(t, first.Expected, second.Expected)
	assert.InDelta(t, first.Change1, second.Change1, 0.001)

	// changes still accumulate on the live rating
	a := state.MemberByID("a")
	assert.InDelta(t, 1500+2*first.Change1, a.Rating, 0.001)
}

func TestRecalculateSkipsUnresolvedMatch(t *testing.T) {
	state := testState(
		[]*domain.Member{member("a"), member("b"), member("c"), member("d")},
		[]*domain.HistoryMatch{
			historyMatch("1", []string{"a", "ghost"}, []string{"c", "d"}, 6, 0),
		},
	)
	Recalculate(state, rand.New(rand.NewSource(1)), zerolog.Nop())

	assert.Nil(t, state.MatchHistory[0].EloAtMatch)
	for _, m := range state.Members {
		assert.InDelta(t, InitialRating, m.Rating, 0.001, m.ID)
		assert.Zero(t, m.MatchCount, m.ID)
	}
}

func TestRecalculateParticipationOncePerSession(t *testing.T) {
	state := testState(
		[]*domain.Member{member("a"), member("b"), member("c"), member("d")},
		[]*domain.HistoryMatch{
			historyMatch("1", []string{"a", "b"}, []string{"c", "d"}, 6, 4),
			historyMatch("1", []string{"a", "c"}, []string{"b", "d"}, 6, 4),
			historyMatch("2", []string{"a", "b"}, []string{"c", "d"}, 4, 6),
		},
	)
	Recalculate(state, rand.New(rand.NewSource(1)), zerolog.Nop())

	a := state.MemberByID("a")
	assert.Equal(t, 3, a.MatchCount)
	assert.Equal(t, []string{"1", "2"}, a.Participation)
}

func TestRecalculateBuildsSnapshotPerSession(t *testing.T) {
	state := testState(
		[]*domain.Member{member("a"), member("b"), member("c"), member("d")},
		[]*domain.HistoryMatch{
			historyMatch("1", []string{"a", "b"}, []string{"c", "d"}, 6, 0),
			historyMatch("2", []string{"a", "b"}, []string{"c", "d"}, 0, 6),
		},
	)
	standings := Recalculate(state, rand.New(rand.NewSource(1)), zerolog.Nop())

	require.Equal(t, []string{"1", "2"}, standings.SessionIDs)
	require.Contains(t, standings.SessionSnapshots, "1")
	require.Contains(t, standings.SessionSnapshots, "2")

	// at the start of session 2 the winners of session 1 hold ranks 1-2
	snap := standings.SessionSnapshots["2"]
	assert.Less(t, snap["a"], snap["c"])
	assert.Less(t, snap["b"], snap["d"])

	// start-of-session ratings: session 1 is all-initial, session 2 is not
	for _, r := range standings.SessionStartRatings["1"] {
		assert.InDelta(t, InitialRating, r, 0.001)
	}
	assert.Greater(t, standings.SessionStartRatings["2"]["a"], InitialRating)
}

func TestApplyCurrentRankingDeltas(t *testing.T) {
	a := member("a")
	b := member("b")
	x := member("x")
	a.Rating = 1520
	b.Rating = 1510
	x.Rating = 1550

	standings := domain.NewStandings()
	// x was rank 3 before the final session, is rank 1 now
	applyCurrentRanking(standings, []*domain.Member{a, b, x}, []string{"a", "b", "x"}, rand.New(rand.NewSource(1)))

	require.True(t, standings.RankMap["x"].Known)
	assert.Equal(t, 1, standings.RankMap["x"].Rank)
	assert.Equal(t, 2, standings.RankMap["x"].Change)
	assert.Equal(t, -1, standings.RankMap["a"].Change)
	assert.Equal(t, -1, standings.RankMap["b"].Change)
}

func TestApplyCurrentRankingUnknownMember(t *testing.T) {
	a := member("a")
	fresh := member("new")
	a.Rating = 1520

	standings := domain.NewStandings()
	applyCurrentRanking(standings, []*domain.Member{a, fresh}, []string{"a"}, rand.New(rand.NewSource(1)))

	assert.False(t, standings.RankMap["new"].Known)
	assert.Equal(t, 2, standings.RankMap["new"].Rank)
}

func TestSessionIDsOrderingAndFiltering(t *testing.T) {
	history := []*domain.HistoryMatch{
		historyMatch("10", []string{"a", "b"}, []string{"c", "d"}, 1, 0),
		historyMatch("2", []string{"a", "b"}, []string{"c", "d"}, 1, 0),
		historyMatch("", []string{"a", "b"}, []string{"c", "d"}, 1, 0),
		historyMatch("friendly", []string{"a", "b"}, []string{"c", "d"}, 1, 0),
		historyMatch("2", []string{"a", "b"}, []string{"c", "d"}, 1, 0),
	}
	assert.Equal(t, []string{"2", "10"}, SessionIDs(history))
}

func TestNextSessionNum(t *testing.T) {
	assert.Equal(t, 1, NextSessionNum(nil))
	history := []*domain.HistoryMatch{
		historyMatch("3", []string{"a", "b"}, []string{"c", "d"}, 1, 0),
		historyMatch("7", []string{"a", "b"}, []string{"c", "d"}, 1, 0),
	}
	assert.Equal(t, 8, NextSessionNum(history))
}
