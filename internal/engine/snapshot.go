package engine

import (
	"math/rand"
	"sort"

	"ace-league/internal/domain"
)

// buildRankSnapshot captures the total order over members at a session
// boundary: members with at least one played match sorted by rating
// descending, then never-played members in shuffled order. Ranks are
// 1-based. The shuffle makes the tail intentionally non-deterministic;
// snapshots are display data only.
func buildRankSnapshot(members []*domain.Member, rng *rand.Rand) map[string]int {
	var played, unplayed []*domain.Member
	for _, m := range members {
		if m.MatchCount > 0 {
			played = append(played, m)
		} else {
			unplayed = append(unplayed, m)
		}
	}
	sort.SliceStable(played, func(i, j int) bool {
		return played[i].Rating > played[j].Rating
	})
	rng.Shuffle(len(unplayed), func(i, j int) {
		unplayed[i], unplayed[j] = unplayed[j], unplayed[i]
	})

	snapshot := make(map[string]int, len(members))
	rank := 1
	for _, m := range append(played, unplayed...) {
		snapshot[m.ID] = rank
		rank++
	}
	return snapshot
}

// applyCurrentRanking orders all members by rating descending, breaking
// exact ties with a freshly drawn random key (two-phase sort rather than a
// random comparator), then derives each member's signed rank delta against
// the pre-final-session ranking.
func applyCurrentRanking(standings *domain.Standings, members []*domain.Member, previousRanking []string, rng *rand.Rand) {
	ranked := make([]*domain.Member, len(members))
	copy(ranked, members)
	tieKey := make(map[string]float64, len(ranked))
	for _, m := range ranked {
		tieKey[m.ID] = rng.Float64()
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		return tieKey[ranked[i].ID] < tieKey[ranked[j].ID]
	})

	prevIndex := make(map[string]int, len(previousRanking))
	for i, id := range previousRanking {
		prevIndex[id] = i
	}

	for idx, m := range ranked {
		info := domain.RankInfo{Rank: idx + 1}
		if prev, ok := prevIndex[m.ID]; ok {
			info.Change = prev - idx
			info.Known = true
		}
		standings.RankMap[m.ID] = info
	}
}

func idsByRating(members []*domain.Member) []string {
	sorted := make([]*domain.Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating > sorted[j].Rating
	})
	ids := make([]string, len(sorted))
	for i, m := range sorted {
		ids[i] = m.ID
	}
	return ids
}
