package engine

import (
	"math/rand"
	"sort"

	"ace-league/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// matchPatterns are the fixed round-robin pairing tables, indexed by group
// size. Each entry names the two teams of one match by player index within
// the group. These are literal data: changing a single pair changes every
// schedule the system has ever produced.
var matchPatterns = map[int][][2][2]int{
	4: {
		{{0, 1}, {2, 3}}, {{0, 3}, {1, 2}}, {{0, 2}, {1, 3}},
	},
	5: {
		{{0, 2}, {1, 4}}, {{0, 4}, {1, 3}}, {{1, 2}, {3, 4}},
		{{0, 3}, {2, 4}}, {{0, 1}, {2, 3}},
	},
	6: {
		{{0, 2}, {1, 4}}, {{1, 3}, {4, 5}}, {{0, 5}, {2, 4}},
		{{0, 3}, {1, 2}}, {{0, 4}, {3, 5}}, {{1, 5}, {2, 3}},
	},
	7: {
		{{0, 3}, {2, 6}}, {{1, 4}, {2, 5}}, {{0, 4}, {1, 3}},
		{{4, 5}, {3, 6}}, {{1, 6}, {2, 3}}, {{0, 5}, {2, 4}},
		{{0, 6}, {1, 5}},
	},
	8: {
		{{0, 4}, {1, 5}}, {{2, 6}, {3, 7}}, {{0, 5}, {3, 6}},
		{{1, 4}, {2, 7}}, {{2, 4}, {0, 6}}, {{3, 5}, {1, 7}},
		{{0, 7}, {3, 4}}, {{2, 5}, {1, 6}},
	},
}

// ScheduleRequest carries everything the generator needs. Ranked reports
// which applicant ids hold a position in the current ranking; everyone
// else is brand new and gets a virtual rank for display.
type ScheduleRequest struct {
	Applicants  []*domain.Applicant
	Ranked      map[string]bool
	MemberCount int
	SessionNum  string
	CustomSplit []int
}

// BuildSchedule resolves the partition, orders the applicants (ranked by
// rating descending, then new applicants in randomized order), slices them
// into groups, and expands every group through its pairing table.
func BuildSchedule(req ScheduleRequest, rng *rand.Rand) ([]*domain.ScheduledMatch, error) {
	if req.SessionNum == "" {
		return nil, domain.Validationf("no session number set")
	}

	n := len(req.Applicants)
	var split []int
	if len(req.CustomSplit) > 0 {
		if err := ValidateSplit(req.CustomSplit, n); err != nil {
			return nil, err
		}
		split = req.CustomSplit
	} else {
		split = Split(n)
	}
	if len(split) == 0 {
		return nil, domain.Validationf("cannot partition %d participants into groups of %d..%d", n, MinGroupSize, MaxGroupSize)
	}

	players := orderPlayers(req, rng)

	var schedule []*domain.ScheduledMatch
	cursor := 0
	groupIdx := 0
	for _, size := range split {
		group := players[cursor : cursor+size]
		cursor += size
		if len(group) < MinGroupSize {
			continue
		}
		pattern, ok := matchPatterns[len(group)]
		if !ok {
			continue
		}
		label := string(rune('A' + groupIdx))
		groupIdx++
		for i, pair := range pattern {
			round := i + 1
			if len(group) == MaxGroupSize {
				// size-8 pattern entries interleave two courts per round
				round = i/2 + 1
			}
			schedule = append(schedule, &domain.ScheduledMatch{
				ID:         gonanoid.Must(),
				SessionNum: req.SessionNum,
				Group:      label,
				GroupRound: round,
				T1:         []domain.Player{group[pair[0][0]], group[pair[0][1]]},
				T2:         []domain.Player{group[pair[1][0]], group[pair[1][1]]},
			})
		}
	}
	return schedule, nil
}

// orderPlayers puts ranked applicants first (rating descending) and
// appends brand-new applicants in randomized order, assigning each a
// sequential virtual rank starting past the current member count.
func orderPlayers(req ScheduleRequest, rng *rand.Rand) []domain.Player {
	var ranked, fresh []*domain.Applicant
	for _, a := range req.Applicants {
		if req.Ranked[a.ID] {
			ranked = append(ranked, a)
		} else {
			fresh = append(fresh, a)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rating > ranked[j].Rating
	})
	rng.Shuffle(len(fresh), func(i, j int) {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	})

	players := make([]domain.Player, 0, len(req.Applicants))
	for _, a := range ranked {
		players = append(players, domain.Player{ID: a.ID, Name: a.Name, Rating: a.Rating})
	}
	vRank := req.MemberCount + 1
	for _, a := range fresh {
		players = append(players, domain.Player{ID: a.ID, Name: a.Name, Rating: a.Rating, VRank: vRank})
		vRank++
	}
	return players
}
