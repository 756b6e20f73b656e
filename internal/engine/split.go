package engine

import (
	"sort"
	"strconv"
	"strings"

	"ace-league/internal/domain"
)

const (
	MinGroupSize = 4
	MaxGroupSize = 8

	// MaxSessionGames caps the total matches a session may schedule when
	// searching for a partition automatically.
	MaxSessionGames = 18
)

// GameCounts maps a group size to the number of matches its fixed
// round-robin pattern produces.
var GameCounts = map[int]int{4: 3, 5: 5, 6: 6, 7: 7, 8: 8}

// splitTable holds hand-tuned partitions for common participant counts.
// Tuned for even round counts rather than raw game maximization, so it
// takes precedence over the search below.
var splitTable = map[int][]int{
	4: {4}, 5: {5}, 6: {6}, 7: {7}, 8: {8},
	9: {5, 4}, 10: {5, 5}, 11: {6, 5},
	12: {4, 4, 4}, 13: {5, 4, 4}, 14: {5, 5, 4}, 15: {5, 5, 5},
	16: {5, 6, 5}, 17: {6, 6, 5}, 18: {6, 6, 6},
	19: {5, 5, 5, 4}, 20: {4, 4, 4, 4, 4}, 21: {4, 4, 5, 4, 4},
	22: {4, 4, 6, 4, 4}, 23: {4, 4, 7, 4, 4}, 24: {4, 4, 4, 4, 4, 4},
}

// TotalGames sums the scheduled game count of every group in the split.
func TotalGames(split []int) int {
	total := 0
	for _, size := range split {
		total += GameCounts[size]
	}
	return total
}

// Split returns the partition of n participants into groups of 4..8.
// Counts in the curated table are returned as-is; anything beyond it falls
// back to an exhaustive composition search. Fewer than 4 participants
// cannot form a group and yield an empty partition.
func Split(n int) []int {
	if split, ok := splitTable[n]; ok {
		out := make([]int, len(split))
		copy(out, split)
		return out
	}
	if n < MinGroupSize {
		return []int{}
	}
	return searchSplit(n)
}

// searchSplit enumerates every partition of n into parts of 4..8,
// deduplicates permutations, and picks the one scheduling the most games
// within the session cap. If nothing fits the cap the first candidate is
// returned so the caller still gets a valid partition.
func searchSplit(n int) []int {
	memo := map[int][][]int{}
	var compose func(rem int) [][]int
	compose = func(rem int) [][]int {
		if rem == 0 {
			return [][]int{{}}
		}
		if rem < MinGroupSize {
			return nil
		}
		if cached, ok := memo[rem]; ok {
			return cached
		}
		var all [][]int
		for size := MinGroupSize; size <= MaxGroupSize; size++ {
			for _, sub := range compose(rem - size) {
				next := make([]int, len(sub), len(sub)+1)
				copy(next, sub)
				next = append(next, size)
				sort.Ints(next)
				all = append(all, next)
			}
		}
		seen := map[string]bool{}
		uniq := all[:0]
		for _, split := range all {
			key := splitKey(split)
			if !seen[key] {
				seen[key] = true
				uniq = append(uniq, split)
			}
		}
		memo[rem] = uniq
		return uniq
	}

	candidates := compose(n)
	if len(candidates) == 0 {
		return []int{}
	}

	var best []int
	bestGames := -1
	for _, split := range candidates {
		games := TotalGames(split)
		if games <= MaxSessionGames && games > bestGames {
			bestGames = games
			best = split
		}
	}
	if best == nil {
		best = candidates[0]
	}
	return best
}

func splitKey(split []int) string {
	parts := make([]string, len(split))
	for i, size := range split {
		parts[i] = strconv.Itoa(size)
	}
	return strings.Join(parts, ",")
}

// ValidateSplit checks an operator-supplied partition override: every size
// must be within 4..8 and the sizes must sum to exactly n. A bad override
// is a validation error, never a silent fallback.
func ValidateSplit(split []int, n int) error {
	sum := 0
	for _, size := range split {
		if size < MinGroupSize || size > MaxGroupSize {
			return domain.Validationf("group size %d out of range [%d,%d]", size, MinGroupSize, MaxGroupSize)
		}
		sum += size
	}
	if sum != n {
		return domain.Validationf("split sums to %d, have %d participants", sum, n)
	}
	return nil
}

// ParseSplit parses a comma-separated list of group sizes, such as "5,4".
// An empty input yields nil, meaning no override.
func ParseSplit(input string) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	var split []int
	for _, part := range strings.Split(input, ",") {
		size, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, domain.Validationf("invalid group size %q", strings.TrimSpace(part))
		}
		split = append(split, size)
	}
	return split, nil
}
