package domain

// Session lifecycle states. Exactly one SessionStatus document exists per
// cluster and drives which operations are allowed.
const (
	StatusIdle       = "idle"
	StatusRecruiting = "recruiting"
	StatusPlaying    = "playing"
)

type Member struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Rating        float64  `json:"rating"`
	MatchCount    int      `json:"matchCount"`
	Wins          int      `json:"wins"`
	Losses        int      `json:"losses"`
	Draws         int      `json:"draws"`
	ScoreDiff     int      `json:"scoreDiff"`
	Participation []string `json:"participationArr"`
	PrevRating    float64  `json:"prevRating"`
}

// Applicant is an ephemeral signup record: either a copy of an existing
// member (matched by name) or a fresh placeholder at the initial rating.
// It lives only between registration open and schedule generation.
type Applicant struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Rating     float64 `json:"rating"`
	MatchCount int     `json:"matchCount"`
}

// Player is the snapshot embedded in a scheduled match. VRank is a
// display-only virtual rank for brand-new applicants; it is never copied
// onto a Member.
type Player struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
	VRank  int     `json:"vRank,omitempty"`
}

type ScheduledMatch struct {
	ID         string   `json:"id"`
	SessionNum string   `json:"sessionNum"`
	Group      string   `json:"group"`
	GroupRound int      `json:"groupRound"`
	T1         []Player `json:"t1"`
	T2         []Player `json:"t2"`
	S1         *int     `json:"s1"`
	S2         *int     `json:"s2"`
}

// Scored reports whether both team scores have been entered.
func (m *ScheduledMatch) Scored() bool {
	return m.S1 != nil && m.S2 != nil
}

// EloAtMatch is the per-match rating cache recomputed on every replay. It
// is display data, never authoritative input.
type EloAtMatch struct {
	T1Before float64 `json:"t1_before"`
	T2Before float64 `json:"t2_before"`
	Expected float64 `json:"expected"`
	Change1  float64 `json:"change1"`
	Change2  float64 `json:"change2"`
}

type HistoryMatch struct {
	ID         string      `json:"id"`
	Date       string      `json:"date"`
	SessionNum string      `json:"sessionNum"`
	T1IDs      []string    `json:"t1_ids"`
	T2IDs      []string    `json:"t2_ids"`
	T1Names    []string    `json:"t1_names"`
	T2Names    []string    `json:"t2_names"`
	Score1     int         `json:"score1"`
	Score2     int         `json:"score2"`
	EloAtMatch *EloAtMatch `json:"elo_at_match,omitempty"`
}

// LeagueState is the whole cluster document: everything the engine reads
// and writes, persisted as a single JSON blob with last-writer-wins
// replace semantics. No partial updates exist.
type LeagueState struct {
	Members         []*Member         `json:"members"`
	MatchHistory    []*HistoryMatch   `json:"matchHistory"`
	CurrentSchedule []*ScheduledMatch `json:"currentSchedule"`
	SessionNum      int               `json:"sessionNum"`
	Applicants      []*Applicant      `json:"applicants"`
}

func NewLeagueState() *LeagueState {
	return &LeagueState{
		Members:         []*Member{},
		MatchHistory:    []*HistoryMatch{},
		CurrentSchedule: []*ScheduledMatch{},
		SessionNum:      1,
		Applicants:      []*Applicant{},
	}
}

func (s *LeagueState) MemberByID(id string) *Member {
	for _, m := range s.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *LeagueState) MemberByName(name string) *Member {
	for _, m := range s.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

type SessionStatus struct {
	Status     string `json:"status"`
	SessionNum int    `json:"sessionNum"`
}

// RankInfo is a member's position in the current global ranking. Change is
// the signed delta against the ranking computed just before the last
// replayed session (positive = improved) and is only meaningful when Known.
type RankInfo struct {
	Rank   int
	Change int
	Known  bool
}

// Standings is everything a full replay derives: the current ranking,
// per-session rank snapshots keyed by session id, and start-of-session
// rating snapshots. Rebuilt from scratch on every replay, never persisted.
type Standings struct {
	RankMap             map[string]RankInfo
	SessionSnapshots    map[string]map[string]int
	SessionStartRatings map[string]map[string]float64
	SessionIDs          []string
}

func NewStandings() *Standings {
	return &Standings{
		RankMap:             map[string]RankInfo{},
		SessionSnapshots:    map[string]map[string]int{},
		SessionStartRatings: map[string]map[string]float64{},
	}
}
