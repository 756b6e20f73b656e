package service

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"ace-league/internal/constants"
	"ace-league/internal/domain"
)

// LeaderboardChart renders the top members by rating as a PNG bar chart.
func (s *LeagueService) LeaderboardChart() ([]byte, error) {
	entries := s.Leaderboard()
	if len(entries) == 0 {
		return nil, domain.Validationf("no members to chart")
	}
	if len(entries) > constants.LeaderboardSize {
		entries = entries[:constants.LeaderboardSize]
	}

	bars := make([]chart.Value, 0, len(entries))
	for _, e := range entries {
		bars = append(bars, chart.Value{
			Label: e.Name,
			Value: e.RawRating,
		})
	}

	graph := chart.BarChart{
		Title:    "Leaderboard",
		Width:    1024,
		Height:   512,
		BarWidth: 40,
		Bars:     bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, domain.Persistence("render leaderboard chart", err)
	}
	return buf.Bytes(), nil
}

// TrendChart renders one member's session-by-session rating as a PNG
// line chart.
func (s *LeagueService) TrendChart(memberID string) ([]byte, error) {
	labels, ratings, err := s.TrendSeries(memberID)
	if err != nil {
		return nil, err
	}

	xs := make([]float64, len(ratings))
	ticks := make([]chart.Tick, 0, len(labels))
	for i := range ratings {
		xs[i] = float64(i)
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: labels[i]})
	}

	name := memberID
	s.mu.Lock()
	if m := s.state.MemberByID(memberID); m != nil {
		name = m.Name
	}
	s.mu.Unlock()

	graph := chart.Chart{
		Title:  fmt.Sprintf("Rating trend: %s", name),
		Width:  1024,
		Height: 512,
		XAxis: chart.XAxis{
			Ticks: ticks,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    name,
				XValues: xs,
				YValues: ratings,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, domain.Persistence("render trend chart", err)
	}
	return buf.Bytes(), nil
}
