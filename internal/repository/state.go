package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"ace-league/internal/domain"

	"github.com/rs/zerolog"
)

// ClusterRepository stores each cluster's entire league state as one JSON
// document. Saves replace the whole document: last writer wins, no merge.
type ClusterRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewClusterRepository(sqlDB *sql.DB, logger zerolog.Logger) *ClusterRepository {
	return &ClusterRepository{db: sqlDB, logger: logger}
}

// LoadState reads the cluster document. The second return is false when no
// document exists yet.
func (r *ClusterRepository) LoadState(ctx context.Context, cluster string) (*domain.LeagueState, bool, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM clusters WHERE name = ?`, cluster).Scan(&doc)
	if err == sql.ErrNoRows {
		r.logger.Debug().Str("cluster", cluster).Msg("cluster document not found")
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("cluster", cluster).Msg("failed to load cluster document")
		return nil, false, domain.Persistence("load state", err)
	}

	state := domain.NewLeagueState()
	if err := json.Unmarshal([]byte(doc), state); err != nil {
		r.logger.Error().Err(err).Str("cluster", cluster).Msg("malformed cluster document")
		return nil, false, domain.Consistencyf("cluster document %q is not valid json: %v", cluster, err)
	}
	return state, true, nil
}

// SaveState replaces the cluster document wholesale.
func (r *ClusterRepository) SaveState(ctx context.Context, cluster string, state *domain.LeagueState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return domain.Persistence("encode state", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO clusters (name, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		cluster, string(doc), time.Now().UTC())
	if err != nil {
		r.logger.Error().Err(err).Str("cluster", cluster).Msg("failed to save cluster document")
		return domain.Persistence("save state", err)
	}

	r.logger.Debug().
		Str("cluster", cluster).
		Int("members", len(state.Members)).
		Int("history", len(state.MatchHistory)).
		Int("schedule", len(state.CurrentSchedule)).
		Int("applicants", len(state.Applicants)).
		Msg("cluster document saved")
	return nil
}

// LastUpdated reports when the cluster document was last written, letting
// the service detect writes from other processes. A missing document
// reports the zero time.
func (r *ClusterRepository) LastUpdated(ctx context.Context, cluster string) (time.Time, error) {
	var updated time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM clusters WHERE name = ?`, cluster).Scan(&updated)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, domain.Persistence("poll state", err)
	}
	return updated, nil
}

// ListClusters returns every stored cluster name.
func (r *ClusterRepository) ListClusters(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM clusters ORDER BY name`)
	if err != nil {
		return nil, domain.Persistence("list clusters", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.Persistence("list clusters", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
