package repository

import (
	"context"
	"database/sql"
	"time"

	"ace-league/internal/domain"

	"github.com/rs/zerolog"
)

type SessionStatusRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSessionStatusRepository(sqlDB *sql.DB, logger zerolog.Logger) *SessionStatusRepository {
	return &SessionStatusRepository{db: sqlDB, logger: logger}
}

func (r *SessionStatusRepository) LoadStatus(ctx context.Context, key string) (*domain.SessionStatus, bool, error) {
	status := &domain.SessionStatus{}
	err := r.db.QueryRowContext(ctx,
		`SELECT status, session_num FROM session_status WHERE key = ?`, key).
		Scan(&status.Status, &status.SessionNum)
	if err == sql.ErrNoRows {
		r.logger.Debug().Str("key", key).Msg("session status not found")
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to load session status")
		return nil, false, domain.Persistence("load status", err)
	}
	return status, true, nil
}

func (r *SessionStatusRepository) SaveStatus(ctx context.Context, key string, status *domain.SessionStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_status (key, status, session_num, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			status = excluded.status,
			session_num = excluded.session_num,
			updated_at = excluded.updated_at`,
		key, status.Status, status.SessionNum, time.Now().UTC())
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to save session status")
		return domain.Persistence("save status", err)
	}

	r.logger.Debug().
		Str("key", key).
		Str("status", status.Status).
		Int("session_num", status.SessionNum).
		Msg("session status saved")
	return nil
}

// LastUpdated mirrors ClusterRepository.LastUpdated for the status doc.
func (r *SessionStatusRepository) LastUpdated(ctx context.Context, key string) (time.Time, error) {
	var updated time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM session_status WHERE key = ?`, key).Scan(&updated)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, domain.Persistence("poll status", err)
	}
	return updated, nil
}
