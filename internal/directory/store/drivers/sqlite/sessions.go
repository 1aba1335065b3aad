package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
)

const (
	insertSession = `INSERT INTO sessions (id, token_hash, user_id, user_agent, ip_address, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	getSessionByTokenHash = `SELECT id, token_hash, user_id, user_agent, ip_address, expires_at, created_at
FROM sessions WHERE token_hash = ?`

	deleteSessionByTokenHash = `DELETE FROM sessions WHERE token_hash = ?`
	deleteSessionsForUser    = `DELETE FROM sessions WHERE user_id = ?`
	deleteExpiredSessions    = `DELETE FROM sessions WHERE expires_at <= ?`
)

type sessionsRepo struct {
	db DBTX
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertSession,
		s.ID, s.TokenHash, s.UserID, s.UserAgent, s.IPAddress,
		toMillis(s.ExpiresAt), toMillis(s.CreatedAt),
	)
	return err
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	var (
		s                    domain.Session
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx, getSessionByTokenHash, tokenHash).Scan(
		&s.ID, &s.TokenHash, &s.UserID, &s.UserAgent, &s.IPAddress, &expiresAt, &createdAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.ExpiresAt = fromMillis(expiresAt)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *sessionsRepo) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, deleteSessionByTokenHash, tokenHash)
	return err
}

func (r *sessionsRepo) DeleteSessionsForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, deleteSessionsForUser, userID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredSessions, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
