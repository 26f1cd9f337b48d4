package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/user-management/internal/utils"
)

// SQLRevocationStore persists revoked token hashes in `revoked_tokens`.  The
// primary key on token_hash makes INSERT the atomic check-and-set.
type SQLRevocationStore struct {
	DB  *sql.DB
	now func() time.Time
}

func NewSQLRevocationStore(db *sql.DB) *SQLRevocationStore {
	return &SQLRevocationStore{DB: db, now: time.Now}
}

const (
	sqlRevokedExists = "SELECT 1 FROM revoked_tokens WHERE token_hash=? AND expires_at > ? LIMIT 1"
	sqlRevokeInsert  = "INSERT INTO revoked_tokens (token_hash, expires_at) VALUES (?,?)"
	sqlRevokeUpsert  = "INSERT INTO revoked_tokens (token_hash, expires_at) VALUES (?,?) ON DUPLICATE KEY UPDATE expires_at=VALUES(expires_at)"
	sqlRevokedPurge  = "DELETE FROM revoked_tokens WHERE expires_at <= ?"
)

func (s *SQLRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, sqlRevokedExists, utils.HashToken(token), s.now().UTC()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLRevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errNoLifetime
	}
	_, err := s.DB.ExecContext(ctx, sqlRevokeUpsert, utils.HashToken(token), s.now().UTC().Add(ttl))
	return err
}

func (s *SQLRevocationStore) RevokeIfAbsent(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errNoLifetime
	}
	_, err := s.DB.ExecContext(ctx, sqlRevokeInsert, utils.HashToken(token), s.now().UTC().Add(ttl))
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PurgeExpired deletes rows whose token has expired and returns how many
// were removed.
func (s *SQLRevocationStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, sqlRevokedPurge, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
