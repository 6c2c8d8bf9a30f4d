package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/ctfclient/internal/client/storage"
	"github.com/iudanet/ctfclient/internal/models"
)

const keyLastSync = "last_sync"

const upsertMirror = `
	INSERT INTO mirror (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

// SaveToken stores the session token
func (s *Storage) SaveToken(ctx context.Context, token string) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return s.put(ctx, s.db, storage.KeyToken, data)
}

// Token returns the stored token or an empty string
func (s *Storage) Token(ctx context.Context) (string, error) {
	data, err := s.get(ctx, storage.KeyToken)
	if err != nil {
		return "", err
	}
	token, err := storage.Decode[string](storage.KeyToken, data)
	if err != nil {
		return "", nil
	}
	return token, nil
}

// SaveSnapshot replaces user, team and catalog in a single transaction
func (s *Storage) SaveSnapshot(ctx context.Context, snap *storage.Snapshot) error {
	blobs, err := storage.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for key, data := range blobs {
		if err := s.put(ctx, tx, key, data); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		keyLastSync, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save last sync timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// SaveTeam replaces the cached team
func (s *Storage) SaveTeam(ctx context.Context, team *models.Team) error {
	data, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("failed to marshal team: %w", err)
	}
	return s.put(ctx, s.db, storage.KeyTeam, data)
}

// LoadUser returns the cached user
func (s *Storage) LoadUser(ctx context.Context) (*models.User, error) {
	data, err := s.get(ctx, storage.KeyUser)
	if err != nil {
		return nil, err
	}
	return storage.DecodeUser(data)
}

// LoadTeam returns the cached team, nil for "no team"
func (s *Storage) LoadTeam(ctx context.Context) (*models.Team, error) {
	data, err := s.get(ctx, storage.KeyTeam)
	if err != nil {
		return nil, err
	}
	return storage.Decode[*models.Team](storage.KeyTeam, data)
}

// LoadChallenges returns the cached catalog
func (s *Storage) LoadChallenges(ctx context.Context) (models.Catalog, error) {
	data, err := s.get(ctx, storage.KeyChallenges)
	if err != nil {
		return nil, err
	}
	return storage.Decode[models.Catalog](storage.KeyChallenges, data)
}

// LastSync returns the time of the last saved snapshot
func (s *Storage) LastSync(ctx context.Context) (time.Time, error) {
	var unix int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, keyLastSync).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync timestamp: %w", err)
	}
	return time.Unix(unix, 0), nil
}

// Clear removes the token and all user-scoped data (logout)
func (s *Storage) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, key := range storage.UserScopedKeys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM mirror WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, keyLastSync); err != nil {
		return fmt.Errorf("failed to delete last sync timestamp: %w", err)
	}

	return tx.Commit()
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) put(ctx context.Context, ex execer, key string, data []byte) error {
	if _, err := ex.ExecContext(ctx, upsertMirror, key, data, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// get возвращает значение ключа, nil если ключа нет
func (s *Storage) get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM mirror WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return data, nil
}
