package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/ctfclient/internal/client/storage"
	"github.com/iudanet/ctfclient/internal/models"
)

const keyLastSync = "last_sync"

// SaveToken stores the session token
func (s *Storage) SaveToken(ctx context.Context, token string) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return s.put(storage.KeyToken, data)
}

// Token returns the stored token or an empty string.
// Поврежденный токен считается отсутствующим.
func (s *Storage) Token(ctx context.Context) (string, error) {
	data, err := s.get(storage.KeyToken)
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

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMirror)
		if bucket == nil {
			return fmt.Errorf("mirror bucket not found")
		}
		for key, data := range blobs {
			if err := bucket.Put([]byte(key), data); err != nil {
				return fmt.Errorf("failed to save %s: %w", key, err)
			}
		}

		meta := tx.Bucket(bucketMetadata)
		if meta == nil {
			return fmt.Errorf("metadata bucket not found")
		}
		ts := make([]byte, 8)
		binary.BigEndian.PutUint64(ts, uint64(time.Now().Unix()))
		if err := meta.Put([]byte(keyLastSync), ts); err != nil {
			return fmt.Errorf("failed to save last sync timestamp: %w", err)
		}
		return nil
	})
}

// SaveTeam replaces the cached team
func (s *Storage) SaveTeam(ctx context.Context, team *models.Team) error {
	data, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("failed to marshal team: %w", err)
	}
	return s.put(storage.KeyTeam, data)
}

// LoadUser returns the cached user
func (s *Storage) LoadUser(ctx context.Context) (*models.User, error) {
	data, err := s.get(storage.KeyUser)
	if err != nil {
		return nil, err
	}
	return storage.DecodeUser(data)
}

// LoadTeam returns the cached team, nil for "no team"
func (s *Storage) LoadTeam(ctx context.Context) (*models.Team, error) {
	data, err := s.get(storage.KeyTeam)
	if err != nil {
		return nil, err
	}
	return storage.Decode[*models.Team](storage.KeyTeam, data)
}

// LoadChallenges returns the cached catalog
func (s *Storage) LoadChallenges(ctx context.Context) (models.Catalog, error) {
	data, err := s.get(storage.KeyChallenges)
	if err != nil {
		return nil, err
	}
	return storage.Decode[models.Catalog](storage.KeyChallenges, data)
}

// LastSync returns the time of the last saved snapshot, zero if never
func (s *Storage) LastSync(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)
		if meta == nil {
			return fmt.Errorf("metadata bucket not found")
		}
		raw := meta.Get([]byte(keyLastSync))
		if raw == nil {
			return nil
		}
		ts = time.Unix(int64(binary.BigEndian.Uint64(raw)), 0)
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync timestamp: %w", err)
	}
	return ts, nil
}

// Clear removes the token and all user-scoped data (logout)
func (s *Storage) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMirror)
		if bucket == nil {
			return fmt.Errorf("mirror bucket not found")
		}
		for _, key := range storage.UserScopedKeys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return fmt.Errorf("failed to delete %s: %w", key, err)
			}
		}
		if meta := tx.Bucket(bucketMetadata); meta != nil {
			if err := meta.Delete([]byte(keyLastSync)); err != nil {
				return fmt.Errorf("failed to delete last sync timestamp: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) put(key string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMirror)
		if bucket == nil {
			return fmt.Errorf("mirror bucket not found")
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
		return nil
	})
}

// get возвращает копию значения, nil если ключа нет
func (s *Storage) get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMirror)
		if bucket == nil {
			return fmt.Errorf("mirror bucket not found")
		}
		// Значение валидно только внутри транзакции, поэтому копируем
		if data := bucket.Get([]byte(key)); data != nil {
			out = append([]byte{}, data...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
