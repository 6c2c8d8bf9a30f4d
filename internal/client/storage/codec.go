package storage

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/ctfclient/internal/models"
)

// EncodeSnapshot serializes a snapshot into the blobs stored under the fixed keys
func EncodeSnapshot(snap *Snapshot) (map[string][]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}
	challenges := snap.Challenges
	if challenges == nil {
		challenges = models.Catalog{}
	}

	values := map[string]any{
		KeyUser:       snap.User,
		KeyTeam:       snap.Team,
		KeyChallenges: challenges,
	}

	blobs := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		blobs[key] = data
	}
	return blobs, nil
}

// Decode unmarshals a blob; nil data yields ErrNotFound, bad JSON ErrCorrupted
func Decode[T any](key string, data []byte) (T, error) {
	var value T
	if data == nil {
		return value, ErrNotFound
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("%w: %s: %v", ErrCorrupted, key, err)
	}
	return value, nil
}

// DecodeUser decodes the user blob, a JSON null counts as absent
func DecodeUser(data []byte) (*models.User, error) {
	user, err := Decode[*models.User](KeyUser, data)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// UserScopedKeys lists every key removed on logout
var UserScopedKeys = []string{KeyToken, KeyUser, KeyTeam, KeyChallenges}
