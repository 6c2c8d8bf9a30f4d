package storage

import (
	"context"
	"time"

	"github.com/iudanet/ctfclient/internal/models"
)

// Fixed keys of the persisted mirror
const (
	KeyToken      = "token"
	KeyUser       = "userData"
	KeyTeam       = "teamData"
	KeyChallenges = "challenges"
)

// Snapshot is the server-confirmed view written after a successful reconciliation.
// Team == nil means the user has no team.
type Snapshot struct {
	User       *models.User
	Team       *models.Team
	Challenges models.Catalog
}

// MirrorStorage defines durable key-value storage for the session mirror.
// Values are JSON blobs under the fixed keys above.
type MirrorStorage interface {
	// SaveToken stores the session token
	SaveToken(ctx context.Context, token string) error

	// Token returns the stored token, empty string if there is none
	Token(ctx context.Context) (string, error)

	// SaveSnapshot atomically replaces user, team and catalog
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// SaveTeam replaces only the cached team
	SaveTeam(ctx context.Context, team *models.Team) error

	// LoadUser returns ErrNotFound if absent, ErrCorrupted if the blob is malformed
	LoadUser(ctx context.Context) (*models.User, error)

	// LoadTeam returns (nil, nil) for a stored "no team", ErrNotFound if absent
	LoadTeam(ctx context.Context) (*models.Team, error)

	// LoadChallenges returns ErrNotFound if absent
	LoadChallenges(ctx context.Context) (models.Catalog, error)

	// LastSync returns when the last snapshot was saved, zero time if never
	LastSync(ctx context.Context) (time.Time, error)

	// Clear removes the token and every user-scoped key (logout)
	Clear(ctx context.Context) error

	// Close releases the underlying database
	Close() error
}
