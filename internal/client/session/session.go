// Package session holds the client-side session: token, current user, team and
// challenge catalog. The Store mediates every read and write of the persisted
// mirror and keeps it consistent with the server through reconciliation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/ctfclient/internal/client/storage"
	"github.com/iudanet/ctfclient/internal/models"
	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

// State is the lifecycle stage of the store
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Remote is the part of the platform API the store talks to.
// *api.Client implements it.
type Remote interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) error
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenData, error)
	AddTwoFactor(ctx context.Context) (*pkgapi.AddTwoFactorData, error)
	VerifyTwoFactor(ctx context.Context, otp string) (*pkgapi.VerifyTwoFactorData, error)
	VerifyEmail(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, req pkgapi.ChangePasswordRequest) error
	ChangeUsername(ctx context.Context, username string) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	GetChallenges(ctx context.Context) (models.Catalog, error)
	CreateTeam(ctx context.Context, req pkgapi.TeamRequest) error
	JoinTeam(ctx context.Context, req pkgapi.TeamRequest) error
	AttemptFlag(ctx context.Context, challengeID int64, flag string) (*pkgapi.AttemptData, error)
}

// ProcessLock serializes mirror writes between processes sharing one database.
// *flock.Flock implements it.
type ProcessLock interface {
	Lock() error
	Unlock() error
}

// Snapshot is the read view of the session. User and Challenges include
// pending local patches, Pending reports whether any are applied.
type Snapshot struct {
	User          *models.User
	Team          *models.Team
	Token         string
	Challenges    models.Catalog
	State         State
	Authenticated bool
	Ready         bool
	Pending       bool
}

// Store is the session store. It is safe for concurrent use.
type Store struct {
	remote Remote
	mirror storage.MirrorStorage
	nav    Navigator
	lock   ProcessLock
	logger *slog.Logger

	user       *models.User
	team       *models.Team
	patches    patchSet
	token      string
	challenges models.Catalog
	generation uint64
	mu         sync.Mutex
	state      State

	authenticated bool
	ready         bool
	closed        bool
	offlineStart  bool
}

// Option настраивает Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithNavigator sets the receiver of navigation signals
func WithNavigator(nav Navigator) Option {
	return func(s *Store) { s.nav = nav }
}

// WithProcessLock guards mirror writes with a cross-process lock
func WithProcessLock(lock ProcessLock) Option {
	return func(s *Store) { s.lock = lock }
}

// WithOfflineStart skips the reconciliation Start normally performs
func WithOfflineStart() Option {
	return func(s *Store) { s.offlineStart = true }
}

// New creates a store in StateUninitialized
func New(remote Remote, mirror storage.MirrorStorage, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		mirror: mirror,
		nav:    nopNavigator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start bootstraps the store from the persisted mirror and, when a token is
// present, reconciles with the server. Reconciliation outcomes are reflected
// in Ready/Authenticated, only storage failures are returned.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	if err := s.bootstrapLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}

	if s.token == "" {
		s.state = StateReady
		s.ready = true
		s.mu.Unlock()
		return nil
	}

	if s.offlineStart {
		s.state = StateReady
		s.ready = false
		s.mu.Unlock()
		return nil
	}

	s.state = StateLoading
	s.mu.Unlock()

	err := s.Reconcile(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionRevoked):
		s.logger.WarnContext(ctx, "stored session rejected by server, logged out", "error", err)
	default:
		s.logger.WarnContext(ctx, "startup reconciliation failed", "error", err)
	}

	// Отмененная или вытесненная синхронизация не должна оставить LOADING
	s.mu.Lock()
	if s.state == StateLoading {
		s.state = StateReady
		s.ready = false
	}
	s.mu.Unlock()

	return nil
}

// bootstrapLocked loads the mirror. Malformed blobs count as absent.
func (s *Store) bootstrapLocked(ctx context.Context) error {
	token, err := s.mirror.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	user, err := s.mirror.LoadUser(ctx)
	if err != nil {
		if !s.absent(ctx, storage.KeyUser, err) {
			return fmt.Errorf("failed to load user: %w", err)
		}
		user = nil
	}

	team, err := s.mirror.LoadTeam(ctx)
	if err != nil {
		if !s.absent(ctx, storage.KeyTeam, err) {
			return fmt.Errorf("failed to load team: %w", err)
		}
		team = nil
	}

	challenges, err := s.mirror.LoadChallenges(ctx)
	if err != nil {
		if !s.absent(ctx, storage.KeyChallenges, err) {
			return fmt.Errorf("failed to load challenges: %w", err)
		}
		challenges = nil
	}
	if challenges == nil {
		challenges = models.Catalog{}
	}

	s.token = token
	s.user = user
	s.team = team
	s.challenges = challenges
	// Токен без кэша пользователя (логин при недоступном сервере) остается
	// сессией: authenticated, но не ready до следующей синхронизации.
	s.authenticated = token != ""
	return nil
}

// absent reports whether a load error means "no cached value"
func (s *Store) absent(ctx context.Context, key string, err error) bool {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return true
	case errors.Is(err, storage.ErrCorrupted):
		s.logger.WarnContext(ctx, "ignoring malformed cached entry", "key", key, "error", err)
		return true
	default:
		return false
	}
}

// Close tears the store down. In-flight operations are discarded.
// The mirror is owned by the caller and stays open.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.generation++
}

// Snapshot returns the current read view with pending patches merged in
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:         s.state,
		Token:         s.token,
		Authenticated: s.authenticated,
		Ready:         s.ready,
		Team:          cloneTeam(s.team),
		User:          s.patches.applyUser(s.user),
		Challenges:    s.patches.applyCatalog(s.challenges),
		Pending:       !s.patches.empty(),
	}
	return snap
}

// Token returns the in-memory session token
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether the store holds a live session
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Ready reports whether cached data is fresh.
// False after a failed reconciliation: the front-end shows an offline banner.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// State returns the lifecycle state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Logout clears the token and every user-scoped value in memory and in the
// mirror. It never fails: mirror errors are only logged.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutLocked(ctx)
}

func (s *Store) logoutLocked(ctx context.Context) {
	// Все незавершенные синхронизации становятся устаревшими
	s.generation++

	s.token = ""
	s.user = nil
	s.team = nil
	s.challenges = models.Catalog{}
	s.patches = patchSet{}
	s.authenticated = false
	s.ready = true
	s.state = StateReady

	if err := s.mirror.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to clear persisted session", "error", err)
	}
}

func cloneTeam(team *models.Team) *models.Team {
	if team == nil {
		return nil
	}
	out := *team
	out.Members = append([]models.User(nil), team.Members...)
	return &out
}
