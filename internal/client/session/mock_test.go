package session

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/ctfclient/internal/client/api"
	"github.com/iudanet/ctfclient/internal/client/storage"
	"github.com/iudanet/ctfclient/internal/client/storage/boltdb"
	"github.com/iudanet/ctfclient/internal/models"
	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

var errNetwork = errors.New("dial tcp: connection refused")

func transportErr() error {
	return &api.RequestError{Message: errNetwork.Error(), Err: errNetwork}
}

func rejection(status int, msg string) error {
	return &api.RequestError{StatusCode: status, Message: msg, Body: `{"s":false,"m":"` + msg + `","d":{}}`}
}

// mockRemote - ручной мок Remote
type mockRemote struct {
	mu sync.Mutex

	loginFunc     func(req pkgapi.LoginRequest) (*pkgapi.TokenData, error)
	userFunc      func(ctx context.Context) (*models.User, error)
	teamFunc      func() (*models.Team, error)
	challengesErr error
	actionErr     error

	user       *models.User
	team       *models.Team
	challenges models.Catalog

	totpSecret string
	otpValid   bool
	correct    bool

	calls   []string
	last    any
	teamReq pkgapi.TeamRequest
}

func (m *mockRemote) record(call string, req any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	m.last = req
}

func (m *mockRemote) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRemote) Register(_ context.Context, req pkgapi.RegisterRequest) error {
	m.record("register", req)
	return m.actionErr
}

func (m *mockRemote) Login(_ context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenData, error) {
	m.record("login", req)
	if m.loginFunc != nil {
		return m.loginFunc(req)
	}
	return &pkgapi.TokenData{Token: "T"}, nil
}

func (m *mockRemote) AddTwoFactor(context.Context) (*pkgapi.AddTwoFactorData, error) {
	m.record("add_2fa", nil)
	if m.actionErr != nil {
		return nil, m.actionErr
	}
	return &pkgapi.AddTwoFactorData{TOTPSecret: m.totpSecret}, nil
}

func (m *mockRemote) VerifyTwoFactor(_ context.Context, otp string) (*pkgapi.VerifyTwoFactorData, error) {
	m.record("verify_2fa", otp)
	if m.actionErr != nil {
		return nil, m.actionErr
	}
	return &pkgapi.VerifyTwoFactorData{Valid: m.otpValid}, nil
}

func (m *mockRemote) VerifyEmail(_ context.Context, token string) error {
	m.record("verify_email", token)
	return m.actionErr
}

func (m *mockRemote) ChangePassword(_ context.Context, req pkgapi.ChangePasswordRequest) error {
	m.record("change_password", req)
	return m.actionErr
}

func (m *mockRemote) ChangeUsername(_ context.Context, username string) error {
	m.record("change_username", username)
	return m.actionErr
}

func (m *mockRemote) GetUser(ctx context.Context, _ string) (*models.User, error) {
	m.record("get_user", nil)
	if m.userFunc != nil {
		return m.userFunc(ctx)
	}
	return m.user, nil
}

func (m *mockRemote) GetTeam(context.Context, string) (*models.Team, error) {
	m.record("get_team", nil)
	if m.teamFunc != nil {
		return m.teamFunc()
	}
	if m.team == nil {
		return nil, rejection(http.StatusNotFound, "Not found")
	}
	return m.team, nil
}

func (m *mockRemote) GetChallenges(context.Context) (models.Catalog, error) {
	m.record("get_challenges", nil)
	if m.challengesErr != nil {
		return nil, m.challengesErr
	}
	return m.challenges, nil
}

func (m *mockRemote) CreateTeam(_ context.Context, req pkgapi.TeamRequest) error {
	m.record("create_team", req)
	m.teamReq = req
	return m.actionErr
}

func (m *mockRemote) JoinTeam(_ context.Context, req pkgapi.TeamRequest) error {
	m.record("join_team", req)
	m.teamReq = req
	return m.actionErr
}

func (m *mockRemote) AttemptFlag(_ context.Context, _ int64, flag string) (*pkgapi.AttemptData, error) {
	m.record("attempt", flag)
	if m.actionErr != nil {
		return nil, m.actionErr
	}
	return &pkgapi.AttemptData{Correct: m.correct}, nil
}

// failingMirror оборачивает хранилище и ломает запись снапшота
type failingMirror struct {
	storage.MirrorStorage
	err error
}

func (f *failingMirror) SaveSnapshot(context.Context, *storage.Snapshot) error {
	return f.err
}

type countingLock struct {
	locked, unlocked int
}

func (l *countingLock) Lock() error   { l.locked++; return nil }
func (l *countingLock) Unlock() error { l.unlocked++; return nil }

func newTestMirror(t *testing.T) *boltdb.Storage {
	t.Helper()
	mirror, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mirror.Close() })
	return mirror
}

func testUser() *models.User {
	return &models.User{ID: 1, Username: "alice"}
}

func testCatalog() models.Catalog {
	return models.Catalog{
		{
			ID:   1,
			Name: "web",
			Challenges: []models.Challenge{
				{ID: 10, Name: "login bypass", Type: "default", Score: 100},
				{ID: 11, Name: "xss", Type: "code", Score: 200},
			},
		},
	}
}

// seed записывает сессию в зеркало как после прошлого запуска
func seed(t *testing.T, mirror storage.MirrorStorage, snap *storage.Snapshot) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, mirror.SaveToken(ctx, "T"))
	require.NoError(t, mirror.SaveSnapshot(ctx, snap))
}
