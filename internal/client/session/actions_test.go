package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/ctfclient/internal/client/api"
	"github.com/iudanet/ctfclient/internal/client/storage"
	"github.com/iudanet/ctfclient/internal/models"
	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

// loggedIn возвращает запущенный офлайн store с сохраненной сессией
func loggedIn(t *testing.T, remote *mockRemote, opts ...Option) (*Store, *navRecorder) {
	t.Helper()
	mirror := newTestMirror(t)
	seed(t, mirror, &storage.Snapshot{User: testUser(), Challenges: testCatalog()})

	nav := &navRecorder{}
	opts = append(opts, WithOfflineStart(), WithNavigator(nav))
	store := newTestStore(remote, mirror, opts...)
	require.NoError(t, store.Start(context.Background()))
	return store, nav
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	mirror := newTestMirror(t)
	nav := &navRecorder{}
	remote := &mockRemote{user: testUser(), challenges: nil}
	store := newTestStore(remote, mirror, WithNavigator(nav))
	require.NoError(t, store.Start(ctx))

	require.NoError(t, store.Login(ctx, "alice", "good-pw", ""))

	snap := store.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.True(t, snap.Ready)
	assert.Equal(t, "T", snap.Token)
	assert.Equal(t, testUser(), snap.User)
	assert.Nil(t, snap.Team)
	assert.Empty(t, snap.Challenges)
	assert.Equal(t, []View{ViewHome}, nav.Views())

	token, err := mirror.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T", token)
	assertMirrorMatches(t, store, mirror)

	assert.Equal(t, []string{"login", "get_user", "get_team", "get_challenges"}, remote.Calls())
}

func TestLogin_TwoFactorRequired(t *testing.T) {
	ctx := context.Background()
	mirror := newTestMirror(t)
	nav := &navRecorder{}
	remote := &mockRemote{
		user: testUser(),
		loginFunc: func(req pkgapi.LoginRequest) (*pkgapi.TokenData, error) {
			if req.OTP == "" {
				return nil, &api.RequestError{
					StatusCode: http.StatusUnauthorized,
					Message:    "2FA code required",
					Reason:     pkgapi.ReasonTwoFactorRequired,
				}
			}
			if req.OTP != "123456" {
				return nil, &api.RequestError{StatusCode: http.StatusUnauthorized, Message: "Invalid 2FA code"}
			}
			return &pkgapi.TokenData{Token: "T"}, nil
		},
	}
	store := newTestStore(remote, mirror, WithNavigator(nav))
	require.NoError(t, store.Start(ctx))

	err := store.Login(ctx, "alice", "good-pw", "")
	require.ErrorIs(t, err, api.ErrTwoFactorRequired)
	assert.False(t, store.Authenticated())
	assert.Empty(t, store.Token())
	assert.Empty(t, nav.Views())

	token, err := mirror.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	// Неверный код это обычный отказ
	err = store.Login(ctx, "alice", "good-pw", "000000")
	require.Error(t, err)
	assert.NotErrorIs(t, err, api.ErrTwoFactorRequired)
	assert.True(t, api.IsRejection(err))
	assert.False(t, store.Authenticated())

	require.NoError(t, store.Login(ctx, "alice", "good-pw", "123456"))
	assert.True(t, store.Authenticated())
	assert.Equal(t, []View{ViewHome}, nav.Views())
}

func TestLogin_Validation(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		otp       string
		wantField string
	}{
		{name: "empty username", username: "", password: "pw", wantField: "username"},
		{name: "empty password", username: "alice", password: "", wantField: "password"},
		{name: "short otp", username: "alice", password: "pw", otp: "123", wantField: "otp"},
		{name: "letters in otp", username: "alice", password: "pw", otp: "12345a", wantField: "otp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &mockRemote{}
			store := newTestStore(remote, newTestMirror(t))
			require.NoError(t, store.Start(context.Background()))

			err := store.Login(context.Background(), tt.username, tt.password, tt.otp)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Empty(t, remote.Calls())
		})
	}
}

func TestLogin_RejectedPostLoginReconcile(t *testing.T) {
	ctx := context.Background()
	nav := &navRecorder{}
	remote := &mockRemote{
		userFunc: func(context.Context) (*models.User, error) {
			return nil, rejection(http.StatusForbidden, "Account suspended")
		},
	}
	store := newTestStore(remote, newTestMirror(t), WithNavigator(nav))
	require.NoError(t, store.Start(ctx))

	err := store.Login(ctx, "alice", "good-pw", "")
	require.ErrorIs(t, err, ErrSessionRevoked)
	assert.False(t, store.Authenticated())
	assert.Empty(t, store.Token())
	assert.Empty(t, nav.Views())
}

func TestLogin_DegradedReconcile(t *testing.T) {
	ctx := context.Background()
	nav := &navRecorder{}
	remote := &mockRemote{user: testUser(), challengesErr: transportErr()}
	store := newTestStore(remote, newTestMirror(t), WithNavigator(nav))
	require.NoError(t, store.Start(ctx))

	require.NoError(t, store.Login(ctx, "alice", "good-pw", ""))
	assert.True(t, store.Authenticated())
	assert.False(t, store.Ready())
	assert.Equal(t, []View{ViewHome}, nav.Views())
}

func TestLogin_EmptyToken(t *testing.T) {
	remote := &mockRemote{
		loginFunc: func(pkgapi.LoginRequest) (*pkgapi.TokenData, error) {
			return &pkgapi.TokenData{}, nil
		},
	}
	store := newTestStore(remote, newTestMirror(t))
	require.NoError(t, store.Start(context.Background()))

	require.Error(t, store.Login(context.Background(), "alice", "good-pw", ""))
	assert.False(t, store.Authenticated())
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	nav := &navRecorder{}
	remote := &mockRemote{}
	store := newTestStore(remote, newTestMirror(t), WithNavigator(nav))
	require.NoError(t, store.Start(ctx))

	require.NoError(t, store.Register(ctx, "alice", "password123", "alice@example.com"))

	assert.Equal(t, []View{ViewRegisterEmail}, nav.Views())
	assert.False(t, store.Authenticated())
	assert.Equal(t, []string{"register"}, remote.Calls())
	assert.Equal(t, pkgapi.RegisterRequest{
		Username: "alice",
		Password: "password123",
		Email:    "alice@example.com",
	}, remote.last)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		email     string
		wantField string
	}{
		{name: "bad username", username: "a!", password: "password123", email: "a@b.c", wantField: "username"},
		{name: "short password", username: "alice", password: "short", email: "a@b.c", wantField: "password"},
		{name: "bad email", username: "alice", password: "password123", email: "nope", wantField: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &mockRemote{}
			store := newTestStore(remote, newTestMirror(t))

			err := store.Register(context.Background(), tt.username, tt.password, tt.email)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Empty(t, remote.Calls())
		})
	}
}

func TestRegister_ServerRejection(t *testing.T) {
	rejected := rejection(http.StatusBadRequest, "Username already in use")
	nav := &navRecorder{}
	store := newTestStore(&mockRemote{actionErr: rejected}, newTestMirror(t), WithNavigator(nav))

	err := store.Register(context.Background(), "alice", "password123", "alice@example.com")
	assert.Equal(t, rejected, err)
	assert.False(t, IsValidation(err))
	assert.Empty(t, nav.Views())
}

func TestVerifyEmail(t *testing.T) {
	nav := &navRecorder{}
	remote := &mockRemote{}
	store := newTestStore(remote, newTestMirror(t), WithNavigator(nav))

	assert.True(t, IsValidation(store.VerifyEmail(context.Background(), "")))
	assert.Empty(t, remote.Calls())

	require.NoError(t, store.VerifyEmail(context.Background(), "3f2b0c7e"))
	assert.Equal(t, "3f2b0c7e", remote.last)
	assert.Equal(t, []View{ViewLogin}, nav.Views())
}

func TestTwoFactor(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{totpSecret: "JBSWY3DPEHPK3PXP", otpValid: true}
	store, _ := loggedIn(t, remote)
	before := store.Snapshot()

	secret, err := store.AddTwoFactor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", secret)
	assert.Equal(t, before, store.Snapshot())

	assert.True(t, IsValidation(func() error { _, err := store.VerifyTwoFactor(ctx, "12"); return err }()))

	valid, err := store.VerifyTwoFactor(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, valid)

	remote.otpValid = false
	valid, err = store.VerifyTwoFactor(ctx, "654321")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTwoFactor_NotAuthenticated(t *testing.T) {
	store := newTestStore(&mockRemote{}, newTestMirror(t))
	require.NoError(t, store.Start(context.Background()))

	_, err := store.AddTwoFactor(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCreateTeam(t *testing.T) {
	ctx := context.Background()
	team := &models.Team{ID: 7, Name: "pwners", Owner: 1, Members: []models.User{*testUser()}}
	remote := &mockRemote{team: team}
	store, _ := loggedIn(t, remote)

	require.NoError(t, store.CreateTeam(ctx, "pwners", "secret"))

	assert.Equal(t, []string{"create_team", "get_team"}, remote.Calls())
	assert.Equal(t, team, store.Snapshot().Team)

	stored, err := store.mirror.LoadTeam(ctx)
	require.NoError(t, err)
	assert.Equal(t, team, stored)
}

func TestJoinTeam(t *testing.T) {
	ctx := context.Background()
	team := &models.Team{ID: 7, Name: "pwners", Owner: 2}
	remote := &mockRemote{team: team}
	store, _ := loggedIn(t, remote)

	require.NoError(t, store.JoinTeam(ctx, "pwners", "secret"))
	assert.Equal(t, []string{"join_team", "get_team"}, remote.Calls())
	assert.Equal(t, pkgapi.TeamRequest{Name: "pwners", Password: "secret"}, remote.teamReq)
	assert.Equal(t, team, store.Snapshot().Team)
}

func TestTeamAction_Rejected(t *testing.T) {
	ctx := context.Background()
	rejected := rejection(http.StatusForbidden, "Incorrect team password")
	remote := &mockRemote{actionErr: rejected}
	store, _ := loggedIn(t, remote)
	before := store.Snapshot()

	err := store.JoinTeam(ctx, "pwners", "wrong")
	assert.Equal(t, rejected, err)
	assert.Equal(t, []string{"join_team"}, remote.Calls())

	// Отказ на действии не трогает сессию
	assert.Equal(t, before, store.Snapshot())
	assert.True(t, store.Authenticated())
}

func TestTeamAction_Validation(t *testing.T) {
	remote := &mockRemote{}
	store, _ := loggedIn(t, remote)

	err := store.CreateTeam(context.Background(), "  ", "secret")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
	assert.Empty(t, remote.Calls())
}

func TestAttemptFlag(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{correct: true}
	store, _ := loggedIn(t, remote)
	before := store.Snapshot()

	correct, err := store.AttemptFlag(ctx, 10, "ractf{flag}")
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, "ractf{flag}", remote.last)

	// Каталог не меняется
	assert.Equal(t, before, store.Snapshot())

	remote.correct = false
	correct, err = store.AttemptFlag(ctx, 10, "ractf{nope}")
	require.NoError(t, err)
	assert.False(t, correct)

	_, err = store.AttemptFlag(ctx, 10, "")
	assert.True(t, IsValidation(err))
}

func TestAttemptFlag_Rejected(t *testing.T) {
	rejected := rejection(http.StatusForbidden, "You have already solved this challenge")
	store, _ := loggedIn(t, &mockRemote{actionErr: rejected})

	_, err := store.AttemptFlag(context.Background(), 10, "ractf{flag}")
	assert.Equal(t, rejected, err)
	assert.True(t, store.Authenticated())
}

func TestAttemptFlag_NotAuthenticated(t *testing.T) {
	remote := &mockRemote{}
	store := newTestStore(remote, newTestMirror(t))
	require.NoError(t, store.Start(context.Background()))

	_, err := store.AttemptFlag(context.Background(), 10, "ractf{flag}")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, remote.Calls())
}

func TestModifyUser_Validation(t *testing.T) {
	tests := []struct {
		name      string
		changes   UserChanges
		wantField string
	}{
		{name: "nothing to change", changes: UserChanges{}, wantField: ""},
		{
			name:      "missing current password",
			changes:   UserChanges{NewPassword: "password123", ConfirmPassword: "password123"},
			wantField: "old_password",
		},
		{
			name:      "mismatched confirmation",
			changes:   UserChanges{OldPassword: "old", NewPassword: "password123", ConfirmPassword: "password124"},
			wantField: "password",
		},
		{
			name:      "short password",
			changes:   UserChanges{OldPassword: "old", NewPassword: "short", ConfirmPassword: "short"},
			wantField: "password",
		},
		{
			name:      "bad username",
			changes:   UserChanges{Username: "no spaces allowed"},
			wantField: "username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &mockRemote{}
			store, _ := loggedIn(t, remote)

			err := store.ModifyUser(context.Background(), tt.changes)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.False(t, api.IsTransport(err))
			assert.Empty(t, remote.Calls())
		})
	}
}

func TestModifyUser_MismatchMessage(t *testing.T) {
	store, _ := loggedIn(t, &mockRemote{})
	err := store.ModifyUser(context.Background(), UserChanges{
		OldPassword:     "old",
		NewPassword:     "password123",
		ConfirmPassword: "password124",
	})
	assert.EqualError(t, err, "passwords must match")
}

func TestModifyUser_Password(t *testing.T) {
	remote := &mockRemote{}
	store, _ := loggedIn(t, remote)

	require.NoError(t, store.ModifyUser(context.Background(), UserChanges{
		OldPassword:     "old-password",
		NewPassword:     "password123",
		ConfirmPassword: "password123",
	}))
	assert.Equal(t, []string{"change_password"}, remote.Calls())
	assert.Equal(t, pkgapi.ChangePasswordRequest{OldPassword: "old-password", Password: "password123"}, remote.last)
	assert.False(t, store.Snapshot().Pending)
}

func TestModifyUser_Username(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{user: &models.User{ID: 1, Username: "alice2"}}
	store, _ := loggedIn(t, remote)

	require.NoError(t, store.ModifyUser(ctx, UserChanges{Username: "alice2"}))

	snap := store.Snapshot()
	assert.True(t, snap.Pending)
	assert.Equal(t, "alice2", snap.User.Username)

	// В зеркале старое имя до синхронизации
	stored, err := store.mirror.LoadUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)

	require.NoError(t, store.Reconcile(ctx))
	snap = store.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, "alice2", snap.User.Username)
}

func TestModifyUser_ServerRejection(t *testing.T) {
	rejected := rejection(http.StatusUnauthorized, "Invalid password")
	store, _ := loggedIn(t, &mockRemote{actionErr: rejected})

	err := store.ModifyUser(context.Background(), UserChanges{
		OldPassword:     "wrong",
		NewPassword:     "password123",
		ConfirmPassword: "password123",
		Username:        "alice2",
	})
	assert.Equal(t, rejected, err)
	assert.False(t, IsValidation(err))
	assert.False(t, store.Snapshot().Pending)
}
