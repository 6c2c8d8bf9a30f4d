package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/ctfclient/internal/client/session"
	"github.com/iudanet/ctfclient/internal/fakeapi"
)

// fakeIO отдает заранее заданные ответы на все запросы ввода по порядку
type fakeIO struct {
	out    bytes.Buffer
	inputs []string
}

func (f *fakeIO) Println(a ...any)               { _, _ = fmt.Fprintln(&f.out, a...) }
func (f *fakeIO) Printf(format string, a ...any) { _, _ = fmt.Fprintf(&f.out, format, a...) }
func (f *fakeIO) Write(p []byte) (int, error)    { return f.out.Write(p) }

func (f *fakeIO) ReadInput(prompt string) (string, error) {
	f.out.WriteString(prompt)
	if len(f.inputs) == 0 {
		return "", io.EOF
	}
	next := f.inputs[0]
	f.inputs = f.inputs[1:]
	return next, nil
}

func (f *fakeIO) ReadPassword(prompt string) (string, error) {
	return f.ReadInput(prompt)
}

type testEnv struct {
	server *fakeapi.Server
	http   *httptest.Server
	dbPath string
	store  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := fakeapi.New(
		fakeapi.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		fakeapi.WithBcryptCost(bcrypt.MinCost),
	)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		server: srv,
		http:   ts,
		dbPath: filepath.Join(t.TempDir(), "session.db"),
		store:  "bolt",
	}
}

// run выполняет одну команду как отдельный процесс CLI
func (e *testEnv) run(t *testing.T, inputs []string, args ...string) (string, error) {
	t.Helper()
	fio := &fakeIO{inputs: inputs}
	app := New(fio,
		WithEnviron(map[string]string{}),
		WithLogOutput(io.Discard),
		WithVersion("test"),
	)
	base := []string{"--config=", "--server", e.http.URL, "--db", e.dbPath, "--store", e.store}
	err := app.Execute(context.Background(), append(base, args...))
	return fio.out.String(), err
}

func (e *testEnv) seed(t *testing.T, username, password string) {
	t.Helper()
	_, err := e.server.Platform().SeedAccount(username, password, username+"@example.com")
	require.NoError(t, err)
}

func (e *testEnv) login(t *testing.T, username, password string) {
	t.Helper()
	out, err := e.run(t, []string{password}, "login", "-u", username)
	require.NoError(t, err, out)
	require.Contains(t, out, "Login successful")
}

func TestCLI_RegisterVerifyLogin(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, []string{"alice", "alice@example.com", "correct-horse"}, "register")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Registration successful")
	assert.Contains(t, out, "verify-email")

	token, ok := env.server.Platform().EmailToken("alice")
	require.True(t, ok)

	out, err = env.run(t, nil, "verify-email", token)
	require.NoError(t, err)
	assert.Contains(t, out, "Email verified")

	out, err = env.run(t, []string{"alice", "correct-horse"}, "login")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Login successful")
	assert.Contains(t, out, "ctfclient challenges")

	out, err = env.run(t, nil, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Authenticated")
	assert.Contains(t, out, "Username: alice")
	assert.Contains(t, out, "Team: none")
	assert.Contains(t, out, "Token expires:")
	assert.Contains(t, out, "Cached data is up to date")
}

func TestCLI_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, []string{"alice", "not-an-email", "correct-horse"}, "register")
	require.Error(t, err)
	assert.True(t, session.IsValidation(err))
}

func TestCLI_LoginRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct-horse")

	_, err := env.run(t, []string{"wrong-password"}, "login", "-u", "alice")
	require.Error(t, err)
	assert.Equal(t, fakeapi.ErrBadCredentials.Message, ErrorMessage(err))
}

func TestCLI_AuthGuard(t *testing.T) {
	env := newTestEnv(t)

	for _, args := range [][]string{{"challenges"}, {"team"}, {"2fa", "add"}, {"settings", "username", "bob"}} {
		_, err := env.run(t, nil, args...)
		assert.ErrorIs(t, err, ErrNotLoggedIn, args)
	}

	out, err := env.run(t, nil, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not authenticated")
}

func TestCLI_ChallengesAndAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct-horse")
	env.login(t, "alice", "correct-horse")

	out, err := env.run(t, nil, "challenges")
	require.NoError(t, err)
	assert.Contains(t, out, "== web ==")
	assert.Contains(t, out, "[ ] #101 Login bypass (100)")
	assert.Contains(t, out, "[-] #202 Locked vault (500)")

	out, err = env.run(t, nil, "challenge", "201")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Misc / Sandbox ===")
	assert.Contains(t, out, "--- Code runner ---")
	assert.Contains(t, out, "Runtime: python3")

	out, err = env.run(t, nil, "challenge", "201", "--edit")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Edit challenge #201 ===")

	_, err = env.run(t, nil, "challenge", "999")
	assert.ErrorIs(t, err, ErrUnknownChallenge)

	_, err = env.run(t, nil, "attempt", "101", "not-a-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ractf{...}")

	out, err = env.run(t, nil, "attempt", "101", "ractf{nope}")
	require.NoError(t, err)
	assert.Contains(t, out, "Incorrect flag")

	out, err = env.run(t, nil, "attempt", "101", "ractf{0r_1=1}")
	require.NoError(t, err)
	assert.Contains(t, out, "Correct flag! +100 points")

	out, err = env.run(t, nil, "challenges")
	require.NoError(t, err)
	assert.Contains(t, out, "[x] #101 Login bypass (100)")

	// freeform принимает любой текст без проверки формата
	out, err = env.run(t, nil, "attempt", "102", "just words")
	require.NoError(t, err)
	assert.Contains(t, out, "Incorrect flag")
}

func TestCLI_Team(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct-horse")
	env.login(t, "alice", "correct-horse")

	out, err := env.run(t, nil, "team")
	require.NoError(t, err)
	assert.Contains(t, out, "You are not in a team.")

	out, err = env.run(t, []string{"teampass"}, "team", "create", "pwners")
	require.NoError(t, err, out)
	assert.Contains(t, out, "You are now in team pwners")

	out, err = env.run(t, nil, "team", "show", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "=== pwners ===")
	assert.Contains(t, out, "alice (owner)")

	_, err = env.run(t, nil, "team", "join", "pwners", "--password", "teampass")
	require.Error(t, err)
	assert.Equal(t, fakeapi.ErrAlreadyInTeam.Message, ErrorMessage(err))
}

func TestCLI_TwoFactorLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct-horse")
	env.login(t, "alice", "correct-horse")

	out, err := env.run(t, nil, "2fa", "add")
	require.NoError(t, err)
	secret, ok := env.server.Platform().TOTPSecret("alice")
	require.True(t, ok)
	assert.Contains(t, out, groupSecret(secret))
	assert.Contains(t, out, "otpauth://totp/RACTF:alice?")

	code, err := fakeapi.TOTPCode(secret, time.Now())
	require.NoError(t, err)
	out, err = env.run(t, nil, "2fa", "verify", code)
	require.NoError(t, err)
	assert.Contains(t, out, "Two-factor authentication enabled")

	out, err = env.run(t, nil, "2fa", "add")
	require.NoError(t, err)
	assert.Contains(t, out, "replace your existing two-factor")

	_, err = env.run(t, nil, "logout")
	require.NoError(t, err)

	// код запрашивается после ответа 2fa_required
	code, err = fakeapi.TOTPCode(secret, time.Now())
	require.NoError(t, err)
	out, err = env.run(t, []string{"correct-horse", code}, "login", "-u", "alice")
	require.NoError(t, err, out)
	assert.Contains(t, out, "One-time code: ")
	assert.Contains(t, out, "Login successful")
}

func TestCLI_Offline(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct-horse")
	env.login(t, "alice", "correct-horse")

	env.http.Close()

	out, err := env.run(t, nil, "challenges")
	require.NoError(t, err)
	assert.Contains(t, out, "Offline: showing cached data")
	assert.Contains(t, out, "#101 Login bypass")

	out, err = env.run(t, nil, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Server unreachable")
}

func TestCLI_RevokedSession(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct-horse")
	env.login(t, "alice", "correct-horse")

	require.NoError(t, env.server.Platform().RevokeSessions("alice"))

	_, err := env.run(t, nil, "challenges")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	out, err := env.run(t, nil, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not authenticated")
}

func TestCLI_SQLiteStore(t *testing.T) {
	env := newTestEnv(t)
	env.store = "sqlite"
	env.seed(t, "alice", "correct-horse")
	env.login(t, "alice", "correct-horse")

	out, err := env.run(t, nil, "challenges", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "#201 Sandbox")
}

func TestCLI_Settings(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct-horse")
	env.login(t, "alice", "correct-horse")

	_, err := env.run(t, []string{"correct-horse", "new-password", "other-password"}, "settings", "password")
	require.Error(t, err)
	assert.True(t, session.IsValidation(err))

	out, err := env.run(t, []string{"correct-horse", "new-password", "new-password"}, "settings", "password")
	require.NoError(t, err)
	assert.Contains(t, out, "Password changed")

	out, err = env.run(t, nil, "settings", "username", "alice2")
	require.NoError(t, err)
	assert.Contains(t, out, "Username changed to alice2")

	out, err = env.run(t, nil, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Username: alice2")
}

func TestCLI_Countdown(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.server.Platform().SetCountdown("competition_start", now.Add(-time.Hour))
	env.server.Platform().SetCountdown("competition_end", now.Add(2*time.Hour))

	out, err := env.run(t, nil, "countdown")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "competition_start"))
	assert.Contains(t, lines[0], "passed")
	assert.True(t, strings.HasPrefix(lines[1], "competition_end"))
	assert.Contains(t, lines[1], "in 1h59m")
}

func TestCLI_Config(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, nil, "config")
	require.NoError(t, err)
	assert.Contains(t, out, `server_url = "`+env.http.URL+`"`)
	assert.Contains(t, out, `store = "bolt"`)

	_, err = env.run(t, nil, "config", "--store", "mongo")
	assert.Error(t, err)
}

func TestGroupSecret(t *testing.T) {
	assert.Equal(t, "ABCD EFGH IJ", groupSecret("ABCDEFGHIJ"))
	assert.Equal(t, "", groupSecret(""))
}

func TestOtpauthURI(t *testing.T) {
	uri, err := otpauthURI("RACTF", "alice smith", "jbsw y3dp ehpk 3pxp")
	require.Error(t, err, "spaces inside the secret are not base32")
	assert.Empty(t, uri)

	uri, err = otpauthURI("RACTF", "alice smith", "jbswy3dpehpk3pxp")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/RACTF:alice%20smith?"), uri)

	key, err := otp.NewKeyFromURL(uri)
	require.NoError(t, err)
	assert.Equal(t, "totp", key.Type())
	assert.Equal(t, "RACTF", key.Issuer())
	assert.Equal(t, "alice smith", key.AccountName())
	assert.Equal(t, "JBSWY3DPEHPK3PXP", key.Secret())

	_, err = otpauthURI("RACTF", "", "JBSWY3DPEHPK3PXP")
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	_, ok := tokenExpiry("")
	assert.False(t, ok)
	_, ok = tokenExpiry("opaque-token")
	assert.False(t, ok)
}
