// Package fakeapi is an in-memory RACTF compatible server.
// It backs the dev server and end-to-end tests of the client.
package fakeapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/ctfclient/internal/models"
)

// Defaults of the fake server
const (
	DefaultAPIBase       = "/api/v0"
	DefaultTokenTTL      = 24 * time.Hour
	DefaultAttemptRate   = 10
	DefaultAttemptWindow = time.Minute
)

// Server обслуживает HTTP API поверх Platform
type Server struct {
	platform *Platform
	attempts *rateLimiter
	logger   *slog.Logger
	now      func() time.Time
	handler  http.Handler
	apiBase  string
	version  string
	tokens   TokenConfig
}

type options struct {
	logger        *slog.Logger
	now           func() time.Time
	catalog       models.Catalog
	flags         map[int64]string
	secret        []byte
	apiBase       string
	version       string
	tokenTTL      time.Duration
	attemptWindow time.Duration
	bcryptCost    int
	attemptRate   int
}

// Option настраивает Server
type Option func(*options)

// WithLogger sets the request and event logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the server clock
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithCatalog replaces the demo catalog, flags are keyed by challenge ID
func WithCatalog(catalog models.Catalog, flags map[int64]string) Option {
	return func(o *options) {
		o.catalog = catalog
		o.flags = flags
	}
}

// WithSecret sets the JWT signing secret
func WithSecret(secret []byte) Option {
	return func(o *options) { o.secret = secret }
}

// WithAPIBase задает базовый путь API
func WithAPIBase(base string) Option {
	return func(o *options) { o.apiBase = base }
}

// WithTokenTTL задает время жизни токена сессии
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *options) { o.tokenTTL = ttl }
}

// WithAttemptLimit limits flag attempts per user
func WithAttemptLimit(rate int, window time.Duration) Option {
	return func(o *options) {
		o.attemptRate = rate
		o.attemptWindow = window
	}
}

// WithBcryptCost lowers password hashing cost, tests use bcrypt.MinCost
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

// WithVersion sets the version reported by the health endpoint
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

// New создает сервер. Без WithCatalog используется демо каталог.
func New(opts ...Option) *Server {
	o := options{
		logger:        slog.Default(),
		now:           time.Now,
		apiBase:       DefaultAPIBase,
		version:       "dev",
		tokenTTL:      DefaultTokenTTL,
		attemptRate:   DefaultAttemptRate,
		attemptWindow: DefaultAttemptWindow,
		secret:        []byte("ractf-dev-secret"),
	}
	o.catalog, o.flags = DemoCatalog()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		platform: NewPlatform(o.catalog, o.flags, o.now, o.bcryptCost),
		attempts: newRateLimiter(o.attemptRate, o.attemptWindow, o.now),
		logger:   o.logger,
		now:      o.now,
		apiBase:  "/" + strings.Trim(o.apiBase, "/"),
		version:  o.version,
		tokens:   TokenConfig{Secret: o.secret, TTL: o.tokenTTL},
	}
	s.handler = s.routes()
	return s
}

// Platform gives direct access to the server state
func (s *Server) Platform() *Platform {
	return s.platform
}

// Handler returns the HTTP handler of the API
func (s *Server) Handler() http.Handler {
	return s.handler
}

// APIBase returns the path prefix the API is mounted at
func (s *Server) APIBase() string {
	return s.apiBase
}

// Close останавливает фоновые задачи
func (s *Server) Close() {
	s.attempts.Stop()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	route := func(method, path string, h http.HandlerFunc) {
		mux.HandleFunc(method+" "+s.apiBase+path, h)
	}

	route(http.MethodGet, "/health", s.health)

	route(http.MethodPost, "/auth/register", s.register)
	route(http.MethodPost, "/auth/verify", s.verifyEmail)
	route(http.MethodPost, "/auth/login", s.login)
	route(http.MethodPost, "/auth/add_2fa", s.requireAuth(s.addTwoFactor))
	route(http.MethodPost, "/auth/verify_2fa", s.requireAuth(s.verifyTwoFactor))
	route(http.MethodPost, "/auth/change_password", s.requireAuth(s.changePassword))

	route(http.MethodGet, "/members/self", s.requireAuth(s.userSelf))
	route(http.MethodPost, "/members/self/username", s.requireAuth(s.changeUsername))
	route(http.MethodGet, "/members/id/{id}", s.requireAuth(s.userByID))

	route(http.MethodGet, "/teams/self", s.requireAuth(s.teamSelf))
	route(http.MethodGet, "/teams/{id}", s.requireAuth(s.teamByID))
	route(http.MethodPost, "/teams/create", s.requireAuth(s.createTeam))
	route(http.MethodPost, "/teams/join", s.requireAuth(s.joinTeam))

	route(http.MethodGet, "/challenges/{$}", s.requireAuth(s.challenges))
	route(http.MethodPost, "/challenges/{id}/attempt", s.requireAuth(s.limitAttempts(s.attempt)))

	route(http.MethodGet, "/stats/countdown/{$}", s.countdown)

	return s.recoveryMiddleware(loggingMiddleware(s.logger, mux))
}
