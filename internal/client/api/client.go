package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/ctfclient/internal/models"
	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

// Endpoints of the platform, relative to the API base URL
const (
	EndpointRegister       = "/auth/register"
	EndpointLogin          = "/auth/login"
	EndpointAddTwoFactor   = "/auth/add_2fa"
	EndpointVerifyTwoFA    = "/auth/verify_2fa"
	EndpointVerifyEmail    = "/auth/verify"
	EndpointChangePassword = "/auth/change_password"
	EndpointChallenges     = "/challenges/"
	EndpointFlagAttempt    = "/challenges/%d/attempt"
	EndpointUserSelf       = "/members/self"
	EndpointUser           = "/members/id/"
	EndpointChangeUsername = "/members/self/username"
	EndpointTeamCreate     = "/teams/create"
	EndpointTeamJoin       = "/teams/join"
	EndpointTeamSelf       = "/teams/self"
	EndpointTeam           = "/teams/"
	EndpointCountdown      = "/stats/countdown/"

	// SelfID selects the current user or team in GetUser and GetTeam
	SelfID = "self"

	// DefaultAuthScheme is prepended to the token in the Authorization header
	DefaultAuthScheme = "Bearer"
	// DefaultTimeout limits a single request
	DefaultTimeout = 30 * time.Second

	headerRequestID = "X-Request-ID"
	maxRedirects    = 10
)

// TokenSource отдает текущий токен сессии.
// Пустая строка означает что пользователь не авторизован.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Client представляет HTTP клиент для взаимодействия с платформой
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	baseURL    string
	authScheme string
}

// Option настраивает Client
type Option func(*Client)

// WithTokenSource sets where the Authorization token is read from on every request
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithAuthScheme overrides the Authorization scheme, empty sends the bare token
func WithAuthScheme(scheme string) Option {
	return func(c *Client) { c.authScheme = scheme }
}

// WithTimeout задает таймаут HTTP запроса
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient создает новый API клиент.
// baseURL включает домен и базовый путь API, например http://localhost:8000/api/v0
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authScheme: DefaultAuthScheme,
		logger:     slog.Default(),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов.
				// Authorization переносит сам net/http и только на тот же хост.
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get выполняет GET запрос и декодирует тело ответа в out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

// Post выполняет POST запрос, body может быть nil
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req pkgapi.RegisterRequest) error {
	return c.Post(ctx, EndpointRegister, req, nil)
}

// Login выполняет аутентификацию и возвращает токен
func (c *Client) Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenData, error) {
	var resp pkgapi.Response[pkgapi.TokenData]
	if err := c.Post(ctx, EndpointLogin, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// AddTwoFactor requests a fresh TOTP secret for the current user
func (c *Client) AddTwoFactor(ctx context.Context) (*pkgapi.AddTwoFactorData, error) {
	var resp pkgapi.Response[pkgapi.AddTwoFactorData]
	if err := c.Post(ctx, EndpointAddTwoFactor, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// VerifyTwoFactor подтверждает включение 2FA одноразовым кодом
func (c *Client) VerifyTwoFactor(ctx context.Context, otp string) (*pkgapi.VerifyTwoFactorData, error) {
	var resp pkgapi.Response[pkgapi.VerifyTwoFactorData]
	if err := c.Post(ctx, EndpointVerifyTwoFA, pkgapi.VerifyTwoFactorRequest{OTP: otp}, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// VerifyEmail подтверждает адрес электронной почты
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.Post(ctx, EndpointVerifyEmail, pkgapi.VerifyEmailRequest{UUID: token}, nil)
}

// ChangePassword меняет пароль текущего пользователя
func (c *Client) ChangePassword(ctx context.Context, req pkgapi.ChangePasswordRequest) error {
	return c.Post(ctx, EndpointChangePassword, req, nil)
}

// ChangeUsername меняет имя текущего пользователя
func (c *Client) ChangeUsername(ctx context.Context, username string) error {
	return c.Post(ctx, EndpointChangeUsername, pkgapi.ChangeUsernameRequest{Username: username}, nil)
}

// GetChallenges загружает полный каталог заданий
func (c *Client) GetChallenges(ctx context.Context) (models.Catalog, error) {
	var resp pkgapi.Response[models.Catalog]
	if err := c.Get(ctx, EndpointChallenges, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return models.Catalog{}, nil
	}
	return resp.Data, nil
}

// AttemptFlag отправляет флаг для задания
func (c *Client) AttemptFlag(ctx context.Context, challengeID int64, flag string) (*pkgapi.AttemptData, error) {
	var resp pkgapi.Response[pkgapi.AttemptData]
	path := fmt.Sprintf(EndpointFlagAttempt, challengeID)
	if err := c.Post(ctx, path, pkgapi.AttemptRequest{Flag: flag}, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetUser получает пользователя по ID, SelfID возвращает текущего
func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	path := EndpointUserSelf
	if id != SelfID {
		path = EndpointUser + url.PathEscape(id)
	}
	var resp pkgapi.Response[models.User]
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetTeam получает команду по ID, SelfID возвращает команду текущего пользователя
func (c *Client) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	path := EndpointTeamSelf
	if id != SelfID {
		path = EndpointTeam + url.PathEscape(id)
	}
	var resp pkgapi.Response[*models.Team]
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateTeam создает команду
func (c *Client) CreateTeam(ctx context.Context, req pkgapi.TeamRequest) error {
	return c.Post(ctx, EndpointTeamCreate, req, nil)
}

// JoinTeam вступает в существующую команду
func (c *Client) JoinTeam(ctx context.Context, req pkgapi.TeamRequest) error {
	return c.Post(ctx, EndpointTeamJoin, req, nil)
}

// GetCountdown returns the raw countdown payload, every value is kept undecoded
func (c *Client) GetCountdown(ctx context.Context) (map[string]json.RawMessage, error) {
	var resp pkgapi.Response[map[string]json.RawMessage]
	if err := c.Get(ctx, EndpointCountdown, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// doRequest выполняет HTTP запрос.
// Любая ошибка возвращается как *RequestError; если запрос не ушел на сервер
// (тело не сериализуется, плохой URL, токен не прочитан) это ошибка без статуса.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return newTransportError(fmt.Errorf("failed to marshal request body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return newTransportError(fmt.Errorf("failed to create request: %w", err))
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.New().String())

	if err := c.authorize(ctx, req); err != nil {
		return newTransportError(err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed", "method", method, "path", path, "error", err)
		return newTransportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return newTransportError(fmt.Errorf("failed to read response body: %w", err))
	}

	c.logger.DebugContext(ctx, "request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", req.Header.Get(headerRequestID),
	)

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newRejection(resp.StatusCode, respBody)
	}

	// Декодируем успешный ответ
	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return newTransportError(fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return nil
}

// authorize добавляет заголовок Authorization если есть токен
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read session token: %w", err)
	}
	if token == "" {
		return nil
	}
	if c.authScheme == "" {
		req.Header.Set("Authorization", token)
		return nil
	}
	req.Header.Set("Authorization", c.authScheme+" "+token)
	return nil
}
