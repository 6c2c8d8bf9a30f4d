package fakeapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

var errInternal = errors.New("Internal server error.") //nolint:staticcheck // shown to the user as is

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// sendJSON отправляет успешный ответ в конверте платформы
func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(pkgapi.Response[any]{Success: true, Data: data}); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode response", slog.Any("error", err))
	}
}

// sendError отправляет ошибку в конверте платформы.
// Всё кроме Rejection превращается в 500 без деталей.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := pkgapi.Response[pkgapi.ErrorData]{Message: errInternal.Error()}

	var rej *Rejection
	if errors.As(err, &rej) {
		status = rej.Status
		resp.Message = rej.Message
		resp.Data.Reason = rej.Reason
	} else if !errors.Is(err, errInternal) {
		s.logger.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode error response", slog.Any("error", err))
	}
}

// decode читает JSON тело запроса
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.logger.WarnContext(r.Context(), "failed to decode request", "path", r.URL.Path, slog.Any("error", err))
		s.sendError(w, r, ErrBadRequest)
		return false
	}
	return true
}

// health обрабатывает GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

// register обрабатывает POST /auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req pkgapi.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.platform.Register(req)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	// письмо не отправляется, токен подтверждения уходит в лог
	s.logger.InfoContext(r.Context(), "verification email", "username", req.Username, "uuid", token)
	s.sendJSON(w, r, http.StatusCreated, struct{}{})
}

// verifyEmail обрабатывает POST /auth/verify
func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req pkgapi.VerifyEmailRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.platform.VerifyEmail(req.UUID); err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, struct{}{})
}

// login обрабатывает POST /auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req pkgapi.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, username, version, err := s.platform.Login(req)
	if err != nil {
		s.logger.InfoContext(r.Context(), "login refused", "username", req.Username, "error", err)
		s.sendError(w, r, err)
		return
	}
	token, err := issueToken(s.tokens, s.now(), id, username, version)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, pkgapi.TokenData{Token: token})
}

// addTwoFactor обрабатывает POST /auth/add_2fa
func (s *Server) addTwoFactor(w http.ResponseWriter, r *http.Request) {
	secret, err := s.platform.AddTwoFactor(userID(r.Context()))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, pkgapi.AddTwoFactorData{TOTPSecret: secret})
}

// verifyTwoFactor обрабатывает POST /auth/verify_2fa
func (s *Server) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req pkgapi.VerifyTwoFactorRequest
	if !s.decode(w, r, &req) {
		return
	}
	valid, err := s.platform.VerifyTwoFactor(userID(r.Context()), req.OTP)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, pkgapi.VerifyTwoFactorData{Valid: valid})
}

// changePassword обрабатывает POST /auth/change_password
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req pkgapi.ChangePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.platform.ChangePassword(userID(r.Context()), req); err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, struct{}{})
}

// changeUsername обрабатывает POST /members/self/username
func (s *Server) changeUsername(w http.ResponseWriter, r *http.Request) {
	var req pkgapi.ChangeUsernameRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.platform.ChangeUsername(userID(r.Context()), req.Username); err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, struct{}{})
}

// userSelf обрабатывает GET /members/self
func (s *Server) userSelf(w http.ResponseWriter, r *http.Request) {
	user, err := s.platform.User(userID(r.Context()), true)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, user)
}

// userByID обрабатывает GET /members/id/{id}
func (s *Server) userByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.sendError(w, r, ErrUserNotFound)
		return
	}
	user, err := s.platform.User(id, id == userID(r.Context()))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, user)
}

// teamSelf обрабатывает GET /teams/self
func (s *Server) teamSelf(w http.ResponseWriter, r *http.Request) {
	team, err := s.platform.TeamOf(userID(r.Context()))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, team)
}

// teamByID обрабатывает GET /teams/{id}
func (s *Server) teamByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.sendError(w, r, ErrTeamNotFound)
		return
	}
	team, err := s.platform.Team(id)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, team)
}

// createTeam обрабатывает POST /teams/create
func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var req pkgapi.TeamRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.platform.CreateTeam(userID(r.Context()), req); err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusCreated, struct{}{})
}

// joinTeam обрабатывает POST /teams/join
func (s *Server) joinTeam(w http.ResponseWriter, r *http.Request) {
	var req pkgapi.TeamRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.platform.JoinTeam(userID(r.Context()), req); err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, struct{}{})
}

// challenges обрабатывает GET /challenges/
func (s *Server) challenges(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.platform.Catalog(userID(r.Context()))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, catalog)
}

// attempt обрабатывает POST /challenges/{id}/attempt
func (s *Server) attempt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.sendError(w, r, ErrChallengeNotFound)
		return
	}
	var req pkgapi.AttemptRequest
	if !s.decode(w, r, &req) {
		return
	}
	correct, err := s.platform.Attempt(userID(r.Context()), id, req.Flag)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, r, http.StatusOK, pkgapi.AttemptData{Correct: correct})
}

// countdown обрабатывает GET /stats/countdown/
func (s *Server) countdown(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, r, http.StatusOK, s.platform.Countdown())
}
