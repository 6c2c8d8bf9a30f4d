package fakeapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const userIDKey contextKey = "user_id"

// userID достает ID пользователя, положенный auth middleware
func userID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

// tokenFromHeader accepts "Bearer <t>", "Token <t>" and a bare token
func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		return header
	}
	if strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "Token") {
		return strings.TrimSpace(token)
	}
	return ""
}

// requireAuth проверяет JWT и версию токенов аккаунта
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromHeader(r.Header.Get("Authorization"))
		if token == "" {
			s.logger.WarnContext(r.Context(), "missing authorization token", "path", r.URL.Path)
			s.sendError(w, r, ErrInvalidToken)
			return
		}

		claims, err := validateToken(s.tokens, s.now(), token)
		if err != nil {
			s.logger.WarnContext(r.Context(), "invalid session token", "error", err)
			s.sendError(w, r, ErrInvalidToken)
			return
		}

		version, err := s.platform.TokenVersion(claims.UserID)
		if err != nil || version != claims.Version {
			s.logger.WarnContext(r.Context(), "revoked session token", "user_id", claims.UserID)
			s.sendError(w, r, ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

// limitAttempts ограничивает частоту отправки флагов каждым пользователем
func (s *Server) limitAttempts(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strconv.FormatInt(userID(r.Context()), 10)
		if !s.attempts.Allow(key) {
			s.logger.WarnContext(r.Context(), "flag attempt rate limit exceeded", "user_id", key)
			s.sendError(w, r, ErrTooFast)
			return
		}
		next(w, r)
	}
}

// responseWriter запоминает статус и размер ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// loggingMiddleware логирует метод, путь, статус и время выполнения.
// Тела запросов не логируются, в них пароли и флаги.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		level := slog.LevelInfo
		if wrapped.statusCode >= 500 {
			level = slog.LevelError
		} else if wrapped.statusCode >= 400 {
			level = slog.LevelWarn
		}

		logger.Log(r.Context(), level, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes_written", wrapped.written,
			"request_id", r.Header.Get("X-Request-ID"),
		)
	})
}

// recoveryMiddleware перехватывает panic и отвечает конвертом с ошибкой
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("Panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				s.sendError(w, r, errInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
