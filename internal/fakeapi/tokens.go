package fakeapi

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every session token
const Issuer = "ractf-dev"

// Claims представляет JWT claims сессии
type Claims struct {
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
	// Version is compared with the account's token version, bumping it
	// revokes every issued token
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

// TokenConfig содержит конфигурацию для JWT
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// issueToken создает новый JWT токен сессии
func issueToken(cfg TokenConfig, now time.Time, userID int64, username string, version int) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		Version:  version,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// validateToken валидирует и парсит JWT токен
func validateToken(cfg TokenConfig, now time.Time, tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
