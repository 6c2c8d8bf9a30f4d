package fakeapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	cfg := TokenConfig{Secret: []byte("secret"), TTL: time.Hour}
	now := time.Now()

	token, err := issueToken(cfg, now, 7, "alice", 2)
	require.NoError(t, err)

	claims, err := validateToken(cfg, now.Add(time.Minute), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, 2, claims.Version)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestTokens_Rejected(t *testing.T) {
	cfg := TokenConfig{Secret: []byte("secret"), TTL: time.Hour}
	now := time.Now()

	token, err := issueToken(cfg, now, 7, "alice", 0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		cfg   TokenConfig
		at    time.Time
		token string
	}{
		{name: "expired", cfg: cfg, at: now.Add(2 * time.Hour), token: token},
		{name: "wrong secret", cfg: TokenConfig{Secret: []byte("other"), TTL: time.Hour}, at: now, token: token},
		{name: "garbage", cfg: cfg, at: now, token: "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateToken(tt.cfg, tt.at, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", tokenFromHeader("Bearer abc"))
	assert.Equal(t, "abc", tokenFromHeader("token abc"))
	assert.Equal(t, "abc", tokenFromHeader("abc"))
	assert.Equal(t, "", tokenFromHeader("Basic abc"))
	assert.Equal(t, "", tokenFromHeader(""))
}
