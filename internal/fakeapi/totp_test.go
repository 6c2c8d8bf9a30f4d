package fakeapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B, SHA1 secret "12345678901234567890"
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestTOTPCode_RFCVectors(t *testing.T) {
	tests := []struct {
		unix int64
		want string
	}{
		{unix: 59, want: "287082"},
		{unix: 1111111109, want: "081804"},
		{unix: 1234567890, want: "005924"},
		{unix: 2000000000, want: "279037"},
	}
	for _, tt := range tests {
		code, err := TOTPCode(rfcSecret, time.Unix(tt.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, tt.want, code, "t=%d", tt.unix)
	}
}

func TestValidTOTP_Skew(t *testing.T) {
	now := time.Unix(1234567890, 0)
	code, err := TOTPCode(rfcSecret, now)
	require.NoError(t, err)

	assert.True(t, validTOTP(rfcSecret, code, now))
	assert.True(t, validTOTP(rfcSecret, code, now.Add(30*time.Second)))
	assert.False(t, validTOTP(rfcSecret, code, now.Add(5*time.Minute)))
	assert.False(t, validTOTP("!!!", code, now))
}

func TestNewTOTPSecret(t *testing.T) {
	secret, err := newTOTPSecret("alice")
	require.NoError(t, err)
	assert.Len(t, secret, 32)

	other, err := newTOTPSecret("alice")
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)

	_, err = TOTPCode(secret, time.Now())
	assert.NoError(t, err)
}

func TestTOTPCode_InvalidSecret(t *testing.T) {
	_, err := TOTPCode("!!!", time.Now())
	assert.Error(t, err)
}
