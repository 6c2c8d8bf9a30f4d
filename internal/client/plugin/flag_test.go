package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/ctfclient/internal/models"
)

func TestValidFlag(t *testing.T) {
	custom := &models.Challenge{Metadata: map[string]any{
		MetaFlagRegex:        `^[0-9]{4}$`,
		MetaFlagPartialRegex: `^[0-9]{0,4}$`,
	}}
	onlyFull := &models.Challenge{Metadata: map[string]any{MetaFlagRegex: `^[0-9]{4}$`}}
	broken := &models.Challenge{Metadata: map[string]any{
		MetaFlagRegex:        `^[`,
		MetaFlagPartialRegex: `^[`,
	}}

	tests := []struct {
		name   string
		chal   *models.Challenge
		flag   string
		prefix string
		want   bool
	}{
		{name: "default prefix", chal: &models.Challenge{}, flag: "flag{abc}", want: true},
		{name: "wrong prefix", chal: &models.Challenge{}, flag: "ractf{abc}", want: false},
		{name: "custom prefix", chal: &models.Challenge{}, flag: "ractf{abc}", prefix: "ractf", want: true},
		{name: "empty body", chal: &models.Challenge{}, flag: "flag{}", want: false},
		{name: "empty flag", chal: &models.Challenge{}, flag: "", want: false},
		{name: "freeform", chal: &models.Challenge{Type: "freeform"}, flag: "anything", want: true},
		{name: "freeform empty", chal: &models.Challenge{Type: "freeform"}, flag: "", want: false},
		{name: "custom regex", chal: custom, flag: "1234", want: true},
		{name: "custom regex mismatch", chal: custom, flag: "flag{1234}", want: false},
		{name: "regex without partial uses prefix", chal: onlyFull, flag: "flag{x}", want: true},
		{name: "broken regex uses prefix", chal: broken, flag: "flag{x}", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidFlag(tt.chal, tt.flag, tt.prefix))
		})
	}
}

func TestFlagFormat_Hint(t *testing.T) {
	_, hint := FlagFormat(&models.Challenge{}, "ractf")
	assert.Equal(t, "ractf{...}", hint)

	re, hint := FlagFormat(&models.Challenge{Type: "freeform"}, "")
	assert.Nil(t, re)
	assert.Equal(t, "any text", hint)
}
