package plugin

import (
	"regexp"

	"github.com/iudanet/ctfclient/internal/models"
)

// Challenge metadata keys overriding the flag format
const (
	MetaFlagRegex        = "flag_regex"
	MetaFlagPartialRegex = "flag_partial_regex"
)

// DefaultFlagPrefix is used when the platform does not configure one
const DefaultFlagPrefix = "flag"

// freeform challenges accept any non-empty answer
var freeformTypes = map[string]bool{
	TagFreeform: true,
	"longText":  true,
}

// FlagFormat returns the pattern a flag for chal must match and a
// human-readable hint. A nil pattern means any non-empty flag.
func FlagFormat(chal *models.Challenge, prefix string) (*regexp.Regexp, string) {
	if freeformTypes[chal.TypeTag()] {
		return nil, "any text"
	}
	if prefix == "" {
		prefix = DefaultFlagPrefix
	}

	if chal != nil {
		regex, _ := chal.Metadata[MetaFlagRegex].(string)
		partial, _ := chal.Metadata[MetaFlagPartialRegex].(string)
		if regex != "" && partial != "" {
			if re, err := regexp.Compile(regex); err == nil {
				return re, re.String()
			}
		}
	}

	return regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `\{.+\}$`), prefix + "{...}"
}

// ValidFlag reports whether flag looks like an answer to chal
func ValidFlag(chal *models.Challenge, flag, prefix string) bool {
	if flag == "" {
		return false
	}
	re, _ := FlagFormat(chal, prefix)
	return re == nil || re.MatchString(flag)
}
