package credential

import (
	"regexp"
	"strings"

	"tap-terminal/internal/models"
)

// NFC serials arrive as hex octet pairs, optionally colon-separated
// ("04:5B:07:0A:FD:75:80"). Anything else is rejected before it can reach
// a URL or request body.
var uidPattern = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:?[0-9A-Fa-f]{2})*$`)

// Normalize validates a raw NFC serial and returns its canonical form:
// uppercase hex, separators stripped. Normalization is idempotent; a
// canonical UID passes through unchanged.
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", models.NewSessionError(models.ErrMalformedCredential, "empty credential")
	}
	if !uidPattern.MatchString(raw) {
		return "", models.NewSessionError(models.ErrMalformedCredential, "credential is not a hex serial")
	}
	return strings.ToUpper(strings.ReplaceAll(raw, ":", "")), nil
}
