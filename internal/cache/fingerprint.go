package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fieldSep is a byte that cannot appear in normalized text, so two requests
// can never collide by shifting content between fields.
const fieldSep = "\x1f"

// Fingerprint derives the content-addressed cache key for one request:
// a sha256 over the NFC-normalized canonical serialization of the model
// identity, its request parameters, and the rendered system and user text.
// Rendering is deterministic, so byte-identical requests always map to the
// same fingerprint.
func Fingerprint(modelIdentity, paramsKey, system, user string) string {
	var b strings.Builder
	for i, field := range []string{modelIdentity, paramsKey, system, user} {
		if i > 0 {
			b.WriteString(fieldSep)
		}
		b.WriteString(norm.NFC.String(field))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
