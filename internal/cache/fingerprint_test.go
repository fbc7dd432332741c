package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint("anthropic/m", "max_tokens=0;temperature=default", "sys", "user")
	b := Fingerprint("anthropic/m", "max_tokens=0;temperature=default", "sys", "user")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Any field change changes the key.
	assert.NotEqual(t, a, Fingerprint("anthropic/other", "max_tokens=0;temperature=default", "sys", "user"))
	assert.NotEqual(t, a, Fingerprint("anthropic/m", "max_tokens=10;temperature=default", "sys", "user"))
	assert.NotEqual(t, a, Fingerprint("anthropic/m", "max_tokens=0;temperature=default", "sys2", "user"))
	assert.NotEqual(t, a, Fingerprint("anthropic/m", "max_tokens=0;temperature=default", "sys", "user2"))
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	t.Parallel()

	// Text cannot shift between adjacent fields.
	a := Fingerprint("id", "pk", "sysuser", "")
	b := Fingerprint("id", "pk", "sys", "user")
	assert.NotEqual(t, a, b)
}

func TestFingerprintUnicodeNormalization(t *testing.T) {
	t.Parallel()

	// Precomposed vs combining-accent spelling of the same text.
	composed := Fingerprint("id", "pk", "sys", "caf\u00e9")
	decomposed := Fingerprint("id", "pk", "sys", "cafe\u0301")
	assert.Equal(t, composed, decomposed)
}
