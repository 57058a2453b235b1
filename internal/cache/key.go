package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key computes the content-addressed cache key for a comparison. Values are
// case-folded and whitespace-trimmed so formatting noise does not defeat the
// cache; the field type is part of the key because the same pair can compare
// differently under different field semantics.
func Key(valueA, valueB, fieldType string) string {
	norm := strings.ToLower(strings.TrimSpace(valueA)) + "|" +
		strings.ToLower(strings.TrimSpace(valueB)) + "|" +
		strings.ToLower(strings.TrimSpace(fieldType))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
