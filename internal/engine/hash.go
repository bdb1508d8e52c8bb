package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeContent optionally case-folds and collapses runs of whitespace to a
// single space. Identical normalized text always hashes identically.
func NormalizeContent(content string, fold bool) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(content))
	prevSpace := false
	for _, r := range content {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		if fold {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContentHash returns the hex SHA-256 of content, normalized first when
// normalize is set.
func ContentHash(content string, normalize bool) string {
	if normalize {
		content = NormalizeContent(content, true)
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
