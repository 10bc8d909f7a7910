package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	addressPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// NFD + strip combining marks + NFC, so accented subjects hash the
	// same as their unaccented variants
	stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// ExtractAddress pulls the bare email address out of a free-form sender
// header such as `"Some Shop" <promo@shop.example>`. When several
// address-like tokens are present the last one wins, since display names
// tend to come first. Returns "" when no address is found.
func ExtractAddress(sender string) string {
	matches := addressPattern.FindAllString(sender, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.ToLower(matches[len(matches)-1])
}

// NormalizeSubject lowercases the subject, strips diacritics, collapses
// whitespace runs to single spaces and trims the result.
func NormalizeSubject(subject string) string {
	s := strings.ToLower(subject)
	if out, _, err := transform.String(stripDiacritics, s); err == nil {
		s = out
	}
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Compute derives the duplicate-group key for a (sender, subject) pair.
// It is a total function: absent sender or subject hash as empty strings.
func Compute(sender, subject string) string {
	key := ExtractAddress(sender) + "|" + NormalizeSubject(subject)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
