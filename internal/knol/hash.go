package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/examprep/internal/domain"
)

// Normalize concatenates the parts of a question that define its identity.
// Each part is trimmed, lowercased and has its line endings normalized.
// Domain and explanation are left out so that recategorising a question or
// rewording its explanation keeps learners' review history attached to it.
func Normalize(q domain.Question) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	parts := []string{normalizePart(q.Question)}
	for _, o := range q.Options {
		parts = append(parts, normalizePart(o.ID)+") "+normalizePart(o.Text))
	}
	parts = append(parts, "answer: "+normalizePart(q.CorrectAnswer))

	// Newline separators keep adjacent fields from running together,
	// e.g. "question" and "answer" becoming "questionanswer".
	return strings.Join(parts, "\n")
}

// Hash normalizes a question and returns its SHA-256 hash as a hex string.
func Hash(q domain.Question) string {
	normalized := Normalize(q)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
