// Package budget provides token budget estimation and context truncation for
// the answer prompt. Because docchat supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters. Characters are counted as runes so that
// accented Portuguese text is not over-counted.
package budget

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation.
	charsPerToken = 4

	// messageOverhead is the per-message token overhead most chat APIs add.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models while leaving room for the answer. Override via
	// DOCCHAT_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000

	// truncationMarker is appended to context that had to be cut.
	truncationMarker = "\n[...]"
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	chars := utf8.RuneCountInString(s)
	n := chars / charsPerToken
	if n == 0 && chars > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Remaining returns how many tokens are left for retrieved context once the
// fixed messages (instructions and question) are accounted for. It never
// returns a negative number.
func Remaining(fixed []*schema.Message, maxTokens int) int {
	left := maxTokens - EstimateMessages(fixed)
	if left < 0 {
		return 0
	}
	return left
}

// Truncate shortens s so that Estimate(result) <= maxTokens. The cut prefers
// the last paragraph break, then the last whitespace, inside the allowed
// window, and the result ends with a "[...]" marker. It reports whether s was
// shortened. maxTokens <= 0 yields "".
func Truncate(s string, maxTokens int) (string, bool) {
	if Estimate(s) <= maxTokens {
		return s, false
	}
	if maxTokens <= 0 {
		return "", true
	}

	limit := maxTokens*charsPerToken - utf8.RuneCountInString(truncationMarker)
	if limit <= 0 {
		return "", true
	}

	// Byte offset of the rune at index limit.
	cut := len(s)
	for i := range s {
		if limit == 0 {
			cut = i
			break
		}
		limit--
	}
	head := s[:cut]

	if i := strings.LastIndex(head, "\n\n"); i > len(head)/2 {
		head = head[:i]
	} else if i := strings.LastIndexFunc(head, unicode.IsSpace); i > len(head)/2 {
		head = head[:i]
	}
	return strings.TrimRightFunc(head, unicode.IsSpace) + truncationMarker, true
}
