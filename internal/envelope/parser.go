// Package envelope extracts metaprotocol inscription envelopes from the
// sequence of script pushes carried by a transaction input. It never
// panics: a malformed push stream simply yields "no envelope".
package envelope

import (
	"strings"
	"unicode/utf8"
)

// MaxContentTypeLen bounds the candidate content-type push per the spec's
// "length <= 255" rule.
const MaxContentTypeLen = 255

// MaxPreviewChars is the number of runes retained in PreviewText.
const MaxPreviewChars = 256

// Envelope is the lifted (content_type, content) tuple. The caller
// synthesizes the inscription id as "{txid}i{vin_index}".
type Envelope struct {
	ContentType string
	Content     []byte
	// PreviewText is set only when Content is valid UTF-8.
	PreviewText string
	HasPreview  bool
}

// Parse scans pushes in order looking for a MIME-like content-type push
// followed by content pushes terminated by a signature or public-key push.
// It returns (nil, false) if no envelope is present.
func Parse(pushes [][]byte) (*Envelope, bool) {
	contentTypeIdx := -1
	var contentType string
	for i, p := range pushes {
		if isContentTypeCandidate(p) {
			contentTypeIdx = i
			contentType = string(p)
			break
		}
	}
	if contentTypeIdx == -1 {
		return nil, false
	}

	var content []byte
	for _, p := range pushes[contentTypeIdx+1:] {
		if isTerminatorPush(p) {
			break
		}
		content = append(content, p...)
	}
	if len(content) == 0 {
		return nil, false
	}

	env := &Envelope{ContentType: contentType, Content: content}
	if utf8.Valid(content) {
		env.HasPreview = true
		env.PreviewText = truncateRunes(string(content), MaxPreviewChars)
	}
	return env, true
}

// isContentTypeCandidate reports whether push decodes as a UTF-8 MIME-like
// string: contains '/', length <= 255.
func isContentTypeCandidate(push []byte) bool {
	if len(push) == 0 || len(push) > MaxContentTypeLen {
		return false
	}
	if !utf8.Valid(push) {
		return false
	}
	return strings.Contains(string(push), "/")
}

// isTerminatorPush classifies a push as a DER signature prefix, a
// compressed public key, or an uncompressed public key. Coarse length-only
// filters are deliberately excluded per the spec's false-positive rules.
func isTerminatorPush(push []byte) bool {
	n := len(push)
	if n >= 8 && n <= 73 && push[0] == 0x30 {
		return true
	}
	if n == 33 && (push[0] == 0x02 || push[0] == 0x03) {
		return true
	}
	if n == 65 && push[0] == 0x04 {
		return true
	}
	return false
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// NormalizeKey lowercases s for use as a unique-key lookup (tickers, names).
// Display casing is preserved separately by the caller.
func NormalizeKey(s string) string {
	return strings.ToLower(s)
}

// NormalizeContentType lowercases a content type for case-insensitive
// comparison (e.g. matching "application/json").
func NormalizeContentType(s string) string {
	return strings.ToLower(s)
}
