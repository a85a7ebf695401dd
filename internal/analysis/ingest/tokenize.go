package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is one word of normalized text with its byte range in
// NormalizedText.Text, used to cut excerpts for match spans.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Normalize collapses whitespace, repairs invalid UTF-8, and tokenizes on
// word boundaries. Case is preserved; the fingerprinter lowercases on its
// side so excerpts stay readable.
func Normalize(s string) *NormalizedText {
	s = sanitizeUTF8(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")

	tokens := tokenize(s)
	return &NormalizedText{Text: s, Tokens: tokens}
}

func tokenize(s string) []Token {
	var tokens []Token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Text: s[start:i], Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: s[start:], Start: start, End: len(s)})
	}
	return tokens
}

func sanitizeUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	// Invalid byte sequences become spaces so words stay separated.
	return strings.ToValidUTF8(s, " ")
}

// Words returns just the token texts.
func (n *NormalizedText) Words() []string {
	out := make([]string, len(n.Tokens))
	for i, t := range n.Tokens {
		out[i] = t.Text
	}
	return out
}
