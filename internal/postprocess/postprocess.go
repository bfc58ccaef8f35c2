// Package postprocess normalizes the raw text of a batch response before it is
// decoded: it separates inline reasoning blocks emitted by chat-style models
// and strips the code fence some models wrap around their answer.
package postprocess

import (
	"regexp"
	"strings"
)

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
// Flags: i = case-insensitive, s = dot matches newline.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>(.*?)</thinking>|<think>(.*?)</think>|<reasoning>(.*?)</reasoning>`,
)

// SplitThinking removes inline reasoning blocks from text. It returns the
// remaining text, trimmed, and the concatenated block contents. found reports
// whether any block was present.
func SplitThinking(text string) (rest, thinking string, found bool) {
	var parts []string
	for _, m := range thinkingBlockRe.FindAllStringSubmatch(text, -1) {
		found = true
		for _, g := range m[1:] {
			if g != "" {
				parts = append(parts, strings.TrimSpace(g))
			}
		}
	}
	rest = strings.TrimSpace(thinkingBlockRe.ReplaceAllString(text, ""))
	return rest, strings.Join(parts, "\n"), found
}

// Fence kinds reported by Unfence.
const (
	FenceNone = ""
	FenceJSON = "```json"
	FenceBare = "```"
)

// Unfence strips a code fence wrapping the whole of text, either ```json … ```
// or a bare ``` … ```. Text is trimmed first; the returned body is trimmed too.
// The second return value names the fence that was removed.
func Unfence(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, FenceBare) {
		return text, FenceNone
	}
	for _, open := range []string{FenceJSON, FenceBare} {
		if strings.HasPrefix(text, open) && len(text) >= len(open)+len(FenceBare) {
			return strings.TrimSpace(text[len(open) : len(text)-len(FenceBare)]), open
		}
	}
	return text, FenceNone
}
