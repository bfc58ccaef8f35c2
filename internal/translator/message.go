package translator

import "fmt"

// ExtractText returns the single text block of a succeeded message.
//
// A message with no content at all is a service failure. More than one text
// block, no text block, or a thinking trace whose presence does not match
// wantThinking makes the response malformed. Redacted thinking counts as a
// trace.
func ExtractText(msg *Message, wantThinking bool) (string, error) {
	if msg == nil || len(msg.Content) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrServiceFailure)
	}

	var (
		text     string
		texts    int
		thinking bool
	)
	for _, b := range msg.Content {
		switch b.Type {
		case BlockText:
			texts++
			text = b.Text
		case BlockThinking, BlockRedactedThinking:
			thinking = true
		}
	}

	switch {
	case texts > 1:
		return "", fmt.Errorf("%w: %d text blocks", ErrMalformedResponse, texts)
	case texts == 0:
		return "", fmt.Errorf("%w: no text block", ErrMalformedResponse)
	case wantThinking && !thinking:
		return "", fmt.Errorf("%w: thinking trace missing", ErrMalformedResponse)
	case !wantThinking && thinking:
		return "", fmt.Errorf("%w: unexpected thinking trace", ErrMalformedResponse)
	}
	return text, nil
}
