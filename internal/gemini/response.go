package gemini

import (
	"strings"
)

// responseKind is the decided shape of one generation response
type responseKind int

const (
	// kindText carries usable text with no block flag
	kindText responseKind = iota
	// kindBlockedWithText is flagged by the content filter yet carries text
	kindBlockedWithText
	// kindBlockedNoText is flagged and empty
	kindBlockedNoText
	// kindError is neither flagged nor usable
	kindError
)

func (k responseKind) String() string {
	switch k {
	case kindText:
		return "text"
	case kindBlockedWithText:
		return "blocked-with-text"
	case kindBlockedNoText:
		return "blocked"
	default:
		return "error"
	}
}

// blockReasons are finish reasons that mean the content filter intervened
var blockReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
}

// outcome is a classified response
type outcome struct {
	Kind   responseKind
	Text   string
	Reason string
}

// classify decides the variant of a response once, at the boundary
func classify(resp generateResponse) outcome {
	if len(resp.Candidates) == 0 {
		if resp.BlockReason != "" {
			return outcome{Kind: kindBlockedNoText, Reason: "prompt blocked: " + resp.BlockReason}
		}
		return outcome{Kind: kindError, Reason: "no candidates in response"}
	}

	c := resp.Candidates[0]
	text := strings.TrimSpace(c.Text)
	blocked := blockReasons[c.FinishReason]

	switch {
	case blocked && text != "":
		return outcome{Kind: kindBlockedWithText, Text: text, Reason: c.FinishReason}
	case blocked:
		return outcome{Kind: kindBlockedNoText, Reason: "finish reason " + c.FinishReason}
	case text != "":
		return outcome{Kind: kindText, Text: text}
	default:
		reason := "no text found in response"
		if c.FinishReason != "" {
			reason += " (finish reason " + c.FinishReason + ")"
		}
		return outcome{Kind: kindError, Reason: reason}
	}
}
