// Package harmony parses the token-tagged markup dialect emitted by
// gpt-oss style models and renders the recognized tool invocations for
// downstream clients.
package harmony

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Markup tokens of the upstream dialect.
const (
	TokenChannel   = "<|channel|>"
	TokenMessage   = "<|message|>"
	TokenStart     = "<|start|>"
	TokenConstrain = "<|constrain|>"
)

// headerPattern matches a segment header: channel keyword, optional
// recipient, optional payload constraint, then the message token.
// Content runs from the header end to the next channel token.
var headerPattern = regexp.MustCompile(`<\|channel\|>(\w+)(?:\s+to=([^<\s]+))?(?:\s*<\|constrain\|>(\w+))?<\|message\|>`)

// ContainsMarkup reports whether the text carries any markup token.
func ContainsMarkup(s string) bool {
	return strings.Contains(s, TokenChannel) ||
		strings.Contains(s, TokenMessage) ||
		strings.Contains(s, TokenStart)
}

// Argument is a single named tool argument. Order reflects the
// position of the key in the decoded payload.
type Argument struct {
	Key   string
	Value any
}

// ToolCall is a recognized tool invocation. Args is non-nil when the
// payload decoded to a JSON object (possibly empty); otherwise Payload
// holds the decoded non-object value.
type ToolCall struct {
	Name    string
	Args    []Argument
	Payload any
}

// ParsedBlock is the result of parsing one block of markup.
type ParsedBlock struct {
	FinalText       string
	ToolCalls       []ToolCall
	AnalysisNotes   []string
	CommentaryNotes []string
}

// ParseBlock extracts the typed segments of one block. Segments with
// unknown channel keywords are ignored, and text before the first
// header is inert. The scan is a single left-to-right pass.
func ParseBlock(block string) ParsedBlock {
	var result ParsedBlock

	matches := headerPattern.FindAllStringSubmatchIndex(block, -1)
	for _, m := range matches {
		contentStart := m[1]
		contentEnd := len(block)
		// Content stops at the next channel token, matched header or not.
		if next := strings.Index(block[contentStart:], TokenChannel); next >= 0 {
			contentEnd = contentStart + next
		}
		content := block[contentStart:contentEnd]

		channel := block[m[2]:m[3]]
		recipient := ""
		if m[4] >= 0 {
			recipient = block[m[4]:m[5]]
		}
		constrain := ""
		if m[6] >= 0 {
			constrain = block[m[6]:m[7]]
		}

		switch channel {
		case "final":
			result.FinalText += content
		case "analysis":
			result.AnalysisNotes = append(result.AnalysisNotes, strings.TrimSpace(content))
		case "commentary":
			if recipient != "" {
				result.ToolCalls = append(result.ToolCalls, parseToolCall(recipient, constrain, strings.TrimSpace(content)))
			} else {
				result.CommentaryNotes = append(result.CommentaryNotes, strings.TrimSpace(content))
			}
		}
	}

	return result
}

// parseToolCall decodes one commentary-with-recipient segment. A
// declared JSON payload that fails to decode degrades to a raw-text
// argument instead of failing the block.
func parseToolCall(recipient, constrain, content string) ToolCall {
	call := ToolCall{Name: strings.TrimPrefix(recipient, "functions.")}

	if constrain != "json" {
		call.Args = []Argument{{Key: "raw", Value: content}}
		return call
	}
	if content == "" {
		call.Args = []Argument{}
		return call
	}
	if !gjson.Valid(content) {
		call.Args = []Argument{{Key: "raw", Value: content}}
		return call
	}

	parsed := gjson.Parse(content)
	if !parsed.IsObject() {
		call.Payload = parsed.Value()
		return call
	}

	args := make([]Argument, 0)
	parsed.ForEach(func(key, value gjson.Result) bool {
		args = append(args, Argument{Key: key.String(), Value: value.Value()})
		return true
	})
	call.Args = args
	return call
}
