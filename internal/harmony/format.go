package harmony

import (
	"encoding/json"
	"fmt"
	"strings"

	"harmony-bridge/internal/utils"
)

// OpenAIToolCall is one entry of an OpenAI-style tool_calls list.
type OpenAIToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAIFunction carries the function name and its arguments as a
// JSON-encoded string.
type OpenAIFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// ToolCallsToXML renders invocations as Cline-style XML tags. Each
// argument becomes a nested tag in payload order; invocations are
// joined by a single newline.
func ToolCallsToXML(calls []ToolCall) string {
	var b strings.Builder
	for i, call := range calls {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("<")
		b.WriteString(call.Name)
		b.WriteString(">")
		if call.Args != nil {
			for _, arg := range call.Args {
				b.WriteString("<")
				b.WriteString(arg.Key)
				b.WriteString(">")
				b.WriteString(escapeXML(valueText(arg.Value)))
				b.WriteString("</")
				b.WriteString(arg.Key)
				b.WriteString(">")
			}
		} else {
			b.WriteString(escapeXML(valueText(call.Payload)))
		}
		b.WriteString("</")
		b.WriteString(call.Name)
		b.WriteString(">")
	}
	return b.String()
}

// valueText renders an argument value as text: strings as-is, null as
// empty, anything else as its JSON encoding.
func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// ToolCallsToOpenAI renders invocations as an OpenAI tool_calls list.
// IDs are unique within one response but carry no external meaning.
func ToolCallsToOpenAI(calls []ToolCall) []OpenAIToolCall {
	if len(calls) == 0 {
		return nil
	}
	suffix := utils.GenerateRandomSuffix()
	out := make([]OpenAIToolCall, 0, len(calls))
	for i, call := range calls {
		out = append(out, OpenAIToolCall{
			ID:   fmt.Sprintf("call_%d_%s", i, suffix),
			Type: "function",
			Function: OpenAIFunction{
				Name:      call.Name,
				Arguments: argumentsJSON(call),
			},
		})
	}
	return out
}

// argumentsJSON encodes a call's arguments as a JSON object string,
// preserving key order. Non-object payloads are stringified.
func argumentsJSON(call ToolCall) string {
	if call.Args == nil {
		if s, ok := call.Payload.(string); ok {
			return s
		}
		data, err := json.Marshal(call.Payload)
		if err != nil {
			return fmt.Sprint(call.Payload)
		}
		return string(data)
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, arg := range call.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(arg.Key)
		b.Write(key)
		b.WriteByte(':')
		value, err := json.Marshal(arg.Value)
		if err != nil {
			value = []byte("null")
		}
		b.Write(value)
	}
	b.WriteByte('}')
	return b.String()
}
