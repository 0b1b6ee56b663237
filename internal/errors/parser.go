package errors

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseUpstreamError extracts a human-readable message from an upstream
// error body. Upstreams disagree on the envelope, so several common
// shapes are probed in order; unparseable bodies are returned verbatim.
func ParseUpstreamError(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}

	// Probe known envelopes: OpenAI, vendor error_msg, flat error, root message.
	for _, path := range []string{"error.message", "error_msg", "error", "message"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			if msg := strings.TrimSpace(v.String()); msg != "" {
				return msg
			}
		}
	}

	return strings.TrimSpace(string(body))
}
