package harmony

import "strings"

// Mode selects how recognized tool invocations are rendered.
type Mode int

const (
	// ModeXML renders tool calls as XML text inside delta content.
	ModeXML Mode = iota
	// ModeOpenAI renders tool calls as structured tool_calls entries.
	ModeOpenAI
)

// Rendering is one client-ready output fragment. Exactly one of
// Content and ToolCalls is set.
type Rendering struct {
	Content   string
	ToolCalls []OpenAIToolCall
}

// StreamTransformer owns the per-connection buffering state of the
// streaming translation. It is not safe for concurrent use; each
// connection gets its own instance.
//
// The transformer starts idle. The caller passes ordinary fragments
// through unchanged while Engaged() is false and the fragment carries
// no markup; everything else goes through Feed. Once engaged, the
// transformer never returns to pass-through for the connection's
// lifetime.
type StreamTransformer struct {
	mode    Mode
	engaged bool
	buf     string
	markers []int
	// scanFrom is where the next marker scan resumes, so per-fragment
	// cost tracks new input rather than total buffered size.
	scanFrom int
}

// NewStreamTransformer creates a transformer for one connection.
func NewStreamTransformer(mode Mode) *StreamTransformer {
	return &StreamTransformer{mode: mode}
}

// Engaged reports whether markup has been observed on this connection.
func (t *StreamTransformer) Engaged() bool {
	return t.engaged
}

// Feed buffers one upstream content fragment and returns the
// renderings of every block the fragment completed, in stream order.
// A block is complete only once the next channel token has been seen;
// the trailing block is held for Flush.
func (t *StreamTransformer) Feed(content string) []Rendering {
	t.engaged = true
	t.buf += content
	t.scanNewMarkers()

	if len(t.markers) < 2 {
		return nil
	}

	var renders []Rendering
	for i := 0; i+1 < len(t.markers); i++ {
		block := t.buf[t.markers[i]:t.markers[i+1]]
		if r, ok := t.render(block); ok {
			renders = append(renders, r)
		}
	}

	// Keep only the still-possibly-incomplete trailing block.
	last := t.markers[len(t.markers)-1]
	t.buf = t.buf[last:]
	t.markers = []int{0}
	t.scanFrom -= last

	return renders
}

// Flush renders the trailing unterminated block, if any, and resets
// the buffer so a second flush emits nothing.
func (t *StreamTransformer) Flush() []Rendering {
	buf := t.buf
	t.buf = ""
	t.markers = nil
	t.scanFrom = 0

	if strings.TrimSpace(buf) == "" {
		return nil
	}
	if r, ok := t.render(buf); ok {
		return []Rendering{r}
	}
	return nil
}

// scanNewMarkers records channel token positions in the unscanned part
// of the buffer. The resume offset backs up just enough to catch a
// token split across fragment boundaries.
func (t *StreamTransformer) scanNewMarkers() {
	if t.scanFrom < 0 {
		t.scanFrom = 0
	}
	for t.scanFrom < len(t.buf) {
		idx := strings.Index(t.buf[t.scanFrom:], TokenChannel)
		if idx < 0 {
			break
		}
		pos := t.scanFrom + idx
		t.markers = append(t.markers, pos)
		t.scanFrom = pos + len(TokenChannel)
	}
	if tail := len(t.buf) - len(TokenChannel) + 1; tail > t.scanFrom {
		t.scanFrom = tail
	}
}

// render converts one block to an output fragment. Tool invocations
// win over final text; blocks yielding neither, or an empty rendering,
// emit nothing.
func (t *StreamTransformer) render(block string) (Rendering, bool) {
	parsed := ParseBlock(block)

	if len(parsed.ToolCalls) > 0 {
		if t.mode == ModeXML {
			xml := ToolCallsToXML(parsed.ToolCalls)
			if strings.TrimSpace(xml) == "" {
				return Rendering{}, false
			}
			return Rendering{Content: xml}, true
		}
		calls := ToolCallsToOpenAI(parsed.ToolCalls)
		if len(calls) == 0 {
			return Rendering{}, false
		}
		return Rendering{ToolCalls: calls}, true
	}

	if parsed.FinalText != "" {
		return Rendering{Content: parsed.FinalText}, true
	}
	return Rendering{}, false
}
