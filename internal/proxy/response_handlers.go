package proxy

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	app_errors "harmony-bridge/internal/errors"
	"harmony-bridge/internal/harmony"
	"harmony-bridge/internal/response"
	"harmony-bridge/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const doneSentinel = "[DONE]"

func (s *BridgeServer) handleStreamingResponse(c *gin.Context, resp *http.Response, rid uint64) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		logrus.Error("Streaming unsupported by the writer, falling back to normal response")
		s.handleNormalResponse(c, resp, rid)
		return
	}

	// Correlates the two log lines of one stream when many run at once.
	streamID := uuid.NewString()
	logrus.WithFields(logrus.Fields{"rid": rid, "stream_id": streamID}).Debug("Stream started")
	defer logrus.WithFields(logrus.Fields{"rid": rid, "stream_id": streamID}).Debug("Stream finished")

	transformer := harmony.NewStreamTransformer(s.mode())
	writeEvent := func(payload string) bool {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			logUpstreamError("writing stream to client", err)
			return false
		}
		flusher.Flush()
		return true
	}

	// The client stream always terminates with the sentinel, even when
	// the upstream connection dies before sending its own.
	doneSent := false
	defer func() {
		if !doneSent {
			writeEvent(doneSentinel)
		}
	}()

	reader := bufio.NewReader(resp.Body)
	for {
		rawLine, err := reader.ReadString('\n')
		line := strings.TrimSpace(rawLine)

		if line != "" {
			stop, write := s.processStreamLine(transformer, line, rid, writeEvent)
			if !write {
				return
			}
			if stop {
				doneSent = true
				return
			}
		}

		if err == io.EOF {
			logrus.WithField("rid", rid).Debug("Upstream stream ended without sentinel")
			return
		}
		if err != nil {
			logUpstreamError(fmt.Sprintf("reading stream #%d", rid), err)
			return
		}
	}
}

// processStreamLine handles one upstream SSE line. It returns stop=true
// once the terminal sentinel has been relayed, and write=false when a
// client write failed.
func (s *BridgeServer) processStreamLine(transformer *harmony.StreamTransformer, line string, rid uint64, writeEvent func(string) bool) (stop bool, write bool) {
	if !strings.HasPrefix(line, "data:") {
		return false, true
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

	if payload == doneSentinel {
		for _, r := range transformer.Flush() {
			chunk, err := renderChunk(flushBaseChunk(), r)
			if err != nil {
				logrus.WithField("rid", rid).WithError(err).Warn("Failed to render flush chunk")
				continue
			}
			if !writeEvent(chunk) {
				return false, false
			}
		}
		if !writeEvent(doneSentinel) {
			return false, false
		}
		return true, true
	}

	// Malformed upstream lines are dropped; the stream continues.
	if !gjson.Valid(payload) {
		logrus.WithField("rid", rid).Debugf("Dropping malformed stream line: %s", utils.Preview(payload, 120))
		return false, true
	}

	content := gjson.Get(payload, "choices.0.delta.content").String()

	// Ordinary chunks relay untouched until markup engages the buffer.
	if !transformer.Engaged() && !harmony.ContainsMarkup(content) {
		return false, writeEvent(payload)
	}

	for _, r := range transformer.Feed(content) {
		chunk, err := renderChunk(payload, r)
		if err != nil {
			logrus.WithField("rid", rid).WithError(err).Warn("Failed to render chunk")
			continue
		}
		if !writeEvent(chunk) {
			return false, false
		}
	}
	return false, true
}

// renderChunk rewrites an upstream chunk so its sole choice carries the
// rendering. Unknown top-level fields of the base chunk survive.
func renderChunk(base string, r harmony.Rendering) (string, error) {
	delta, err := renderDelta(r)
	if err != nil {
		return "", err
	}
	return sjson.SetRaw(base, "choices", `[{"index":0,"delta":`+delta+`,"finish_reason":null}]`)
}

func renderDelta(r harmony.Rendering) (string, error) {
	if len(r.ToolCalls) > 0 {
		calls, err := json.Marshal(r.ToolCalls)
		if err != nil {
			return "", err
		}
		return `{"tool_calls":` + string(calls) + `}`, nil
	}
	content, err := json.Marshal(r.Content)
	if err != nil {
		return "", err
	}
	return `{"content":` + string(content) + `}`, nil
}

// flushBaseChunk synthesizes the chunk skeleton used for the
// end-of-stream flush, when no upstream chunk is at hand.
func flushBaseChunk() string {
	return fmt.Sprintf(`{"id":"chunk","object":"chat.completion.chunk","created":%d,"model":"gpt-oss","choices":[{"index":0,"delta":{},"finish_reason":null}]}`, time.Now().Unix())
}

func (s *BridgeServer) handleNormalResponse(c *gin.Context, resp *http.Response, rid uint64) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logUpstreamError(fmt.Sprintf("reading response #%d", rid), err)
		response.Error(c, app_errors.NewAPIError(app_errors.ErrBadGateway, "failed to read upstream response"))
		return
	}

	decompressed, err := utils.DecompressResponse(resp.Header.Get("Content-Encoding"), body)
	if err == nil {
		body = decompressed
	}

	transformed := TransformCompletionBody(body, s.mode())

	copyUpstreamHeaders(c.Writer.Header(), resp.Header)
	c.Writer.Header().Del("Content-Encoding")
	c.Data(resp.StatusCode, "application/json", transformed)
}

// TransformCompletionBody applies the block parser once to a whole
// response body. Bodies without markup, unparseable bodies, and any
// rewrite failure all yield the original bytes unchanged.
func TransformCompletionBody(body []byte, mode harmony.Mode) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}

	content := gjson.GetBytes(body, "choices.0.message.content").String()
	if content == "" || !harmony.ContainsMarkup(content) {
		return body
	}

	parsed := harmony.ParseBlock(content)
	out := body
	var err error

	if len(parsed.ToolCalls) > 0 {
		if mode == harmony.ModeXML {
			xml := harmony.ToolCallsToXML(parsed.ToolCalls)
			if out, err = sjson.SetBytes(out, "choices.0.message.content", xml); err != nil {
				return body
			}
			if out, err = sjson.DeleteBytes(out, "choices.0.message.tool_calls"); err != nil {
				return body
			}
			if out, err = sjson.SetBytes(out, "choices.0.finish_reason", "stop"); err != nil {
				return body
			}
			return out
		}

		calls, err := json.Marshal(harmony.ToolCallsToOpenAI(parsed.ToolCalls))
		if err != nil {
			return body
		}
		if out, err = sjson.SetRawBytes(out, "choices.0.message.content", []byte("null")); err != nil {
			return body
		}
		if out, err = sjson.SetRawBytes(out, "choices.0.message.tool_calls", calls); err != nil {
			return body
		}
		if out, err = sjson.SetBytes(out, "choices.0.finish_reason", "tool_calls"); err != nil {
			return body
		}
		return out
	}

	if out, err = sjson.SetBytes(out, "choices.0.message.content", parsed.FinalText); err != nil {
		return body
	}
	if out, err = sjson.SetBytes(out, "choices.0.finish_reason", "stop"); err != nil {
		return body
	}
	return out
}
