// Package proxy implements the Harmony translating proxy in front of
// an OpenAI-compatible inference server.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	app_errors "harmony-bridge/internal/errors"
	"harmony-bridge/internal/harmony"
	"harmony-bridge/internal/httpclient"
	"harmony-bridge/internal/response"
	"harmony-bridge/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const maxUpstreamErrorBodySize = 64 * 1024 // 64KB

// BridgeServer forwards chat completion requests upstream and rewrites
// the responses from Harmony markup to the configured client format.
type BridgeServer struct {
	configManager types.ConfigManager
	clients       *httpclient.Manager
	requestSeq    atomic.Uint64
}

// NewBridgeServer creates a new bridge server instance.
func NewBridgeServer(configManager types.ConfigManager, clients *httpclient.Manager) *BridgeServer {
	return &BridgeServer{
		configManager: configManager,
		clients:       clients,
	}
}

// mode returns the per-instance rendering mode. The choice is fixed at
// startup, never per-request.
func (s *BridgeServer) mode() harmony.Mode {
	if s.configManager.GetBridgeConfig().XMLMode() {
		return harmony.ModeXML
	}
	return harmony.ModeOpenAI
}

// HandleChatCompletions forwards a chat completion request verbatim and
// dispatches the response to the streaming or whole-body transformer.
func (s *BridgeServer) HandleChatCompletions(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrBadRequest, "failed to read request body"))
		return
	}

	// A malformed body is rejected here and never forwarded.
	if !gjson.ValidBytes(bodyBytes) {
		response.Error(c, app_errors.ErrInvalidJSON)
		return
	}

	isStream := gjson.GetBytes(bodyBytes, "stream").Bool()
	model := gjson.GetBytes(bodyBytes, "model").String()
	if model == "" {
		model = "unknown"
	}
	rid := s.requestSeq.Add(1)

	logrus.WithFields(logrus.Fields{
		"rid":    rid,
		"model":  model,
		"stream": isStream,
		"format": s.configManager.GetBridgeConfig().Format,
	}).Info("Chat completion request")

	upstreamConfig := s.configManager.GetUpstreamConfig()

	var ctx context.Context
	var cancel context.CancelFunc
	if isStream {
		ctx, cancel = context.WithCancel(c.Request.Context())
	} else {
		ctx, cancel = context.WithTimeout(c.Request.Context(), time.Duration(upstreamConfig.RequestTimeout)*time.Second)
	}
	defer cancel()

	upstreamURL := upstreamConfig.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, upstreamURL, bytes.NewReader(bodyBytes))
	if err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, "failed to build upstream request"))
		return
	}
	copyRequestHeaders(req.Header, c.Request.Header)
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(bodyBytes))

	client := s.clients.Client(isStream)
	resp, err := client.Do(req)
	if err != nil {
		logUpstreamError(fmt.Sprintf("request #%d", rid), err)
		if !app_errors.IsIgnorableError(err) {
			response.Error(c, app_errors.NewAPIError(app_errors.ErrBadGateway, "upstream request failed"))
		}
		return
	}
	defer resp.Body.Close()

	if isStream {
		if resp.StatusCode != http.StatusOK {
			s.relayUpstreamError(c, resp, rid)
			return
		}
		s.handleStreamingResponse(c, resp, rid)
		return
	}
	s.handleNormalResponse(c, resp, rid)
}

// HandleModels proxies the models listing without transformation.
func (s *BridgeServer) HandleModels(c *gin.Context) {
	upstreamConfig := s.configManager.GetUpstreamConfig()

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(upstreamConfig.RequestTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamConfig.BaseURL+"/v1/models", nil)
	if err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, "failed to build upstream request"))
		return
	}
	copyRequestHeaders(req.Header, c.Request.Header)

	resp, err := s.clients.Client(false).Do(req)
	if err != nil {
		logUpstreamError("fetching models", err)
		response.Error(c, app_errors.NewAPIError(app_errors.ErrBadGateway, "failed to fetch models from upstream"))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logUpstreamError("reading models response", err)
		response.Error(c, app_errors.NewAPIError(app_errors.ErrBadGateway, "failed to read models response"))
		return
	}

	copyUpstreamHeaders(c.Writer.Header(), resp.Header)
	c.Writer.Header().Del("Content-Encoding")
	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), body)
}

// relayUpstreamError surfaces an upstream error status to the client
// with the parsed upstream message.
func (s *BridgeServer) relayUpstreamError(c *gin.Context, resp *http.Response, rid uint64) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamErrorBodySize))
	if err != nil {
		body = nil
	}
	msg := app_errors.ParseUpstreamError(body)
	if msg == "" {
		msg = resp.Status
	}
	logrus.WithFields(logrus.Fields{
		"rid":    rid,
		"status": resp.StatusCode,
	}).Error("Upstream returned error status")
	response.Error(c, app_errors.NewAPIErrorWithUpstream(resp.StatusCode, "UPSTREAM_ERROR", msg))
}

// copyRequestHeaders clones client headers onto the upstream request,
// excluding hop-by-hop headers. Accept-Encoding is dropped so the
// transport negotiates compression it can undo transparently.
func copyRequestHeaders(dst http.Header, src http.Header) {
	for k, vv := range src {
		switch http.CanonicalHeaderKey(k) {
		case "Content-Length", "Connection", "Keep-Alive", "Proxy-Authenticate",
			"Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
			"Accept-Encoding", "Host":
			continue
		default:
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}

// copyUpstreamHeaders copies headers from upstream, excluding hop-by-hop and Content-Length.
func copyUpstreamHeaders(dst http.Header, src http.Header) {
	for k, vv := range src {
		switch http.CanonicalHeaderKey(k) {
		case "Content-Length", "Connection", "Keep-Alive", "Proxy-Authenticate",
			"Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade":
			continue
		default:
			dst.Del(k)
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}

// logUpstreamError provides a centralized way to log errors from upstream interactions.
func logUpstreamError(context string, err error) {
	if err == nil {
		return
	}
	if app_errors.IsIgnorableError(err) {
		logrus.Debugf("Ignorable upstream error in %s: %v", context, err)
	} else {
		logrus.Errorf("Upstream error in %s: %v", context, err)
	}
}
