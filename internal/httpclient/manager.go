// Package httpclient builds the HTTP clients used for upstream calls.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"harmony-bridge/internal/types"
)

// Manager holds the two upstream clients: one with an overall request
// timeout for whole-body calls, and one without it for event streams,
// which may legitimately run for many minutes.
type Manager struct {
	normal *http.Client
	stream *http.Client
}

// NewManager creates the upstream clients from the configuration.
func NewManager(configManager types.ConfigManager) *Manager {
	cfg := configManager.GetUpstreamConfig()

	transport := newTransport(cfg)
	return &Manager{
		normal: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
		},
		stream: &http.Client{
			Transport: transport,
		},
	}
}

// Client returns the client appropriate for the request kind.
func (m *Manager) Client(stream bool) *http.Client {
	if stream {
		return m.stream
	}
	return m.normal
}

func newTransport(cfg types.UpstreamConfig) *http.Transport {
	maxConnsPerHost := cfg.MaxIdleConnsPerHost * 2
	if maxConnsPerHost < 10 {
		maxConnsPerHost = 10
	}

	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   time.Duration(cfg.ConnectTimeout) * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       time.Duration(cfg.IdleConnTimeout) * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.ResponseHeaderTimeout) * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
