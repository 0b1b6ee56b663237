// Package config provides environment-based configuration management.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"harmony-bridge/internal/types"
	"harmony-bridge/internal/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Constants for default configuration values.
const (
	defaultHost        = "0.0.0.0"
	defaultPort        = 8000
	defaultUpstreamURL = "http://localhost:1234"
)

// Manager implements types.ConfigManager backed by environment
// variables, optionally seeded from a .env file.
type Manager struct {
	config *Config
}

// Config aggregates every configuration section.
type Config struct {
	Server      types.ServerConfig
	Upstream    types.UpstreamConfig
	Bridge      types.BridgeConfig
	Log         types.LogConfig
	CORS        types.CORSConfig
	Performance types.PerformanceConfig
	DebugMode   bool
}

// NewManager creates a new configuration manager and loads the config.
func NewManager() (types.ConfigManager, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	m := &Manager{}
	if err := m.ReloadConfig(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReloadConfig re-reads configuration from the environment and
// validates it.
func (m *Manager) ReloadConfig() error {
	config := &Config{
		Server: types.ServerConfig{
			Host:                    parseString("HOST", defaultHost),
			Port:                    parseInteger("PORT", defaultPort),
			ReadTimeout:             parseInteger("SERVER_READ_TIMEOUT", 60),
			IdleTimeout:             parseInteger("SERVER_IDLE_TIMEOUT", 120),
			GracefulShutdownTimeout: parseInteger("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 10),
		},
		Upstream: types.UpstreamConfig{
			BaseURL:               strings.TrimRight(parseString("UPSTREAM_URL", defaultUpstreamURL), "/"),
			ConnectTimeout:        parseInteger("CONNECT_TIMEOUT", 10),
			RequestTimeout:        parseInteger("REQUEST_TIMEOUT", 600),
			IdleConnTimeout:       parseInteger("IDLE_CONN_TIMEOUT", 120),
			ResponseHeaderTimeout: parseInteger("RESPONSE_HEADER_TIMEOUT", 600),
			MaxIdleConns:          parseInteger("MAX_IDLE_CONNS", 100),
			MaxIdleConnsPerHost:   parseInteger("MAX_IDLE_CONNS_PER_HOST", 50),
		},
		Bridge: types.BridgeConfig{
			Format: strings.ToLower(parseString("BRIDGE_FORMAT", types.FormatXML)),
		},
		Log: types.LogConfig{
			Level:      parseString("LOG_LEVEL", "info"),
			Format:     parseString("LOG_FORMAT", "text"),
			EnableFile: parseBoolean("LOG_ENABLE_FILE", false),
			FilePath:   parseString("LOG_FILE_PATH", "./logs/app.log"),
		},
		CORS: types.CORSConfig{
			Enabled:          parseBoolean("ENABLE_CORS", true),
			AllowedOrigins:   parseArray("ALLOWED_ORIGINS", "*"),
			AllowedMethods:   parseArray("ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders:   parseArray("ALLOWED_HEADERS", "*"),
			AllowCredentials: parseBoolean("ALLOW_CREDENTIALS", false),
		},
		Performance: types.PerformanceConfig{
			MaxConcurrentRequests: parseInteger("MAX_CONCURRENT_REQUESTS", 100),
		},
		DebugMode: parseBoolean("DEBUG_MODE", false),
	}

	m.config = config
	return m.Validate()
}

// Validate checks the loaded configuration for consistency.
func (m *Manager) Validate() error {
	var errs []string

	if m.config.Server.Port < 1 || m.config.Server.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if parsed, err := url.Parse(m.config.Upstream.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid upstream URL: %s", m.config.Upstream.BaseURL))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Sprintf("upstream URL scheme must be http or https, got %s", parsed.Scheme))
	}

	if f := m.config.Bridge.Format; f != types.FormatXML && f != types.FormatOpenAI {
		errs = append(errs, fmt.Sprintf("bridge format must be %q or %q, got %q", types.FormatXML, types.FormatOpenAI, f))
	}

	if m.config.Performance.MaxConcurrentRequests < 1 {
		errs = append(errs, "max concurrent requests cannot be less than 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetServerConfig returns the server configuration.
func (m *Manager) GetServerConfig() types.ServerConfig {
	return m.config.Server
}

// GetUpstreamConfig returns the upstream configuration.
func (m *Manager) GetUpstreamConfig() types.UpstreamConfig {
	return m.config.Upstream
}

// GetBridgeConfig returns the translation configuration.
func (m *Manager) GetBridgeConfig() types.BridgeConfig {
	return m.config.Bridge
}

// GetLogConfig returns the logging configuration.
func (m *Manager) GetLogConfig() types.LogConfig {
	return m.config.Log
}

// GetCORSConfig returns the CORS configuration.
func (m *Manager) GetCORSConfig() types.CORSConfig {
	return m.config.CORS
}

// GetPerformanceConfig returns the performance configuration.
func (m *Manager) GetPerformanceConfig() types.PerformanceConfig {
	return m.config.Performance
}

// IsDebugMode reports whether debug mode is enabled.
func (m *Manager) IsDebugMode() bool {
	return m.config.DebugMode
}

// DisplayServerConfig logs the effective configuration at startup.
func (m *Manager) DisplayServerConfig() {
	mode := "XML (Cline)"
	if !m.config.Bridge.XMLMode() {
		mode = "OpenAI tool_calls"
	}
	logrus.Info("Harmony bridge configuration:")
	logrus.Infof("  Listen:   %s:%d", m.config.Server.Host, m.config.Server.Port)
	logrus.Infof("  Upstream: %s", m.config.Upstream.BaseURL)
	logrus.Infof("  Output:   %s", mode)
	logrus.Infof("  Routes:   /v1/*  and  /api/v0/*")
}

func parseString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseInteger(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func parseBoolean(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("Invalid boolean for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func parseArray(key, defaultValue string) []string {
	return utils.SplitAndTrim(parseString(key, defaultValue), ",")
}
