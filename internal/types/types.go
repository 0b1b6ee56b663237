package types

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetServerConfig() ServerConfig
	GetUpstreamConfig() UpstreamConfig
	GetBridgeConfig() BridgeConfig
	GetLogConfig() LogConfig
	GetCORSConfig() CORSConfig
	GetPerformanceConfig() PerformanceConfig
	IsDebugMode() bool
	Validate() error
	ReloadConfig() error
	DisplayServerConfig()
}

// ServerConfig represents the listening HTTP server configuration
type ServerConfig struct {
	Host                    string `json:"host"`
	Port                    int    `json:"port"`
	ReadTimeout             int    `json:"read_timeout"`
	IdleTimeout             int    `json:"idle_timeout"`
	GracefulShutdownTimeout int    `json:"graceful_shutdown_timeout"`
}

// UpstreamConfig represents the upstream inference server configuration
type UpstreamConfig struct {
	BaseURL               string `json:"base_url"`
	ConnectTimeout        int    `json:"connect_timeout"`
	RequestTimeout        int    `json:"request_timeout"`
	IdleConnTimeout       int    `json:"idle_conn_timeout"`
	ResponseHeaderTimeout int    `json:"response_header_timeout"`
	MaxIdleConns          int    `json:"max_idle_conns"`
	MaxIdleConnsPerHost   int    `json:"max_idle_conns_per_host"`
}

// Output format values for BridgeConfig.Format.
const (
	FormatXML    = "xml"
	FormatOpenAI = "openai"
)

// BridgeConfig represents the Harmony translation configuration.
// The output format is a fixed per-instance choice, never per-request.
type BridgeConfig struct {
	Format string `json:"format"`
}

// XMLMode reports whether tool calls are rendered as XML text rather
// than structured tool_calls entries.
func (b BridgeConfig) XMLMode() bool {
	return b.Format != FormatOpenAI
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	EnableFile bool   `json:"enable_file"`
	FilePath   string `json:"file_path"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// PerformanceConfig represents performance configuration
type PerformanceConfig struct {
	MaxConcurrentRequests int `json:"max_concurrent_requests"`
}
