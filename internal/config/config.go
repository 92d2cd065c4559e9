package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ollamabridge/internal/core"
	"ollamabridge/internal/resolve"
	"ollamabridge/internal/util"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when no backend API key is configured.
var ErrMissingAPIKey = errors.New("BACKEND_API_KEY (or VIKEY_API_KEY) is empty")

// ServerConfig server configuration
type ServerConfig struct {
	Port               string
	GinMode            string
	Backend            BackendSettings
	Models             resolve.ModelMapping
	MinTPS             float64
	RateLimit          int
	MaxBodyBytes       int64
	CORSAllowOrigin    string
	HTTPClientSettings HTTPClientSettings
	Storage            core.StorageInterface
	Logger             core.Logger
	Clock              core.Clock
}

// BackendSettings locates and authenticates the chat-completion backend
type BackendSettings struct {
	BaseURL string
	APIKey  string
}

// HTTPClientSettings HTTP client configuration
type HTTPClientSettings struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
}

// DefaultHTTPClientSettings default HTTP client settings
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		MaxIdleConns:        core.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: core.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:     core.HTTPMaxConnsPerHost,
		IdleConnTimeout:     core.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: core.HTTPTLSHandshakeTimeout,
		RequestTimeout:      core.BackendRequestTimeout,
	}
}

// LoadModelsConfig loads the alias mapping from a models file. Both
// {"models":{"alias":"backend"}} and ["id", ...] (identity mapping) are
// accepted, as JSON or, for .yaml/.yml files, the equivalent YAML.
func LoadModelsConfig(path string) (core.ModelsConfig, error) {
	var config core.ModelsConfig

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		return config, fmt.Errorf("failed to read %s: %w", path, err)
	}

	unmarshal := sonic.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	if err := unmarshal(data, &config); err != nil {
		var modelIDs []string
		if err := unmarshal(data, &modelIDs); err != nil {
			return config, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		config.Models = make(map[string]string, len(modelIDs))
		for _, modelID := range modelIDs {
			config.Models[modelID] = modelID
		}
	}

	if config.Models == nil {
		config.Models = make(map[string]string)
	}

	return config, nil
}

// ParseModelMap parses the MODEL_MAP JSON object. An empty string yields an
// empty map.
func ParseModelMap(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}, nil
	}

	var entries map[string]string
	if err := sonic.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf(`MODEL_MAP is not a valid JSON object of strings, e.g. {"llama3.3:70b-instruct-q4_K_M":"llama-3.3-70b-instruct"}: %w`, err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

// LoadModelMapping builds the immutable alias mapping. Entries from the
// models file (if path is set) are applied first and MODEL_MAP entries
// override them.
func LoadModelMapping(modelMapJSON, modelsPath string, logger core.Logger) (resolve.ModelMapping, error) {
	merged := make(map[string]string)

	if modelsPath != "" {
		fileConfig, err := LoadModelsConfig(modelsPath)
		if err != nil {
			return resolve.ModelMapping{}, err
		}
		for alias, backend := range fileConfig.Models {
			merged[alias] = backend
		}
		logger.Info("Loaded %d model mappings from %s", len(fileConfig.Models), modelsPath)
	}

	envEntries, err := ParseModelMap(modelMapJSON)
	if err != nil {
		return resolve.ModelMapping{}, err
	}
	for alias, backend := range envEntries {
		if prev, ok := merged[alias]; ok && prev != backend {
			logger.Debug("MODEL_MAP overrides %s: %s -> %s", alias, prev, backend)
		}
		merged[alias] = backend
	}

	for alias, backend := range merged {
		if alias == "" || backend == "" {
			logger.Warn("Ignoring model mapping with empty alias or backend: %q -> %q", alias, backend)
		}
	}

	mapping := resolve.NewModelMapping(merged)
	if mapping.Len() == 0 {
		logger.Warn("Model mapping is empty; every generate/chat request will return 404")
	}
	return mapping, nil
}

// LoadServerConfigFromEnv loads server config from environment variables
func LoadServerConfigFromEnv(logger core.Logger) (ServerConfig, error) {
	apiKey := util.GetEnvWithDefault("BACKEND_API_KEY", os.Getenv("VIKEY_API_KEY"))
	if strings.TrimSpace(apiKey) == "" {
		return ServerConfig{}, ErrMissingAPIKey
	}

	mapping, err := LoadModelMapping(os.Getenv("MODEL_MAP"), strings.TrimSpace(os.Getenv("MODELS_CONFIG_PATH")), logger)
	if err != nil {
		return ServerConfig{}, err
	}
	logger.Info("Loaded %d model aliases", mapping.Len())

	minTPS, err := util.GetEnvFloat("PROXY_MIN_TPS", core.DefaultMinTPS)
	if err != nil {
		return ServerConfig{}, err
	}
	if minTPS < 0 || math.IsNaN(minTPS) || math.IsInf(minTPS, 0) {
		return ServerConfig{}, fmt.Errorf("PROXY_MIN_TPS must be a finite non-negative number, got %v", minTPS)
	}

	rateLimit, err := util.GetEnvInt("RATE_LIMIT", core.DefaultRateLimit)
	if err != nil || rateLimit < 0 {
		logger.Warn("Invalid RATE_LIMIT value '%s', using default %d", os.Getenv("RATE_LIMIT"), core.DefaultRateLimit)
		rateLimit = core.DefaultRateLimit
	}

	maxBody, err := util.GetEnvInt("MAX_BODY_BYTES", core.DefaultMaxBodyBytes)
	if err != nil || maxBody <= 0 {
		logger.Warn("Invalid MAX_BODY_BYTES value '%s', using default %d", os.Getenv("MAX_BODY_BYTES"), core.DefaultMaxBodyBytes)
		maxBody = core.DefaultMaxBodyBytes
	}

	config := ServerConfig{
		Port:    util.GetEnvWithDefault("PORT", core.DefaultPort),
		GinMode: util.GetEnvWithDefault("GIN_MODE", core.DefaultGinMode),
		Backend: BackendSettings{
			BaseURL: util.GetEnvWithDefault("BACKEND_BASE_URL", core.DefaultBackendBaseURL),
			APIKey:  apiKey,
		},
		Models:             mapping,
		MinTPS:             minTPS,
		RateLimit:          rateLimit,
		MaxBodyBytes:       int64(maxBody),
		CORSAllowOrigin:    util.GetEnvWithDefault("CORS_ALLOW_ORIGIN", core.DefaultCORSAllowOrigin),
		HTTPClientSettings: DefaultHTTPClientSettings(),
		Clock:              core.SystemClock{},
	}

	logger.Info("Backend %s (key %s), min TPS %.2f", config.Backend.BaseURL, util.MaskSecret(apiKey), minTPS)
	return config, nil
}
