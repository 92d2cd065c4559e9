package core

import "time"

// Default config constants
const (
	DefaultPort            = "14441"
	DefaultGinMode         = "release"
	DefaultBackendBaseURL  = "https://api.vikey.ai/v1"
	DefaultMinTPS          = 11.0
	DefaultRateLimit       = 0 // per-IP requests per minute; 0 disables the limiter
	DefaultMaxBodyBytes    = 2 << 20
	DefaultCORSAllowOrigin = "*"
	CORSMaxAge             = "86400"
)

// Proxy behaviour constants
const (
	// DefaultGenerateMaxTokens is forwarded for /api/generate when the client
	// gives no max-output-token hint.
	DefaultGenerateMaxTokens = 256

	// BackendRequestTimeout bounds a single backend call.
	BackendRequestTimeout = 120 * time.Second

	// CharsPerToken is the character-to-token ratio of the output estimate.
	CharsPerToken = 4

	// MinElapsedSeconds guards throughput division when elapsed time is ~0.
	MinElapsedSeconds = 1e-9

	// GenericErrorMessage is used when a failure carries no message.
	GenericErrorMessage = "proxy error"
)
