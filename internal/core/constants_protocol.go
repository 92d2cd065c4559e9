package core

// Content type and header constants
const (
	ContentTypeJSON     = "application/json"
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderAccept        = "Accept"
	HeaderRequestID     = "X-Request-ID"
	AuthBearerPrefix    = "Bearer "
)

// Role constants
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleSystem    = "system"
)

// Message field names
const (
	FieldRole    = "role"
	FieldContent = "content"
)

// Client-facing routes
const (
	RouteRoot     = "/"
	RouteHealth   = "/health"
	RouteTags     = "/api/tags"
	RouteGenerate = "/api/generate"
	RouteChat     = "/api/chat"
	RouteStats    = "/api/stats"
	RouteMetrics  = "/metrics"
)

// Tag listing constants
const (
	TagFamily  = "llama"
	RootBanner = "Ollama is running"
)

// gin context keys
const (
	ContextKeyRequestID = "request_id"
	ContextKeyModel     = "model"
)

// UnmatchedRouteLabel is the metrics route label for requests no route matched.
const UnmatchedRouteLabel = "unmatched"
