package core

// BackendRequest is the chat-completion request sent to the backend.
// Stream is always false.
type BackendRequest struct {
	Model       string      `json:"model"`
	Stream      bool        `json:"stream"`
	Messages    MessageList `json:"messages"`
	MaxTokens   *int        `json:"max_tokens,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	TopP        *float64    `json:"top_p,omitempty"`
}

// Usage is the token usage block a backend may report.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResultKind identifies which response shape the generated text came from.
type ResultKind int

const (
	// ResultEmpty means neither known shape carried content.
	ResultEmpty ResultKind = iota
	// ResultMessage is choices[0].message.content.
	ResultMessage
	// ResultDelta is choices[0].delta.content.
	ResultDelta
)

func (k ResultKind) String() string {
	switch k {
	case ResultMessage:
		return "message"
	case ResultDelta:
		return "delta"
	default:
		return "empty"
	}
}

// BackendResult is a decoded backend reply. Text is only meaningful when
// Kind is ResultMessage or ResultDelta.
type BackendResult struct {
	Kind  ResultKind
	Text  string
	ID    string
	Model string
	Usage *Usage
}
