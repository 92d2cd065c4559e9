package core

import (
	"math"
	"strconv"

	"github.com/bytedance/sonic"
)

// Options carries the generation options of the client dialect. Only the
// fields forwarded to the backend are declared. Decoding never fails: a hint
// of the wrong type is treated as absent.
type Options struct {
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Options) UnmarshalJSON(data []byte) error {
	*o = Options{}

	var fields map[string]any
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return nil
	}
	o.MaxTokens = wholeNumber(fields["max_tokens"])
	o.NumPredict = wholeNumber(fields["num_predict"])
	o.Temperature = number(fields["temperature"])
	o.TopP = number(fields["top_p"])
	return nil
}

func number(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func wholeNumber(v any) *int {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

// looseString reads a scalar the way an object key would: strings as-is,
// numbers and booleans in their JSON spelling, anything else as "".
func looseString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func looseBool(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

// GenerateRequest is the /api/generate request body. Prompt is kept loosely
// typed: a missing or null prompt is treated as empty input.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  any      `json:"prompt,omitempty"`
	System  string   `json:"system,omitempty"`
	Options *Options `json:"options,omitempty"`
	Stream  *bool    `json:"stream,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. Only a body that is not a JSON
// object is rejected; fields of an unexpected type are coerced or dropped.
func (r *GenerateRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		Model   any      `json:"model"`
		Prompt  any      `json:"prompt"`
		System  any      `json:"system"`
		Options *Options `json:"options"`
		Stream  any      `json:"stream"`
	}
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = GenerateRequest{
		Model:   looseString(wire.Model),
		Prompt:  wire.Prompt,
		System:  looseString(wire.System),
		Options: wire.Options,
		Stream:  looseBool(wire.Stream),
	}
	return nil
}

// ChatRequest is the /api/chat request body.
type ChatRequest struct {
	Model    string      `json:"model"`
	Messages MessageList `json:"messages"`
	Options  *Options    `json:"options,omitempty"`
	Stream   *bool       `json:"stream,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler with the same leniency as
// GenerateRequest.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		Model    any         `json:"model"`
		Messages MessageList `json:"messages"`
		Options  *Options    `json:"options"`
		Stream   any         `json:"stream"`
	}
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = ChatRequest{
		Model:    looseString(wire.Model),
		Messages: wire.Messages,
		Options:  wire.Options,
		Stream:   looseBool(wire.Stream),
	}
	return nil
}

// MessageList is a messages value forwarded without validation. An array is
// decoded into Items; any other JSON value is kept verbatim in Raw. A list
// with neither encodes as an empty array.
type MessageList struct {
	Items []ChatMessage
	Raw   any
}

// Messages wraps items as a MessageList.
func Messages(items ...ChatMessage) MessageList {
	return MessageList{Items: items}
}

// Len returns the number of decoded items.
func (l MessageList) Len() int {
	return len(l.Items)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *MessageList) UnmarshalJSON(data []byte) error {
	*l = MessageList{}

	var items []ChatMessage
	if err := sonic.Unmarshal(data, &items); err == nil {
		l.Items = items
		return nil
	}
	var raw any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Raw = raw
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l MessageList) MarshalJSON() ([]byte, error) {
	if l.Raw != nil {
		return sonic.Marshal(l.Raw)
	}
	if l.Items == nil {
		return []byte("[]"), nil
	}
	return sonic.Marshal(l.Items)
}

// ChatMessage is a chat message that survives a decode/encode round trip
// unchanged: fields other than role and content are kept in Extra, and an
// element that is not a JSON object is kept verbatim in Raw.
type ChatMessage struct {
	Role    string
	Content any
	Extra   map[string]any
	Raw     any
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	*m = ChatMessage{}

	var fields map[string]any
	if err := sonic.Unmarshal(data, &fields); err != nil {
		var raw any
		if rawErr := sonic.Unmarshal(data, &raw); rawErr != nil {
			return err
		}
		m.Raw = raw
		return nil
	}
	if fields == nil {
		return nil
	}

	if role, ok := fields[FieldRole].(string); ok {
		m.Role = role
		delete(fields, FieldRole)
	}
	if content, ok := fields[FieldContent]; ok {
		m.Content = content
		delete(fields, FieldContent)
	}
	if len(fields) > 0 {
		m.Extra = fields
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	if m.Raw != nil {
		return sonic.Marshal(m.Raw)
	}

	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Role != "" {
		out[FieldRole] = m.Role
	}
	if m.Content != nil {
		out[FieldContent] = m.Content
	}
	return sonic.Marshal(out)
}

// GenerationMetrics is the timing/count block appended to every successful
// response. Durations are nanoseconds.
type GenerationMetrics struct {
	TotalDuration      int64 `json:"total_duration"`
	LoadDuration       int64 `json:"load_duration"`
	PromptEvalCount    int   `json:"prompt_eval_count"`
	PromptEvalDuration int64 `json:"prompt_eval_duration"`
	EvalCount          int   `json:"eval_count"`
	EvalDuration       int64 `json:"eval_duration"`
}

// GenerateResponse is the /api/generate response body.
type GenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	GenerationMetrics
}

// ResponseMessage is the assistant message of a /api/chat response.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the /api/chat response body.
type ChatResponse struct {
	Model     string          `json:"model"`
	CreatedAt string          `json:"created_at"`
	Message   ResponseMessage `json:"message"`
	Done      bool            `json:"done"`
	GenerationMetrics
}
