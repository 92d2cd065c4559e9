package convert

import (
	"strconv"

	"ollamabridge/internal/core"
	"ollamabridge/internal/util"
)

// GenerateToBackend builds the backend request for /api/generate. The prompt
// becomes a single user message; a missing prompt is sent as empty text.
func GenerateToBackend(backendModel string, req *core.GenerateRequest) *core.BackendRequest {
	messages := make([]core.ChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, core.ChatMessage{Role: core.RoleSystem, Content: req.System})
	}
	messages = append(messages, core.ChatMessage{Role: core.RoleUser, Content: PromptText(req.Prompt)})

	maxTokens := maxTokensHint(req.Options)
	if maxTokens == nil {
		maxTokens = intPtr(core.DefaultGenerateMaxTokens)
	}

	out := &core.BackendRequest{
		Model:     backendModel,
		Stream:    false,
		Messages:  core.Messages(messages...),
		MaxTokens: maxTokens,
	}
	applySampling(out, req.Options)
	return out
}

// ChatToBackend builds the backend request for /api/chat. Messages are
// forwarded in order without validation, even when they are not an array,
// and a max-token bound is only sent when the client supplied one.
func ChatToBackend(backendModel string, req *core.ChatRequest) *core.BackendRequest {
	out := &core.BackendRequest{
		Model:     backendModel,
		Stream:    false,
		Messages:  req.Messages,
		MaxTokens: maxTokensHint(req.Options),
	}
	applySampling(out, req.Options)
	return out
}

// PromptText coerces a loosely typed prompt to a string. nil becomes "".
func PromptText(prompt any) string {
	switch v := prompt.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := util.MarshalJSON(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// maxTokensHint returns the client's max-output-token hint: max_tokens,
// else num_predict. Non-positive values count as absent, so a negative hint
// falls back to the default instead of reaching the backend.
func maxTokensHint(opts *core.Options) *int {
	if opts == nil {
		return nil
	}
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		return intPtr(*opts.MaxTokens)
	}
	if opts.NumPredict != nil && *opts.NumPredict > 0 {
		return intPtr(*opts.NumPredict)
	}
	return nil
}

func applySampling(out *core.BackendRequest, opts *core.Options) {
	if opts == nil {
		return
	}
	out.Temperature = opts.Temperature
	out.TopP = opts.TopP
}

func intPtr(v int) *int {
	return &v
}
