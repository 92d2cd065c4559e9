package convert

import (
	"ollamabridge/internal/core"
	"ollamabridge/internal/util"

	"github.com/bytedance/sonic"
)

type completionContent struct {
	Content any `json:"content"`
}

type completionChoice struct {
	Message *completionContent `json:"message"`
	Delta   *completionContent `json:"delta"`
}

type completionBody struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   *core.Usage        `json:"usage"`
}

// DecodeBackendResult parses a backend chat-completion body and classifies
// where its text lives. Only choices[0] is considered; message content wins
// over delta content. An error is returned only when the body is not a JSON
// object.
func DecodeBackendResult(body []byte) (core.BackendResult, error) {
	var parsed completionBody
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return core.BackendResult{}, err
	}

	result := core.BackendResult{
		Kind:  core.ResultEmpty,
		ID:    parsed.ID,
		Model: parsed.Model,
		Usage: parsed.Usage,
	}
	if len(parsed.Choices) == 0 {
		return result, nil
	}

	choice := parsed.Choices[0]
	switch {
	case choice.Message != nil && choice.Message.Content != nil:
		result.Kind = core.ResultMessage
		result.Text = util.ExtractTextContent(choice.Message.Content)
	case choice.Delta != nil && choice.Delta.Content != nil:
		result.Kind = core.ResultDelta
		result.Text = util.ExtractTextContent(choice.Delta.Content)
	}
	return result, nil
}

// ExtractText returns the generated text of a backend result, or "" when
// the result carried none.
func ExtractText(result core.BackendResult) string {
	switch result.Kind {
	case core.ResultMessage, core.ResultDelta:
		return result.Text
	default:
		return ""
	}
}
