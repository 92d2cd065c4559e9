package convert

import (
	"strings"
	"testing"

	"ollamabridge/internal/core"
	"ollamabridge/internal/util"

	"github.com/bytedance/sonic"
)

func intRef(v int) *int { return &v }

func TestGenerateToBackend_WrapsPrompt(t *testing.T) {
	req := &core.GenerateRequest{Model: "a", Prompt: "hi"}

	out := GenerateToBackend("b", req)

	if out.Model != "b" {
		t.Errorf("后端模型应为 b，实际 %s", out.Model)
	}
	if out.Stream {
		t.Error("stream 必须为 false")
	}
	if out.Messages.Len() != 1 {
		t.Fatalf("期望 1 条消息，实际 %d", out.Messages.Len())
	}
	if out.Messages.Items[0].Role != core.RoleUser || out.Messages.Items[0].Content != "hi" {
		t.Errorf("消息内容错误: %+v", out.Messages.Items[0])
	}
	if out.MaxTokens == nil || *out.MaxTokens != core.DefaultGenerateMaxTokens {
		t.Errorf("未提供提示时应使用默认 max_tokens=%d", core.DefaultGenerateMaxTokens)
	}
}

func TestGenerateToBackend_MissingPrompt(t *testing.T) {
	out := GenerateToBackend("b", &core.GenerateRequest{Model: "a"})

	if out.Messages.Len() != 1 || out.Messages.Items[0].Content != "" {
		t.Errorf("缺失的 prompt 应视为空字符串: %+v", out.Messages.Items)
	}
}

func TestGenerateToBackend_StreamAlwaysDisabled(t *testing.T) {
	stream := true
	out := GenerateToBackend("b", &core.GenerateRequest{Model: "a", Prompt: "x", Stream: &stream})

	if out.Stream {
		t.Error("客户端请求 stream=true 时出站请求仍须禁用流式")
	}

	data, err := util.MarshalJSON(out)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	if !strings.Contains(string(data), `"stream":false`) {
		t.Errorf("出站 JSON 必须显式包含 stream:false: %s", data)
	}
}

func TestGenerateToBackend_MaxTokensHint(t *testing.T) {
	tests := []struct {
		name     string
		options  *core.Options
		expected int
	}{
		{"max_tokens 优先", &core.Options{MaxTokens: intRef(64), NumPredict: intRef(32)}, 64},
		{"回退 num_predict", &core.Options{NumPredict: intRef(32)}, 32},
		{"零值视为缺失", &core.Options{MaxTokens: intRef(0)}, core.DefaultGenerateMaxTokens},
		{"负值视为缺失", &core.Options{NumPredict: intRef(-1)}, core.DefaultGenerateMaxTokens},
		{"空选项", &core.Options{}, core.DefaultGenerateMaxTokens},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := GenerateToBackend("b", &core.GenerateRequest{Model: "a", Prompt: "x", Options: tt.options})
			if out.MaxTokens == nil || *out.MaxTokens != tt.expected {
				t.Errorf("期望 max_tokens=%d，实际 %v", tt.expected, out.MaxTokens)
			}
		})
	}
}

func TestGenerateToBackend_SystemPrompt(t *testing.T) {
	out := GenerateToBackend("b", &core.GenerateRequest{Model: "a", Prompt: "q", System: "be brief"})

	if out.Messages.Len() != 2 {
		t.Fatalf("期望 2 条消息，实际 %d", out.Messages.Len())
	}
	if out.Messages.Items[0].Role != core.RoleSystem || out.Messages.Items[1].Role != core.RoleUser {
		t.Errorf("system 消息应在 user 消息之前: %+v", out.Messages.Items)
	}
}

func TestGenerateToBackend_ForwardsSampling(t *testing.T) {
	temp := 0.2
	topP := 0.9
	out := GenerateToBackend("b", &core.GenerateRequest{
		Model:   "a",
		Prompt:  "x",
		Options: &core.Options{Temperature: &temp, TopP: &topP},
	})

	if out.Temperature == nil || *out.Temperature != 0.2 {
		t.Error("temperature 应被转发")
	}
	if out.TopP == nil || *out.TopP != 0.9 {
		t.Error("top_p 应被转发")
	}
}

func TestChatToBackend_PassThrough(t *testing.T) {
	body := `{"model":"a","messages":[
		{"role":"system","content":"s"},
		{"role":"user","content":"u","images":["abc"]},
		{"role":"critic","content":"c"}
	]}`
	var req core.ChatRequest
	if err := sonic.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("解析请求失败: %v", err)
	}

	out := ChatToBackend("b", &req)

	if out.Stream {
		t.Error("stream 必须为 false")
	}
	if out.MaxTokens != nil {
		t.Errorf("聊天请求未提供提示时不应转发 max_tokens，实际 %d", *out.MaxTokens)
	}
	roles := []string{"system", "user", "critic"}
	if out.Messages.Len() != len(roles) {
		t.Fatalf("消息数量不一致: %d", out.Messages.Len())
	}
	for i, role := range roles {
		if out.Messages.Items[i].Role != role {
			t.Errorf("消息 %d 角色应为 %s，实际 %s", i, role, out.Messages.Items[i].Role)
		}
	}
	if out.Messages.Items[1].Extra["images"] == nil {
		t.Error("未知字段应保留")
	}
}

func TestChatToBackend_ExplicitMaxTokens(t *testing.T) {
	out := ChatToBackend("b", &core.ChatRequest{
		Model:   "a",
		Options: &core.Options{MaxTokens: intRef(128)},
	})

	if out.MaxTokens == nil || *out.MaxTokens != 128 {
		t.Errorf("显式提供的 max_tokens 应被转发")
	}
}

func TestChatToBackend_NilMessagesBecomeEmptyArray(t *testing.T) {
	out := ChatToBackend("b", &core.ChatRequest{Model: "a"})

	data, err := util.MarshalJSON(out)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	if !strings.Contains(string(data), `"messages":[]`) {
		t.Errorf("缺失的 messages 应序列化为空数组: %s", data)
	}
}

func TestChatToBackend_RawMessagesForwarded(t *testing.T) {
	var req core.ChatRequest
	if err := sonic.Unmarshal([]byte(`{"model":"a","messages":{"role":"user"}}`), &req); err != nil {
		t.Fatalf("解析请求失败: %v", err)
	}

	data, err := util.MarshalJSON(ChatToBackend("b", &req))
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	if !strings.Contains(string(data), `"messages":{"role":"user"}`) {
		t.Errorf("非数组 messages 应原样转发: %s", data)
	}
}

func TestPromptText(t *testing.T) {
	tests := []struct {
		name     string
		prompt   any
		expected string
	}{
		{"nil", nil, ""},
		{"字符串", "hello", "hello"},
		{"整数", float64(42), "42"},
		{"小数", 1.5, "1.5"},
		{"布尔", true, "true"},
		{"数组", []any{"a"}, `["a"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PromptText(tt.prompt); got != tt.expected {
				t.Errorf("期望 %q，实际 %q", tt.expected, got)
			}
		})
	}
}
