package core

// Backend endpoint constants
const (
	ChatCompletionsPath = "/chat/completions"
)

// Content part constants
const (
	ContentBlockTypeText = "text"
)
