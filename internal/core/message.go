package core

import "context"

// Role identifies the author of a message.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
)

// Message is a single role-tagged entry in a model context window.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: System, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: User, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: Assistant, Content: content}
}

// Usage captures token accounting returned by the upstream model.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is a completed model response.
type ChatResult struct {
	Message      string `json:"message"`
	Reasoning    string `json:"reasoning,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Completer is the capability of sending an ordered context window to a
// model and receiving one completed response. Implementations classify
// upstream failures as *ChatError.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (*ChatResult, error)
}
