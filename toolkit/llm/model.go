package llm

import "context"

// Event is one item of a model stream: a content delta, a requested tool call, the result of
// running it, token usage or a terminal error.
type Event any

type ContentDeltaEvent struct {
	Content string
}

// ToolUseEvent is emitted once per tool call, after its arguments have been fully streamed.
type ToolUseEvent struct {
	ID   string
	Name string
	Args string
}

type ToolResultEvent struct {
	ID     string
	Result string
	Error  error
}

type UsageEvent struct {
	Usage Usage
}

// ErrorEvent ends the stream.
type ErrorEvent struct {
	Err error
}

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleUser      Role = "user"
)

type ToolCall struct {
	ID   string
	Name string
	Args string
}

// Message is one entry of a text-only chat transcript. Assistant messages may carry tool
// calls; tool messages answer exactly one of them.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	Name       string
	ToolCallID string
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// NewToolMessage answers call with the outcome of running it. A failed call is reported to
// the model as "Error: <reason>" so it can recover on the next turn.
func NewToolMessage(call ToolCall, result *ToolResultEvent) Message {
	content := result.Result
	if result.Error != nil {
		content = "Error: " + result.Error.Error()
	}
	return Message{Role: RoleTool, Content: content, Name: call.Name, ToolCallID: call.ID}
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

// StopCondition is consulted after every tool round; returning true ends the stream early.
type StopCondition func(turn int, history []Message) bool

type streamConfig struct {
	maxTokens     int
	maxTurns      int
	stopCondition StopCondition
	temperature   float64
}

type StreamOption func(*streamConfig)

func WithMaxTokens(maxTokens int) StreamOption {
	return func(c *streamConfig) { c.maxTokens = maxTokens }
}

// WithMaxTurns bounds the number of model requests. Tool calls still pending after the last
// turn end the stream with ErrTurnLimit.
func WithMaxTurns(maxTurns int) StreamOption {
	return func(c *streamConfig) { c.maxTurns = maxTurns }
}

func WithTemperature(temperature float64) StreamOption {
	return func(c *streamConfig) { c.temperature = temperature }
}

func WithStopCondition(condition StopCondition) StreamOption {
	return func(c *streamConfig) { c.stopCondition = condition }
}

type Model interface {
	Register(tool Tool)
	Stream(ctx context.Context, messages []Message, opts ...StreamOption) <-chan Event
}
