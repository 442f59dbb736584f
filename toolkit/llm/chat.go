package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/markusylisiurunen/mcpchat/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "qwen/qwen3-32b"
)

var _ Model = (*ChatCompletions)(nil)

type ChatCompletionsOption func(*ChatCompletions)

func WithBaseURL(baseURL string) ChatCompletionsOption {
	return func(c *ChatCompletions) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithModel(model string) ChatCompletionsOption {
	return func(c *ChatCompletions) {
		if model != "" {
			c.model = model
		}
	}
}

// ChatCompletions streams from any OpenAI compatible chat completions endpoint.
type ChatCompletions struct {
	logger  logger.Logger
	token   string
	baseURL string
	model   string
	client  *openai.Client
	tools   []Tool
}

func NewChatCompletions(logger logger.Logger, token string, opts ...ChatCompletionsOption) *ChatCompletions {
	c := &ChatCompletions{
		logger:  logger,
		token:   token,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	cfg := openai.DefaultConfig(token)
	cfg.BaseURL = c.baseURL
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

func (c *ChatCompletions) Register(tool Tool) {
	if tool != nil {
		c.tools = append(c.tools, tool)
	}
}

func (c *ChatCompletions) Stream(ctx context.Context, messages []Message, opts ...StreamOption) <-chan Event {
	config := c.generationConfig(opts...)
	return c.streamTurns(ctx, messages, config)
}

func (c *ChatCompletions) streamTurns(ctx context.Context, messages []Message, config streamConfig) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		cloned := make([]Message, len(messages))
		copy(cloned, messages)
		for turn := range config.maxTurns {
			select {
			case <-ctx.Done():
				ch <- &ErrorEvent{Err: ctx.Err()}
				return
			default:
			}
			var turnMessages transcript
			for event := range c.streamTurn(ctx, cloned, config) {
				ch <- event
				turnMessages.add(event)
			}
			messages, _, err := turnMessages.result()
			if err != nil {
				// the error event has already been forwarded
				return
			}
			if len(messages) != 1 {
				ch <- &ErrorEvent{Err: fmt.Errorf("expected exactly one message, got %d", len(messages))}
				return
			}
			if len(messages[0].ToolCalls) == 0 {
				return
			}
			if turn >= config.maxTurns-1 {
				ch <- &ErrorEvent{Err: fmt.Errorf("%w after %d turns", ErrTurnLimit, config.maxTurns)}
				return
			}
			cloned = append(cloned, messages[0])
			toolResultEvents := make([]*ToolResultEvent, len(messages[0].ToolCalls))
			g, gctx := errgroup.WithContext(ctx)
			for idx, toolCall := range messages[0].ToolCalls {
				g.Go(func() error {
					tool := c.lookup(toolCall.Name)
					if tool == nil {
						toolResultEvents[idx] = &ToolResultEvent{
							ID:    toolCall.ID,
							Error: fmt.Errorf("tool %s not found", toolCall.Name),
						}
						return nil
					}
					c.logger.Debug("calling tool %s with %s", toolCall.Name, toolCall.Args)
					result, err := tool.Call(gctx, toolCall.Args)
					toolResultEvents[idx] = &ToolResultEvent{ID: toolCall.ID, Result: result, Error: err}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				ch <- &ErrorEvent{Err: fmt.Errorf("error executing tool calls: %w", err)}
				return
			}
			for idx, event := range toolResultEvents {
				if event == nil {
					ch <- &ErrorEvent{Err: fmt.Errorf("tool call %d result is nil", idx)}
					return
				}
				ch <- event
				cloned = append(cloned, NewToolMessage(messages[0].ToolCalls[idx], event))
			}
			if config.stopCondition != nil && config.stopCondition(turn, cloned) {
				return
			}
		}
	}()
	return ch
}

func (c *ChatCompletions) streamTurn(ctx context.Context, messages []Message, config streamConfig) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		req := c.request(messages, config)
		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			ch <- &ErrorEvent{Err: asStreamError(err)}
			return
		}
		defer stream.Close() //nolint:errcheck
		// tool call deltas are keyed by their stream index and emitted whole at the end
		toolCallBuffer := map[int]*ToolUseEvent{}
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					ch <- &ErrorEvent{Err: ctx.Err()}
					return
				}
				ch <- &ErrorEvent{Err: asStreamError(err)}
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content != "" {
					ch <- &ContentDeltaEvent{Content: choice.Delta.Content}
				}
				for i, delta := range choice.Delta.ToolCalls {
					idx := i
					if delta.Index != nil {
						idx = *delta.Index
					}
					buffered, ok := toolCallBuffer[idx]
					if !ok {
						buffered = &ToolUseEvent{}
						toolCallBuffer[idx] = buffered
					}
					if delta.ID != "" {
						buffered.ID = delta.ID
					}
					if delta.Function.Name != "" {
						buffered.Name = delta.Function.Name
					}
					buffered.Args += delta.Function.Arguments
				}
			}
			if resp.Usage != nil {
				ch <- &UsageEvent{Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
				}}
			}
		}
		indices := make([]int, 0, len(toolCallBuffer))
		for idx := range toolCallBuffer {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			toolCall := toolCallBuffer[idx]
			if toolCall.ID == "" {
				toolCall.ID = fmt.Sprintf("call_%d", idx)
			}
			if toolCall.Args == "" {
				toolCall.Args = "{}"
			}
			ch <- toolCall
		}
	}()
	return ch
}

func (c *ChatCompletions) request(messages []Message, config streamConfig) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:         c.model,
		Messages:      make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:     config.maxTokens,
		Temperature:   float32(config.temperature),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	for _, msg := range messages {
		out := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, toolCall := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   toolCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      toolCall.Name,
					Arguments: toolCall.Args,
				},
			})
		}
		req.Messages = append(req.Messages, out)
	}
	for _, tool := range c.tools {
		name, description, parameters := tool.Spec()
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: description,
				Parameters:  json.RawMessage(parameters),
			},
		})
	}
	return req
}

func (c *ChatCompletions) lookup(name string) Tool {
	for _, t := range c.tools {
		if n, _, _ := t.Spec(); n == name {
			return t
		}
	}
	return nil
}

func (c *ChatCompletions) generationConfig(opts ...StreamOption) streamConfig {
	config := streamConfig{
		maxTokens:   4096,
		maxTurns:    1,
		temperature: 0.6,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	if config.maxTurns < 1 {
		config.maxTurns = 1
	}
	return config
}
