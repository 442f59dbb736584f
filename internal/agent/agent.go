package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/internal/metrics"
	"github.com/markusylisiurunen/mcpchat/toolkit/llm"
)

const DefaultSystemPrompt = "You are a helpful assistant. Use the available tools for arithmetic and weather questions, and answer concisely."

var ErrEmptyAnswer = errors.New("model returned an empty answer")

type Event any

type ToolCallEvent struct {
	ID   string
	Name string
	Args string
}

type ToolResultEvent struct {
	ID     string
	Name   string
	Result string
	Err    error
}

type Result struct {
	Answer   string
	Messages []llm.Message
	Usage    llm.Usage
}

type Option func(*Agent)

func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

func WithStreamOptions(opts ...llm.StreamOption) Option {
	return func(a *Agent) { a.streamOptions = append(a.streamOptions, opts...) }
}

// Agent answers one message at a time with a fresh conversation. It keeps no history
// between invocations and may be used from several goroutines.
type Agent struct {
	mux           sync.RWMutex
	logger        logger.Logger
	model         llm.Model
	systemPrompt  string
	streamOptions []llm.StreamOption
	subscriptions []chan Event
}

func New(log logger.Logger, model llm.Model, tools []llm.Tool, opts ...Option) *Agent {
	a := &Agent{
		logger:        log,
		model:         model,
		systemPrompt:  DefaultSystemPrompt,
		streamOptions: []llm.StreamOption{llm.WithMaxTurns(12)},
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, tool := range tools {
		model.Register(tool)
	}
	return a
}

// Subscribe returns a channel of tool activity across all invocations. Slow subscribers
// miss events instead of stalling the agent.
func (a *Agent) Subscribe() (<-chan Event, func()) {
	subscription := make(chan Event, 16)
	a.mux.Lock()
	a.subscriptions = append(a.subscriptions, subscription)
	a.mux.Unlock()
	return subscription, func() {
		a.mux.Lock()
		defer a.mux.Unlock()
		for i, sub := range a.subscriptions {
			if sub == subscription {
				a.subscriptions = slices.Delete(a.subscriptions, i, i+1)
				close(subscription)
				break
			}
		}
	}
}

func (a *Agent) notify(event Event) {
	a.mux.RLock()
	defer a.mux.RUnlock()
	for _, ch := range a.subscriptions {
		select {
		case ch <- event:
		default:
		}
	}
}

func (a *Agent) Invoke(ctx context.Context, message string) (string, error) {
	res, err := a.Run(ctx, message)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// Run sends message to the model, lets it call tools and returns the whole transcript.
func (a *Agent) Run(ctx context.Context, message string) (Result, error) {
	start := time.Now()
	res, err := a.run(ctx, message)
	metrics.AgentInvocationDuration.Observe(time.Since(start).Seconds())
	metrics.AgentInvocationsTotal.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		a.logger.Error("invocation failed: %v", err)
		return Result{}, err
	}
	metrics.AgentTokensTotal.WithLabelValues("prompt").Add(float64(res.Usage.PromptTokens))
	metrics.AgentTokensTotal.WithLabelValues("completion").Add(float64(res.Usage.CompletionTokens))
	return res, nil
}

func (a *Agent) run(ctx context.Context, message string) (Result, error) {
	history := make([]llm.Message, 0, 2)
	if a.systemPrompt != "" {
		history = append(history, llm.NewSystemMessage(a.systemPrompt))
	}
	history = append(history, llm.NewUserMessage(message))
	a.logger.Info("invoking model with %q", message)
	events := make(chan llm.Event)
	go func() {
		defer close(events)
		names := map[string]string{}
		for event := range a.model.Stream(ctx, history, a.streamOptions...) {
			switch e := event.(type) {
			case *llm.ToolUseEvent:
				names[e.ID] = e.Name
				a.logger.Info("model called %s with %s", e.Name, e.Args)
				a.notify(&ToolCallEvent{ID: e.ID, Name: e.Name, Args: e.Args})
			case *llm.ToolResultEvent:
				a.notify(&ToolResultEvent{ID: e.ID, Name: names[e.ID], Result: e.Result, Err: e.Error})
			}
			events <- event
		}
	}()
	messages, usage, err := llm.Rollup(events)
	if err != nil {
		return Result{}, fmt.Errorf("error streaming model: %w", err)
	}
	answer := ""
	if n := len(messages); n > 0 && messages[n-1].Role == llm.RoleAssistant {
		answer = StripThinking(messages[n-1].Content)
	}
	if answer == "" {
		return Result{}, ErrEmptyAnswer
	}
	return Result{
		Answer:   answer,
		Messages: append(history, messages...),
		Usage:    usage,
	}, nil
}

var thinkPattern = regexp.MustCompile(`(?s)<think>.*?(</think>|$)`)

// StripThinking removes <think> reasoning blocks, including an unterminated trailing one.
func StripThinking(text string) string {
	return strings.TrimSpace(thinkPattern.ReplaceAllString(text, ""))
}
