package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/toolkit/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	tools    []llm.Tool
	events   []llm.Event
	received []llm.Message
}

func (m *scriptedModel) Register(tool llm.Tool) {
	m.tools = append(m.tools, tool)
}

func (m *scriptedModel) Stream(_ context.Context, messages []llm.Message, _ ...llm.StreamOption) <-chan llm.Event {
	m.received = messages
	ch := make(chan llm.Event)
	go func() {
		defer close(ch)
		for _, e := range m.events {
			ch <- e
		}
	}()
	return ch
}

type nopTool struct{}

func (nopTool) Spec() (string, string, json.RawMessage) {
	return "add", "Add two numbers", json.RawMessage(`{"type":"object"}`)
}

func (nopTool) Call(context.Context, string) (string, error) { return "4", nil }

func TestRunWithToolCall(t *testing.T) {
	model := &scriptedModel{events: []llm.Event{
		&llm.ToolUseEvent{ID: "c1", Name: "add", Args: `{"a":2,"b":2}`},
		&llm.UsageEvent{Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 2}},
		&llm.ToolResultEvent{ID: "c1", Result: "4"},
		&llm.ContentDeltaEvent{Content: "<think>2+2 is 4</think>\n\n"},
		&llm.ContentDeltaEvent{Content: "The answer is 4."},
	}}
	a := New(logger.NoOp(), model, []llm.Tool{nopTool{}})
	require.Len(t, model.tools, 1)
	sub, unsubscribe := a.Subscribe()
	defer unsubscribe()

	res, err := a.Run(context.Background(), "what is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 4.", res.Answer)
	assert.Equal(t, llm.Usage{PromptTokens: 10, CompletionTokens: 2}, res.Usage)
	require.Len(t, res.Messages, 5)
	assert.Equal(t, llm.RoleSystem, res.Messages[0].Role)
	assert.Equal(t, llm.RoleTool, res.Messages[3].Role)

	require.Len(t, model.received, 2)
	assert.Equal(t, DefaultSystemPrompt, model.received[0].Content)
	assert.Equal(t, "what is 2+2?", model.received[1].Content)

	call := (<-sub).(*ToolCallEvent)
	assert.Equal(t, "add", call.Name)
	result := (<-sub).(*ToolResultEvent)
	assert.Equal(t, "add", result.Name)
	assert.Equal(t, "4", result.Result)
}

func TestInvokeFreshConversation(t *testing.T) {
	model := &scriptedModel{events: []llm.Event{&llm.ContentDeltaEvent{Content: "hi"}}}
	a := New(logger.NoOp(), model, nil, WithSystemPrompt(""))
	for range 2 {
		got, err := a.Invoke(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "hi", got)
		require.Len(t, model.received, 1)
		assert.Equal(t, llm.RoleUser, model.received[0].Role)
	}
}

func TestInvokeErrors(t *testing.T) {
	boom := errors.New("boom")
	model := &scriptedModel{events: []llm.Event{&llm.ErrorEvent{Err: boom}}}
	_, err := New(logger.NoOp(), model, nil).Invoke(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	model = &scriptedModel{events: []llm.Event{&llm.ContentDeltaEvent{Content: "<think>hmm"}}}
	_, err = New(logger.NoOp(), model, nil).Invoke(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyAnswer)

	model = &scriptedModel{}
	_, err = New(logger.NoOp(), model, nil).Invoke(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "answer", StripThinking("<think>\nreasoning\n</think>\nanswer"))
	assert.Equal(t, "a b", StripThinking("a <think>x</think>b"))
	assert.Equal(t, "before", StripThinking("before<think>never closed"))
	assert.Equal(t, "plain", StripThinking("  plain  "))
}
