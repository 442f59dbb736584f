package llm

import "fmt"

// transcript folds stream events back into messages. Consecutive deltas and tool uses belong
// to one assistant message until a tool result closes it.
type transcript struct {
	msgs    []Message
	pending bool
	usage   Usage
	err     error
}

func (t *transcript) assistant() *Message {
	if !t.pending {
		t.msgs = append(t.msgs, Message{Role: RoleAssistant})
		t.pending = true
	}
	return &t.msgs[len(t.msgs)-1]
}

func (t *transcript) call(id string) (ToolCall, bool) {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Role != RoleAssistant {
			continue
		}
		for _, call := range t.msgs[i].ToolCalls {
			if call.ID == id {
				return call, true
			}
		}
		break
	}
	return ToolCall{}, false
}

func (t *transcript) add(event Event) {
	if t.err != nil {
		return
	}
	switch e := event.(type) {
	case *ContentDeltaEvent:
		t.assistant().Content += e.Content
	case *ToolUseEvent:
		msg := t.assistant()
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: e.ID, Name: e.Name, Args: e.Args})
	case *ToolResultEvent:
		t.pending = false
		call, ok := t.call(e.ID)
		if !ok {
			t.err = fmt.Errorf("tool result %s has no matching tool call", e.ID)
			return
		}
		t.msgs = append(t.msgs, NewToolMessage(call, e))
	case *UsageEvent:
		t.usage = t.usage.Add(e.Usage)
	case *ErrorEvent:
		t.err = e.Err
	}
}

func (t *transcript) result() ([]Message, Usage, error) {
	if t.err != nil {
		return nil, Usage{}, t.err
	}
	return t.msgs, t.usage, nil
}

// Rollup drains events and folds them into the messages they describe.
func Rollup(events <-chan Event) ([]Message, Usage, error) {
	var t transcript
	for event := range events {
		t.add(event)
	}
	return t.result()
}
