package tool

import (
	"context"
	"encoding/json"

	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/toolkit/llm"
)

// Caller dispatches a named tool call somewhere else, e.g. to an MCP provider.
type Caller interface {
	Call(ctx context.Context, name string, args json.RawMessage) (string, error)
}

var _ llm.Tool = (*remoteTool)(nil)

type remoteTool struct {
	logger      logger.Logger
	caller      Caller
	name        string
	description string
	schema      json.RawMessage
}

func NewRemote(caller Caller, name, description string, schema json.RawMessage) *remoteTool {
	return &remoteTool{
		logger:      logger.NoOp(),
		caller:      caller,
		name:        name,
		description: description,
		schema:      schema,
	}
}

func (t *remoteTool) SetLogger(logger logger.Logger) *remoteTool {
	t.logger = logger
	return t
}

func (t *remoteTool) Spec() (string, string, json.RawMessage) {
	return t.name, t.description, t.schema
}

func (t *remoteTool) Call(ctx context.Context, args string) (string, error) {
	t.logger.Debug("%s called with %s", t.name, args)
	result, err := t.caller.Call(ctx, t.name, json.RawMessage(args))
	if err != nil {
		t.logger.Info("%s failed: %v", t.name, err)
		return "", err
	}
	return result, nil
}
