package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pairSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"a": {"type": "integer"}, "b": {"type": "integer"}},
	"required": ["a", "b"]
}`)

func TestValidateIntegerRange(t *testing.T) {
	d, err := newDescriptor("math", mcp.NewToolWithRawSchema("add", "", pairSchema))
	require.NoError(t, err)

	for _, args := range []string{
		`{"a":1e20,"b":0}`,
		`{"a":-1e20,"b":0}`,
		`{"a":9223372036854775808,"b":0}`,
		`{"a":1e400,"b":0}`,
	} {
		var argErr *ArgumentError
		assert.ErrorAs(t, d.Validate(args), &argErr, args)
	}
	for _, args := range []string{
		`{"a":9223372036854775807,"b":-9223372036854775808}`,
		`{"a":9007199254740993,"b":0}`,
		`{"a":1e3,"b":2.0}`,
	} {
		assert.NoError(t, d.Validate(args), args)
	}
}

func TestDescriptorFromRawSchema(t *testing.T) {
	d, err := newDescriptor("math", mcp.NewToolWithRawSchema("add", "Add", pairSchema))
	require.NoError(t, err)
	assert.Equal(t, []Param{{Name: "a", Type: "integer", Required: true}, {Name: "b", Type: "integer", Required: true}}, d.Params)
	assert.False(t, d.AdditionalProperties)
	assert.Error(t, d.Validate(`{"a":1,"b":2,"c":3}`))
}

func TestDescriptorHonoursAdditionalProperties(t *testing.T) {
	open := json.RawMessage(`{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"],
		"additionalProperties": true
	}`)
	typed := json.RawMessage(`{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"additionalProperties": {"type": "string"}
	}`)
	session := &fakeSession{pages: [][]mcp.Tool{{
		mcp.NewToolWithRawSchema("search", "Search", open),
		mcp.NewToolWithRawSchema("lookup", "Lookup", typed),
	}}}
	r, err := Discover(context.Background(), logger.NoOp(), providers("search"),
		WithConnector(fakeConnector(map[string]Session{"search": session})))
	require.NoError(t, err)

	d, ok := r.Lookup("search")
	require.True(t, ok)
	assert.True(t, d.AdditionalProperties)
	assert.JSONEq(t, `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"],"additionalProperties":true}`, string(d.Schema))

	got, err := r.Call(context.Background(), "search", json.RawMessage(`{"query":"go","limit":5}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	// declared parameters are still type checked
	_, err = r.Call(context.Background(), "search", json.RawMessage(`{"query":5}`))
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)

	d, ok = r.Lookup("lookup")
	require.True(t, ok)
	assert.True(t, d.AdditionalProperties)
}
