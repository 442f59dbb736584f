package arith

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
)

const (
	ServerName    = "Math"
	ServerVersion = "1.0.0"
)

var operandsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"a": {"type": "integer", "title": "A"},
		"b": {"type": "integer", "title": "B"}
	},
	"required": ["a", "b"],
	"additionalProperties": false
}`)

type config struct {
	zeroCompat bool
}

type Option func(*config)

// WithDivideByZeroCompat controls whether divide(a, 0) returns 0 (true) or a tool error (false).
func WithDivideByZeroCompat(enabled bool) Option {
	return func(c *config) { c.zeroCompat = enabled }
}

type provider struct {
	logger logger.Logger
	config config
}

// NewServer builds the arithmetic MCP server. It is transport agnostic, see
// server.NewStdioServer for the subprocess deployment.
func NewServer(log logger.Logger, opts ...Option) *server.MCPServer {
	p := &provider{logger: log, config: config{zeroCompat: true}}
	for _, opt := range opts {
		opt(&p.config)
	}
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))
	s.AddTool(mcp.NewToolWithRawSchema("add", "Add two numbers", operandsSchema), p.handle("add"))
	s.AddTool(mcp.NewToolWithRawSchema("subtract", "Subtract two numbers", operandsSchema), p.handle("subtract"))
	s.AddTool(mcp.NewToolWithRawSchema("multiply", "Multiply two numbers", operandsSchema), p.handle("multiply"))
	s.AddTool(mcp.NewToolWithRawSchema("divide", "Divide two numbers", operandsSchema), p.handle("divide"))
	return s
}

func (p *provider) handle(op string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		a, err := integerArg(args, "a")
		if err != nil {
			p.logger.Error("%s called with invalid arguments: %s", op, err.Error())
			return mcp.NewToolResultError(err.Error()), nil
		}
		b, err := integerArg(args, "b")
		if err != nil {
			p.logger.Error("%s called with invalid arguments: %s", op, err.Error())
			return mcp.NewToolResultError(err.Error()), nil
		}
		switch op {
		case "add":
			p.logger.Info("adding %d and %d", a, b)
			return mcp.NewToolResultText(strconv.FormatInt(Add(a, b), 10)), nil
		case "subtract":
			p.logger.Info("subtracting %d from %d", b, a)
			return mcp.NewToolResultText(strconv.FormatInt(Subtract(a, b), 10)), nil
		case "multiply":
			p.logger.Info("multiplying %d and %d", a, b)
			return mcp.NewToolResultText(strconv.FormatInt(Multiply(a, b), 10)), nil
		case "divide":
			p.logger.Info("dividing %d by %d", a, b)
			v, err := Divide(a, b, p.config.zeroCompat)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if b == 0 {
				// the legacy zero result is an integer, not 0.0
				return mcp.NewToolResultText("0"), nil
			}
			return mcp.NewToolResultText(formatFloat(v)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown operation: %s", op)), nil
		}
	}
}

// maxExactInteger is the largest magnitude a float64 argument can carry without rounding.
const maxExactInteger = 1<<53 - 1

func integerArg(args map[string]any, name string) (int64, error) {
	raw, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", name)
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("argument %q must be an integer, got %s", name, v)
		}
		return floatToInteger(name, f)
	case float64:
		return floatToInteger(name, v)
	default:
		return 0, fmt.Errorf("argument %q must be an integer, got %T", name, raw)
	}
}

// floatToInteger accepts whole numbers whose value survived the float64 decode exactly.
func floatToInteger(name string, f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("argument %q must be an integer, got %v", name, f)
	}
	if math.Abs(f) > maxExactInteger {
		return 0, fmt.Errorf("argument %q is out of range, integers must be within ±%d", name, int64(maxExactInteger))
	}
	return int64(f), nil
}

// formatFloat renders whole quotients with a trailing ".0" so they read as
// floating point results, e.g. 8/2 -> "4.0" and 1/4 -> "0.25".
func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
