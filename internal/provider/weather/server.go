package weather

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "Weather"
	ServerVersion = "1.0.0"
)

var getWeatherSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"city": {"type": "string", "title": "City"}
	},
	"required": ["city"],
	"additionalProperties": false
}`)

// NewServer exposes client.Lookup as the get_weather tool.
func NewServer(client *Client) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))
	tool := mcp.NewToolWithRawSchema("get_weather",
		"Get the weather for the specified location using OpenWeatherMap API", getWeatherSchema)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		city, ok := request.GetArguments()["city"].(string)
		if !ok {
			return mcp.NewToolResultError(`argument "city" must be a string`), nil
		}
		return mcp.NewToolResultText(client.Lookup(ctx, city)), nil
	})
	return s
}
