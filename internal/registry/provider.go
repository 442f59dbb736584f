package registry

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
)

const TransportStdio = "stdio"

// ProviderConfig describes how to reach one tool provider.
type ProviderConfig struct {
	Name      string   `mapstructure:"name"`
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	Env       []string `mapstructure:"env"`
	Transport string   `mapstructure:"transport"`
}

func (p ProviderConfig) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("provider name is required")
	}
	if strings.TrimSpace(p.Command) == "" {
		return fmt.Errorf("provider %s: command is required", p.Name)
	}
	switch p.Transport {
	case "", TransportStdio:
	default:
		return fmt.Errorf("provider %s: unsupported transport %q", p.Name, p.Transport)
	}
	return nil
}

type ConflictPolicy string

const (
	ConflictReject    ConflictPolicy = "reject"
	ConflictFirstWins ConflictPolicy = "first-wins"
	ConflictLastWins  ConflictPolicy = "last-wins"
)

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ConflictReject, nil
	case ConflictReject, ConflictFirstWins, ConflictLastWins:
		return p, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", s)
	}
}

// Session is the part of an MCP client session the registry uses.
type Session interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListToolsByPage(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Connector opens a session to a provider. The session must be ready for Initialize.
type Connector func(ctx context.Context, provider ProviderConfig) (Session, error)

// StdioConnector starts the provider as a child process and speaks MCP over its stdin and
// stdout. Anything the child writes to stderr is forwarded to the logger.
func StdioConnector(log logger.Logger) Connector {
	return func(_ context.Context, provider ProviderConfig) (Session, error) {
		if err := provider.Validate(); err != nil {
			return nil, err
		}
		c, err := client.NewStdioMCPClient(provider.Command, provider.Env, provider.Args...)
		if err != nil {
			return nil, fmt.Errorf("error starting provider %s: %w", provider.Name, err)
		}
		if stderr, ok := client.GetStderr(c); ok {
			go func() {
				scanner := bufio.NewScanner(stderr)
				for scanner.Scan() {
					log.Debug("[%s] %s", provider.Name, scanner.Text())
				}
			}()
		}
		return c, nil
	}
}
