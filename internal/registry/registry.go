package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/internal/metrics"
	"github.com/markusylisiurunen/mcpchat/toolkit/llm"
	"github.com/markusylisiurunen/mcpchat/toolkit/tool"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrConflict    = errors.New("tool name conflict")
)

// ToolError carries the text of a tool result the provider flagged as an error.
type ToolError struct {
	Tool string
	Text string
}

func (e *ToolError) Error() string {
	return e.Text
}

type entry struct {
	desc    Descriptor
	session Session
}

// Registry holds the tools discovered from every provider. It is read-only once Discover
// returns and safe for concurrent use.
type Registry struct {
	logger   logger.Logger
	entries  []entry
	byName   map[string]int
	sessions []Session
}

type discoverConfig struct {
	connector     Connector
	policy        ConflictPolicy
	clientName    string
	clientVersion string
}

type Option func(*discoverConfig)

func WithConnector(connector Connector) Option {
	return func(c *discoverConfig) { c.connector = connector }
}

func WithConflictPolicy(policy ConflictPolicy) Option {
	return func(c *discoverConfig) { c.policy = policy }
}

func WithClientInfo(name, version string) Option {
	return func(c *discoverConfig) {
		c.clientName = name
		c.clientVersion = version
	}
}

type discovered struct {
	session Session
	tools   []mcp.Tool
}

// Discover connects to every provider concurrently, lists their tools and merges them in
// provider order according to the conflict policy.
func Discover(ctx context.Context, log logger.Logger, providers []ProviderConfig, opts ...Option) (*Registry, error) {
	config := discoverConfig{
		connector:     StdioConnector(log),
		policy:        ConflictReject,
		clientName:    "mcpchat",
		clientVersion: "0.1.0",
	}
	for _, opt := range opts {
		opt(&config)
	}
	names := map[string]bool{}
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if names[p.Name] {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name)
		}
		names[p.Name] = true
	}
	results := make([]*discovered, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for idx, provider := range providers {
		g.Go(func() error {
			session, err := config.connector(gctx, provider)
			if err != nil {
				return fmt.Errorf("error connecting to %s: %w", provider.Name, err)
			}
			results[idx] = &discovered{session: session}
			tools, err := listTools(gctx, session, config)
			if err != nil {
				return fmt.Errorf("error discovering tools of %s: %w", provider.Name, err)
			}
			results[idx].tools = tools
			log.Info("discovered %d tools from %s", len(tools), provider.Name)
			return nil
		})
	}
	r := &Registry{logger: log, byName: map[string]int{}}
	if err := g.Wait(); err != nil {
		closeAll(results)
		return nil, err
	}
	for idx, res := range results {
		r.sessions = append(r.sessions, res.session)
		for _, t := range res.tools {
			if err := r.add(providers[idx].Name, res.session, t, config.policy); err != nil {
				closeAll(results)
				return nil, err
			}
		}
	}
	return r, nil
}

func listTools(ctx context.Context, session Session, config discoverConfig) ([]mcp.Tool, error) {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: config.clientName, Version: config.clientVersion}
	if _, err := session.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	var tools []mcp.Tool
	req := mcp.ListToolsRequest{}
	for {
		res, err := session.ListToolsByPage(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		req.Params.Cursor = res.NextCursor
	}
}

func closeAll(results []*discovered) {
	for _, res := range results {
		if res != nil && res.session != nil {
			_ = res.session.Close()
		}
	}
}

func (r *Registry) add(provider string, session Session, t mcp.Tool, policy ConflictPolicy) error {
	desc, err := newDescriptor(provider, t)
	if err != nil {
		return err
	}
	idx, exists := r.byName[desc.Name]
	if !exists {
		r.byName[desc.Name] = len(r.entries)
		r.entries = append(r.entries, entry{desc: desc, session: session})
		return nil
	}
	prev := r.entries[idx].desc.Provider
	switch policy {
	case ConflictFirstWins:
		r.logger.Info("tool %s from %s shadowed by %s", desc.Name, provider, prev)
	case ConflictLastWins:
		r.logger.Info("tool %s from %s replaces %s", desc.Name, provider, prev)
		r.entries[idx] = entry{desc: desc, session: session}
	default:
		return fmt.Errorf("%w: %s is provided by both %s and %s", ErrConflict, desc.Name, prev, provider)
	}
	return nil
}

// Descriptors returns the tools in discovery order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.desc
	}
	return out
}

func (r *Registry) Lookup(name string) (Descriptor, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.entries[idx].desc, true
}

// Call validates args (a JSON object) and invokes the named tool. A result flagged as an
// error by the provider is returned as a *ToolError.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	idx, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	e := r.entries[idx]
	if err := e.desc.Validate(string(args)); err != nil {
		metrics.ToolCallsTotal.WithLabelValues(e.desc.Provider, name, "invalid").Inc()
		return "", err
	}
	var arguments map[string]any
	if len(strings.TrimSpace(string(args))) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(args)))
		dec.UseNumber()
		if err := dec.Decode(&arguments); err != nil {
			return "", &ArgumentError{Tool: name, Reason: err.Error()}
		}
	}
	if arguments == nil {
		arguments = map[string]any{}
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments
	start := time.Now()
	res, err := e.session.CallTool(ctx, req)
	metrics.ToolCallDuration.WithLabelValues(e.desc.Provider, name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(e.desc.Provider, name, "error").Inc()
		r.logger.Error("tool %s failed: %v", name, err)
		return "", fmt.Errorf("error calling %s: %w", name, err)
	}
	text := resultText(res)
	if res.IsError {
		metrics.ToolCallsTotal.WithLabelValues(e.desc.Provider, name, "error").Inc()
		r.logger.Info("tool %s returned an error: %s", name, text)
		return "", &ToolError{Tool: name, Text: text}
	}
	metrics.ToolCallsTotal.WithLabelValues(e.desc.Provider, name, "success").Inc()
	r.logger.Debug("tool %s returned %s", name, text)
	return text, nil
}

// Tools exposes every descriptor as a model tool that calls back into the registry.
func (r *Registry) Tools() []llm.Tool {
	out := make([]llm.Tool, len(r.entries))
	for i, e := range r.entries {
		out[i] = tool.NewRemote(r, e.desc.Name, e.desc.Description, e.desc.Schema).SetLogger(r.logger)
	}
	return out
}

func resultText(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			sb.WriteString(c.Text)
		case *mcp.TextContent:
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// Close shuts down every provider session.
func (r *Registry) Close() error {
	var errs []error
	for _, s := range r.sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.sessions = nil
	return errors.Join(errs...)
}
