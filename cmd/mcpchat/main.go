package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/markusylisiurunen/mcpchat/internal/agent"
	"github.com/markusylisiurunen/mcpchat/internal/config"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/internal/registry"
	"github.com/markusylisiurunen/mcpchat/toolkit/llm"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mcpchat",
		Short:         "Chat with a model that can do arithmetic and look up the weather",
		Long:          "mcpchat runs a tool-using chat agent on top of MCP tool providers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runChat,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(chatCmd())
	root.AddCommand(webCmd())
	root.AddCommand(askCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(serveCmd())
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func logLevel(cfg *config.Config) string {
	if cfg.Debug {
		return "debug"
	}
	return cfg.Log.Level
}

// openLogger writes to <log.dir>/<name>.log. Nothing is ever logged to stdout.
func openLogger(cfg *config.Config, name string) (logger.Logger, io.Closer, error) {
	return logger.Open(cfg.Log.Dir, name, logLevel(cfg))
}

// host -------------------------------------------------------------------------------------------

type host struct {
	cfg      *config.Config
	logger   logger.Logger
	registry *registry.Registry
	closers  []io.Closer
}

func (h *host) Close() {
	if h.registry != nil {
		if err := h.registry.Close(); err != nil {
			h.logger.Error("error closing providers: %v", err)
		}
	}
	for _, c := range h.closers {
		_ = c.Close()
	}
}

// newHost loads the configuration and discovers the tools of every provider.
func newHost(ctx context.Context) (*host, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, closer, err := openLogger(cfg, "mcpchat")
	if err != nil {
		return nil, err
	}
	h := &host{cfg: cfg, logger: log, closers: []io.Closer{closer}}
	policy, err := registry.ParseConflictPolicy(cfg.Registry.ConflictPolicy)
	if err != nil {
		h.Close()
		return nil, err
	}
	executable, err := os.Executable()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("error resolving executable: %w", err)
	}
	h.registry, err = registry.Discover(ctx, log.Named("registry"), cfg.ProviderList(executable),
		registry.WithConflictPolicy(policy),
		registry.WithClientInfo("mcpchat", version),
	)
	if err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *host) agent() (*agent.Agent, error) {
	if err := h.cfg.RequireModelKey(); err != nil {
		return nil, err
	}
	model := llm.NewChatCompletions(h.logger.Named("llm"), h.cfg.Model.APIKey,
		llm.WithBaseURL(h.cfg.Model.BaseURL),
		llm.WithModel(h.cfg.Model.Name),
	)
	opts := []agent.Option{
		agent.WithStreamOptions(
			llm.WithMaxTokens(h.cfg.Model.MaxTokens),
			llm.WithMaxTurns(h.cfg.Model.MaxTurns),
			llm.WithTemperature(h.cfg.Model.Temperature),
		),
	}
	if h.cfg.Model.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(h.cfg.Model.SystemPrompt))
	}
	return agent.New(h.logger.Named("agent"), model, h.registry.Tools(), opts...), nil
}
