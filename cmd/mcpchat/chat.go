package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/markusylisiurunen/mcpchat/internal/registry"
	"github.com/markusylisiurunen/mcpchat/internal/shell"
	"github.com/markusylisiurunen/mcpchat/internal/tui"
	"github.com/markusylisiurunen/mcpchat/internal/web"
	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the terminal chat (default)",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	h, err := newHost(ctx)
	if err != nil {
		return err
	}
	defer h.Close()
	a, err := h.agent()
	if err != nil {
		return err
	}
	activity, unsubscribe := a.Subscribe()
	defer unsubscribe()
	session := shell.NewSession(h.logger.Named("shell"), a)
	model := tui.New(h.logger.Named("tui"), session,
		tui.WithActivity(activity),
		tui.WithTitle(fmt.Sprintf("%s, %d tools", h.cfg.Model.Name, len(h.registry.Descriptors()))),
	)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func webCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the browser chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			h, err := newHost(ctx)
			if err != nil {
				return err
			}
			defer h.Close()
			a, err := h.agent()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = h.cfg.Web.Addr
			}
			fmt.Printf("listening on http://%s\n", addr)
			return web.New(h.logger.Named("web"), a, h.registry.Descriptors()).Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from web.addr)")
	return cmd
}

var sampleQuestions = []struct {
	label    string
	question string
}{
	{"Math response", "What is (2 + 2) x 12? Explain step by step."},
	{"Weather response", "What's the weather like in Hyderabad?"},
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer, or run the sample questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			h, err := newHost(ctx)
			if err != nil {
				return err
			}
			defer h.Close()
			a, err := h.agent()
			if err != nil {
				return err
			}
			session := shell.NewSession(h.logger.Named("shell"), a)
			if len(args) > 0 {
				return printOutcome(ctx, session, "", strings.Join(args, " "))
			}
			for _, q := range sampleQuestions {
				if err := printOutcome(ctx, session, q.label, q.question); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printOutcome(ctx context.Context, session *shell.Session, label, question string) error {
	outcome, err := session.Ask(ctx, question)
	if err != nil {
		return err
	}
	text := outcome.Text
	switch outcome.Kind {
	case shell.KindError:
		text = color.New(color.FgRed).Sprint(text)
	case shell.KindWarning:
		text = color.New(color.FgYellow).Sprint(text)
	}
	if label != "" {
		fmt.Printf("%s: %s\n", color.New(color.Bold).Sprint(label), text)
	} else {
		fmt.Println(text)
	}
	if outcome.Kind == shell.KindError {
		return errors.New("invocation failed")
	}
	return nil
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools discovered from the providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			h, err := newHost(ctx)
			if err != nil {
				return err
			}
			defer h.Close()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, d := range h.registry.Descriptors() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", color.New(color.Bold).Sprint(signature(d)), d.Provider, d.Description)
			}
			return w.Flush()
		},
	}
}

func signature(d registry.Descriptor) string {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.Name + ": " + p.Type
		if !p.Required {
			params[i] += "?"
		}
	}
	return fmt.Sprintf("%s(%s) -> %s", d.Name, strings.Join(params, ", "), d.Returns)
}
