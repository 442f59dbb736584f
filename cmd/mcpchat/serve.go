package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/markusylisiurunen/mcpchat/internal/config"
	"github.com/markusylisiurunen/mcpchat/internal/provider/arith"
	"github.com/markusylisiurunen/mcpchat/internal/provider/weather"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a built-in tool provider over stdio",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "math",
		Short: "Serve add, subtract, multiply and divide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, closer, err := openLogger(cfg, "math")
			if err != nil {
				return err
			}
			defer closer.Close() //nolint:errcheck
			s := arith.NewServer(log, arith.WithDivideByZeroCompat(cfg.Math.DivideByZeroCompat))
			return serveStdio(s)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "weather",
		Short: "Serve get_weather backed by OpenWeatherMap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, closer, err := openLogger(cfg, "weather")
			if err != nil {
				return err
			}
			defer closer.Close() //nolint:errcheck
			client := weather.NewClient(log,
				weather.WithBaseURL(cfg.Weather.BaseURL),
				weather.WithAPIKey(cfg.WeatherAPIKey),
			)
			return serveStdio(weather.NewServer(client))
		},
	})
	return cmd
}

func serveStdio(s *server.MCPServer) error {
	ctx, stop := signalContext()
	defer stop()
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}
