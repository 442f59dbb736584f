package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/markusylisiurunen/mcpchat/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The built-in providers are this binary re-run with "serve <name>". Under test the binary
// is the test executable, so it dispatches to the CLI when asked to.
func TestMain(m *testing.M) {
	if os.Getenv("MCPCHAT_TEST_CLI") == "1" {
		root := newRootCmd()
		root.SetArgs(os.Args[1:])
		if err := root.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestSignature(t *testing.T) {
	d := registry.Descriptor{
		Name:    "get_weather",
		Params:  []registry.Param{{Name: "city", Type: "string", Required: true}, {Name: "units", Type: "string"}},
		Returns: "string",
	}
	assert.Equal(t, "get_weather(city: string, units: string?) -> string", signature(d))
}

func TestServeCommands(t *testing.T) {
	cmd := serveCmd()
	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"math", "weather"}, names)
}

func TestHostRunsBuiltinProviders(t *testing.T) {
	if testing.Short() {
		t.Skip("starts provider subprocesses")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("MCPCHAT_TEST_CLI", "1")
	t.Setenv("OPENWEATHER_API_KEY", "")
	t.Setenv("MCPCHAT_WEATHER_API_KEY", "")
	file := filepath.Join(dir, "mcpchat.yaml")
	body := fmt.Sprintf("log:\n  dir: %s\nmath:\n  divide_by_zero_compat: false\n", filepath.Join(dir, "logs"))
	require.NoError(t, os.WriteFile(file, []byte(body), 0644))
	configPath = file
	t.Cleanup(func() { configPath = "" })

	ctx := context.Background()
	h, err := newHost(ctx)
	require.NoError(t, err)
	defer h.Close()

	descs := h.registry.Descriptors()
	require.Len(t, descs, 5)
	names := []string{}
	for _, d := range descs[:4] {
		assert.Equal(t, "math", d.Provider)
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"add", "subtract", "multiply", "divide"}, names)
	assert.Equal(t, "get_weather", descs[4].Name)

	got, err := h.registry.Call(ctx, "divide", json.RawMessage(`{"a":7,"b":2}`))
	require.NoError(t, err)
	assert.Equal(t, "3.5", got)

	// the config file reaches the children through --config
	_, err = h.registry.Call(ctx, "divide", json.RawMessage(`{"a":1,"b":0}`))
	var toolErr *registry.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "division by zero", toolErr.Text)

	got, err = h.registry.Call(ctx, "get_weather", json.RawMessage(`{"city":"Hyderabad"}`))
	require.NoError(t, err)
	assert.Contains(t, got, "API key not found")

	_, err = os.Stat(filepath.Join(dir, "logs", "math.log"))
	assert.NoError(t, err)
}
