package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/internal/provider/arith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providerEnv = "MCPCHAT_TEST_PROVIDER"

// TestMain lets the test binary act as a stdio provider when started by StdioConnector.
func TestMain(m *testing.M) {
	if os.Getenv(providerEnv) == "math" {
		os.Stderr.WriteString("math provider ready\n") //nolint:errcheck
		s := arith.NewServer(logger.NoOp())
		if err := server.NewStdioServer(s).Listen(context.Background(), os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

type recordingLogger struct {
	logger.Logger
	lines chan string
}

func (l *recordingLogger) Debug(msg string, args ...any) {
	select {
	case l.lines <- fmt.Sprintf(msg, args...):
	default:
	}
}

func TestStdioConnectorDiscoversSubprocess(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a provider subprocess")
	}
	log := &recordingLogger{Logger: logger.NoOp(), lines: make(chan string, 16)}
	ctx := context.Background()
	r, err := Discover(ctx, logger.NoOp(), []ProviderConfig{{
		Name:      "math",
		Command:   os.Args[0],
		Args:      []string{"-test.run=^$"},
		Env:       []string{providerEnv + "=math"},
		Transport: TransportStdio,
	}}, WithConnector(StdioConnector(log)))
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	names := []string{}
	for _, d := range r.Descriptors() {
		assert.Equal(t, "math", d.Provider)
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"add", "subtract", "multiply", "divide"}, names)

	got, err := r.Call(ctx, "divide", json.RawMessage(`{"a":8,"b":2}`))
	require.NoError(t, err)
	assert.Equal(t, "4.0", got)

	got, err = r.Call(ctx, "multiply", json.RawMessage(`{"a":-3,"b":7}`))
	require.NoError(t, err)
	assert.Equal(t, "-21", got)

	// child stderr is drained into the debug log
	select {
	case line := <-log.lines:
		assert.Equal(t, "[math] math provider ready", line)
	case <-time.After(5 * time.Second):
		t.Fatal("provider stderr was not forwarded")
	}
}
