package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/internal/registry"
	"github.com/markusylisiurunen/mcpchat/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invokerFunc func(ctx context.Context, message string) (string, error)

func (f invokerFunc) Invoke(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func post(t *testing.T, h http.Handler, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, shell.Outcome) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out shell.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestAsk(t *testing.T) {
	h := New(logger.NoOp(), invokerFunc(func(_ context.Context, m string) (string, error) {
		return "answer to " + m, nil
	}), nil).Handler()
	w, out := post(t, h, `{"message":"what is 2+2?"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shell.Outcome{Kind: shell.KindSuccess, Text: "answer to what is 2+2?"}, out)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	w, _ = post(t, h, `{"message":"again"}`, cookies[0])
	assert.Empty(t, w.Result().Cookies())
}

func TestAskBlankAndInvalid(t *testing.T) {
	h := New(logger.NoOp(), invokerFunc(func(context.Context, string) (string, error) {
		t.Error("must not invoke")
		return "", nil
	}), nil).Handler()
	w, out := post(t, h, `{"message":"   "}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shell.Outcome{Kind: shell.KindWarning, Text: shell.EmptyInputWarning}, out)

	w, out = post(t, h, `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, shell.KindError, out.Kind)
}

func TestAskBusySession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := New(logger.NoOp(), invokerFunc(func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "slow", nil
	}), nil).Handler()
	cookie := &http.Cookie{Name: sessionCookie, Value: "1b4e28ba-2fa1-11d2-883f-0016d3cca427"}

	done := make(chan shell.Outcome)
	go func() {
		_, out := post(t, h, `{"message":"first"}`, cookie)
		done <- out
	}()
	<-started
	w, out := post(t, h, `{"message":"second"}`, cookie)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, shell.KindWarning, out.Kind)

	close(release)
	assert.Equal(t, "slow", (<-done).Text)
}

func TestAskError(t *testing.T) {
	h := New(logger.NoOp(), invokerFunc(func(context.Context, string) (string, error) {
		return "", context.DeadlineExceeded
	}), nil).Handler()
	w, out := post(t, h, `{"message":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shell.Outcome{Kind: shell.KindError, Text: "⚠️ Error: context deadline exceeded"}, out)
}

func TestIndexToolsAndHealth(t *testing.T) {
	tools := []registry.Descriptor{{Name: "add", Provider: "math", Params: []registry.Param{{Name: "a", Type: "integer", Required: true}}, Returns: "string"}}
	h := New(logger.NoOp(), invokerFunc(func(context.Context, string) (string, error) { return "", nil }), tools).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<textarea")
	assert.Contains(t, w.Body.String(), "<code>add</code>")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tools []registry.Descriptor `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "add", body.Tools[0].Name)
	assert.Equal(t, "math", body.Tools[0].Provider)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mcpchat_http_requests_total")
}
