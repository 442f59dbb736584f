package web

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/markusylisiurunen/mcpchat/internal/metrics"
	"github.com/markusylisiurunen/mcpchat/internal/registry"
	"github.com/markusylisiurunen/mcpchat/internal/shell"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sessionCookie = "mcpchat_session"
	busyMessage   = "A request is already being processed. Please wait."
)

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type askRequest struct {
	Message string `json:"message"`
}

// Server serves the browser front-end. Each browser session gets its own shell session.
type Server struct {
	logger  logger.Logger
	invoker shell.Invoker
	tools   []registry.Descriptor
	title   string

	mux      sync.Mutex
	sessions map[string]*shell.Session
}

func New(log logger.Logger, invoker shell.Invoker, tools []registry.Descriptor) *Server {
	return &Server{
		logger:   log,
		invoker:  invoker,
		tools:    tools,
		title:    "🤖 MCP Agent",
		sessions: map[string]*shell.Session{},
	}
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())
	r.GET("/", s.index)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api := r.Group("/api")
	api.GET("/tools", s.listTools)
	api.POST("/ask", s.ask)
	return r
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening on %s", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := indexTemplate.Execute(c.Writer, gin.H{"Title": s.title, "Tools": s.tools}); err != nil {
		s.logger.Error("error rendering index: %v", err)
	}
}

func (s *Server) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.tools})
}

func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, shell.Outcome{Kind: shell.KindError, Text: "⚠️ Error: invalid request body"})
		return
	}
	session := s.session(c)
	// the invocation runs to completion even if the browser goes away
	outcome, err := session.Ask(context.WithoutCancel(c.Request.Context()), req.Message)
	if errors.Is(err, shell.ErrBusy) {
		c.JSON(http.StatusConflict, shell.Outcome{Kind: shell.KindWarning, Text: busyMessage})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, shell.ErrorOutcome(err))
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) session(c *gin.Context) *shell.Session {
	id, err := c.Cookie(sessionCookie)
	if err != nil || uuid.Validate(id) != nil {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		session = shell.NewSession(s.logger, s.invoker)
		s.sessions[id] = session
	}
	return session
}
