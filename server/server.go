// Package server exposes the conversation engine over HTTP with gin.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/engine"
	"github.com/tripmesh/tripmesh/logging"
	"github.com/tripmesh/tripmesh/slot"
)

// Options configure a Server.
type Options struct {
	Logger logging.Logger
	// Mode is the gin mode ("release", "debug", "test"). Defaults to release.
	Mode string
}

// WithLogger sets the structured logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithMode sets the gin mode.
func WithMode(mode string) func(o *Options) {
	return func(o *Options) { o.Mode = mode }
}

// Server is the HTTP surface over the engine.
type Server struct {
	engine *engine.Engine
	logger logging.Logger
	router *gin.Engine
}

// New builds the server and registers all routes.
func New(e *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Mode:   gin.ReleaseMode,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	gin.SetMode(opts.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{engine: e, logger: opts.Logger, router: router}
	router.Use(s.requestLogger())
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler, for embedding and tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts listening on addr and blocks until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("server.listening", "addr", addr)
	return s.router.Run(addr)
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.POST("/chat", s.handleChat)
		api.GET("/threads/:id", s.handleGetThread)
		api.GET("/threads/:id/why", s.handleWhy)
		api.DELETE("/threads/:id", s.handleClearThread)
	}
}

// chatRequest is the POST /api/chat body. ThreadID is optional; a fresh
// thread is started when it is omitted.
type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message" binding:"required"`
}

type chatResponse struct {
	ThreadID string            `json:"thread_id"`
	TurnID   string            `json:"turn_id"`
	Reply    string            `json:"reply"`
	Slots    map[string]string `json:"slots,omitempty"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	turnID, events, err := s.engine.ChatSync(c.Request.Context(), threadID, req.Message)
	if err != nil {
		s.logger.Error("server.chat_failed", "thread_id", threadID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "turn failed", "details": err.Error()})
		return
	}

	resp := chatResponse{ThreadID: threadID, TurnID: turnID, Reply: finalReply(events)}
	if thread, err := s.engine.GetThread(threadID); err == nil {
		resp.Slots = topicView(thread)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetThread(c *gin.Context) {
	thread, err := s.engine.GetThread(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread", "details": err.Error()})
		return
	}

	type message struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}
	history := []message{}
	for _, ev := range thread.ConversationHistory() {
		history = append(history, message{Role: ev.Content.Role, Text: ev.Content.Text()})
	}

	c.JSON(http.StatusOK, gin.H{
		"thread_id": thread.ID,
		"slots":     thread.SlotSnapshot(),
		"history":   history,
	})
}

func (s *Server) handleWhy(c *gin.Context) {
	thread, err := s.engine.GetThread(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread", "details": err.Error()})
		return
	}

	receipt := thread.LastReceipt()
	if receipt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no receipt recorded for this thread"})
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleClearThread(c *gin.Context) {
	if err := s.engine.ClearThread(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear thread", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// requestLogger logs one line per request through the structured logger.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("server.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// finalReply extracts the last complete assistant message from a turn's
// events.
func finalReply(events []core.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.IsPartial() || ev.Content == nil || ev.Content.Role != "assistant" {
			continue
		}
		return ev.Content.Text()
	}
	return ""
}

// topicView hides flow-control slots from API consumers.
func topicView(thread *core.Thread) map[string]string {
	out := map[string]string{}
	for k, v := range thread.SlotSnapshot() {
		if !slot.IsControlKey(k) {
			out[k] = v
		}
	}
	return out
}
