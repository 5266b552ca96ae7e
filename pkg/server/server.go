// Package server exposes the assistant over HTTP for the chat and voice front end.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/barekit/rihlat/pkg/agent"
	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/memory"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultHistory = 5
	maxAudioBytes  = 25 << 20
	requestIDKey   = "request_id"
)

// Dispatcher runs a conversation turn.
type Dispatcher interface {
	Run(ctx context.Context, req agent.Request) (*agent.Response, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Server holds the HTTP handlers.
type Server struct {
	dispatcher  Dispatcher
	transcriber Transcriber
	synthesizer Synthesizer
	history     memory.Memory
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTranscriber enables POST /api/voice.
func WithTranscriber(t Transcriber) Option {
	return func(s *Server) {
		s.transcriber = t
	}
}

// WithSynthesizer enables POST /api/speech.
func WithSynthesizer(sy Synthesizer) Option {
	return func(s *Server) {
		s.synthesizer = sy
	}
}

// WithHistory enables GET /api/history.
func WithHistory(m memory.Memory) Option {
	return func(s *Server) {
		s.history = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server around d.
func New(d Dispatcher, opts ...Option) *Server {
	s := &Server{dispatcher: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r gin.IRouter) {
	routes := r.Group("/api")
	routes.Use(s.requestID())
	{
		routes.GET("/healthz", s.healthz)
		routes.POST("/ask", s.ask)
		routes.POST("/voice", s.voice)
		routes.POST("/speech", s.speech)
		routes.GET("/history", s.recent)
	}
}

// Handler returns a gin engine with the routes and CORS installed.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())
	s.Register(r)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	router, err := graceful.Default(graceful.WithAddr(addr))
	if err != nil {
		return err
	}
	defer router.Close()

	router.Use(corsMiddleware())
	s.Register(router)

	s.logger.Info("starting HTTP API", "addr", addr)
	if err := router.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	})
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	e := errs.As(err, errs.KindUpstreamAPI)
	s.logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString(requestIDKey), "kind", e.Kind, "error", err)
	c.AbortWithStatusJSON(statusOf(e.Kind), APIError{Error: ErrorBody{
		Kind:      e.Kind,
		Message:   e.Message,
		RequestID: c.GetString(requestIDKey),
	}})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ask(c *gin.Context) {
	var req AskRequest
	if err := ParseAndValidate(c, &req); err != nil {
		s.fail(c, errs.Wrap(errs.KindParse, "server", err))
		return
	}

	resp, err := s.dispatcher.Run(c.Request.Context(), agent.Request{Text: req.Text, Limit: req.Limit})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VoiceResponse is the body of a successful POST /api/voice.
type VoiceResponse struct {
	Transcript string `json:"transcript"`
	*agent.Response
}

func (s *Server) voice(c *gin.Context) {
	if s.transcriber == nil {
		s.fail(c, errs.New(errs.KindConfiguration, "server", "speech-to-text is not configured"))
		return
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		s.fail(c, errs.Wrap(errs.KindParse, "server", err))
		return
	}
	if fh.Size > maxAudioBytes {
		s.fail(c, errs.Newf(errs.KindParse, "server", "audio is larger than %d bytes", maxAudioBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, errs.Wrap(errs.KindParse, "server", err))
		return
	}
	defer f.Close()
	wav, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, errs.Wrap(errs.KindParse, "server", err))
		return
	}

	ctx := c.Request.Context()
	text, err := s.transcriber.Transcribe(ctx, wav)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := s.dispatcher.Run(ctx, agent.Request{Text: text})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, VoiceResponse{Transcript: text, Response: resp})
}

func (s *Server) speech(c *gin.Context) {
	if s.synthesizer == nil {
		s.fail(c, errs.New(errs.KindConfiguration, "server", "text-to-speech is not configured"))
		return
	}
	var req SpeechRequest
	if err := ParseAndValidate(c, &req); err != nil {
		s.fail(c, errs.Wrap(errs.KindParse, "server", err))
		return
	}

	audio, err := s.synthesizer.Synthesize(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (s *Server) recent(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"turns": []memory.Turn{}})
		return
	}
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, errs.Wrap(errs.KindParse, "server", err))
		return
	}
	if err := validate.Struct(q); err != nil {
		s.fail(c, errs.Wrap(errs.KindParse, "server", err))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultHistory
	}

	turns, err := s.history.Recent(c.Request.Context(), q.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}
