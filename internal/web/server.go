// Package web exposes the chat endpoint, manual cycle trigger and live SSE streams.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/orbit/internal/agent"
	"github.com/vadiminshakov/orbit/internal/chat"
	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/events"
)

const (
	snapshotPollInterval = 2 * time.Second
	heartbeatInterval    = 30 * time.Second
	maxChatBody          = 16 << 10
	defaultCycleTimeout  = 6 * time.Minute
)

type cycleReader interface {
	EventsAfter(index uint64) ([]domain.CycleEventRecord, error)
}

type exposureReader interface {
	SnapshotsAfter(index uint64) ([]domain.ExposureRecordEntry, error)
}

type chatHandler interface {
	Handle(ctx context.Context, text string) (chat.Reply, error)
}

type cycleRunner interface {
	RunCycle(ctx context.Context, trigger domain.CycleTrigger) agent.CycleReport
}

// Dependencies of the server. A nil dependency disables its endpoints with 503.
type Dependencies struct {
	Chat      chatHandler
	Runner    cycleRunner
	Cycles    cycleReader
	Exposures exposureReader
	Progress  *events.Broadcaster
}

// Server exposes HTTP endpoints serving the HTML UI, the API and SSE streams.
type Server struct {
	addr         string
	l            *zap.Logger
	deps         Dependencies
	cycleTimeout time.Duration
	router       chi.Router
}

// NewServer creates a new web server instance.
func NewServer(l *zap.Logger, addr string, cycleTimeout time.Duration, deps Dependencies) *Server {
	if cycleTimeout <= 0 {
		cycleTimeout = defaultCycleTimeout
	}
	s := &Server{
		addr:         addr,
		l:            l.Named("web"),
		deps:         deps,
		cycleTimeout: cycleTimeout,
		router:       chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)

	// streams stay open, so no request timeout here
	s.router.Get("/cycles/stream", s.handleCycleStream)
	s.router.Get("/exposure/stream", s.handleExposureStream)
	s.router.Get("/progress/stream", s.handleProgressStream)

	s.router.Post("/chat", s.handleChat)
	s.router.Post("/cycles/run", s.handleRunCycle)
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("starting HTTP server", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen and serve")
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic ACME certificates for domains.
// A plain HTTP server on :80 answers HTTP-01 challenges and redirects to HTTPS.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.l.Warn("acme server shutdown failed", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil {
			s.l.Warn("https server shutdown failed", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("acme server failed", zap.Error(err))
		}
	}()

	s.l.Info("starting HTTPS server", zap.String("addr", s.addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen and serve tls")
	}
	return nil
}

// cycleContext detaches a cycle from the request: on-chain confirmation waits
// must not be abandoned when the client disconnects.
func (s *Server) cycleContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), s.cycleTimeout)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.l.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chat == nil {
		http.Error(w, "chat not available", http.StatusServiceUnavailable)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// a chat message may run a full cycle
	ctx, cancel := s.cycleContext(r)
	defer cancel()

	reply, err := s.deps.Chat.Handle(ctx, req.Message)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

type cycleResponse struct {
	ID       string                 `json:"id"`
	Trigger  domain.CycleTrigger    `json:"trigger"`
	Decision domain.Decision        `json:"decision"`
	Result   domain.ExecutionResult `json:"result"`
	Partial  bool                   `json:"partial"`
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		http.Error(w, "agent not available", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := s.cycleContext(r)
	defer cancel()

	report := s.deps.Runner.RunCycle(ctx, domain.CycleTriggerAPI)
	status := http.StatusOK
	switch report.Result.Error {
	case domain.ErrorKindCycleInProgress:
		status = http.StatusConflict
	case domain.ErrorKindUpstreamDataUnavailable:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, cycleResponse{
		ID:       report.ID,
		Trigger:  report.Trigger,
		Decision: report.Decision,
		Result:   report.Result,
		Partial:  report.Result.Partial(),
	})
}

func (s *Server) handleCycleStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cycles == nil {
		http.Error(w, "cycle store not available", http.StatusServiceUnavailable)
		return
	}

	s.streamWAL(w, r, "cycle", func(after uint64) ([]sseRecord, error) {
		records, err := s.deps.Cycles.EventsAfter(after)
		if err != nil {
			return nil, err
		}
		out := make([]sseRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, sseRecord{index: rec.Index, payload: rec.Event})
		}
		return out, nil
	})
}

func (s *Server) handleExposureStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exposures == nil {
		http.Error(w, "exposure store not available", http.StatusServiceUnavailable)
		return
	}

	s.streamWAL(w, r, "exposure", func(after uint64) ([]sseRecord, error) {
		records, err := s.deps.Exposures.SnapshotsAfter(after)
		if err != nil {
			return nil, err
		}
		out := make([]sseRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, sseRecord{index: rec.Index, payload: rec.Record})
		}
		return out, nil
	})
}

func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Progress == nil {
		http.Error(w, "progress not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	ch := s.deps.Progress.Subscribe()
	defer s.deps.Progress.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	// flush headers so clients see the stream open before the first event
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, "progress", event); err != nil {
				s.l.Warn("progress stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

type sseRecord struct {
	index   uint64
	payload any
}

// streamWAL replays records from the start of the log, then polls for new ones.
func (s *Server) streamWAL(w http.ResponseWriter, r *http.Request, event string, fetch func(after uint64) ([]sseRecord, error)) {
	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	send := func() error {
		records, err := fetch(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := writeEvent(w, event, record.payload); err != nil {
				return err
			}
			lastIndex = record.index
		}
		flusher.Flush()
		return nil
	}

	if err := send(); err != nil {
		s.l.Error("stream initial load failed", zap.String("event", event), zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := send(); err != nil {
				s.l.Warn("stream poll failed", zap.String("event", event), zap.Error(err))
			}
		}
	}
}

func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return flusher, true
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
