package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"wasender/internal/app"
	"wasender/internal/audit"
	"wasender/internal/config"
	"wasender/internal/contacts"
	"wasender/internal/eventbus"
	"wasender/internal/storage"
	logx "wasender/pkg/logx"
)

//go:embed static
var staticFS embed.FS

// Controller is the slice of the application the dashboard needs. app.App
// implements it; tests substitute a fake.
type Controller interface {
	Config() *config.Config
	Bus() eventbus.Bus
	LoadContacts(path string) ([]contacts.Contact, error)
	StartRun(req app.RunRequest) (string, error)
	RequestStop()
	Status() app.StatusReport
	History(ctx context.Context, limit int) ([]storage.RunRecord, error)
	AuditTail(n int) ([]audit.Entry, error)
}

// Server serves the JSON API and the single-page dashboard.
type Server struct {
	ctrl Controller
	log  logx.Logger
}

func NewServer(ctrl Controller, log logx.Logger) *Server {
	return &Server{ctrl: ctrl, log: log}
}

// Router builds the HTTP handler. Split from Run so tests can drive it with
// httptest.
func (s *Server) Router() http.Handler {
	cfg := s.ctrl.Config().Web

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/load", s.handleLoad)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
		r.Get("/runs", s.handleRuns)
		r.Get("/audit", s.handleAudit)
		r.Get("/events", s.handleEvents)
	})

	static, err := fs.Sub(staticFS, "static")
	if err == nil {
		r.Handle("/*", http.FileServer(http.FS(static)))
	}
	return r
}

// Run serves until ctx ends, notifying systemd around the lifecycle.
func (s *Server) Run(ctx context.Context) error {
	addr := s.ctrl.Config().Web.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", logx.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("took", time.Since(start)))
	})
}
