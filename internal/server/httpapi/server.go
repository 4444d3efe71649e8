// Package httpapi exposes the account services over HTTP under /api/users.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/admission"
	"github.com/dmitrijs2005/taskmanager/internal/server/captcha"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/dmitrijs2005/taskmanager/internal/server/session"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators of the HTTP API. Captcha may be nil, which
// turns the human verification step off.
type Deps struct {
	Auth  *services.AuthService
	Reset *services.ResetService
	Admin *services.AdminService

	// Cookie describes the session cookie; logout expires it.
	Cookie session.Cookie

	LoginGate   admission.Gate
	GeneralGate admission.Gate

	Captcha  captcha.Verifier
	Failures *captcha.FailureTracker

	AllowedOrigins    []string
	TrustProxyHeaders bool
	MetricsEnabled    bool

	Logger logging.Logger
}

type HTTPServer struct {
	address string
	deps    Deps
	logger  logging.Logger
	handler http.Handler
}

func NewHTTPServer(address string, deps Deps) *HTTPServer {
	if deps.Logger == nil {
		deps.Logger = logging.Nop{}
	}
	if deps.Failures == nil {
		deps.Failures = captcha.NewFailureTracker(0, 0)
	}
	s := &HTTPServer{
		address: address,
		deps:    deps,
		logger:  deps.Logger.With("module", "http_server"),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wrapped handler, CORS included.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if s.deps.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/users").Subrouter()
	api.Use(s.admit)

	api.HandleFunc("/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	api.HandleFunc("/reset-password", s.requestReset).Methods(http.MethodPost)
	api.HandleFunc("/confirm-reset-password", s.confirmReset).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireSession)
	authed.HandleFunc("/me", s.me).Methods(http.MethodGet)
	authed.HandleFunc("/profile", s.updateProfile).Methods(http.MethodPut)
	authed.HandleFunc("/change-password", s.changePassword).Methods(http.MethodPut)

	admin := api.NewRoute().Subrouter()
	admin.Use(s.requireSession, s.requireAdmin)
	admin.HandleFunc("/register", s.register).Methods(http.MethodPost)
	admin.HandleFunc("/get-team", s.team).Methods(http.MethodGet)
	admin.HandleFunc("/{id}/unlock", s.unlock).Methods(http.MethodPut)
	admin.HandleFunc("/{id}", s.setActive).Methods(http.MethodPut)
	admin.HandleFunc("/{id}", s.deleteAccount).Methods(http.MethodDelete)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(r)
}

func (s *HTTPServer) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
