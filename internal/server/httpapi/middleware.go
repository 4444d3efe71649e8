package httpapi

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/admission"
	"github.com/dmitrijs2005/taskmanager/internal/server/metrics"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/gorilla/mux"
)

type ctxKey string

const accountKey ctxKey = "account"

func withAccount(ctx context.Context, a *models.Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

func accountFrom(ctx context.Context) *models.Account {
	a, _ := ctx.Value(accountKey).(*models.Account)
	return a
}

// clientIP returns the request origin used as the admission and captcha key.
func (s *HTTPServer) clientIP(r *http.Request) string {
	if s.deps.TrustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx > 0 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequestTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func rejectAdmission(w http.ResponseWriter, gate admission.Gate, d admission.Decision, message string) {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	metrics.AdmissionRejectedTotal.WithLabelValues(gate.Policy().Name).Inc()
	writeMessage(w, http.StatusTooManyRequests, message)
}

// admit applies the general admission policy. An unreachable gate backend
// lets the request through.
func (s *HTTPServer) admit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gate := s.deps.GeneralGate
		if gate == nil {
			next.ServeHTTP(w, r)
			return
		}

		d, err := gate.Allow(r.Context(), s.clientIP(r))
		if err != nil {
			s.logger.Warn(r.Context(), "admission gate unavailable", "policy", gate.Policy().Name, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !d.Allowed {
			rejectAdmission(w, gate, d, msgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// requireSession resolves the session cookie (or a Bearer token) to an
// account and stores it in the request context.
func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r, s.deps.Cookie.Name)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, msgNoToken)
			return
		}

		a, _, err := s.deps.Auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), a)))
	})
}

func (s *HTTPServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a := accountFrom(r.Context()); a == nil || !a.Privileged {
			writeError(w, common.ErrorForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
