package security

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// AdminRouterParams configures the admin HTTP surface's guard chain.
type AdminRouterParams struct {
	Allowlist  *Allowlist
	EnableHSTS bool
	Guard      *BruteForceGuard
}

// NewAdminRouter builds the chi router the admin HTTP surface mounts its
// handlers on: chi's own panic-recoverer (outermost) -> request-id ->
// security headers -> CORS (deny-all origins, this is a same-origin admin
// surface) -> IP allowlist, in that order so every response (including
// 403s) still carries the security headers and request ID.
func NewAdminRouter(p AdminRouterParams) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(SecurityHeaders(p.EnableHSTS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: false,
	}))
	if p.Allowlist != nil {
		r.Use(p.Allowlist.Middleware)
	}
	return r
}

// GuardAuth wraps a login-style handler with brute-force lockout: requests
// from a currently-locked IP are rejected before reaching handler, a 401 or
// 403 response from handler counts as a failure, and a 2xx response clears
// the IP's failure record.
func GuardAuth(guard *BruteForceGuard, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if guard.IsLocked(ip) {
			http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		if rec.status >= 200 && rec.status < 300 {
			guard.RecordSuccess(ip)
		} else if rec.status == http.StatusUnauthorized || rec.status == http.StatusForbidden {
			guard.RecordFailure(ip)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
