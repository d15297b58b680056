package security

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ridgeline-quant/ntengine/pkg/logging"
)

// Allowlist restricts admin endpoint access to a fixed set of CIDR blocks.
// A nil *Allowlist (no configured networks) allows everything — the
// dev-mode default the original crate documents.
type Allowlist struct {
	networks []*net.IPNet
	log      zerolog.Logger
}

func NewAllowlist(networks []*net.IPNet) *Allowlist {
	return &Allowlist{networks: networks, log: logging.For("security.allowlist")}
}

func (a *Allowlist) allowed(ip net.IP) bool {
	if a == nil || len(a.networks) == 0 {
		return true
	}
	for _, n := range a.networks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware enforces the allowlist, rejecting with 403 Forbidden when the
// remote IP isn't covered and an allowlist is actually configured.
func (a *Allowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil || len(a.networks) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = strings.TrimSpace(r.RemoteAddr)
		}
		ip := net.ParseIP(host)
		if ip == nil || !a.allowed(ip) {
			a.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("admin endpoint access denied: not in allowlist")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
