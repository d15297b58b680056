package security

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBruteForceGuardLocksAfterMaxFailures(t *testing.T) {
	g := NewBruteForceGuard(3, time.Minute, time.Hour)
	ip := "1.2.3.4"

	require.False(t, g.IsLocked(ip))
	g.RecordFailure(ip)
	g.RecordFailure(ip)
	require.False(t, g.IsLocked(ip), "below threshold must not lock")
	g.RecordFailure(ip)
	require.True(t, g.IsLocked(ip), "third failure within window must trigger lockout")
}

func TestBruteForceGuardRecordSuccessClears(t *testing.T) {
	g := NewBruteForceGuard(2, time.Minute, time.Hour)
	ip := "5.6.7.8"
	g.RecordFailure(ip)
	g.RecordFailure(ip)
	require.True(t, g.IsLocked(ip))
	g.RecordSuccess(ip)
	require.False(t, g.IsLocked(ip))
}

func TestBruteForceGuardWindowReset(t *testing.T) {
	g := NewBruteForceGuard(2, time.Millisecond, time.Hour)
	ip := "9.9.9.9"
	g.RecordFailure(ip)
	time.Sleep(5 * time.Millisecond)
	g.RecordFailure(ip)
	require.False(t, g.IsLocked(ip), "failures outside the tracking window must not accumulate")
}

func TestSecurityHeadersSetsHSTSOnlyWhenEnabled(t *testing.T) {
	handler := SecurityHeaders(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	handlerHSTS := SecurityHeaders(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec2 := httptest.NewRecorder()
	handlerHSTS.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, rec2.Header().Get("Strict-Transport-Security"))
}

func TestRequestIDReusesIncomingHeader(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "client-supplied-id", RequestIDFromContext(r.Context()))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "client-supplied-id", rec.Header().Get("X-Request-Id"))
}

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAllowlistRejectsOutsideNetworks(t *testing.T) {
	_, ipnet, err := net.ParseCIDR("10.0.0.0/8")
	require.NoError(t, err)
	al := NewAllowlist([]*net.IPNet{ipnet})

	handler := al.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := httptest.NewRequest(http.MethodGet, "/", nil)
	allowed.RemoteAddr = "10.1.2.3:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, allowed)
	require.Equal(t, http.StatusOK, rec.Code)

	denied := httptest.NewRequest(http.MethodGet, "/", nil)
	denied.RemoteAddr = "192.168.1.1:5000"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, denied)
	require.Equal(t, http.StatusForbidden, rec2.Code)
}
