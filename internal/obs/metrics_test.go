package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, g prometheus.Gatherer) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(g).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	return rec.Body.String()
}

func requireLine(t *testing.T, body, line string) {
	t.Helper()
	for _, l := range strings.Split(body, "\n") {
		if l == line {
			return
		}
	}
	t.Fatalf("exposition missing %q:\n%s", line, body)
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"/metrics":              "/metrics",
		"/auth/signin":          "/auth/signin",
		"/auth/refresh/alice":   "/auth/refresh/:username",
		"/auth/refresh/bob/":    "/auth/refresh/:username",
		"/auth/refresh":         "/auth/refresh",
		"/auth/refresh/a/b":     "/auth/refresh/a/b",
		"/api/me?verbose=1":     "/api/me",
		"/auth/createUser?x=10": "/auth/createUser",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentRecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	h := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/auth/refresh/alice", nil))
	}

	body := scrape(t, reg)
	requireLine(t, body, `http_requests_total{method="PUT",path="/auth/refresh/:username",status="418"} 2`)
	requireLine(t, body, `http_in_flight_requests 0`)
}

func TestAuthCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.GateDecision("http", "authenticated")
	m.GateDecision("http", "authenticated")
	m.GateDecision("grpc", "invalid")
	m.TokensIssued("signin")
	m.AuthAttempt("signin", "ok")

	body := scrape(t, reg)
	requireLine(t, body, `auth_gate_decisions_total{outcome="authenticated",transport="http"} 2`)
	requireLine(t, body, `auth_gate_decisions_total{outcome="invalid",transport="grpc"} 1`)
	requireLine(t, body, `auth_tokens_issued_total{flow="signin"} 1`)
	requireLine(t, body, `auth_credential_attempts_total{op="signin",result="ok"} 1`)

	var nilMetrics *Metrics
	nilMetrics.GateDecision("http", "anonymous")
	nilMetrics.TokensIssued("refresh")
	nilMetrics.AuthAttempt("signin", "ok")
}

func TestHandlerExposesBuildInfo(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterBuildInfo(reg, "1.2.3", "abc123")

	requireLine(t, scrape(t, reg), `build_info{commit="abc123",version="1.2.3"} 1`)
}
