package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arcticbus/internal/advisory"
	"arcticbus/internal/handler"
	"arcticbus/internal/realtime"
	"arcticbus/internal/route"
)

func newTestRouter(t *testing.T, metrics http.Handler) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	top := route.Default()
	store := realtime.NewStore(5)
	poller := realtime.NewPoller("https://example.test/gps", time.Minute, nil, top, store, nil, log)
	disp := advisory.NewDispatcher(advisory.NewThrottle(0, 0), advisory.NewService(nil, 0, log), top, 0, nil, log)
	h := handler.New(top, store, poller, disp, "bus-1", time.Hour, log)
	return Router(h, metrics, log)
}

func TestRouter_Routes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	r := newTestRouter(t, metrics)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/stops", http.StatusOK},
		{http.MethodGet, "/api/state", http.StatusOK},
		{http.MethodPost, "/api/reconnect", http.StatusAccepted},
		{http.MethodPost, "/api/advisory", http.StatusServiceUnavailable},
		{http.MethodGet, "/gtfs-rt/vehicle-positions.pb", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/locate", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRouter_NoMetrics(t *testing.T) {
	r := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestStatusWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	sw.WriteHeader(http.StatusTeapot)
	sw.Flush()
	if sw.status != http.StatusTeapot || !rec.Flushed {
		t.Errorf("status = %d, flushed = %v", sw.status, rec.Flushed)
	}
}
