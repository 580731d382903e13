package processes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPHealthChecker(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthCheckPath {
			http.NotFound(w, r)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("Alive!!!"))
	}))

	checker := NewHTTPHealthChecker(time.Second)
	ctx := context.Background()

	if !checker.IsAlive(ctx, server.URL) {
		t.Errorf("Expected server to be alive")
	}
	if !checker.IsAlive(ctx, server.URL+"/") {
		t.Errorf("Expected trailing slash to be tolerated")
	}

	healthy.Store(false)
	if checker.IsAlive(ctx, server.URL) {
		t.Errorf("Expected non-2xx response to report not alive")
	}

	server.Close()
	if checker.IsAlive(ctx, server.URL) {
		t.Errorf("Expected closed server to report not alive")
	}
}

func TestHTTPHealthCheckerCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if NewHTTPHealthCheckerWithClient(server.Client()).IsAlive(ctx, server.URL) {
		t.Errorf("Expected cancelled context to report not alive")
	}
}
