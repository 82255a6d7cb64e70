package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/decker502/seqanim/pkg/engine"
	"github.com/decker502/seqanim/pkg/metrics"
)

func newTestDebugServer(toggle func(string) error) (*DebugServer, *metrics.Stats) {
	stats := metrics.NewStats()
	state := func() engine.State {
		return engine.State{IsInitialized: true, DisplayedLabel: "A", CanvasWidth: 64, CanvasHeight: 64}
	}
	if toggle == nil {
		toggle = func(string) error { return nil }
	}
	return NewDebugServer(":0", stats, state, toggle), stats
}

func TestDebugServer_State(t *testing.T) {
	d, _ := newTestDebugServer(nil)
	router := d.Router()

	r := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var st engine.State
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.IsInitialized || st.DisplayedLabel != "A" {
		t.Errorf("state: got %+v", st)
	}
}

func TestDebugServer_ToggleFlag(t *testing.T) {
	var toggled []string
	d, _ := newTestDebugServer(func(name string) error {
		toggled = append(toggled, name)
		return nil
	})
	router := d.Router()

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"切换网格", http.MethodPost, "/api/settings/flags/grid", http.StatusAccepted},
		{"未知开关", http.MethodPost, "/api/settings/flags/sparkle", http.StatusNotFound},
		{"错误方法", http.MethodGet, "/api/settings/flags/grid", http.StatusMethodNotAllowed},
		{"列出开关", http.MethodGet, "/api/settings/flags", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
	if len(toggled) != 1 || toggled[0] != "grid" {
		t.Errorf("toggled: got %v, want [grid]", toggled)
	}
}

func TestDebugServer_Busy(t *testing.T) {
	d, _ := newTestDebugServer(func(string) error { return ErrBusy })
	w := httptest.NewRecorder()
	d.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/settings/flags/red", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestDebugServer_Metrics(t *testing.T) {
	d, stats := newTestDebugServer(nil)
	stats.Observe(metrics.Snapshot{Rendered: 5})
	router := d.Router()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/state", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	if !strings.Contains(body, "seqanim_renders_total 5") {
		t.Error("metrics should expose engine snapshot")
	}
	if !strings.Contains(body, `seqanim_debug_http_requests_total{code="200",method="GET"} 1`) {
		t.Error("api requests should be counted by the middleware")
	}
}
