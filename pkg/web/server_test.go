package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-picar/pkg/drive"
	"github.com/teslashibe/go-picar/pkg/loop"
	"github.com/teslashibe/go-picar/pkg/params"
	"gocv.io/x/gocv"
)

func newTestServer() (*Server, *params.MemoryStore) {
	store := params.NewMemoryStore()
	return NewServer("0", store), store
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(data)
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer()
	resp, body := do(t, s, http.MethodGet, "/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("content type %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, "PiCar Panel") {
		t.Error("index page not served")
	}
}

func TestListParams(t *testing.T) {
	s, _ := newTestServer()
	resp, body := do(t, s, http.MethodGet, "/api/params", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var got []ParamView
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 8 {
		t.Fatalf("got %d params, want 8", len(got))
	}
	if got[0].Name != params.HueLower || got[0].Value != 40 || got[0].Max != 255 {
		t.Errorf("first param = %+v", got[0])
	}
	if got[7].Name != params.SteerOffset || got[7].Value != 90 || got[7].Max != 180 {
		t.Errorf("last param = %+v", got[7])
	}
}

func TestSetParam(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantValue  int
	}{
		{"set speed", "/api/params/speed", `{"value":35}`, http.StatusOK, 35},
		{"clamped high", "/api/params/speed", `{"value":500}`, http.StatusOK, 100},
		{"clamped low", "/api/params/steer_offset", `{"value":-4}`, http.StatusOK, 0},
		{"unknown name", "/api/params/turbo", `{"value":1}`, http.StatusNotFound, 0},
		{"missing value", "/api/params/speed", `{}`, http.StatusBadRequest, 0},
		{"bad json", "/api/params/speed", `{"value":`, http.StatusBadRequest, 0},
		{"wrong type", "/api/params/speed", `{"value":"fast"}`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := newTestServer()
			resp, body := do(t, s, http.MethodPut, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var pv ParamView
			if err := json.Unmarshal([]byte(body), &pv); err != nil {
				t.Fatal(err)
			}
			if pv.Value != tt.wantValue {
				t.Errorf("response value = %d, want %d", pv.Value, tt.wantValue)
			}
			if v, _ := store.Get(pv.Name); v != tt.wantValue {
				t.Errorf("store value = %d, want %d", v, tt.wantValue)
			}
		})
	}
}

func TestQuit(t *testing.T) {
	s, _ := newTestServer()
	if s.QuitRequested() {
		t.Fatal("quit should start false")
	}
	resp, _ := do(t, s, http.MethodPost, "/api/quit", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status %d", resp.StatusCode)
	}
	if !s.QuitRequested() {
		t.Error("quit not recorded")
	}
}

func TestObserveAndStatus(t *testing.T) {
	s, _ := newTestServer()

	s.Observe(loop.Status{State: loop.Running, Cycles: 1, FPS: 12.5, Command: drive.Command{Speed: 20, Steer: 80}})
	s.Observe(loop.Status{State: loop.Running, Cycles: 1, FPS: 12.5})
	s.Observe(loop.Status{State: loop.Running, Cycles: 2, FPS: 13, Command: drive.Command{Speed: 25, Steer: 85}, Strategy: "manual"})

	if n := len(s.History()); n != 2 {
		t.Errorf("history = %d samples, want 2", n)
	}

	resp, body := do(t, s, http.MethodGet, "/api/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if got["state"] != "running" || got["strategy"] != "manual" || got["cycles"] != float64(2) {
		t.Errorf("status body = %s", body)
	}
}

func TestHistoryBounded(t *testing.T) {
	s, _ := newTestServer()
	for i := 1; i <= historySize+50; i++ {
		s.Observe(loop.Status{State: loop.Running, Cycles: uint64(i)})
	}
	h := s.History()
	if len(h) != historySize {
		t.Fatalf("history = %d, want %d", len(h), historySize)
	}
	if h[0].Cycle != 51 {
		t.Errorf("oldest cycle = %d, want 51", h[0].Cycle)
	}
}

func TestTelemetryChart(t *testing.T) {
	s, _ := newTestServer()
	s.Observe(loop.Status{State: loop.Running, Cycles: 1, FPS: 10})
	s.Observe(loop.Status{State: loop.Running, Cycles: 2, FPS: 11})

	resp, body := do(t, s, http.MethodGet, "/debug/telemetry", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Drive Telemetry") || !strings.Contains(body, "echarts") {
		t.Error("chart page not rendered")
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer()
	resp, _ := do(t, s, http.MethodGet, "/ws/status", "")
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func TestDisplay(t *testing.T) {
	s, _ := newTestServer()
	d := s.Display()

	mask := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8U)
	defer mask.Close()
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	if err := d.Show(mask, frame); err != nil {
		t.Errorf("Show: %v", err)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if err := d.Show(empty, frame); err == nil {
		t.Error("empty mask should be reported")
	}

	d.Close()
	if err := d.Show(empty, frame); err != nil {
		t.Errorf("closed display should ignore frames: %v", err)
	}
}
