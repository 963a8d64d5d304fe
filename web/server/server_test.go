package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/df07/go-photon-planes/pkg/integrator"
	"github.com/df07/go-photon-planes/pkg/scene"
	"github.com/google/go-cmp/cmp"
)

// readEvents splits an SSE body into its events
func readEvents(t *testing.T, body io.Reader) []SSEEvent {
	t.Helper()
	var events []SSEEvent
	var current SSEEvent
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1<<20), 1<<24)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.Type != "":
			events = append(events, current)
			current = SSEEvent{}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Reading events failed: %v", err)
	}
	return events
}

func eventsOfType(events []SSEEvent, kind string) []SSEEvent {
	var result []SSEEvent
	for _, e := range events {
		if e.Type == kind {
			result = append(result, e)
		}
	}
	return result
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(0, "").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("Unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleScenes(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(0, "").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var scenes []scene.SceneInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &scenes); err != nil {
		t.Fatalf("Invalid JSON %s: %v", rec.Body.String(), err)
	}
	var ids []string
	for _, info := range scenes {
		ids = append(ids, info.ID)
	}
	if diff := cmp.Diff([]string{"default", "cornell"}, ids); diff != "" {
		t.Errorf("Unexpected scene IDs (-want +got):\n%s", diff)
	}
}

func TestParseRenderRequest(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      RenderRequest
		expectErr bool
	}{
		{
			name:  "defaults",
			query: "",
			want: RenderRequest{Scene: "default", Strategy: integrator.Strategy{Kind: integrator.StrategyAverage},
				Planes: 128, Scale: 0.5, Passes: 8},
		},
		{
			name:  "all parameters",
			query: "scene=cornell&strategy=smis_jacobian&k=16&planes=5000&stratified=true&density=0.4&scale=0.25&passes=3&seed=7",
			want: RenderRequest{Scene: "cornell", Strategy: integrator.Strategy{Kind: integrator.StrategySMISJacobian, Samples: 16},
				Planes: 5000, Stratified: true, Density: 0.4, Scale: 0.25, Passes: 3, Seed: 7},
		},
		{name: "unknown strategy", query: "strategy=bogus", expectErr: true},
		{name: "planes out of range", query: "planes=0", expectErr: true},
		{name: "scale out of range", query: "scale=10", expectErr: true},
		{name: "bad bool", query: "stratified=maybe", expectErr: true},
		{name: "bad samples", query: "strategy=smis_all&k=zero", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseRenderRequest(httptest.NewRequest(http.MethodGet, "/api/render?"+tt.query, nil))
			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected an error, got %+v", req)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, *req); diff != "" {
				t.Errorf("Unexpected request (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleRender(t *testing.T) {
	ts := httptest.NewServer(NewServer(0, "").Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/render?scene=default&scale=0.0625&planes=64&passes=2&strategy=smis_all&k=2")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected an event stream, got %q", ct)
	}

	events := readEvents(t, resp.Body)
	if errs := eventsOfType(events, "error"); len(errs) > 0 {
		t.Fatalf("Unexpected error events: %+v", errs)
	}

	passes := eventsOfType(events, "passComplete")
	if len(passes) != 2 {
		t.Fatalf("Expected 2 pass events, got %d", len(passes))
	}
	for i, e := range passes {
		var update PassUpdate
		if err := json.Unmarshal([]byte(e.Data), &update); err != nil {
			t.Fatalf("Invalid pass update: %v", err)
		}
		if update.PassNumber != i+1 || update.TotalPasses != 2 || update.Width != 16 || update.Height != 12 {
			t.Errorf("Unexpected pass update %+v", update)
		}
		if update.Strategy != "smis_all(2)" || update.ImageData == "" {
			t.Errorf("Expected strategy and image data, got %q with %d bytes", update.Strategy, len(update.ImageData))
		}
	}

	if last := events[len(events)-1]; last.Type != "complete" {
		t.Errorf("Expected the stream to end with complete, got %s", last.Type)
	}
}

func TestHandleRender_Errors(t *testing.T) {
	ts := httptest.NewServer(NewServer(0, "").Handler())
	defer ts.Close()

	for _, query := range []string{"strategy=bogus", "scene=../secret.pbrt", "scene=nonexistent"} {
		t.Run(query, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/render?" + query)
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			defer resp.Body.Close()

			events := readEvents(t, resp.Body)
			if len(events) != 1 || events[0].Type != "error" {
				t.Errorf("Expected a single error event, got %+v", events)
			}
		})
	}
}

func TestHandleRender_ProxyTablesBuiltOnce(t *testing.T) {
	ts := httptest.NewServer(NewServer(0, "").Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/render?scene=default&scale=0.0625&planes=64&passes=3&strategy=proxy_sample")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	events := readEvents(t, resp.Body)
	if errs := eventsOfType(events, "error"); len(errs) > 0 {
		t.Fatalf("Unexpected error events: %+v", errs)
	}
	if passes := eventsOfType(events, "passComplete"); len(passes) != 3 {
		t.Fatalf("Expected 3 pass events, got %d", len(passes))
	}

	builds := 0
	for _, e := range eventsOfType(events, "console") {
		var msg ConsoleMessage
		if err := json.Unmarshal([]byte(e.Data), &msg); err != nil {
			t.Fatalf("Invalid console message: %v", err)
		}
		if strings.HasPrefix(msg.Message, "Proxy tables") {
			builds++
		}
	}
	if builds > 1 {
		t.Errorf("Expected the proxy tables to be built at most once, got %d builds", builds)
	}
}

func TestPreviewProxyConfig(t *testing.T) {
	if err := previewProxyConfig.Validate(); err != nil {
		t.Fatalf("Invalid preview tables: %v", err)
	}
	if bytes := previewProxyConfig.Bytes(1); bytes > 32<<20 {
		t.Errorf("Expected preview tables under 32 MB per emitter, got %d bytes", bytes)
	}
	if previewProxyConfig.Bytes(1) >= integrator.DefaultProxyConfig().Bytes(1) {
		t.Error("Expected preview tables smaller than the default tables")
	}
}

func TestHandleRender_Busy(t *testing.T) {
	srv := NewServer(0, "")
	for i := 0; i < cap(srv.renderSlots); i++ {
		srv.renderSlots <- struct{}{}
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/render?scene=default&scale=0.0625&planes=64&passes=1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	events := readEvents(t, resp.Body)
	if len(events) != 1 || events[0].Type != "error" || !strings.Contains(events[0].Data, "busy") {
		t.Fatalf("Expected a single busy error, got %+v", events)
	}

	// A finished render frees its slot
	<-srv.renderSlots
	resp, err = http.Get(ts.URL + "/api/render?scene=default&scale=0.0625&planes=64&passes=1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	events = readEvents(t, resp.Body)
	if last := events[len(events)-1]; last.Type != "complete" {
		t.Errorf("Expected the render to complete once a slot is free, got %+v", last)
	}
	if len(srv.renderSlots) != cap(srv.renderSlots)-1 {
		t.Errorf("Expected the render to release its slot, %d of %d in use", len(srv.renderSlots), cap(srv.renderSlots))
	}
}
