package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/df07/go-photon-planes/pkg/integrator"
	"github.com/df07/go-photon-planes/pkg/renderer"
	"github.com/df07/go-photon-planes/pkg/scene"
)

// RenderRequest holds the parsed query of a render request
type RenderRequest struct {
	Scene      string
	Strategy   integrator.Strategy
	Planes     int
	Stratified bool
	Density    float64 // 0 keeps the scene medium
	Scale      float64
	Passes     int
	Seed       int64
}

// SSEEvent is one server-sent event, written by a single goroutine
type SSEEvent struct {
	Type string `json:"type"` // "console", "passComplete", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// PassUpdate carries the running average after one pass
type PassUpdate struct {
	PassNumber         int     `json:"passNumber"`
	TotalPasses        int     `json:"totalPasses"`
	ElapsedMs          int64   `json:"elapsedMs"`
	Width              int     `json:"width"`
	Height             int     `json:"height"`
	Strategy           string  `json:"strategy"`
	AverageEvaluations float64 `json:"averageEvaluations"`
	PrimitiveCount     int     `json:"primitiveCount"`
	ImageData          string  `json:"imageData"` // Base64 encoded PNG
}

// handleRender renders averaged photon plane passes and streams each running
// average via SSE
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	setSSEHeaders(w)
	ctx := r.Context()

	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeSSEEvents(ctx, w, sseEventChan)
	}()
	// The writer must finish before the handler returns
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	req, err := parseRenderRequest(r)
	if err != nil {
		handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	select {
	case s.renderSlots <- struct{}{}:
		defer func() { <-s.renderSlots }()
	default:
		handleError(ctx, sseEventChan, fmt.Sprintf("Server busy: %d renders already running", cap(s.renderSlots)))
		return
	}

	sc, err := s.setupScene(req)
	if err != nil {
		handleError(ctx, sseEventChan, err.Error())
		return
	}

	consoleChan := make(chan ConsoleMessage, 50)
	logger := NewWebLogger(fmt.Sprintf("render-%d", time.Now().UnixNano()), consoleChan)
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		streamConsoleMessages(ctx, consoleChan, sseEventChan)
	}()

	err = renderPasses(ctx, sc, req, logger, sseEventChan)
	close(consoleChan)
	<-consoleDone
	if err != nil {
		handleError(ctx, sseEventChan, fmt.Sprintf("Rendering failed: %v", err))
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "complete", Data: "Rendering completed"}:
	case <-ctx.Done():
	}
}

// setupScene loads the requested scene and applies the overrides
func (s *Server) setupScene(req *RenderRequest) (*scene.Scene, error) {
	sc, err := s.loadScene(req.Scene)
	if err != nil {
		return nil, err
	}
	if req.Density > 0 {
		if err := sc.SetDensity(req.Density); err != nil {
			return nil, err
		}
	}
	sc.Resize(req.Scale)
	return sc, nil
}

// previewProxyConfig sizes the proxy tables of preview renders, about 16 MB per emitter
var previewProxyConfig = integrator.ProxyConfig{S: 8, E: 32, X: 256}

// renderPasses averages req.Passes independent renders, sending the running
// average after each
func renderPasses(ctx context.Context, sc *scene.Scene, req *RenderRequest, logger *WebLogger, sseEventChan chan<- SSEEvent) error {
	config := integrator.DefaultConfig()
	config.Strategy = req.Strategy
	config.NbPrimitive = req.Planes
	config.Stratified = req.Stratified
	config.Proxy = previewProxyConfig

	base := integrator.NewPlaneSingle(config, logger)
	if err := base.PrepareProxyTables(sc); err != nil {
		return err
	}

	startTime := time.Now()
	pass := func(ctx context.Context, pass int) (*renderer.ImageBuffer, renderer.RenderStats, error) {
		passConfig := base.Config
		passConfig.Seed = req.Seed + int64(pass)
		return integrator.NewPlaneSingle(passConfig, logger).Compute(ctx, sc)
	}

	averageConfig := renderer.AverageConfig{
		Budget:    renderer.Unbounded,
		MaxPasses: req.Passes,
		OnPass: func(pass int, avg *renderer.ImageBuffer, stats renderer.RenderStats) error {
			imageData, err := imageToBase64PNG(avg.ToRGBA())
			if err != nil {
				return fmt.Errorf("failed to encode image: %w", err)
			}
			data, err := json.Marshal(PassUpdate{
				PassNumber:         pass + 1,
				TotalPasses:        req.Passes,
				ElapsedMs:          time.Since(startTime).Milliseconds(),
				Width:              avg.Width,
				Height:             avg.Height,
				Strategy:           req.Strategy.String(),
				AverageEvaluations: stats.AverageSamples,
				PrimitiveCount:     sc.GetPrimitiveCount(),
				ImageData:          imageData,
			})
			if err != nil {
				return err
			}

			select {
			case sseEventChan <- SSEEvent{Type: "passComplete", Data: string(data)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}

	_, _, err := renderer.Average(ctx, averageConfig, pass, logger)
	return err
}

// setSSEHeaders sets the required headers for Server-Sent Events
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents writes events until the channel is closed. After the client
// disconnects it keeps draining so senders never block.
func writeSSEEvents(ctx context.Context, w http.ResponseWriter, sseEventChan <-chan SSEEvent) {
	flusher, _ := w.(http.Flusher)
	for event := range sseEventChan {
		if ctx.Err() != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// streamConsoleMessages forwards console messages until the console channel is closed
func streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	for consoleMsg := range consoleChan {
		if ctx.Err() != nil {
			continue
		}
		data, err := json.Marshal(consoleMsg)
		if err != nil {
			log.Printf("Error marshaling console message: %v", err)
			continue
		}

		// Skip the message rather than stall the render
		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		default:
		}
	}
}

// parseRenderRequest parses and validates the query parameters
func parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	query := r.URL.Query()
	req := &RenderRequest{Scene: query.Get("scene")}
	if req.Scene == "" {
		req.Scene = "default"
	}

	strategyName := query.Get("strategy")
	if strategyName == "" {
		strategyName = "average"
	}
	samples, err := parseIntParam(query, "k", 4, 1, 4096)
	if err != nil {
		return nil, err
	}
	if req.Strategy, err = integrator.ParseStrategy(strategyName, samples); err != nil {
		return nil, err
	}

	if req.Planes, err = parseIntParam(query, "planes", 128, 1, 10_000_000); err != nil {
		return nil, err
	}
	if req.Stratified, err = parseBoolParam(query, "stratified"); err != nil {
		return nil, err
	}
	if req.Density, err = parseFloatParam(query, "density", 0, 0, 100); err != nil {
		return nil, err
	}
	if req.Scale, err = parseFloatParam(query, "scale", 0.5, 0.01, 4); err != nil {
		return nil, err
	}
	if req.Passes, err = parseIntParam(query, "passes", 8, 1, 1000); err != nil {
		return nil, err
	}
	seed, err := parseIntParam(query, "seed", 0, 0, 1<<30)
	if err != nil {
		return nil, err
	}
	req.Seed = int64(seed)
	return req, nil
}

// handleError sends an error event to the SSE channel
func handleError(ctx context.Context, sseEventChan chan<- SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
	}
}
