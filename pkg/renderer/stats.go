package renderer

import "time"

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels    int           // Total number of pixels rendered
	TotalSamples   int           // Camera rays traced
	Evaluations    int64         // Plane evaluations spent by the contribution strategy
	AverageSamples float64       // Evaluations per pixel
	Passes         int           // Number of averaged passes
	Elapsed        time.Duration // Wall time of the render
}

// Merge accumulates counters from another set of statistics
func (s *RenderStats) Merge(other RenderStats) {
	s.TotalPixels += other.TotalPixels
	s.TotalSamples += other.TotalSamples
	s.Evaluations += other.Evaluations
	s.Passes += other.Passes
	s.Elapsed += other.Elapsed
	s.finalize()
}

// finalize recomputes derived statistics
func (s *RenderStats) finalize() {
	if s.TotalPixels > 0 {
		s.AverageSamples = float64(s.Evaluations) / float64(s.TotalPixels)
	}
}
