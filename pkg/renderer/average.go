package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/df07/go-photon-planes/pkg/core"
)

// Unbounded is the averaging budget that runs passes until the context is cancelled
const Unbounded time.Duration = -1

// PassFunc renders one independent estimate of the image
type PassFunc func(ctx context.Context, pass int) (*ImageBuffer, RenderStats, error)

// AverageConfig controls repeated rendering
type AverageConfig struct {
	Budget    time.Duration // 0 renders a single pass, Unbounded runs until cancelled
	MaxPasses int           // stops after this many passes when positive, whatever the budget

	// OnPass is called with the running average and the merged stats after each pass
	OnPass func(pass int, avg *ImageBuffer, stats RenderStats) error
}

// Average renders passes until the time budget is spent and returns their mean.
// Passes use distinct indices so callers can derive independent seeds.
// Cancellation after the first pass returns the average so far.
func Average(ctx context.Context, config AverageConfig, render PassFunc, logger core.Logger) (*ImageBuffer, RenderStats, error) {
	start := time.Now()

	var sum *ImageBuffer
	var total RenderStats
	for pass := 0; ; pass++ {
		img, stats, err := render(ctx, pass)
		if err != nil {
			if sum != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				logger.Printf("Averaging interrupted after %d passes\n", pass)
				break
			}
			return nil, total, fmt.Errorf("pass %d: %w", pass, err)
		}

		if sum == nil {
			sum = NewImageBuffer(img.Width, img.Height)
		}
		if err := sum.AddBuffer(img); err != nil {
			return nil, total, err
		}
		stats.Passes = 1
		total.Merge(stats)

		if config.OnPass != nil {
			if err := config.OnPass(pass, sum.Scaled(1/float64(pass+1)), total); err != nil {
				return nil, total, err
			}
		}

		elapsed := time.Since(start)
		if config.MaxPasses > 0 && pass+1 >= config.MaxPasses {
			break
		}
		if config.Budget == 0 || (config.Budget > 0 && elapsed >= config.Budget) {
			break
		}
		logger.Printf("Pass %d done after %v\n", pass+1, elapsed.Round(time.Millisecond))
	}

	total.Elapsed = time.Since(start)
	return sum.Scaled(1 / float64(total.Passes)), total, nil
}
