package renderer

import (
	"context"
	"runtime"
	"sync"
)

// TileFunc renders one tile and reports its statistics
type TileFunc func(tile *Tile) (RenderStats, error)

// TileTask represents a tile rendering task for the worker pool
type TileTask struct {
	Tile   *Tile
	TaskID int // For deterministic ordering
}

// TileResult contains the result from rendering a tile
type TileResult struct {
	TaskID int
	Stats  RenderStats
	Error  error
}

// WorkerPool manages parallel tile rendering
type WorkerPool struct {
	taskQueue   chan TileTask
	resultQueue chan TileResult
	numWorkers  int
	render      TileFunc
	wg          sync.WaitGroup
}

// NewWorkerPool creates a worker pool with the specified number of workers.
// Zero uses one worker per CPU and negative values leave that many CPUs idle.
func NewWorkerPool(numWorkers, maxTasks int, render TileFunc) *WorkerPool {
	return &WorkerPool{
		taskQueue:   make(chan TileTask, maxTasks),
		resultQueue: make(chan TileResult, maxTasks),
		numWorkers:  ResolveWorkers(numWorkers),
		render:      render,
	}
}

// ResolveWorkers maps a requested thread count to an actual worker count
func ResolveWorkers(requested int) int {
	if requested > 0 {
		return requested
	}
	return max(1, runtime.NumCPU()+requested)
}

// Start begins all workers
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.run(ctx)
	}
}

// Stop gracefully shuts down all workers
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue) // No more tasks
	wp.wg.Wait()        // Wait for workers to finish
	close(wp.resultQueue)
}

// SubmitTask submits a tile task to the worker pool
func (wp *WorkerPool) SubmitTask(task TileTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed tile result
func (wp *WorkerPool) GetResult() (TileResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// run is the main worker loop
func (wp *WorkerPool) run(ctx context.Context) {
	defer wp.wg.Done()

	for task := range wp.taskQueue {
		// Drain remaining tasks without rendering once cancelled
		if err := ctx.Err(); err != nil {
			wp.resultQueue <- TileResult{TaskID: task.TaskID, Error: err}
			continue
		}

		stats, err := wp.render(task.Tile)
		wp.resultQueue <- TileResult{TaskID: task.TaskID, Stats: stats, Error: err}
	}
}

// RenderTiles renders every tile on a fresh pool and merges the statistics.
// The first tile error is returned after all workers have stopped.
func RenderTiles(ctx context.Context, tiles []*Tile, numWorkers int, render TileFunc) (RenderStats, error) {
	pool := NewWorkerPool(numWorkers, len(tiles), render)
	pool.Start(ctx)

	for i, tile := range tiles {
		pool.SubmitTask(TileTask{Tile: tile, TaskID: i})
	}

	var total RenderStats
	var firstErr error
	for range tiles {
		result, _ := pool.GetResult()
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		total.Merge(result.Stats)
	}
	pool.Stop()

	return total, firstErr
}
