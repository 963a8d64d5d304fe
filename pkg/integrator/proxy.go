package integrator

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/lights"
	"github.com/df07/go-photon-planes/pkg/planes"
)

// ProxyConfig sizes the proxy density tables
type ProxyConfig struct {
	S int // light-point buckets along U; V uses 8*S
	E int // phase buckets over [0, π)
	X int // bins per density over α in [0, 1)
}

// DefaultProxyConfig returns the table sizes used by the command line renderer
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{S: 20, E: 100, X: 1000}
}

// Validate checks that every table dimension is positive
func (c ProxyConfig) Validate() error {
	if c.S <= 0 || c.E <= 0 || c.X <= 0 {
		return fmt.Errorf("proxy table sizes must be positive, got S=%d E=%d X=%d", c.S, c.E, c.X)
	}
	return nil
}

// Rows returns the number of tabulated densities for a number of emitters
func (c ProxyConfig) Rows(emitters int) int {
	return emitters * c.S * 8 * c.S * c.E
}

// Bytes returns the memory held by the tables of a number of emitters
func (c ProxyConfig) Bytes(emitters int) int {
	return c.Rows(emitters) * (8 + 4*c.X)
}

// ProxyTables holds, per emitter, light-point bucket and phase bucket, a tabulated density
// proportional to |sin(πα + bias)| · chord(α) and its raw integral.
// Densities are stored as float32 cumulative rows to keep the default tables in memory.
type ProxyTables struct {
	config   ProxyConfig
	emitters int
	bMax     []float64 // [emitter][S][8S][E]
	cdf      []float32 // [emitter][S][8S][E][X], inclusive running sum ending at 1
}

// BuildProxyTables tabulates the proxy densities for every emitter.
// Rows are built in parallel; a row without positive weight is an error.
func BuildProxyTables(emitters []*lights.RectangularLight, config ProxyConfig) (*ProxyTables, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rows := config.Rows(len(emitters))
	t := &ProxyTables{
		config:   config,
		emitters: len(emitters),
		bMax:     make([]float64, rows),
		cdf:      make([]float32, rows*config.X),
	}

	// One job per (emitter, u bucket) slab
	jobs := make(chan [2]int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < runtime.NumCPU(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			weights := make([]float64, config.X)
			var dist core.Distribution1D
			for job := range jobs {
				if err := t.fillSlab(emitters[job[0]], job[0], job[1], weights, &dist); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}

	for emitter := range emitters {
		for i := 0; i < config.S; i++ {
			jobs <- [2]int{emitter, i}
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return t, nil
}

// fillSlab tabulates every row for one emitter and u bucket. weights and dist are
// per-worker scratch space.
func (t *ProxyTables) fillSlab(light *lights.RectangularLight, emitter, i int, weights []float64, dist *core.Distribution1D) error {
	s, e, x := t.config.S, t.config.E, t.config.X
	for j := 0; j < 8*s; j++ {
		sample := core.NewVec2((float64(i)+0.5)/float64(s), (float64(j)+0.5)/float64(8*s))
		for k := 0; k < e; k++ {
			bias := math.Pi / float64(e) * (float64(k) + 0.5)
			for bin := 0; bin < x; bin++ {
				alpha := (float64(bin) + 0.5) / float64(x)
				weights[bin] = math.Abs(math.Sin(math.Pi*alpha+bias)) * planes.ChordLength(light, sample, alpha)
			}

			if err := dist.Reset(weights); err != nil {
				return fmt.Errorf("proxy row emitter=%d u=%d v=%d e=%d: %w", emitter, i, j, k, err)
			}

			row := t.rowIndex(emitter, i, j, k)
			t.bMax[row] = dist.Sum()
			cdf := t.cdf[row*x : (row+1)*x]
			acc := 0.0
			for bin, p := range dist.PDFs() {
				acc += p
				cdf[bin] = float32(acc)
			}
			cdf[x-1] = 1
		}
	}
	return nil
}

// Config returns the table sizes
func (t *ProxyTables) Config() ProxyConfig {
	return t.config
}

// Emitters returns the number of emitters tabulated
func (t *ProxyTables) Emitters() int {
	return t.emitters
}

func (t *ProxyTables) rowIndex(emitter, i, j, e int) int {
	s := t.config.S
	return ((emitter*s+i)*8*s+j)*t.config.E + e
}

// Bucket returns the row of the table nearest a light sample in [0,1]² and a phase in [0, π]
func (t *ProxyTables) Bucket(emitter int, sample core.Vec2, bias float64) int {
	s, e := t.config.S, t.config.E
	i := clampIndex(sample.X*float64(s), s)
	j := clampIndex(sample.Y*float64(8*s), 8*s)
	k := clampIndex(bias/math.Pi*float64(e), e)
	return t.rowIndex(emitter, i, j, k)
}

// BMax returns the raw sum of the tabulated weights of a row
func (t *ProxyTables) BMax(row int) float64 {
	return t.bMax[row]
}

// PDF returns the normalised probability of a bin of a row
func (t *ProxyTables) PDF(row, bin int) float64 {
	cdf := t.row(row)
	if bin == 0 {
		return float64(cdf[0])
	}
	return float64(cdf[bin]) - float64(cdf[bin-1])
}

// SampleBin maps u in [0,1) to a bin with non-zero probability
func (t *ProxyTables) SampleBin(row int, u float64) int {
	cdf := t.row(row)
	target := float32(u)
	bin := sort.Search(len(cdf), func(k int) bool { return cdf[k] > target })
	bin = min(bin, len(cdf)-1)

	// u rounded up to 1 lands past the last positive bin
	for bin > 0 && t.PDF(row, bin) == 0 {
		bin--
	}
	return bin
}

func (t *ProxyTables) row(row int) []float32 {
	x := t.config.X
	return t.cdf[row*x : (row+1)*x]
}

// clampIndex maps a scaled coordinate to [0, n-1]
func clampIndex(v float64, n int) int {
	if !(v > 0) {
		return 0
	}
	return min(int(v), n-1)
}
