package integrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/lights"
	"github.com/df07/go-photon-planes/pkg/planes"
	"github.com/df07/go-photon-planes/pkg/renderer"
	"github.com/df07/go-photon-planes/pkg/scene"
)

var (
	// ErrNoMedium is returned when the scene has no scattering medium to render
	ErrNoMedium = errors.New("scene has no participating medium")
	// ErrNoEmitters is returned when the scene has nothing to emit planes from
	ErrNoEmitters = errors.New("scene has no emitters")
	// ErrProxyTablesMismatch is returned when prebuilt proxy tables were built for other emitters or sizes
	ErrProxyTablesMismatch = errors.New("proxy tables do not match the render")
)

// tMinCamera rejects plane hits at the camera origin
const tMinCamera = 1e-4

// Config controls a photon plane render
type Config struct {
	Strategy           Strategy
	NbPrimitive        int   // minimum number of planes to generate
	Stratified         bool  // stratify the SMIS angles and use the exact proxy integral
	Seed               int64 // base seed for plane generation and per-block samplers
	Proxy              ProxyConfig
	ProxyTables        *ProxyTables // prebuilt tables shared by passes, built per Compute when nil
	ProxyMaxIterations int
	ProxyUniformMix    float64
	BlockSize          int // image block edge in pixels
	NumWorkers         int // 0 for one per CPU, negative leaves CPUs idle
}

// DefaultConfig returns the settings used by the command line renderer
func DefaultConfig() Config {
	return Config{
		Strategy:           Strategy{Kind: StrategyAverage},
		NbPrimitive:        128,
		Proxy:              DefaultProxyConfig(),
		ProxyMaxIterations: DefaultProxyIterations,
		BlockSize:          renderer.DefaultTileSize,
	}
}

// NeedsProxyTables reports whether the strategy samples the tabulated proxy density
func (c Config) NeedsProxyTables() bool {
	return c.Strategy.Kind == StrategyProxySample && !c.Stratified
}

// PlaneSingle renders single scattering in a homogeneous medium by gathering
// photon planes along camera rays
type PlaneSingle struct {
	Config Config
	Logger core.Logger
}

// NewPlaneSingle creates a photon plane integrator
func NewPlaneSingle(config Config, logger core.Logger) *PlaneSingle {
	return &PlaneSingle{Config: config, Logger: logger}
}

func (p *PlaneSingle) logger() core.Logger {
	if p.Logger == nil {
		return renderer.NopLogger{}
	}
	return p.Logger
}

// PrepareProxyTables builds the proxy tables once and keeps them in the
// configuration, so that every Compute with a copy of it reuses them. It does
// nothing when the strategy does not sample the proxy or the tables exist.
func (p *PlaneSingle) PrepareProxyTables(sc *scene.Scene) error {
	if !p.Config.NeedsProxyTables() || p.Config.ProxyTables != nil {
		return nil
	}
	emitters, err := sc.RectangularLights()
	if err != nil {
		return err
	}
	tables, err := p.buildProxyTables(emitters)
	if err != nil {
		return err
	}
	p.Config.ProxyTables = tables
	return nil
}

func (p *PlaneSingle) buildProxyTables(emitters []*lights.RectangularLight) (*ProxyTables, error) {
	start := time.Now()
	tables, err := BuildProxyTables(emitters, p.Config.Proxy)
	if err != nil {
		return nil, fmt.Errorf("building proxy tables: %w", err)
	}
	p.logger().Printf("Proxy tables %+v for %d emitter(s), %.1f MB, built in %v\n",
		tables.Config(), tables.Emitters(), float64(tables.Config().Bytes(tables.Emitters()))/(1<<20),
		time.Since(start).Round(time.Millisecond))
	return tables, nil
}

// Compute generates the planes and gathers them for every pixel of the scene camera
func (p *PlaneSingle) Compute(ctx context.Context, sc *scene.Scene) (*renderer.ImageBuffer, renderer.RenderStats, error) {
	start := time.Now()
	cfg := p.Config
	logger := p.logger()

	if err := cfg.Strategy.Validate(); err != nil {
		return nil, renderer.RenderStats{}, err
	}
	if cfg.NbPrimitive <= 0 {
		return nil, renderer.RenderStats{}, fmt.Errorf("plane count must be positive, got %d", cfg.NbPrimitive)
	}
	if sc.Medium == nil || !(sc.Medium.Density() > 0) {
		return nil, renderer.RenderStats{}, ErrNoMedium
	}
	if len(sc.Emitters) == 0 {
		return nil, renderer.RenderStats{}, ErrNoEmitters
	}
	if err := sc.Preprocess(); err != nil {
		return nil, renderer.RenderStats{}, err
	}

	emitters, err := sc.RectangularLights()
	if err != nil {
		return nil, renderer.RenderStats{}, err
	}
	logger.Printf("Emitters: %d, medium σa=%v σs=%v σt=%v (density %.4g)\n",
		len(emitters), sc.Medium.SigmaA(), sc.Medium.SigmaS(), sc.Medium.SigmaT(), sc.Medium.Density())

	generator := planes.NewGenerator(emitters, sc.Medium)
	generated, draws := generatePlanes(generator, cfg.Strategy.PlaneVariants(), cfg.NbPrimitive, core.NewSeededSampler(cfg.Seed))
	logger.Printf("Generated %d %s planes from %d draws\n", len(generated), cfg.Strategy, draws)

	combiner := &Combiner{
		Strategy:      cfg.Strategy,
		Stratified:    cfg.Stratified,
		Medium:        sc.Medium,
		MaxIterations: cfg.ProxyMaxIterations,
		UniformMix:    cfg.ProxyUniformMix,
	}
	if cfg.NeedsProxyTables() {
		tables := cfg.ProxyTables
		if tables == nil {
			if tables, err = p.buildProxyTables(emitters); err != nil {
				return nil, renderer.RenderStats{}, err
			}
		} else if tables.Emitters() != len(emitters) || tables.Config() != cfg.Proxy {
			return nil, renderer.RenderStats{}, fmt.Errorf("tables for %d emitter(s) of size %+v, render needs %d of size %+v: %w",
				tables.Emitters(), tables.Config(), len(emitters), cfg.Proxy, ErrProxyTablesMismatch)
		}
		combiner.Proxy = tables
	}

	g := &gatherer{
		scene:    sc,
		lights:   emitters,
		accel:    planes.NewAccel(generated),
		combiner: combiner,
		scale:    float64(len(emitters)) / float64(draws),
	}

	width, height := sc.Camera.Resolution()
	img := renderer.NewImageBuffer(width, height)
	tiles := renderer.NewTileGrid(width, height, cfg.BlockSize)
	spp := max(1, sc.SamplingConfig.SamplesPerPixel)
	workers := cfg.NumWorkers
	if workers == 0 {
		workers = sc.SamplingConfig.NumThreads
	}

	var mu sync.Mutex
	completed := 0
	progressStep := max(1, len(tiles)/10)

	stats, err := renderer.RenderTiles(ctx, tiles, workers, func(tile *renderer.Tile) (renderer.RenderStats, error) {
		if err := ctx.Err(); err != nil {
			return renderer.RenderStats{}, err
		}
		tileStats := g.renderTile(tile, img, spp, cfg.Seed)

		mu.Lock()
		completed++
		if completed%progressStep == 0 || completed == len(tiles) {
			logger.Printf("Gathering: %d/%d blocks\n", completed, len(tiles))
		}
		mu.Unlock()
		return tileStats, nil
	})
	if err != nil {
		return nil, stats, err
	}

	stats.Elapsed = time.Since(start)
	logger.Printf("Average evaluations per pixel: %.3f\n", stats.AverageSamples)
	return img, stats, nil
}

// generatePlanes draws planes until at least count exist, returning them and the
// number of draws. Every draw picks an emitter and generates one plane per variant.
func generatePlanes(generator *planes.Generator, variants []planes.Variant, count int, sampler core.Sampler) ([]planes.PhotonPlane, int) {
	result := make([]planes.PhotonPlane, 0, count+len(variants))
	draws := 0
	for len(result) < count {
		emitter := generator.PickEmitter(sampler.Get1D())
		for _, variant := range variants {
			result = append(result, generator.Generate(variant, emitter, sampler))
		}
		draws++
	}
	return result, draws
}

// gatherer holds the read-only state shared by every block
type gatherer struct {
	scene    *scene.Scene
	lights   []*lights.RectangularLight
	accel    *planes.Accel
	combiner *Combiner
	scale    float64 // emitter count over plane draws
}

// tileSeed derives an independent sampler seed for one stream of one block
func tileSeed(seed int64, tileID int, stream int64) int64 {
	return seed*1_000_003 + int64(tileID)*2 + stream
}

// renderTile gathers every pixel of a block. The block writes only its own pixels.
func (g *gatherer) renderTile(tile *renderer.Tile, img *renderer.ImageBuffer, spp int, seed int64) renderer.RenderStats {
	raySampler := core.NewSeededSampler(tileSeed(seed, tile.ID, 0))
	misSampler := core.NewSeededSampler(tileSeed(seed, tile.ID, 1))

	var stats renderer.RenderStats
	invSpp := 1.0 / float64(spp)
	for y := tile.Bounds.Min.Y; y < tile.Bounds.Max.Y; y++ {
		for x := tile.Bounds.Min.X; x < tile.Bounds.Max.X; x++ {
			var radiance core.Vec3
			for s := 0; s < spp; s++ {
				jitter := raySampler.Get2D()
				ray := g.scene.Camera.GetRay(float64(x)+jitter.X, float64(y)+jitter.Y)
				c, evaluations := g.Radiance(ray, misSampler)
				radiance = radiance.Add(c)
				stats.Evaluations += int64(evaluations)
			}
			img.Set(x, y, radiance.Multiply(invSpp))
			stats.TotalPixels++
			stats.TotalSamples += spp
		}
	}
	return stats
}

// Radiance gathers the single-scattered radiance along a camera ray
func (g *gatherer) Radiance(ray core.Ray, rng core.Sampler) (core.Vec3, int) {
	tMax, ok := g.scene.Trace(ray)
	if !ok {
		tMax = math.Inf(1)
	}

	medium := g.scene.Medium
	var radiance core.Vec3
	evaluations := 0
	g.accel.Gather(ray, tMinCamera, tMax, func(its planes.Intersection, plane *planes.PhotonPlane) {
		light := g.lights[plane.EmitterID]
		pHit := ray.At(its.TCam)
		pLight := plane.LightPosition(light, its)
		if !g.scene.Visible(pHit, pLight) {
			return
		}

		contrib, n := g.combiner.Contribution(HitContext{
			Ray:    ray,
			Plane:  plane,
			Its:    its,
			Light:  light,
			PHit:   pHit,
			PLight: pLight,
		}, rng)
		evaluations += n

		toLight := pLight.Subtract(pHit)
		dist := toLight.Length()
		rho := g.scene.Phase.Eval(ray.Direction.Negate(), toLight.Multiply(1/dist))

		// Per-channel light transmittance over the grey free-flight pdf
		lightCorrection := medium.Transmittance(dist).Multiply(1 / medium.ScalarTransmittance(dist))

		c := rho.
			MultiplyVec(medium.Transmittance(its.TCam)).
			MultiplyVec(medium.SigmaS()).
			MultiplyVec(contrib).
			MultiplyVec(lightCorrection).
			Multiply(g.scale)
		if c.IsFinite() {
			radiance = radiance.Add(c)
		}
	})
	return radiance, evaluations
}
