package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/integrator"
	"github.com/df07/go-photon-planes/pkg/renderer"
	"github.com/df07/go-photon-planes/pkg/scene"
)

// options holds the parsed command line
type options struct {
	scene      string
	strategy   integrator.Strategy
	planes     int
	stratified bool
	density    float64
	spp        int
	threads    int
	scale      float64
	seed       int64
	output     string
	budget     time.Duration
	proxyIter  int
	proxyMix   float64
	list       bool
	help       bool
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if opts.help {
		printHelp()
		return
	}
	if opts.list {
		if err := listScenes(os.Stdout); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Ctrl-C stops averaging and keeps the passes rendered so far
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, renderer.NewDefaultLogger()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// rawFlags holds flag values that need validation before they become options
type rawFlags struct {
	strategy    string
	budget      string
	smisSamples int
}

// newFlagSet registers every command line flag
func newFlagSet(opts *options, raw *rawFlags, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("photon-planes", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.scene, "scene", "default", "Scene: 'default', 'cornell' or a .pbrt file")
	fs.StringVar(&raw.strategy, "strategy", "average", "Strategy: uv, vt, ut, ualpha, average, discrete_mis, cmis, smis_all, smis_jacobian, proxy_sample")
	fs.IntVar(&opts.planes, "n", 128, "Number of photon planes to generate")
	fs.IntVar(&raw.smisSamples, "k", 4, "Samples per hit for the SMIS strategies")
	fs.BoolVar(&opts.stratified, "x", false, "Stratify SMIS angles and use the exact proxy normalisation")
	fs.Float64Var(&opts.density, "m", 0, "Override the medium with a purely scattering density (0 keeps the scene medium)")
	fs.IntVar(&opts.spp, "spp", 0, "Samples per pixel (0 uses the scene setting)")
	fs.IntVar(&opts.threads, "t", 0, "Worker threads (0 for one per CPU, negative leaves CPUs idle)")
	fs.Float64Var(&opts.scale, "scale", 1, "Image resolution scale")
	fs.Int64Var(&opts.seed, "seed", 0, "Random seed")
	fs.StringVar(&opts.output, "o", "", "Output file (.pfm, .png or .tif); default output/<scene>/<strategy>_<timestamp>.pfm")
	fs.StringVar(&raw.budget, "a", "", "Average passes for a duration (e.g. 30s), or 'inf' until interrupted")
	fs.IntVar(&opts.proxyIter, "proxy-iterations", integrator.DefaultProxyIterations, "Iteration budget of the proxy correction loop")
	fs.Float64Var(&opts.proxyMix, "proxy-mix", 0, "Probability of a uniform angle draw in the proxy correction loop")
	fs.BoolVar(&opts.list, "list", false, "List available scenes")
	fs.BoolVar(&opts.help, "help", false, "Show help information")
	return fs
}

// parseOptions parses the command line into options
func parseOptions(args []string, output io.Writer) (options, error) {
	var opts options
	var raw rawFlags
	fs := newFlagSet(&opts, &raw, output)

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.help || opts.list {
		return opts, nil
	}

	var err error
	if opts.strategy, err = integrator.ParseStrategy(raw.strategy, raw.smisSamples); err != nil {
		return options{}, err
	}
	if opts.budget, err = parseBudget(raw.budget); err != nil {
		return options{}, err
	}
	if opts.planes <= 0 {
		return options{}, fmt.Errorf("-n must be positive, got %d", opts.planes)
	}
	if opts.density < 0 {
		return options{}, fmt.Errorf("-m must not be negative, got %v", opts.density)
	}
	if opts.scale <= 0 {
		return options{}, fmt.Errorf("-scale must be positive, got %v", opts.scale)
	}
	if opts.proxyMix < 0 || opts.proxyMix > 1 {
		return options{}, fmt.Errorf("-proxy-mix must be in [0, 1], got %v", opts.proxyMix)
	}
	return opts, nil
}

// parseBudget converts the -a argument into an averaging budget
func parseBudget(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0":
		return 0, nil
	case "inf":
		return renderer.Unbounded, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid averaging budget %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("averaging budget must not be negative, got %v", d)
	}
	return d, nil
}

// createScene loads a scene and applies the command line overrides
func createScene(opts options) (*scene.Scene, error) {
	sc, err := scene.Load(opts.scene)
	if err != nil {
		return nil, err
	}
	if opts.density > 0 {
		if err := sc.SetDensity(opts.density); err != nil {
			return nil, err
		}
	}
	if opts.spp > 0 {
		sc.SamplingConfig.SamplesPerPixel = opts.spp
	}
	sc.SamplingConfig.NumThreads = opts.threads
	sc.Resize(opts.scale)
	return sc, nil
}

// outputPath returns the file the render is written to
func outputPath(opts options) string {
	if opts.output != "" {
		return opts.output
	}
	name := strings.TrimSuffix(filepath.Base(opts.scene), filepath.Ext(opts.scene))
	if name == "" || name == "." {
		name = "default"
	}
	timestamp := time.Now().Format("20060102_150405")
	return filepath.Join("output", name, fmt.Sprintf("%s_%s.pfm", strategyFileName(opts.strategy), timestamp))
}

func strategyFileName(s integrator.Strategy) string {
	return strings.NewReplacer("(", "_", ")", "").Replace(s.String())
}

// run renders the scene, averaging passes under the time budget, and saves the result
func run(ctx context.Context, opts options, logger core.Logger) error {
	sc, err := createScene(opts)
	if err != nil {
		return err
	}
	width, height := sc.Camera.Resolution()
	logger.Printf("Scene %s: %dx%d, %d spp, %d occluders\n",
		opts.scene, width, height, sc.SamplingConfig.SamplesPerPixel, sc.GetPrimitiveCount())

	config := integrator.DefaultConfig()
	config.Strategy = opts.strategy
	config.NbPrimitive = opts.planes
	config.Stratified = opts.stratified
	config.ProxyMaxIterations = opts.proxyIter
	config.ProxyUniformMix = opts.proxyMix
	config.NumWorkers = opts.threads

	// Proxy tables depend only on the emitters, so passes share them
	base := integrator.NewPlaneSingle(config, logger)
	if err := base.PrepareProxyTables(sc); err != nil {
		return err
	}

	filename := outputPath(opts)
	pass := func(ctx context.Context, pass int) (*renderer.ImageBuffer, renderer.RenderStats, error) {
		passConfig := base.Config
		passConfig.Seed = opts.seed + int64(pass)
		return integrator.NewPlaneSingle(passConfig, logger).Compute(ctx, sc)
	}

	averageConfig := renderer.AverageConfig{Budget: opts.budget}
	if opts.budget != 0 {
		// Keep the running average on disk while averaging
		averageConfig.OnPass = func(pass int, avg *renderer.ImageBuffer, _ renderer.RenderStats) error {
			return renderer.Save(filename, avg)
		}
	}

	img, stats, err := renderer.Average(ctx, averageConfig, pass, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted before the first pass completed: %w", err)
		}
		return err
	}

	if err := renderer.Save(filename, img); err != nil {
		return err
	}
	logger.Printf("Rendered %d pass(es) in %v, %.3f evaluations per pixel\n",
		stats.Passes, stats.Elapsed.Round(time.Millisecond), stats.AverageSamples)
	logger.Printf("Render saved as %s\n", filename)
	return nil
}

// listScenes prints the built-in scenes and the PBRT files of the scenes directory
func listScenes(w io.Writer) error {
	scenes, err := scene.ListScenes("scenes")
	if err != nil {
		return err
	}
	for _, info := range scenes {
		fmt.Fprintf(w, "  %-20s %s\n", info.ID, info.Description)
	}
	return nil
}

func printHelp() {
	fmt.Println("Photon Planes")
	fmt.Println("Single scattering in homogeneous media with photon planes.")
	fmt.Println("Usage: photon-planes [options]")
	fmt.Println()
	fmt.Println("Options:")
	var opts options
	var raw rawFlags
	newFlagSet(&opts, &raw, os.Stdout).PrintDefaults()
	fmt.Println()
	fmt.Println("Available scenes:")
	if err := listScenes(os.Stdout); err != nil {
		fmt.Printf("  (could not list scenes: %v)\n", err)
	}
}
