package integrator

import (
	"math"

	"github.com/df07/go-photon-planes/pkg/core"
	"github.com/df07/go-photon-planes/pkg/lights"
	"github.com/df07/go-photon-planes/pkg/planes"
	"github.com/df07/go-photon-planes/pkg/volume"
)

// DefaultProxyIterations bounds the proxy correction loop
const DefaultProxyIterations = 1000

// HitContext is a ray/plane intersection together with the emitter point it maps back to
type HitContext struct {
	Ray    core.Ray
	Plane  *planes.PhotonPlane
	Its    planes.Intersection
	Light  *lights.RectangularLight
	PHit   core.Vec3
	PLight core.Vec3
}

// Combiner weights the contribution of a single plane hit according to a strategy.
// A Combiner is read-only during rendering and may be shared between workers.
type Combiner struct {
	Strategy      Strategy
	Stratified    bool
	Medium        *volume.HomogeneousMedium
	Proxy         *ProxyTables // required by non-stratified ProxySample
	MaxIterations int          // proxy loop budget, DefaultProxyIterations when <= 0
	UniformMix    float64      // probability of a uniform proxy draw
}

// Contribution returns the weighted contribution of a hit and the number of plane
// evaluations spent on it. Degenerate configurations contribute zero.
func (c *Combiner) Contribution(hit HitContext, rng core.Sampler) (core.Vec3, int) {
	plane := hit.Plane
	dir := hit.Ray.Direction

	var contrib core.Vec3
	evaluations := 1
	switch c.Strategy.Kind {
	case StrategyUV, StrategyVT, StrategyUT, StrategyUAlpha:
		contrib = plane.Contribution(dir)
	case StrategyAverage:
		contrib = plane.Contribution(dir).Multiply(1.0 / 3.0)
	case StrategyDiscreteMIS:
		contrib = plane.Contribution(dir).Multiply(c.discreteWeight(hit))
		evaluations = 3
	case StrategyContinuousMIS:
		A, B := jacobianCoefficients(hit.Light, plane.D1, dir)
		contrib = plane.Weight.Multiply(math.Pi / (2 * math.Hypot(A, B)))
	case StrategySMISAll, StrategySMISJacobian:
		contrib, evaluations = c.stochasticMIS(hit, rng)
	case StrategyProxySample:
		contrib, evaluations = c.proxySample(hit, rng)
	default:
		return core.Vec3{}, 0
	}

	if !contrib.IsFinite() {
		return core.Vec3{}, evaluations
	}
	return contrib, evaluations
}

// jacobianCoefficients returns A = (V×D1)·dir and B = (U×D1)·dir, negated together so B >= 0.
// The UAlphaT Jacobian at angle πα is then |A·sin(πα) + B·cos(πα)|.
func jacobianCoefficients(light *lights.RectangularLight, d1, dir core.Vec3) (float64, float64) {
	A := light.V.Cross(d1).Dot(dir)
	B := light.U.Cross(d1).Dot(dir)
	if B < 0 {
		return -A, -B
	}
	return A, B
}

// discreteWeight is the balance heuristic over the UV, UT and VT planes that could have
// produced the hit, rebuilt from the hit geometry.
func (c *Combiner) discreteWeight(hit HitContext) float64 {
	plane := hit.Plane
	offset := hit.PHit.Subtract(hit.PLight)
	dist := offset.Length()
	if dist == 0 {
		return 0
	}
	d := offset.Multiply(1 / dist)

	var hitInv, sum float64
	for _, variant := range []planes.Variant{planes.VariantUV, planes.VariantUT, planes.VariantVT} {
		rebuilt := planes.New(variant, hit.Light, d, plane.Sample, 0, dist, plane.EmitterID, c.Medium)
		value := rebuilt.Contribution(hit.Ray.Direction).Average()
		if variant == plane.Variant {
			hitInv = 1 / value
		}
		if value != 0 && !math.IsInf(value, 0) && !math.IsNaN(value) {
			sum += 1 / value
		}
	}

	w := hitInv / sum
	if math.IsInf(w, 0) || math.IsNaN(w) {
		return 0
	}
	return w
}

// stochasticMIS normalises the hit plane against N-1 extra UAlphaT planes through the
// same emitter point
func (c *Combiner) stochasticMIS(hit HitContext, rng core.Sampler) (core.Vec3, int) {
	plane := hit.Plane
	dir := hit.Ray.Direction
	n := c.Strategy.Samples
	withLength := c.Strategy.Kind == StrategySMISAll

	measure := func(p *planes.PhotonPlane) float64 {
		if withLength {
			return p.Jacobian(dir) * p.Length0
		}
		return p.Jacobian(dir)
	}

	sampleWrap := hit.Light.SampleWrap(hit.PLight)
	invNorm := measure(plane)
	for k := 1; k < n; k++ {
		var alpha float64
		if c.Stratified {
			alpha = math.Mod(plane.SampleAlpha+float64(k)/float64(n), 1)
		} else {
			alpha = rng.Get1D()
		}
		extra := planes.New(planes.VariantUAlphaT, hit.Light, plane.D1, sampleWrap, alpha, 0, plane.EmitterID, c.Medium)
		invNorm += measure(&extra)
	}

	scale := float64(n) / invNorm
	if withLength {
		scale *= plane.Length0
	}
	return plane.Weight.Multiply(scale), n
}

// proxySample divides the hit by the integral of |J(α)| · chord(α) over α, either exactly
// (stratified) or with an unbiased estimate of its inverse.
func (c *Combiner) proxySample(hit HitContext, rng core.Sampler) (core.Vec3, int) {
	plane := hit.Plane
	sampleWrap := hit.Light.SampleWrap(hit.PLight)
	A, B := jacobianCoefficients(hit.Light, plane.D1, hit.Ray.Direction)

	if c.Stratified {
		integral := projectedIntegral(hit.Light, sampleWrap.X, sampleWrap.Y, A, B)
		return plane.Weight.Multiply(plane.Length0 / integral), 1
	}

	inv, iterations := c.proxyInverse(hit, sampleWrap, A, B, rng)
	return plane.Weight.Multiply(inv * plane.Length0), iterations
}

// proxyInverse estimates 1/I with a randomised series in (1 - I/b), where b is an envelope
// derived from the tabulated proxy. Terms of either sign are kept on a signed counter.
func (c *Combiner) proxyInverse(hit HitContext, sampleWrap core.Vec2, A, B float64, rng core.Sampler) (float64, int) {
	tables := c.Proxy
	bins := tables.config.X
	dir := hit.Ray.Direction

	amplitude := math.Hypot(A, B)
	bias := math.Atan2(B, A)
	row := tables.Bucket(hit.Plane.EmitterID, sampleWrap, bias)

	envelope := amplitude * tables.BMax(row) / float64(bins)
	chord := chordIntegral(hit.Light, sampleWrap.X, sampleWrap.Y)
	envelope = 2 / (1/chord + 1/envelope)

	maxIterations := c.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultProxyIterations
	}

	inv := 0.0
	pending, budget := 1, maxIterations
	for pending != 0 && budget > 0 {
		sign := 1
		if pending < 0 {
			sign = -1
		}
		pending -= sign

		var alpha float64
		var bin int
		if rng.Get1D() < c.UniformMix {
			alpha = rng.Get1D()
			bin = min(int(alpha*float64(bins)), bins-1)
		} else {
			bin = tables.SampleBin(row, rng.Get1D())
			alpha = (float64(bin) + rng.Get1D()) / float64(bins)
		}
		pdf := c.UniformMix + (1-c.UniformMix)*tables.PDF(row, bin)*float64(bins)

		sampled := planes.New(planes.VariantUAlphaT, hit.Light, hit.Plane.D1, sampleWrap, alpha, 0, hit.Plane.EmitterID, c.Medium)
		f := sampled.Jacobian(dir) * sampled.Length0

		g := 1 - f/pdf/envelope
		inv += float64(sign) / envelope
		if g < 0 {
			sign = -sign
		}
		r := math.Abs(g)
		steps := math.Floor(r)
		if rng.Get1D() < r-steps {
			steps++
		}
		pending += sign * int(steps)
		budget--
	}
	return inv, maxIterations - budget
}
