package integrator

import (
	"math"

	"github.com/df07/go-photon-planes/pkg/lights"
)

// integralEpsilon treats rectangle extents below it as empty
const integralEpsilon = 1.1920929e-07

// directIntegral integrates |A·sinθ + B·cosθ| · r(θ) over θ in [0, π], where r(θ) is the
// distance from a point to the boundary of the half-rectangle that extends a to the left,
// b to the right and c upwards. The result is divided by π so it is an integral over α = θ/π.
// B must be non-negative.
func directIntegral(a, b, c, A, B float64) float64 {
	if c < integralEpsilon {
		return 0
	}

	// t is the zero of the integrand, t1 and t2 the corners of the half-rectangle
	t := math.Atan2(B, -A)
	t1 := math.Atan2(c, b)
	t2 := math.Atan2(c, -a)

	sign1 := 1.0
	if t < t1 {
		sign1 = -1
	}
	sign2 := sign1
	if t1 <= t && t <= t2 {
		sign2 = -1
	}

	// Right edge, θ in [0, t1]
	var right float64
	if b > integralEpsilon {
		if t < t1 {
			cosT := math.Cos(t)
			right = b * (A*math.Log(math.Cos(t1)/(cosT*cosT)) + B*(2*t-t1))
		} else {
			right = b * (A*math.Log(1/math.Cos(t1)) + B*t1)
		}
	}

	// Top edge, θ in [t1, t2]
	var top float64
	if t1 <= t && t <= t2 {
		sinT := math.Sin(t)
		top = c * (A*(2*t-t1-t2) + B*math.Log(sinT*sinT/(math.Sin(t1)*math.Sin(t2))))
	} else {
		top = c * (A*(t2-t1) + B*math.Log(math.Sin(t2)/math.Sin(t1))) * sign1
	}

	// Left edge, θ in [t2, π]
	var left float64
	if a > integralEpsilon {
		if t > t2 {
			cosT := math.Cos(t)
			left = -a * (A*math.Log(-math.Cos(t2)/(cosT*cosT)) + B*(2*t-t2-math.Pi))
		} else {
			left = -a * (A*math.Log(-math.Cos(t2)) + B*(math.Pi-t2)) * sign2
		}
	}

	return (right + top + left) / math.Pi
}

// projectedIntegral is the exact integral over α in [0,1] of |J(α)| · chord(α) for the
// chords through a light point at sample (sx, sy). A and B are the Jacobian coefficients
// with B >= 0.
func projectedIntegral(light *lights.RectangularLight, sx, sy, A, B float64) float64 {
	dx := light.ULen * sx
	dy := light.VLen * sy
	return directIntegral(dx, light.ULen-dx, light.VLen-dy, A, B) +
		directIntegral(light.ULen-dx, dx, dy, A, B)
}

// chordIntegral is the closed-form integral over α in [0,1] of the chord length through a
// light point at sample (sx, sy).
func chordIntegral(light *lights.RectangularLight, sx, sy float64) float64 {
	u, v := light.ULen, light.VLen
	a, b := u*sx, v*sy
	rects := [4][2]float64{{a, b}, {u - a, b}, {a, v - b}, {u - a, v - b}}

	sum := 0.0
	for _, r := range rects {
		sum += chordTerm(r[0], r[1]) + chordTerm(r[1], r[0])
	}
	return sum / math.Pi
}

// chordTerm integrates the distance to the far edge n over a corner wedge of an m x n rectangle
func chordTerm(m, n float64) float64 {
	if m == 0 || n == 0 {
		return 0
	}
	ratio := n / m
	return m * math.Log(math.Sqrt(1+ratio*ratio)+ratio)
}
