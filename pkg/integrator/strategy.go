package integrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/df07/go-photon-planes/pkg/planes"
)

var (
	// ErrUnknownStrategy is returned for strategy names that are not recognised
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrInvalidSMISSamples is returned when an SMIS strategy gets fewer than one sample
	ErrInvalidSMISSamples = errors.New("SMIS sample count must be positive")
)

// StrategyKind enumerates the ways plane contributions are combined
type StrategyKind int

const (
	StrategyUV StrategyKind = iota
	StrategyVT
	StrategyUT
	StrategyUAlpha
	StrategyAverage
	StrategyDiscreteMIS
	StrategyContinuousMIS
	StrategySMISAll
	StrategySMISJacobian
	StrategyProxySample
)

var strategyNames = map[StrategyKind]string{
	StrategyUV:            "uv",
	StrategyVT:            "vt",
	StrategyUT:            "ut",
	StrategyUAlpha:        "ualpha",
	StrategyAverage:       "average",
	StrategyDiscreteMIS:   "discrete_mis",
	StrategyContinuousMIS: "cmis",
	StrategySMISAll:       "smis_all",
	StrategySMISJacobian:  "smis_jacobian",
	StrategyProxySample:   "proxy_sample",
}

// Strategy selects a combination technique. Samples is only used by the SMIS kinds.
type Strategy struct {
	Kind    StrategyKind
	Samples int
}

// ParseStrategy resolves a strategy name. samples is the SMIS sample count.
func ParseStrategy(name string, samples int) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "dmis":
		key = "discrete_mis"
	case "proxy":
		key = "proxy_sample"
	}

	for kind, kindName := range strategyNames {
		if kindName != key {
			continue
		}
		s := Strategy{Kind: kind}
		if kind.isSMIS() {
			if samples <= 0 {
				return Strategy{}, fmt.Errorf("%s with %d samples: %w", kindName, samples, ErrInvalidSMISSamples)
			}
			s.Samples = samples
		}
		return s, nil
	}
	return Strategy{}, fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
}

// Validate checks the invariants ParseStrategy enforces for hand-built strategies
func (s Strategy) Validate() error {
	if _, ok := strategyNames[s.Kind]; !ok {
		return fmt.Errorf("kind %d: %w", s.Kind, ErrUnknownStrategy)
	}
	if s.Kind.isSMIS() && s.Samples <= 0 {
		return fmt.Errorf("%s with %d samples: %w", s, s.Samples, ErrInvalidSMISSamples)
	}
	return nil
}

// String implements fmt.Stringer
func (s Strategy) String() string {
	name, ok := strategyNames[s.Kind]
	if !ok {
		return fmt.Sprintf("strategy(%d)", s.Kind)
	}
	if s.Kind.isSMIS() {
		return fmt.Sprintf("%s(%d)", name, s.Samples)
	}
	return name
}

// PlaneVariants lists the plane variants generated for every draw
func (s Strategy) PlaneVariants() []planes.Variant {
	switch s.Kind {
	case StrategyUV:
		return []planes.Variant{planes.VariantUV}
	case StrategyVT:
		return []planes.Variant{planes.VariantVT}
	case StrategyUT:
		return []planes.Variant{planes.VariantUT}
	case StrategyAverage, StrategyDiscreteMIS:
		return []planes.Variant{planes.VariantUV, planes.VariantVT, planes.VariantUT}
	default:
		return []planes.Variant{planes.VariantUAlphaT}
	}
}

func (k StrategyKind) isSMIS() bool {
	return k == StrategySMISAll || k == StrategySMISJacobian
}
