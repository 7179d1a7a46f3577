package tuning

import (
	"fmt"
	"math"
)

// AttemptPolicy decides how many climb attempts a fit gets from the
// configured base budget and the number of free parameters.
type AttemptPolicy interface {
	Name() string
	Attempts(baseAttempts, freeParams int) int
}

type FixedAttemptPolicy struct{}

func (FixedAttemptPolicy) Name() string { return "fixed" }

func (FixedAttemptPolicy) Attempts(baseAttempts, _ int) int {
	if baseAttempts < 0 {
		return 0
	}
	return baseAttempts
}

// SizeScaledAttemptPolicy grows the budget linearly with the free parameter
// count, so richer parameterisations get more climbing.
type SizeScaledAttemptPolicy struct {
	Scale       float64
	MinAttempts int
	MaxAttempts int
}

func (SizeScaledAttemptPolicy) Name() string { return "size_scaled" }

func (p SizeScaledAttemptPolicy) Attempts(baseAttempts, freeParams int) int {
	if baseAttempts <= 0 {
		return 0
	}
	scale := p.Scale
	if scale <= 0 {
		scale = 1.0
	}
	attempts := int(float64(baseAttempts) * scale * (1.0 + float64(freeParams)/10.0))
	if attempts < p.MinAttempts {
		attempts = p.MinAttempts
	}
	if p.MaxAttempts > 0 && attempts > p.MaxAttempts {
		attempts = p.MaxAttempts
	}
	return attempts
}

// SizePowerAttemptPolicy budgets freeParams raised to Power, saturated at
// 100, on top of a floor of 20 attempts.
type SizePowerAttemptPolicy struct {
	Power float64
}

func (SizePowerAttemptPolicy) Name() string { return "size_power" }

func (p SizePowerAttemptPolicy) Attempts(baseAttempts, freeParams int) int {
	if baseAttempts <= 0 {
		return 0
	}
	power := p.Power
	if power <= 0 {
		power = 1.0
	}
	scaled := satInt(int(math.Round(math.Pow(float64(freeParams), power))), 0, 100)
	return 20 + scaled
}

func AttemptPolicyFromConfig(name string, param float64) (AttemptPolicy, error) {
	switch NormalizeAttemptPolicyName(name) {
	case "fixed":
		return FixedAttemptPolicy{}, nil
	case "size_scaled":
		scale := param
		if scale <= 0 {
			scale = 1.0
		}
		return SizeScaledAttemptPolicy{Scale: scale, MinAttempts: 1}, nil
	case "size_power":
		power := param
		if power <= 0 {
			power = 1.0
		}
		return SizePowerAttemptPolicy{Power: power}, nil
	default:
		return nil, fmt.Errorf("unsupported attempt policy: %s", name)
	}
}

func NormalizeAttemptPolicyName(name string) string {
	switch name {
	case "", "fixed", "const":
		return "fixed"
	case "scaled", "size_scaled":
		return "size_scaled"
	case "power", "size_power":
		return "size_power"
	default:
		return name
	}
}

func satInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
