package taper

import (
	"errors"
	"fmt"
)

// ScalingParameters are the per-species limits used to buck and grade logs.
// Lengths and heights are in metres, diameters in cm, Scribner volumes in
// board feet.
type ScalingParameters struct {
	MaximumDiameter float64 `toml:"maximum_diameter" yaml:"maximum_diameter" json:"maximum_diameter"`
	MaximumHeight   float64 `toml:"maximum_height" yaml:"maximum_height" json:"maximum_height"`

	MinimumLogLength2Saw float64 `toml:"minimum_log_length_2s" yaml:"minimum_log_length_2s" json:"minimum_log_length_2s"`
	MinimumLogLength3Saw float64 `toml:"minimum_log_length_3s" yaml:"minimum_log_length_3s" json:"minimum_log_length_3s"`
	MinimumLogLength4Saw float64 `toml:"minimum_log_length_4s" yaml:"minimum_log_length_4s" json:"minimum_log_length_4s"`

	MinimumScalingDiameter2Saw float64 `toml:"minimum_scaling_diameter_2s" yaml:"minimum_scaling_diameter_2s" json:"minimum_scaling_diameter_2s"`
	MinimumScalingDiameter3Saw float64 `toml:"minimum_scaling_diameter_3s" yaml:"minimum_scaling_diameter_3s" json:"minimum_scaling_diameter_3s"`
	MinimumScalingDiameter4Saw float64 `toml:"minimum_scaling_diameter_4s" yaml:"minimum_scaling_diameter_4s" json:"minimum_scaling_diameter_4s"`

	MinimumScribner2Saw float64 `toml:"minimum_scribner_2s" yaml:"minimum_scribner_2s" json:"minimum_scribner_2s"`
	MinimumScribner3Saw float64 `toml:"minimum_scribner_3s" yaml:"minimum_scribner_3s" json:"minimum_scribner_3s"`
	MinimumScribner4Saw float64 `toml:"minimum_scribner_4s" yaml:"minimum_scribner_4s" json:"minimum_scribner_4s"`

	StumpHeight   float64 `toml:"stump_height" yaml:"stump_height" json:"stump_height"`
	TrimAllowance float64 `toml:"trim_allowance" yaml:"trim_allowance" json:"trim_allowance"`
	KerfAllowance float64 `toml:"kerf_allowance" yaml:"kerf_allowance" json:"kerf_allowance"`
}

// ErrInvalidParameters is wrapped by ScalingParameters.Validate failures.
var ErrInvalidParameters = errors.New("taper: invalid scaling parameters")

var commonScaling = ScalingParameters{
	MinimumLogLength2Saw:       3.66,
	MinimumLogLength3Saw:       3.66,
	MinimumLogLength4Saw:       2.44,
	MinimumScalingDiameter2Saw: 30.48,
	MinimumScalingDiameter3Saw: 15.24,
	MinimumScalingDiameter4Saw: 12.7,
	MinimumScribner2Saw:        50,
	MinimumScribner3Saw:        10,
	MinimumScribner4Saw:        5,
	StumpHeight:                0.15,
	TrimAllowance:              0.15,
	KerfAllowance:              0.01,
}

var tableLimits = map[Species][2]float64{
	DouglasFir:      {150, 80},
	WesternHemlock:  {120, 70},
	WesternRedcedar: {150, 70},
	RedAlder:        {80, 45},
	BigleafMaple:    {100, 40},
	PacificMadrone:  {80, 35},
}

// DefaultScalingParameters returns the default limits for a species. Unknown
// species receive the Douglas-fir table limits.
func DefaultScalingParameters(species Species) ScalingParameters {
	p := commonScaling
	limits, ok := tableLimits[species]
	if !ok {
		limits = tableLimits[DouglasFir]
	}
	p.MaximumDiameter = limits[0]
	p.MaximumHeight = limits[1]
	return p
}

// Validate reports limits that cannot describe a usable volume table.
func (p ScalingParameters) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"maximum_diameter", p.MaximumDiameter},
		{"maximum_height", p.MaximumHeight},
		{"minimum_log_length_2s", p.MinimumLogLength2Saw},
		{"minimum_log_length_3s", p.MinimumLogLength3Saw},
		{"minimum_log_length_4s", p.MinimumLogLength4Saw},
		{"minimum_scaling_diameter_2s", p.MinimumScalingDiameter2Saw},
		{"minimum_scaling_diameter_3s", p.MinimumScalingDiameter3Saw},
		{"minimum_scaling_diameter_4s", p.MinimumScalingDiameter4Saw},
	}
	for _, f := range positive {
		if !(f.value > 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidParameters, f.name, f.value)
		}
	}
	nonNegative := []struct {
		name  string
		value float64
	}{
		{"minimum_scribner_2s", p.MinimumScribner2Saw},
		{"minimum_scribner_3s", p.MinimumScribner3Saw},
		{"minimum_scribner_4s", p.MinimumScribner4Saw},
		{"stump_height", p.StumpHeight},
		{"trim_allowance", p.TrimAllowance},
		{"kerf_allowance", p.KerfAllowance},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidParameters, f.name, f.value)
		}
	}
	if p.MinimumScalingDiameter4Saw > p.MinimumScalingDiameter3Saw || p.MinimumScalingDiameter3Saw > p.MinimumScalingDiameter2Saw {
		return fmt.Errorf("%w: minimum scaling diameters must not decrease from 4-saw to 2-saw", ErrInvalidParameters)
	}
	if p.MinimumLogLength4Saw > p.MinimumLogLength3Saw || p.MinimumLogLength3Saw > p.MinimumLogLength2Saw {
		return fmt.Errorf("%w: minimum log lengths must not decrease from 4-saw to 2-saw", ErrInvalidParameters)
	}
	if p.MaximumDiameter <= p.MinimumScalingDiameter4Saw {
		return fmt.Errorf("%w: maximum_diameter %v does not exceed the 4-saw minimum scaling diameter", ErrInvalidParameters, p.MaximumDiameter)
	}
	if p.MaximumHeight <= p.StumpHeight+p.MinimumLogLength4Saw {
		return fmt.Errorf("%w: maximum_height %v leaves no room for a 4-saw log", ErrInvalidParameters, p.MaximumHeight)
	}
	return nil
}
