package taper

import "math"

// BreastHeight is the height, in metres, at which DBH is measured.
const BreastHeight = 1.37

// Provider supplies a species' stem profile. Implementations must be pure:
// the volume table caches results on the assumption that repeated calls with
// the same arguments return the same values.
type Provider interface {
	// DiameterInsideBark returns diameter inside bark in cm at
	// evaluationHeight (m) for a tree of the given DBH (cm) and height (m).
	DiameterInsideBark(dbh, height, evaluationHeight float64) float64
	// NeiloidHeight returns the height (m) below which butt swell makes the
	// taper equation unreliable.
	NeiloidHeight(dbh, height float64) float64
}

// KozakTaper is the Kozak (2004) variable-exponent taper form
//
//	dib = a0 D^a1 H^a2 X^(b1 Z^4 + b2/e^(D/H) + b3 X^0.1 + b4/D + b5 H^Q + b6 X)
//
// with Z = h/H, Q = 1 - Z^(1/3) and X = Q / (1 - (1.37/H)^(1/3)), paired with
// a linear neiloid height estimator capped at a fraction of tree height.
type KozakTaper struct {
	A0, A1, A2             float64
	B1, B2, B3, B4, B5, B6 float64

	NeiloidIntercept   float64 // m
	NeiloidSlope       float64 // m per cm of DBH
	NeiloidMaxFraction float64 // of tree height
}

var _ Provider = KozakTaper{}

// DiameterInsideBark implements Provider. Heights at or above the tip, trees
// shorter than breast height, and non-finite intermediate results all
// evaluate to zero.
func (k KozakTaper) DiameterInsideBark(dbh, height, evaluationHeight float64) float64 {
	if dbh <= 0 || height <= BreastHeight || evaluationHeight >= height {
		return 0
	}
	if evaluationHeight < 0 {
		evaluationHeight = 0
	}
	z := evaluationHeight / height
	q := 1 - math.Cbrt(z)
	x := q / (1 - math.Cbrt(BreastHeight/height))
	exponent := k.B1*math.Pow(z, 4) +
		k.B2/math.Exp(dbh/height) +
		k.B3*math.Pow(x, 0.1) +
		k.B4/dbh +
		k.B5*math.Pow(height, q) +
		k.B6*x
	dib := k.A0 * math.Pow(dbh, k.A1) * math.Pow(height, k.A2) * math.Pow(x, exponent)
	if math.IsNaN(dib) || math.IsInf(dib, 0) || dib < 0 {
		return 0
	}
	return dib
}

// NeiloidHeight implements Provider.
func (k KozakTaper) NeiloidHeight(dbh, height float64) float64 {
	h := k.NeiloidIntercept + k.NeiloidSlope*dbh
	if limit := k.NeiloidMaxFraction * height; h > limit {
		h = limit
	}
	if h < 0 {
		return 0
	}
	return h
}

var defaultProviders = map[Species]Provider{
	DouglasFir: KozakTaper{
		A0: 0.88, A1: 0.99, A2: 0.02,
		B1: 0.45, B2: -0.55, B3: 0.50, B4: 1.60, B5: 0.035, B6: -0.20,
		NeiloidIntercept: 0.5, NeiloidSlope: 0.025, NeiloidMaxFraction: 0.15,
	},
	WesternHemlock: KozakTaper{
		A0: 0.92, A1: 1.00, A2: 0.01,
		B1: 0.40, B2: -0.50, B3: 0.52, B4: 1.40, B5: 0.032, B6: -0.22,
		NeiloidIntercept: 0.45, NeiloidSlope: 0.022, NeiloidMaxFraction: 0.15,
	},
	WesternRedcedar: KozakTaper{
		A0: 0.88, A1: 0.99, A2: 0.03,
		B1: 0.55, B2: -0.45, B3: 0.55, B4: 2.00, B5: 0.045, B6: -0.18,
		NeiloidIntercept: 0.6, NeiloidSlope: 0.03, NeiloidMaxFraction: 0.15,
	},
	RedAlder: KozakTaper{
		A0: 0.94, A1: 0.98, A2: 0.01,
		B1: 0.35, B2: -0.60, B3: 0.48, B4: 1.20, B5: 0.030, B6: -0.22,
		NeiloidIntercept: 0.4, NeiloidSlope: 0.02, NeiloidMaxFraction: 0.15,
	},
}

// Providers returns the default species dispatch table. Species without an
// entry (bigleaf maple, Pacific madrone) are known but unmerchantable.
func Providers() map[Species]Provider {
	out := make(map[Species]Provider, len(defaultProviders))
	for s, p := range defaultProviders {
		out[s] = p
	}
	return out
}
