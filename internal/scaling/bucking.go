package scaling

import (
	"math"

	"seem/pkg/taper"
)

const (
	// heightSearchStep is the step of the linear scan for the highest point
	// still meeting the 4-saw minimum scaling diameter.
	heightSearchStep = 0.1 // m
	// taperSegmentLength is the fixed segment length high-taper logs are
	// split on.
	taperSegmentLength = 2.4384 // m, 8 ft
	// highTaperRatio is the bottom to top radius ratio above which a long
	// enough log is scaled as two segments.
	highTaperRatio = 1.5
)

// BuckingPolicy controls how a stem is cut.
type BuckingPolicy struct {
	Name string
	// PreferredLogLength is the scaled length logs are cut to when the stem
	// allows, excluding trim.
	PreferredLogLength float64
	Scribner           ScribnerMode
	// MaximumLogs caps the number of logs cut per tree; zero means
	// unlimited. Bucking stops at the cap, so a cap below the number of logs
	// the stem yields leaves the upper stem unscaled and out of every total.
	// Volume tables replace zero or oversized caps with their slot count.
	MaximumLogs int
}

// LogRecord describes one log cut during simulation, merchantable or not.
// Diameters are scaling diameters: twice the radius rounded to whole cm.
type LogRecord struct {
	BottomHeight   float64 `json:"bottom_height"`
	TopHeight      float64 `json:"top_height"`
	Length         float64 `json:"length"`
	BottomDiameter float64 `json:"bottom_diameter"`
	TopDiameter    float64 `json:"top_diameter"`
	Cubic          float64 `json:"cubic"`
	Scribner       float64 `json:"scribner"`
	Grade          Grade   `json:"grade"`
}

// BuckingResult is the outcome of simulating one tree.
type BuckingResult struct {
	Volume GradedVolume `json:"volume"`
	Logs   []LogRecord  `json:"logs,omitempty"`
	// UnscaledNeiloid is butt swell volume (m³) excluded from every log.
	UnscaledNeiloid float64 `json:"unscaled_neiloid"`
}

// Simulate bucks a tree of the given DBH (cm) and height (m) into logs,
// grades them and accumulates per-grade cubic and Scribner volume.
func Simulate(dbh, height float64, provider taper.Provider, params taper.ScalingParameters, policy BuckingPolicy) BuckingResult {
	var result BuckingResult
	if !(dbh >= params.MinimumScalingDiameter4Saw) || !(height >= params.MinimumLogLength4Saw+params.StumpHeight) {
		return result
	}
	b := bucker{dbh: dbh, height: height, provider: provider, params: params, policy: policy}
	b.run(&result)
	return result
}

type bucker struct {
	dbh, height float64
	provider    taper.Provider
	params      taper.ScalingParameters
	policy      BuckingPolicy
}

// dib clamps provider output; degenerate low height to diameter ratio trees
// can return negative or non-finite values.
func (b *bucker) dib(h float64) float64 {
	d := b.provider.DiameterInsideBark(b.dbh, b.height, h)
	if !(d > 0) || math.IsInf(d, 1) {
		return 0
	}
	return d
}

func (b *bucker) run(result *BuckingResult) {
	p := b.params
	neiloidHeight := b.provider.NeiloidHeight(b.dbh, b.height)
	bottom := p.StumpHeight
	for {
		if b.policy.MaximumLogs > 0 && len(result.Logs) >= b.policy.MaximumLogs {
			return
		}
		minimumTop := bottom + p.MinimumLogLength4Saw + p.TrimAllowance
		if minimumTop > b.height {
			return
		}
		top := math.Min(bottom+b.policy.PreferredLogLength+p.TrimAllowance, b.height)
		if top < minimumTop {
			top = minimumTop
		}
		topDib := b.dib(top)
		if topDib < p.MinimumScalingDiameter4Saw {
			var ok bool
			top, topDib, ok = b.searchTop(minimumTop, top)
			if !ok {
				return
			}
		}

		bottomDib := b.dib(bottom)
		if bottom < neiloidHeight {
			bottomDib = b.projectThroughNeiloid(bottom, top, topDib, bottomDib, neiloidHeight, result)
		}

		log := b.scale(bottom, top, bottomDib, topDib)
		if log.Grade != NonMerchantable {
			result.Volume.Cubic[log.Grade] += log.Cubic
			result.Volume.Scribner[log.Grade] += log.Scribner
			result.Volume.Logs[log.Grade]++
		}
		result.Logs = append(result.Logs, log)

		bottom = top + p.KerfAllowance
	}
}

// searchTop scans upward from the minimum-length top toward the preferred
// top for the highest point still meeting the 4-saw minimum scaling
// diameter. It fails if the minimum-length log is already too small.
func (b *bucker) searchTop(minimumTop, preferredTop float64) (float64, float64, bool) {
	limit := b.params.MinimumScalingDiameter4Saw
	topDib := b.dib(minimumTop)
	if topDib < limit {
		return 0, 0, false
	}
	top := minimumTop
	for h := minimumTop + heightSearchStep; h < preferredTop; h += heightSearchStep {
		d := b.dib(h)
		if d < limit {
			break
		}
		top, topDib = h, d
	}
	return top, topDib, true
}

// projectThroughNeiloid replaces a butt log's bottom diameter with a linear
// projection from a caliper point at (or just below) the neiloid height,
// using the taper rate between the caliper point and the log top. The
// projection is rejected when it exceeds the direct taper evaluation, which
// happens for trees with unrealistically low height to diameter ratios.
// Butt swell is only excluded when the projection grows outward from the
// caliper point; a flat or inverted profile above it has none to exclude.
func (b *bucker) projectThroughNeiloid(bottom, top, topDib, directDib, neiloidHeight float64, result *BuckingResult) float64 {
	caliperHeight := math.Min(neiloidHeight, top-heightSearchStep)
	if caliperHeight <= bottom {
		return directDib
	}
	caliperDib := b.dib(caliperHeight)
	taperRate := (caliperDib - topDib) / (top - caliperHeight)
	if taperRate < 0 {
		taperRate = 0
	}
	projected := caliperDib + taperRate*(caliperHeight-bottom)
	if projected > directDib {
		return directDib
	}
	if projected > caliperDib {
		result.UnscaledNeiloid += excludedNeiloidVolume(caliperHeight-bottom, directDib, projected, caliperDib)
	}
	return projected
}

// excludedNeiloidVolume is the butt swell between the neiloid frustum the
// stem actually follows and the cone frustum scaled in its place. Diameters
// are in cm, length in m, volume in m³.
func excludedNeiloidVolume(length, swellDib, projectedDib, caliperDib float64) float64 {
	swell := crossSection(swellDib)
	projected := crossSection(projectedDib)
	caliper := crossSection(caliperDib)
	neiloid := 0.25 * length * (swell + math.Cbrt(swell*swell*caliper) + math.Cbrt(swell*caliper*caliper) + caliper)
	cone := length / 3 * (projected + math.Sqrt(projected*caliper) + caliper)
	if v := neiloid - cone; v > 0 {
		return v
	}
	return 0
}

func (b *bucker) scale(bottom, top, bottomDib, topDib float64) LogRecord {
	p := b.params
	length := top - bottom - p.TrimAllowance
	bottomDiameter := scalingDiameter(bottomDib)
	topDiameter := scalingDiameter(topDib)
	log := LogRecord{
		BottomHeight:   bottom,
		TopHeight:      top,
		Length:         length,
		BottomDiameter: bottomDiameter,
		TopDiameter:    topDiameter,
	}

	type segment struct{ bottomDiameter, topDiameter, length float64 }
	segments := []segment{{bottomDiameter, topDiameter, length}}
	if bottomDiameter > highTaperRatio*topDiameter && length >= 2*taperSegmentLength {
		split := math.Floor(length/taperSegmentLength) / 2
		splitHeight := bottom + taperSegmentLength*math.Floor(split)
		splitDiameter := scalingDiameter(b.dib(splitHeight))
		segments = []segment{
			{bottomDiameter, splitDiameter, splitHeight - bottom},
			{splitDiameter, topDiameter, bottom + length - splitHeight},
		}
	}
	for _, s := range segments {
		cubic := roundCubic(smalian(s.bottomDiameter, s.topDiameter, s.length))
		log.Cubic += cubic
		switch b.policy.Scribner {
		case ScribnerRecovery:
			log.Scribner += RecoveredBoardFeet(s.topDiameter, cubic)
		default:
			log.Scribner += ScribnerLongLogVolume(s.topDiameter, s.length)
		}
	}

	switch {
	case topDiameter >= p.MinimumScalingDiameter2Saw && length >= p.MinimumLogLength2Saw && log.Scribner >= p.MinimumScribner2Saw:
		log.Grade = Grade2Saw
	case topDiameter >= p.MinimumScalingDiameter3Saw && length >= p.MinimumLogLength3Saw && log.Scribner >= p.MinimumScribner3Saw:
		log.Grade = Grade3Saw
	case log.Scribner >= p.MinimumScribner4Saw:
		log.Grade = Grade4Saw
	default:
		log.Grade = NonMerchantable
	}
	return log
}

// scalingDiameter rounds the radius of a diameter (cm) to whole cm.
func scalingDiameter(dib float64) float64 {
	return 2 * math.Round(0.5*dib)
}

// smalian is the Smalian frustum volume (m³) from end diameters (cm) and
// length (m).
func smalian(bottomDiameter, topDiameter, length float64) float64 {
	return 0.5 * length * (crossSection(bottomDiameter) + crossSection(topDiameter))
}

// crossSection returns the area (m²) of a circle of the given diameter (cm).
func crossSection(diameter float64) float64 {
	radius := 0.005 * diameter
	return math.Pi * radius * radius
}

func roundCubic(v float64) float64 {
	return math.Round(1000*v) / 1000
}
