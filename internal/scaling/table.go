package scaling

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"seem/pkg/taper"
)

const (
	// DiameterClassWidth is the DBH step between grid points (cm).
	DiameterClassWidth = 1.0
	// HeightClassWidth is the height step between grid points (m).
	HeightClassWidth = 1.0
)

// cell states
const (
	cellUncomputed uint32 = iota
	cellFilling
	cellComputed
)

// Per-cell scalar layout: cubic, Scribner and log counts, one slot per grade.
const (
	scalarsPerCell = 3 * GradeCount
	cubicOffset    = 0
	scribnerOffset = GradeCount
	logsOffset     = 2 * GradeCount
)

// VolumeTable caches bucking results on a DBH by height grid for one species
// and log-length policy. Cells are simulated on first access and never
// cleared. Concurrent readers may simulate the same cell; only the first to
// claim it writes the shared buffers, and every reader gets an identical
// result.
type VolumeTable struct {
	species  taper.Species
	provider taper.Provider
	params   taper.ScalingParameters
	policy   BuckingPolicy

	diameterClasses int
	heightClasses   int
	maxLogs         int

	scalars        []float64
	logCubic       []float64
	logTopDiameter []float64
	logCount       []int32
	neiloid        []float64
	state          []atomic.Uint32

	hits     atomic.Int64
	misses   atomic.Int64
	computed atomic.Int64
}

// CellValues are the cached bucking results at one grid point. Log slices
// hold one entry per recorded log, merchantable or not.
type CellValues struct {
	Volume          GradedVolume `json:"volume"`
	LogCubic        []float64    `json:"log_cubic"`
	LogTopDiameter  []float64    `json:"log_top_diameter"`
	UnscaledNeiloid float64      `json:"unscaled_neiloid"`
}

// TableStats reports cache activity.
type TableStats struct {
	Cells    int   `json:"cells"`
	Computed int64 `json:"computed"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// MaxLogsPerTree bounds the number of logs a stem up to the largest table
// height can yield, assuming every log is cut at the 4-saw minimum length.
func MaxLogsPerTree(params taper.ScalingParameters, maximumHeight float64) int {
	shortest := params.MinimumLogLength4Saw + params.TrimAllowance + params.KerfAllowance
	if !(shortest > 0) || maximumHeight <= params.StumpHeight {
		return 0
	}
	return int(math.Ceil((maximumHeight-params.StumpHeight)/shortest)) + 1
}

// NewVolumeTable allocates an empty grid covering [0, MaximumDiameter) by
// [0, MaximumHeight).
func NewVolumeTable(species taper.Species, provider taper.Provider, params taper.ScalingParameters, policy BuckingPolicy) (*VolumeTable, error) {
	if provider == nil {
		return nil, fmt.Errorf("scaling: no taper provider for %s", species)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("scaling: %s: %w", species, err)
	}
	if !(policy.PreferredLogLength > 0) {
		return nil, errors.New("scaling: preferred log length must be positive")
	}
	diameterClasses := int(math.Ceil(params.MaximumDiameter/DiameterClassWidth)) + 1
	heightClasses := int(math.Ceil(params.MaximumHeight/HeightClassWidth)) + 1
	maxLogs := MaxLogsPerTree(params, float64(heightClasses-1)*HeightClassWidth)
	if policy.MaximumLogs <= 0 || policy.MaximumLogs > maxLogs {
		policy.MaximumLogs = maxLogs
	}
	cells := diameterClasses * heightClasses
	return &VolumeTable{
		species:         species,
		provider:        provider,
		params:          params,
		policy:          policy,
		diameterClasses: diameterClasses,
		heightClasses:   heightClasses,
		maxLogs:         policy.MaximumLogs,
		scalars:         make([]float64, cells*scalarsPerCell),
		logCubic:        make([]float64, cells*policy.MaximumLogs),
		logTopDiameter:  make([]float64, cells*policy.MaximumLogs),
		logCount:        make([]int32, cells),
		neiloid:         make([]float64, cells),
		state:           make([]atomic.Uint32, cells),
	}, nil
}

func (t *VolumeTable) Species() taper.Species { return t.species }

func (t *VolumeTable) Policy() BuckingPolicy { return t.policy }

func (t *VolumeTable) Parameters() taper.ScalingParameters { return t.params }

// Dimensions returns the number of diameter and height classes.
func (t *VolumeTable) Dimensions() (diameterClasses, heightClasses int) {
	return t.diameterClasses, t.heightClasses
}

func (t *VolumeTable) Stats() TableStats {
	return TableStats{
		Cells:    len(t.state),
		Computed: t.computed.Load(),
		Hits:     t.hits.Load(),
		Misses:   t.misses.Load(),
	}
}

// Query interpolates per-grade volume and log counts for a tree. Log counts
// stay real valued.
func (t *VolumeTable) Query(dbh, height float64) (GradedVolume, error) {
	if err := t.checkRange("dbh", dbh, t.params.MaximumDiameter); err != nil {
		return GradedVolume{}, err
	}
	if err := t.checkRange("height", height, t.params.MaximumHeight); err != nil {
		return GradedVolume{}, err
	}
	x := dbh / DiameterClassWidth
	y := height / HeightClassWidth
	i, j := int(x), int(y)
	fx, fy := x-float64(i), y-float64(j)

	corners := [4]struct {
		i, j   int
		weight float64
	}{
		{i, j, (1 - fx) * (1 - fy)},
		{i + 1, j, fx * (1 - fy)},
		{i, j + 1, (1 - fx) * fy},
		{i + 1, j + 1, fx * fy},
	}
	var out GradedVolume
	for _, c := range corners {
		if c.weight == 0 {
			continue
		}
		out.AddScaled(c.weight, t.cellVolume(c.i, c.j))
	}
	return out, nil
}

func (t *VolumeTable) checkRange(quantity string, value, limit float64) error {
	if value >= 0 && value < limit {
		return nil
	}
	return &RangeError{Species: t.species, Quantity: quantity, Value: value, Limit: limit}
}

// Cell returns the bucking results at diameter class d and height class h,
// computing them if needed.
func (t *VolumeTable) Cell(d, h int) (CellValues, error) {
	if d < 0 || d >= t.diameterClasses || h < 0 || h >= t.heightClasses {
		return CellValues{}, fmt.Errorf("scaling: %s cell (%d, %d) outside %dx%d grid", t.species, d, h, t.diameterClasses, t.heightClasses)
	}
	c := t.index(d, h)
	if t.state[c].Load() == cellComputed {
		t.hits.Add(1)
		return t.storedCell(c), nil
	}
	t.misses.Add(1)
	result := t.simulateCell(d, h)
	t.publish(c, result)
	values := CellValues{Volume: result.Volume, UnscaledNeiloid: result.UnscaledNeiloid}
	for _, log := range result.Logs {
		values.LogCubic = append(values.LogCubic, log.Cubic)
		values.LogTopDiameter = append(values.LogTopDiameter, log.TopDiameter)
	}
	return values, nil
}

func (t *VolumeTable) index(d, h int) int { return d*t.heightClasses + h }

func (t *VolumeTable) cellVolume(d, h int) GradedVolume {
	c := t.index(d, h)
	if t.state[c].Load() == cellComputed {
		t.hits.Add(1)
		return t.storedVolume(c)
	}
	t.misses.Add(1)
	result := t.simulateCell(d, h)
	t.publish(c, result)
	return result.Volume
}

func (t *VolumeTable) simulateCell(d, h int) BuckingResult {
	return Simulate(float64(d)*DiameterClassWidth, float64(h)*HeightClassWidth, t.provider, t.params, t.policy)
}

// publish writes a result into cell c unless another reader already claimed
// it. Buffers are only read after observing cellComputed.
func (t *VolumeTable) publish(c int, result BuckingResult) bool {
	if !t.state[c].CompareAndSwap(cellUncomputed, cellFilling) {
		return false
	}
	base := c * scalarsPerCell
	copy(t.scalars[base+cubicOffset:base+cubicOffset+GradeCount], result.Volume.Cubic[:])
	copy(t.scalars[base+scribnerOffset:base+scribnerOffset+GradeCount], result.Volume.Scribner[:])
	copy(t.scalars[base+logsOffset:base+logsOffset+GradeCount], result.Volume.Logs[:])
	slots := c * t.maxLogs
	n := min(len(result.Logs), t.maxLogs)
	for k := 0; k < n; k++ {
		t.logCubic[slots+k] = result.Logs[k].Cubic
		t.logTopDiameter[slots+k] = result.Logs[k].TopDiameter
	}
	t.logCount[c] = int32(n)
	t.neiloid[c] = result.UnscaledNeiloid
	t.state[c].Store(cellComputed)
	t.computed.Add(1)
	return true
}

func (t *VolumeTable) storedVolume(c int) GradedVolume {
	var v GradedVolume
	base := c * scalarsPerCell
	copy(v.Cubic[:], t.scalars[base+cubicOffset:])
	copy(v.Scribner[:], t.scalars[base+scribnerOffset:])
	copy(v.Logs[:], t.scalars[base+logsOffset:])
	return v
}

func (t *VolumeTable) storedCell(c int) CellValues {
	slots := c * t.maxLogs
	n := int(t.logCount[c])
	return CellValues{
		Volume:          t.storedVolume(c),
		LogCubic:        append([]float64(nil), t.logCubic[slots:slots+n]...),
		LogTopDiameter:  append([]float64(nil), t.logTopDiameter[slots:slots+n]...),
		UnscaledNeiloid: t.neiloid[c],
	}
}
