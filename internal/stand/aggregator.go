package stand

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"seem/internal/scaling"
	"seem/pkg/taper"
)

// BoardFeetPerMBF converts board feet to thousand board feet.
const BoardFeetPerMBF = 1000.0

// TableSource resolves volume tables; *scaling.Catalog implements it.
type TableSource interface {
	Table(species taper.Species, policy scaling.LogLengthPolicy) (*scaling.VolumeTable, bool, error)
}

// StandVolume is per-hectare merchantable volume by grade.
type StandVolume struct {
	Cubic    [scaling.GradeCount]float64 `json:"cubic_m3_per_ha"`
	Scribner [scaling.GradeCount]float64 `json:"scribner_mbf_per_ha"`
	Logs     [scaling.GradeCount]float64 `json:"logs_per_ha"`
	// Trees counts stems per hectare that contributed a query, including
	// unmerchantable ones.
	Trees float64 `json:"trees_per_ha"`
}

func (v StandVolume) TotalCubic() float64 { return floats.Sum(v.Cubic[:]) }

func (v StandVolume) TotalScribner() float64 { return floats.Sum(v.Scribner[:]) }

func (v StandVolume) TotalLogs() float64 { return floats.Sum(v.Logs[:]) }

// Aggregator sums expansion-weighted tree volumes.
type Aggregator struct {
	tables TableSource
}

func NewAggregator(tables TableSource) *Aggregator {
	return &Aggregator{tables: tables}
}

// Standing totals every live tree in the stand.
func (a *Aggregator) Standing(ctx context.Context, stand *Stand, policy scaling.LogLengthPolicy) (StandVolume, error) {
	return a.aggregate(ctx, stand, policy, nil)
}

// Harvest totals the trees selected for harvest in period.
func (a *Aggregator) Harvest(ctx context.Context, stand *Stand, selection Selection, period int, policy scaling.LogLengthPolicy) (StandVolume, error) {
	if period <= 0 {
		return StandVolume{}, fmt.Errorf("stand: harvest period must be positive, got %d", period)
	}
	return a.aggregate(ctx, stand, policy, func(species taper.Species, tree int) bool {
		periods := selection[species]
		return tree < len(periods) && periods[tree] == period
	})
}

// HarvestByPeriod evaluates several harvest periods concurrently.
func (a *Aggregator) HarvestByPeriod(ctx context.Context, stand *Stand, selection Selection, periods []int, policy scaling.LogLengthPolicy) (map[int]StandVolume, error) {
	unique := slices.Compact(slices.Sorted(slices.Values(periods)))

	results := make([]StandVolume, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	for i, period := range unique {
		g.Go(func() error {
			v, err := a.Harvest(gctx, stand, selection, period, policy)
			if err != nil {
				return fmt.Errorf("period %d: %w", period, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[int]StandVolume, len(unique))
	for i, period := range unique {
		out[period] = results[i]
	}
	return out, nil
}

func (a *Aggregator) aggregate(ctx context.Context, stand *Stand, policy scaling.LogLengthPolicy, include func(taper.Species, int) bool) (StandVolume, error) {
	if stand == nil {
		return StandVolume{}, errors.New("stand: nil stand")
	}
	var total scaling.GradedVolume
	var stems float64
	for _, species := range stand.Species() {
		if err := ctx.Err(); err != nil {
			return StandVolume{}, err
		}
		trees := stand.Trees[species]
		if trees == nil {
			continue
		}
		if err := trees.validate(); err != nil {
			return StandVolume{}, fmt.Errorf("stand %s: %s: %w", stand.Name, species, err)
		}
		table, ok, err := a.tables.Table(species, policy)
		if err != nil {
			return StandVolume{}, fmt.Errorf("stand %s: %s: %w", stand.Name, species, err)
		}
		for i := 0; i < trees.Len(); i++ {
			dbh, height, expansionFactor := trees.metric(i)
			if !(expansionFactor > 0) {
				continue
			}
			if include != nil && !include(species, i) {
				continue
			}
			stems += expansionFactor
			if !ok {
				continue
			}
			v, err := table.Query(dbh, height)
			if err != nil {
				return StandVolume{}, fmt.Errorf("stand %s: %s tree %d: %w", stand.Name, species, i, err)
			}
			total.AddScaled(expansionFactor, v)
		}
	}
	out := StandVolume{Cubic: total.Cubic, Logs: total.Logs, Trees: stems}
	floats.ScaleTo(out.Scribner[:], 1/BoardFeetPerMBF, total.Scribner[:])
	return out, nil
}
