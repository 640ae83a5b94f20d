// Package stand aggregates per-tree volume table queries into stand totals.
package stand

import (
	"fmt"
	"sort"
	"strings"

	"seem/pkg/taper"
)

// Unit conversion factors to the metric units volume tables use.
const (
	CentimetresPerInch = 2.54
	MetresPerFoot      = 0.3048
	AcresPerHectare    = 2.47105
)

// Units is the measurement system of a tree list.
type Units int

const (
	// Metric lists DBH in cm, height in m and expansion factors in trees/ha.
	Metric Units = iota
	// English lists DBH in inches, height in feet and expansion factors in
	// trees/acre.
	English
)

func (u Units) String() string {
	if u == English {
		return "english"
	}
	return "metric"
}

// ParseUnits accepts "metric" or "english" (also "si" and "imperial").
func ParseUnits(raw string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "metric", "si":
		return Metric, nil
	case "english", "imperial":
		return English, nil
	}
	return 0, fmt.Errorf("stand: unknown units %q", raw)
}

// Trees is one species' tree list as parallel slices.
type Trees struct {
	Units           Units
	DBH             []float64
	Height          []float64
	ExpansionFactor []float64
}

// Add appends a tree and returns its index.
func (t *Trees) Add(dbh, height, expansionFactor float64) int {
	t.DBH = append(t.DBH, dbh)
	t.Height = append(t.Height, height)
	t.ExpansionFactor = append(t.ExpansionFactor, expansionFactor)
	return len(t.DBH) - 1
}

func (t *Trees) Len() int { return len(t.DBH) }

func (t *Trees) validate() error {
	if len(t.Height) != len(t.DBH) || len(t.ExpansionFactor) != len(t.DBH) {
		return fmt.Errorf("stand: tree list columns differ in length (dbh %d, height %d, expansion %d)",
			len(t.DBH), len(t.Height), len(t.ExpansionFactor))
	}
	return nil
}

// metric returns a tree's DBH (cm), height (m) and expansion factor
// (trees/ha).
func (t *Trees) metric(i int) (dbh, height, expansionFactor float64) {
	dbh, height, expansionFactor = t.DBH[i], t.Height[i], t.ExpansionFactor[i]
	if t.Units == English {
		dbh *= CentimetresPerInch
		height *= MetresPerFoot
		expansionFactor *= AcresPerHectare
	}
	return dbh, height, expansionFactor
}

// Stand holds tree lists keyed by species.
type Stand struct {
	Name  string
	Trees map[taper.Species]*Trees
}

func NewStand(name string) *Stand {
	return &Stand{Name: name, Trees: make(map[taper.Species]*Trees)}
}

// TreesOf returns the species' tree list, creating an empty one in the given
// units if absent.
func (s *Stand) TreesOf(species taper.Species, units Units) *Trees {
	if s.Trees == nil {
		s.Trees = make(map[taper.Species]*Trees)
	}
	trees, ok := s.Trees[species]
	if !ok {
		trees = &Trees{Units: units}
		s.Trees[species] = trees
	}
	return trees
}

// Species lists the stand's species in sorted order.
func (s *Stand) Species() []taper.Species {
	out := make([]taper.Species, 0, len(s.Trees))
	for species := range s.Trees {
		out = append(out, species)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Selection records, per species and tree index, the period a tree is
// harvested in. Zero means the tree is retained.
type Selection map[taper.Species][]int

// Select marks a tree for harvest in a period.
func (s Selection) Select(species taper.Species, tree, period int) {
	periods := s[species]
	for len(periods) <= tree {
		periods = append(periods, 0)
	}
	periods[tree] = period
	s[species] = periods
}
