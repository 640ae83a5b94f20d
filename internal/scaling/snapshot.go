package scaling

import (
	"errors"
	"fmt"

	"seem/pkg/taper"
)

// ErrSnapshotMismatch is returned when a snapshot was taken from a table with
// different species, policy, parameters or grid dimensions.
var ErrSnapshotMismatch = errors.New("scaling: snapshot does not match table")

// TableSnapshot is a serialisable copy of a table's computed cells.
type TableSnapshot struct {
	Species         taper.Species           `json:"species"`
	Policy          string                  `json:"policy"`
	Parameters      taper.ScalingParameters `json:"parameters"`
	DiameterClasses int                     `json:"diameter_classes"`
	HeightClasses   int                     `json:"height_classes"`
	Cells           []CellSnapshot          `json:"cells"`
}

// SnapshotKey identifies a stored table snapshot.
func SnapshotKey(species taper.Species, policy string) string {
	return string(species) + "/" + policy
}

// Key returns SnapshotKey for the snapshot's species and policy.
func (s TableSnapshot) Key() string { return SnapshotKey(s.Species, s.Policy) }

// CellSnapshot is one computed grid point.
type CellSnapshot struct {
	Diameter int `json:"d"`
	Height   int `json:"h"`
	CellValues
}

// Snapshot copies every computed cell in grid order.
func (t *VolumeTable) Snapshot() TableSnapshot {
	snapshot := TableSnapshot{
		Species:         t.species,
		Policy:          t.policy.Name,
		Parameters:      t.params,
		DiameterClasses: t.diameterClasses,
		HeightClasses:   t.heightClasses,
	}
	for d := 0; d < t.diameterClasses; d++ {
		for h := 0; h < t.heightClasses; h++ {
			c := t.index(d, h)
			if t.state[c].Load() != cellComputed {
				continue
			}
			snapshot.Cells = append(snapshot.Cells, CellSnapshot{Diameter: d, Height: h, CellValues: t.storedCell(c)})
		}
	}
	return snapshot
}

// Restore loads cells from a snapshot into uncomputed cells and returns how
// many were restored. Cells already computed are left alone.
func (t *VolumeTable) Restore(snapshot TableSnapshot) (int, error) {
	switch {
	case snapshot.Species != t.species:
		return 0, fmt.Errorf("%w: species %s, table %s", ErrSnapshotMismatch, snapshot.Species, t.species)
	case snapshot.Policy != t.policy.Name:
		return 0, fmt.Errorf("%w: policy %q, table %q", ErrSnapshotMismatch, snapshot.Policy, t.policy.Name)
	case snapshot.Parameters != t.params:
		return 0, fmt.Errorf("%w: scaling parameters differ", ErrSnapshotMismatch)
	case snapshot.DiameterClasses != t.diameterClasses || snapshot.HeightClasses != t.heightClasses:
		return 0, fmt.Errorf("%w: grid %dx%d, table %dx%d", ErrSnapshotMismatch,
			snapshot.DiameterClasses, snapshot.HeightClasses, t.diameterClasses, t.heightClasses)
	}
	for _, cell := range snapshot.Cells {
		if cell.Diameter < 0 || cell.Diameter >= t.diameterClasses || cell.Height < 0 || cell.Height >= t.heightClasses {
			return 0, fmt.Errorf("%w: cell (%d, %d) outside grid", ErrSnapshotMismatch, cell.Diameter, cell.Height)
		}
		if len(cell.LogCubic) != len(cell.LogTopDiameter) || len(cell.LogCubic) > t.maxLogs {
			return 0, fmt.Errorf("%w: cell (%d, %d) has inconsistent log slots", ErrSnapshotMismatch, cell.Diameter, cell.Height)
		}
	}
	restored := 0
	for _, cell := range snapshot.Cells {
		result := BuckingResult{Volume: cell.Volume, UnscaledNeiloid: cell.UnscaledNeiloid}
		for k := range cell.LogCubic {
			result.Logs = append(result.Logs, LogRecord{Cubic: cell.LogCubic[k], TopDiameter: cell.LogTopDiameter[k]})
		}
		if t.publish(t.index(cell.Diameter, cell.Height), result) {
			restored++
		}
	}
	return restored, nil
}
