package field

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ladybuglabs/crystal-go/fingerprint"
)

const (
	// Size is the lattice edge length.
	Size = 5

	// Cells is the total cell count of a field.
	Cells = Size * Size * Size

	// latticeNeighbors is the neighbor count of an interior cell.
	latticeNeighbors = 6

	// DefaultQuorumThreshold requires 4 of 6 neighbors to agree before a
	// cell update is accepted.
	DefaultQuorumThreshold = 4
)

// QuorumField is a 5×5×5 lattice of QuorumCells holding one memory's
// redundant representation. A field is created per memory, populated by
// Inject, driven toward an attractor by Settle, then typically consumed by
// the crystal codec.
type QuorumField struct {
	width           int
	threshold       int
	repairThreshold int
	cells           [Cells]*QuorumCell
}

// New creates a fully populated field (all cells zero) at the default
// fingerprint width. The quorum threshold is the number of neighbors that
// must not lose agreement for a cell update to be accepted during settling.
func New(quorumThreshold int) (*QuorumField, error) {
	return NewWithWidth(quorumThreshold, fingerprint.DefaultWidth)
}

// NewWithWidth is New with an explicit fingerprint width.
func NewWithWidth(quorumThreshold, width int) (*QuorumField, error) {
	if quorumThreshold < 1 || quorumThreshold > latticeNeighbors {
		return nil, fmt.Errorf("field: quorum threshold %d out of range [1,%d]", quorumThreshold, latticeNeighbors)
	}
	if width <= 0 {
		return nil, fmt.Errorf("field: invalid width %d", width)
	}
	f := &QuorumField{
		width:           width,
		threshold:       quorumThreshold,
		repairThreshold: scaledRepairThreshold(width),
	}
	for i := range f.cells {
		f.cells[i] = NewCell(width, f.repairThreshold)
	}
	return f, nil
}

// Width returns the fingerprint width in bits.
func (f *QuorumField) Width() int { return f.width }

// Threshold returns the quorum threshold.
func (f *QuorumField) Threshold() int { return f.threshold }

// Cell returns the cell at lattice position (x, y, z).
func (f *QuorumField) Cell(x, y, z int) *QuorumCell {
	return f.cells[cellIndex(x, y, z)]
}

// Clone returns a deep copy of the field.
func (f *QuorumField) Clone() *QuorumField {
	out := &QuorumField{
		width:           f.width,
		threshold:       f.threshold,
		repairThreshold: f.repairThreshold,
	}
	for i, c := range f.cells {
		out.cells[i] = c.clone()
	}
	return out
}

// Inject seeds every cell with bind(pattern, positionCode), so each cell's
// content is distinguishable by position and the original pattern is
// recoverable by unbinding. Injecting again replaces the field contents.
func (f *QuorumField) Inject(pattern *fingerprint.Fingerprint) error {
	if pattern.Width() != f.width {
		return fmt.Errorf("%w: field is %d bits, got %d", fingerprint.ErrDimensionMismatch, f.width, pattern.Width())
	}
	for x := 0; x < Size; x++ {
		for y := 0; y < Size; y++ {
			for z := 0; z < Size; z++ {
				seeded, err := fingerprint.Bind(pattern, PositionCode(x, y, z, f.width))
				if err != nil {
					return err
				}
				if err := f.cells[cellIndex(x, y, z)].Write(seeded); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Settle runs synchronous relaxation sweeps until the field reaches a fixed
// point or the step budget runs out. Each sweep computes, per cell, the
// bundle of the cell's value and its lattice neighbors; the cell adopts the
// bundle only if at least threshold neighbors do not lose agreement (the
// candidate is no farther from them than the current value). The boundary is
// clamped, and the threshold is capped at a boundary cell's neighbor count.
//
// Returns the number of sweeps taken and whether the field converged.
// Reaching the budget without convergence is a reported condition, not an
// error; re-running with a larger budget is a caller decision. Results are a
// pure function of the initial field state and maxSteps.
func (f *QuorumField) Settle(maxSteps int) (int, bool) {
	if maxSteps <= 0 {
		return 0, false
	}

	cur := f.representatives()
	next := make([]*fingerprint.Fingerprint, Cells)

	for step := 1; step <= maxSteps; step++ {
		var changed atomic.Bool
		f.sweep(cur, next, &changed)
		if !changed.Load() {
			f.writeBack(cur)
			return step, true
		}
		cur, next = next, cur
	}
	f.writeBack(cur)
	return maxSteps, false
}

// sweep computes one synchronous update of all cells from the cur snapshot
// into next. Cells are partitioned across workers; each worker writes only
// its own slots, so the sweep is deterministic.
func (f *QuorumField) sweep(cur, next []*fingerprint.Fingerprint, changed *atomic.Bool) {
	workers := runtime.NumCPU()
	if workers > Cells {
		workers = Cells
	}
	chunk := (Cells + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > Cells {
			hi = Cells
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if f.updateCell(i, cur, next) {
					changed.Store(true)
				}
			}
		}(lo, hi)
	}
	wg.Wait()
}

// updateCell computes cell i's next value from the cur snapshot. Reports
// whether the value changed.
func (f *QuorumField) updateCell(i int, cur, next []*fingerprint.Fingerprint) bool {
	nbrs := neighborIndices(i)

	items := make([]*fingerprint.Fingerprint, 0, latticeNeighbors+1)
	items = append(items, cur[i])
	for _, n := range nbrs {
		items = append(items, cur[n])
	}
	candidate, _ := fingerprint.Bundle(items)

	if candidate.Equal(cur[i]) {
		next[i] = cur[i]
		return false
	}

	// Quorum gate: the update must not reduce agreement with at least
	// threshold neighbors.
	need := f.threshold
	if need > len(nbrs) {
		need = len(nbrs)
	}
	agree := 0
	for _, n := range nbrs {
		dNew, _ := fingerprint.Distance(candidate, cur[n])
		dOld, _ := fingerprint.Distance(cur[i], cur[n])
		if dNew <= dOld {
			agree++
		}
	}
	if agree < need {
		next[i] = cur[i]
		return false
	}
	next[i] = candidate
	return true
}

// representatives snapshots every cell's majority value. Cells without a
// quorum still contribute their per-bit majority: bounded corruption is
// invisible and unbounded corruption degrades gracefully instead of halting
// the sweep.
func (f *QuorumField) representatives() []*fingerprint.Fingerprint {
	out := make([]*fingerprint.Fingerprint, Cells)
	for i, c := range f.cells {
		out[i] = c.Majority()
	}
	return out
}

// writeBack stores the settled values with full redundancy, which also
// repairs any copy corruption picked up before settling.
func (f *QuorumField) writeBack(values []*fingerprint.Fingerprint) {
	for i, v := range values {
		f.cells[i].Write(v)
	}
}

func cellIndex(x, y, z int) int {
	return (x*Size+y)*Size + z
}

func cellCoords(i int) (x, y, z int) {
	z = i % Size
	y = (i / Size) % Size
	x = i / (Size * Size)
	return
}

// neighborIndices returns the face-adjacent neighbors of cell i. The lattice
// is clamped: boundary cells have fewer than 6 neighbors.
func neighborIndices(i int) []int {
	x, y, z := cellCoords(i)
	out := make([]int, 0, latticeNeighbors)
	if x > 0 {
		out = append(out, cellIndex(x-1, y, z))
	}
	if x < Size-1 {
		out = append(out, cellIndex(x+1, y, z))
	}
	if y > 0 {
		out = append(out, cellIndex(x, y-1, z))
	}
	if y < Size-1 {
		out = append(out, cellIndex(x, y+1, z))
	}
	if z > 0 {
		out = append(out, cellIndex(x, y, z-1))
	}
	if z < Size-1 {
		out = append(out, cellIndex(x, y, z+1))
	}
	return out
}
