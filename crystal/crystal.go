package crystal

import (
	"fmt"

	"github.com/ladybuglabs/crystal-go/field"
	"github.com/ladybuglabs/crystal-go/fingerprint"
)

// Axes is the number of projections in a crystal, one per lattice axis.
const Axes = 3

// Crystal is the compact projection of one settled QuorumField: three
// W-bit axis projections. For the default width that is ~3.75KB of payload,
// the documented "4KB crystal".
//
// A crystal is either stored immutably or rebuilt by CrystalMemory.Learn;
// it is never mutated through this package.
type Crystal struct {
	axes [Axes]*fingerprint.Fingerprint
}

// New builds a crystal from three axis projections of equal width.
func New(x, y, z *fingerprint.Fingerprint) (*Crystal, error) {
	if x.Width() != y.Width() || x.Width() != z.Width() {
		return nil, fmt.Errorf("%w: axis widths %d/%d/%d", fingerprint.ErrDimensionMismatch,
			x.Width(), y.Width(), z.Width())
	}
	return &Crystal{axes: [Axes]*fingerprint.Fingerprint{x.Clone(), y.Clone(), z.Clone()}}, nil
}

// FromField compresses a field into a crystal. Per axis, the 25 cells of
// each coordinate plane are XOR-folded into one fingerprint, bound with the
// coordinate's axis code, and the five results XOR-folded again.
//
// Cell values are majority reads; a cell whose three copies are corrupted
// beyond quorum still contributes its per-bit majority, so one bad cell
// degrades the projection instead of failing the compression.
func FromField(f *field.QuorumField) (*Crystal, error) {
	width := f.Width()
	var axes [Axes]*fingerprint.Fingerprint

	for _, axis := range []field.Axis{field.AxisX, field.AxisY, field.AxisZ} {
		projection := fingerprint.Zero(width)
		for coord := 0; coord < field.Size; coord++ {
			fold := fingerprint.Zero(width)
			for a := 0; a < field.Size; a++ {
				for b := 0; b < field.Size; b++ {
					x, y, z := planeCell(axis, coord, a, b)
					v, err := cellValue(f, x, y, z)
					if err != nil {
						return nil, err
					}
					fold, err = fingerprint.Bind(fold, v)
					if err != nil {
						return nil, err
					}
				}
			}
			bound, err := fingerprint.Bind(fold, field.AxisCode(axis, coord, width))
			if err != nil {
				return nil, err
			}
			projection, err = fingerprint.Bind(projection, bound)
			if err != nil {
				return nil, err
			}
		}
		axes[axis] = projection
	}

	return &Crystal{axes: axes}, nil
}

// ExpandApprox reconstructs an approximate field from a crystal. The three
// projections are XOR-combined into a pattern estimate, which is re-injected
// into a fresh field. For injection-consistent fields the round trip is
// exact; for arbitrary settled fields it recovers the dominant attractor
// pattern and discards per-cell residue.
func ExpandApprox(c *Crystal) (*field.QuorumField, error) {
	estimate, err := c.PatternEstimate()
	if err != nil {
		return nil, err
	}
	f, err := field.NewWithWidth(field.DefaultQuorumThreshold, c.Width())
	if err != nil {
		return nil, err
	}
	if err := f.Inject(estimate); err != nil {
		return nil, err
	}
	return f, nil
}

// PatternEstimate returns the XOR of the three projections. For a field that
// was injected with pattern p and not yet perturbed away from consistency,
// this equals p exactly: the position-code terms cancel pairwise across the
// axis folds.
func (c *Crystal) PatternEstimate() (*fingerprint.Fingerprint, error) {
	xy, err := fingerprint.Bind(c.axes[field.AxisX], c.axes[field.AxisY])
	if err != nil {
		return nil, err
	}
	return fingerprint.Bind(xy, c.axes[field.AxisZ])
}

// Axis returns one projection.
func (c *Crystal) Axis(a field.Axis) *fingerprint.Fingerprint {
	return c.axes[a]
}

// Width returns the projection width in bits.
func (c *Crystal) Width() int { return c.axes[0].Width() }

// Equal reports bit-for-bit equality of all three projections.
func (c *Crystal) Equal(o *Crystal) bool {
	for i := range c.axes {
		if !c.axes[i].Equal(o.axes[i]) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (c *Crystal) Clone() *Crystal {
	out := &Crystal{}
	for i := range c.axes {
		out.axes[i] = c.axes[i].Clone()
	}
	return out
}

// Distance returns the total Hamming distance across the three axis
// projections, in [0, 3W]. This is the metric Infer minimizes.
func Distance(a, b *Crystal) (int, error) {
	total := 0
	for i := range a.axes {
		d, err := fingerprint.Distance(a.axes[i], b.axes[i])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// Similarity returns 1 - Distance/3W, in [0, 1].
func Similarity(a, b *Crystal) (float64, error) {
	d, err := Distance(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - float64(d)/float64(Axes*a.Width()), nil
}

// cellValue reads a cell's majority value, falling back to the first copy
// pair vote even when the cell reports unrecoverable.
func cellValue(f *field.QuorumField, x, y, z int) (*fingerprint.Fingerprint, error) {
	v, err := f.Cell(x, y, z).Read()
	if err == nil {
		return v, nil
	}
	// Corrupted input: take the degraded majority rather than aborting the
	// whole compression.
	return f.Cell(x, y, z).Majority(), nil
}

// planeCell maps (plane coordinate, in-plane a, b) to lattice coordinates
// for a given axis.
func planeCell(axis field.Axis, coord, a, b int) (x, y, z int) {
	switch axis {
	case field.AxisX:
		return coord, a, b
	case field.AxisY:
		return a, coord, b
	default:
		return a, b, coord
	}
}
