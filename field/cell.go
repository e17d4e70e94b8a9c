package field

import (
	"errors"
	"fmt"

	"github.com/ladybuglabs/crystal-go/fingerprint"
)

// cellCopies is the redundancy factor of a QuorumCell.
const cellCopies = 3

// DefaultRepairThreshold is the per-copy corruption budget in bits, for the
// default 10,000-bit width. Two copies within this Hamming distance of each
// other are considered to agree.
const DefaultRepairThreshold = 100

// ErrCellUnrecoverable is returned when all three copies of a cell disagree
// pairwise beyond the repair threshold. The surrounding field stays usable;
// only this cell's contribution is treated as corrupted input.
var ErrCellUnrecoverable = errors.New("field: cell copies disagree beyond repair threshold")

// QuorumCell holds three redundant copies of one fingerprint. While at most
// one copy is corrupted, Read reconstructs the written value exactly via a
// per-bit 2-of-3 majority vote.
type QuorumCell struct {
	copies          [cellCopies]*fingerprint.Fingerprint
	width           int
	repairThreshold int
}

// NewCell creates a cell initialized to the zero fingerprint.
func NewCell(width, repairThreshold int) *QuorumCell {
	if width <= 0 {
		width = fingerprint.DefaultWidth
	}
	if repairThreshold <= 0 {
		repairThreshold = scaledRepairThreshold(width)
	}
	c := &QuorumCell{width: width, repairThreshold: repairThreshold}
	for i := range c.copies {
		c.copies[i] = fingerprint.Zero(width)
	}
	return c
}

// Write sets all three copies to fp (full redundancy write).
func (c *QuorumCell) Write(fp *fingerprint.Fingerprint) error {
	if fp.Width() != c.width {
		return fmt.Errorf("%w: cell is %d bits, got %d", fingerprint.ErrDimensionMismatch, c.width, fp.Width())
	}
	for i := range c.copies {
		c.copies[i] = fp.Clone()
	}
	return nil
}

// Read reconstructs the cell value by majority vote. It fails with
// ErrCellUnrecoverable only when every pair of copies disagrees beyond the
// repair threshold; with at most one corrupted copy the returned value is
// bit-identical to what was written.
func (c *QuorumCell) Read() (*fingerprint.Fingerprint, error) {
	if !c.hasQuorum() {
		return nil, ErrCellUnrecoverable
	}
	return c.Majority(), nil
}

// Repair replaces corrupted copies with the majority value (self-healing).
// Like Read it fails when no quorum exists.
func (c *QuorumCell) Repair() (*fingerprint.Fingerprint, error) {
	v, err := c.Read()
	if err != nil {
		return nil, err
	}
	for i := range c.copies {
		c.copies[i] = v.Clone()
	}
	return v, nil
}

// hasQuorum reports whether at least one pair of copies agrees within the
// repair threshold.
func (c *QuorumCell) hasQuorum() bool {
	for i := 0; i < cellCopies; i++ {
		for j := i + 1; j < cellCopies; j++ {
			d, _ := fingerprint.Distance(c.copies[i], c.copies[j])
			if d <= c.repairThreshold {
				return true
			}
		}
	}
	return false
}

// Majority returns the per-bit 2-of-3 vote across the copies without the
// quorum check. Settling and compression use it for unrecoverable cells so
// one corrupted cell degrades the result instead of halting it.
func (c *QuorumCell) Majority() *fingerprint.Fingerprint {
	v, _ := fingerprint.Bundle(c.copies[:])
	return v
}

// corruptCopy flips n bits of one copy in place. Test hook for simulating
// storage damage.
func (c *QuorumCell) corruptCopy(i, n int, seed int64) {
	c.copies[i] = fingerprint.FlipRandom(c.copies[i], n, seed)
}

func (c *QuorumCell) clone() *QuorumCell {
	out := &QuorumCell{width: c.width, repairThreshold: c.repairThreshold}
	for i := range c.copies {
		out.copies[i] = c.copies[i].Clone()
	}
	return out
}

// scaledRepairThreshold derives the corruption budget from the width so
// non-default widths keep the same 1% tolerance.
func scaledRepairThreshold(width int) int {
	t := width / 100
	if t < 1 {
		t = 1
	}
	return t
}
