// Package field implements the redundant lattice representation of a single
// memory: QuorumCell (3 redundant fingerprint copies with majority read and
// self-healing repair) and QuorumField (a 5×5×5 lattice of cells with
// pattern injection and iterative attractor settling).
//
// Corruption tolerance is bounded and explicit: a cell reconstructs its
// value exactly while at most 1 of its 3 copies is corrupted; beyond that,
// Read surfaces ErrCellUnrecoverable. Settling treats the lattice boundary
// as clamped (non-toroidal): edge cells simply have fewer neighbors.
//
// Settling is a synchronous whole-field sweep over a snapshot of the
// previous state, so results are a pure function of the initial field and
// the step budget. Sweeps are computed in parallel across cells; the
// double-buffered snapshot keeps that race-free and deterministic.
package field
