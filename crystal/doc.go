// Package crystal implements the lossy compression codec that projects a
// settled QuorumField (125 cells × 3 copies) into three axis-projection
// fingerprints, plus the persisted binary record layout for one crystal.
//
// The compression is structural and fixed-rate: per axis, the 5 coordinate
// planes are XOR-folded and bound with that axis's coordinate codes, leaving
// exactly 3 W-bit projections. Expansion is approximate by construction;
// it is exact only for injection-consistent fields (every cell equal to
// bind(pattern, positionCode)), and that lossiness is inherent to the
// codec, not a defect.
package crystal
