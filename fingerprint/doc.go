// Package fingerprint implements fixed-width bit vectors and the bitwise
// algebra the rest of the engine is built on.
//
// A Fingerprint is an opaque W-bit vector (default 10,000 bits). How raw
// content is mapped to a fingerprint is a caller concern; this package only
// provides the algebra:
//   - Bind: bitwise XOR. Self-inverse, so Bind(Bind(a, b), a) == b.
//   - Bundle: per-bit majority vote across inputs, producing a prototype.
//     Exact ties break to 0, which makes Bundle commutative and reproducible.
//   - Distance / Similarity: Hamming distance and its [0,1] complement.
//
// Fingerprints are immutable by value: every operation returns a new vector
// and two fingerprints with equal bits are equal. All operations validate
// that operands share the same width and return ErrDimensionMismatch
// otherwise; widths are never silently padded or truncated.
package fingerprint
