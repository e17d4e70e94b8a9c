// Package memory provides CrystalMemory, the process-lifetime container of
// crystals keyed by attractor-basin identity.
//
// The memory system stores settled crystals so partial or noisy queries can
// be recalled by nearest-attractor lookup. Basin ids are assigned by content
// hash modulo the configured basin capacity; colliding ids overwrite, which
// is intentional - content naturally clusters into shared basins.
//
// Architecture:
//   - CrystalMemory: store (Add), associative inference (Infer), and
//     incremental Hebbian learning (Learn)
//   - Store: persistence backend boundary (file-backed store in store/file;
//     production deployments can plug a columnar backend)
//   - Collector: optional Prometheus instrumentation
//
// Inference is an exact nearest-neighbor scan by total axis Hamming
// distance, parallelized above a configurable collection size. Expanded
// fields are served from a ristretto cache because expansion re-derives all
// 125 cells from three projections.
//
// The container is explicitly owned: construct it, pass it by reference,
// close it when done. There is no hidden singleton.
package memory
