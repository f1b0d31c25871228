// Package l4descriptors owns Layer 4 (Descriptors) of the place-recognition
// data model.
//
// Responsibilities: building triangle descriptors from keypoint triples,
// their canonical permutation-invariant form, the discretised side-length
// code, and the append-only code-keyed descriptor index.
// Key types: TriangleDescriptor, SideCode, Index.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
package l4descriptors
