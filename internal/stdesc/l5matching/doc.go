// Package l5matching owns Layer 5 (Matching) of the place-recognition data
// model.
//
// Responsibilities: gathering loop-closure candidates from the descriptor
// index, coarse vote ranking, rigid pose recovery from matched triangle
// vertices and geometric verification of candidates by plane-based ICP.
// Key types: Verifier, Query, Candidate, Match.
//
// Dependency rule: L5 may depend on L1-L4, but never on the orchestrating
// stdesc package.
package l5matching
