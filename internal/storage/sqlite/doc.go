// Package sqlite persists loop-closure runs and their per-frame decisions.
//
// The schema is owned by the embedded migrations under migrations/ and is
// brought up to date by Open. Domain packages never issue SQL themselves;
// the pipeline hands results to a ClosureStore.
package sqlite
