// Package pipeline replays a scan sequence through the loop-closure
// manager.
//
// It is the composition root for offline runs: it reads scans from a
// dataset.Source, feeds stdesc.Manager, collects closures for evaluation,
// optionally persists every frame decision to the sqlite store and writes
// the result files. None of the packages it wires import pipeline.
package pipeline
