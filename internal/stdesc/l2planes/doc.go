// Package l2planes owns Layer 2 (Planes) of the place-recognition data model.
//
// Responsibilities: per-voxel covariance fitting, planarity testing and
// merging of adjacent co-planar voxels into larger planar regions.
// Key types: Plane, Params, Result.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2planes
