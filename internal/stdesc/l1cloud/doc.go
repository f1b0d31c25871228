// Package l1cloud owns Layer 1 (Cloud) of the place-recognition data model.
//
// Responsibilities: the Point type, voxel-grid downsampling, voxel keys
// shared with plane extraction, kd-tree neighbour queries and rigid
// transforms.
// Key types: Point, VoxelKey, NeighborIndex, Transform.
//
// Dependency rule: L1 depends on nothing else in internal/stdesc.
package l1cloud
