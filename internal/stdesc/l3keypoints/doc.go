// Package l3keypoints owns Layer 3 (Keypoints) of the place-recognition data
// model.
//
// Responsibilities: projecting near-plane structure onto per-region rasters,
// scoring pixels, non-maximum suppression and capping the keypoint count.
// Key types: Keypoint, Params.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3keypoints
