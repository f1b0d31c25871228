// Package stdesc orchestrates Stable Triangle Descriptor place recognition.
//
// A Manager consumes scans one at a time. Each scan is downsampled, its
// planar regions and boundary keypoints are extracted, keypoint triangles
// become descriptors, and the descriptors are matched against every
// sufficiently older frame before being added to the index. The outcome for
// every frame is kept in an append-only history.
//
// Layering: l1cloud (points, voxels, neighbours) -> l2planes -> l3keypoints
// -> l4descriptors (descriptors and index) -> l5matching (verification).
// This package is the only one that holds state across scans.
package stdesc
