// Package dataset provides scan sequences and ground-truth loop closures
// for offline evaluation.
//
// Scans are stored KITTI-style: one file per scan named by its zero-padded
// index, holding little-endian float32 (x, y, z, intensity) records. Files
// ending in .zst are zstd-compressed. Ground truth is a CSV of frame index
// pairs.
package dataset
