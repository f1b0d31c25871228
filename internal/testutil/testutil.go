// Package testutil provides shared test utilities and fixtures.
//
// The scene generators build deterministic synthetic LiDAR-like scans (a
// ground plane populated with box-shaped pillars) so that plane, keypoint,
// descriptor and loop-closure tests can share realistic inputs.
package testutil

import (
	"math"
	"math/rand"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

// Pillar is an axis-aligned box standing on the ground plane.
type Pillar struct {
	X, Y   float64 // footprint centre
	Width  float64 // square footprint edge
	Height float64
}

// SceneParams controls synthetic scene generation.
type SceneParams struct {
	HalfExtent   float64 // ground spans [-HalfExtent, HalfExtent]² (metres)
	GroundZ      float64 // ground height relative to the sensor
	Density      float64 // surface samples per square metre
	Noise        float64 // std-dev of Gaussian noise along surface normals
	PillarCount  int
	MinSpacing   float64 // minimum distance between pillar centres
	ClearRadius  float64 // no pillar closer than this to the sensor
	MinHeight    float64
	MaxHeight    float64
	MinWidth     float64
	MaxWidth     float64
	MaxPlacement int // placement attempts before giving up on more pillars
}

// DefaultSceneParams returns a compact urban-like scene: a 30m × 30m ground
// with a dozen pillars.
func DefaultSceneParams() SceneParams {
	return SceneParams{
		HalfExtent:   15,
		GroundZ:      -1.7,
		Density:      32,
		Noise:        0.01,
		PillarCount:  12,
		MinSpacing:   4,
		ClearRadius:  2,
		MinHeight:    2,
		MaxHeight:    4.5,
		MinWidth:     0.6,
		MaxWidth:     1.0,
		MaxPlacement: 2000,
	}
}

// RandomPillars places up to p.PillarCount pillars inside the ground extent,
// keeping them p.MinSpacing apart and a margin away from the border.
func RandomPillars(rng *rand.Rand, p SceneParams) []Pillar {
	margin := p.MaxWidth + 1
	var out []Pillar
	for attempt := 0; attempt < p.MaxPlacement && len(out) < p.PillarCount; attempt++ {
		x := (rng.Float64()*2 - 1) * (p.HalfExtent - margin)
		y := (rng.Float64()*2 - 1) * (p.HalfExtent - margin)
		if math.Hypot(x, y) < p.ClearRadius {
			continue
		}
		ok := true
		for _, q := range out {
			if math.Hypot(q.X-x, q.Y-y) < p.MinSpacing {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		out = append(out, Pillar{
			X:      x,
			Y:      y,
			Width:  p.MinWidth + rng.Float64()*(p.MaxWidth-p.MinWidth),
			Height: p.MinHeight + rng.Float64()*(p.MaxHeight-p.MinHeight),
		})
	}
	return out
}

// SceneCloud samples the ground plane and every pillar surface.
func SceneCloud(rng *rand.Rand, pillars []Pillar, p SceneParams) []l1cloud.Point {
	side := 2 * p.HalfExtent
	groundN := int(side * side * p.Density)
	points := make([]l1cloud.Point, 0, groundN)
	for i := 0; i < groundN; i++ {
		points = append(points, l1cloud.Point{
			X: (rng.Float64()*2 - 1) * p.HalfExtent,
			Y: (rng.Float64()*2 - 1) * p.HalfExtent,
			Z: p.GroundZ + rng.NormFloat64()*p.Noise,
		})
	}
	for _, pl := range pillars {
		points = append(points, pillarSurface(rng, pl, p)...)
	}
	return points
}

func pillarSurface(rng *rand.Rand, pl Pillar, p SceneParams) []l1cloud.Point {
	half := pl.Width / 2
	faceN := int(pl.Width * pl.Height * p.Density)
	topN := int(pl.Width * pl.Width * p.Density)
	out := make([]l1cloud.Point, 0, 4*faceN+topN)
	for face := 0; face < 4; face++ {
		for i := 0; i < faceN; i++ {
			along := (rng.Float64()*2 - 1) * half
			z := p.GroundZ + rng.Float64()*pl.Height
			offset := half + rng.NormFloat64()*p.Noise
			var x, y float64
			switch face {
			case 0:
				x, y = pl.X+offset, pl.Y+along
			case 1:
				x, y = pl.X-offset, pl.Y+along
			case 2:
				x, y = pl.X+along, pl.Y+offset
			default:
				x, y = pl.X+along, pl.Y-offset
			}
			out = append(out, l1cloud.Point{X: x, Y: y, Z: z})
		}
	}
	for i := 0; i < topN; i++ {
		out = append(out, l1cloud.Point{
			X: pl.X + (rng.Float64()*2-1)*half,
			Y: pl.Y + (rng.Float64()*2-1)*half,
			Z: p.GroundZ + pl.Height + rng.NormFloat64()*p.Noise,
		})
	}
	return out
}

// RandomScene is a convenience wrapper that builds pillars and samples the
// cloud from a single seed.
func RandomScene(seed int64, p SceneParams) ([]l1cloud.Point, []Pillar) {
	rng := rand.New(rand.NewSource(seed))
	pillars := RandomPillars(rng, p)
	return SceneCloud(rng, pillars, p), pillars
}

// FixedPillars returns a hand-placed layout whose footprints and tops sit
// well inside 2m voxels, so only the ground produces planar voxels.
func FixedPillars() []Pillar {
	return []Pillar{
		{X: 5, Y: 5, Width: 0.8, Height: 3.0},
		{X: -7, Y: 3, Width: 0.8, Height: 2.5},
		{X: 9, Y: -9, Width: 0.8, Height: 3.2},
		{X: -5, Y: -9, Width: 0.8, Height: 2.8},
		{X: 1, Y: 9, Width: 0.8, Height: 3.0},
		{X: -11, Y: -1, Width: 0.8, Height: 2.6},
	}
}
