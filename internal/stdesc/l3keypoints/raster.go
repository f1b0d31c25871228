package l3keypoints

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
	"github.com/banshee-data/stdesc/internal/stdesc/l2planes"
)

// pixel addresses a raster cell in plane coordinates.
type pixel struct {
	U, V int64
}

func (p pixel) less(o pixel) bool {
	if p.U != o.U {
		return p.U < o.U
	}
	return p.V < o.V
}

// cell accumulates the in-band points that project into one pixel.
type cell struct {
	count int
	sum   l1cloud.Point
}

// raster is a sparse projection image anchored at a region's centre.
type raster struct {
	origin     l1cloud.Point
	u, v       l1cloud.Point
	resolution float64
	cells      map[pixel]*cell
}

// planeBasis returns two unit vectors spanning the plane orthogonal to n.
// The helper axis is the world axis least aligned with n, so the basis only
// depends on the normal.
func planeBasis(n l1cloud.Point) (u, v l1cloud.Point) {
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	var helper l1cloud.Point
	switch {
	case ax <= ay && ax <= az:
		helper = l1cloud.Point{X: 1}
	case ay <= az:
		helper = l1cloud.Point{Y: 1}
	default:
		helper = l1cloud.Point{Z: 1}
	}
	u = r3.Unit(r3.Cross(n, helper))
	v = r3.Cross(n, u)
	return u, v
}

// project rasterises every point whose distance to region lies within
// [minDist, maxDist].
func project(points []l1cloud.Point, region l2planes.Plane, resolution, minDist, maxDist float64) *raster {
	u, v := planeBasis(region.Normal)
	r := &raster{
		origin:     region.Center,
		u:          u,
		v:          v,
		resolution: resolution,
		cells:      make(map[pixel]*cell),
	}
	for _, p := range points {
		d := region.Distance(p)
		if d < minDist || d > maxDist {
			continue
		}
		rel := r3.Sub(p, r.origin)
		px := pixel{
			U: int64(math.Floor(r3.Dot(rel, u) / resolution)),
			V: int64(math.Floor(r3.Dot(rel, v) / resolution)),
		}
		c, ok := r.cells[px]
		if !ok {
			c = &cell{}
			r.cells[px] = c
		}
		c.count++
		c.sum = r3.Add(c.sum, p)
	}
	return r
}

// response is the density of near-plane structure in a pixel.
func (r *raster) response(px pixel) float64 {
	if c, ok := r.cells[px]; ok {
		return float64(c.count)
	}
	return 0
}

// peaks returns pixels whose response exceeds threshold and is not smaller
// than any of their eight neighbours, in ascending pixel order.
func (r *raster) peaks(threshold float64) []pixel {
	keys := make([]pixel, 0, len(r.cells))
	for px := range r.cells {
		keys = append(keys, px)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	var out []pixel
	for _, px := range keys {
		resp := r.response(px)
		if resp <= threshold {
			continue
		}
		isPeak := true
		for du := int64(-1); du <= 1 && isPeak; du++ {
			for dv := int64(-1); dv <= 1; dv++ {
				if du == 0 && dv == 0 {
					continue
				}
				if r.response(pixel{U: px.U + du, V: px.V + dv}) > resp {
					isPeak = false
					break
				}
			}
		}
		if isPeak {
			out = append(out, px)
		}
	}
	return out
}

// position returns the mean of the 3D points that fell into px.
func (r *raster) position(px pixel) l1cloud.Point {
	c := r.cells[px]
	return r3.Scale(1/float64(c.count), c.sum)
}
