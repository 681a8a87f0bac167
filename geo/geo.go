// Package geo provides the pure geometric value types the R-tree is built
// on: integer points and axis-aligned rectangles, with the handful of
// operations the tree needs (area, enlargement, intersection, containment,
// point distance, in-place union).
package geo

import "math"

// Point is a <X,Y> coordinate pair in 2-D integer space.
type Point struct {
	X, Y int
}

// Rectangle is an axis-aligned bounding box with Min.X <= Max.X and
// Min.Y <= Max.Y. The zero value is the degenerate rectangle at the origin;
// it is only meaningful once produced by NewRectangle or Node bookkeeping.
type Rectangle struct {
	Min, Max Point
}

// NewRectangle builds a Rectangle from two opposite corners, normalizing
// so Min holds the lower coordinate and Max the higher one on each axis.
func NewRectangle(x1, y1, x2, y2 int) Rectangle {
	r := Rectangle{
		Min: Point{X: x1, Y: y1},
		Max: Point{X: x2, Y: y2},
	}
	if r.Min.X > r.Max.X {
		r.Min.X, r.Max.X = r.Max.X, r.Min.X
	}
	if r.Min.Y > r.Max.Y {
		r.Min.Y, r.Max.Y = r.Max.Y, r.Min.Y
	}
	return r
}

// Area returns the rectangle's area. Zero-width or zero-height rectangles
// (points, stored as degenerate rectangles) have area zero.
func (r Rectangle) Area() int {
	return (r.Max.X - r.Min.X) * (r.Max.Y - r.Min.Y)
}

// Enlargement returns how much the area would grow if r were unioned with
// other. Never negative.
func (r Rectangle) Enlargement(other Rectangle) int {
	u := r
	u.Add(other)
	return u.Area() - r.Area()
}

// Intersects reports whether r and other overlap, including when they only
// touch along an edge.
func (r Rectangle) Intersects(other Rectangle) bool {
	return r.Max.X >= other.Min.X && r.Min.X <= other.Max.X &&
		r.Max.Y >= other.Min.Y && r.Min.Y <= other.Max.Y
}

// Contains reports whether r fully encloses other, including coincident
// edges.
func (r Rectangle) Contains(other Rectangle) bool {
	return r.Max.X >= other.Max.X && r.Min.X <= other.Min.X &&
		r.Max.Y >= other.Max.Y && r.Min.Y <= other.Min.Y
}

// EdgeOverlaps reports whether any of r's four coordinates coincides with
// the corresponding coordinate of other. Used to decide whether removing
// an entry could possibly have shrunk a cached MBR.
func (r Rectangle) EdgeOverlaps(other Rectangle) bool {
	return r.Min.X == other.Min.X || r.Max.X == other.Max.X ||
		r.Min.Y == other.Min.Y || r.Max.Y == other.Max.Y
}

// Equal reports componentwise equality of the two rectangles' coordinates.
func (r Rectangle) Equal(other Rectangle) bool {
	return r.Min == other.Min && r.Max == other.Max
}

// Add mutates r in place to be the union (minimum bounding rectangle) of r
// and other.
func (r *Rectangle) Add(other Rectangle) {
	if other.Min.X < r.Min.X {
		r.Min.X = other.Min.X
	}
	if other.Min.Y < r.Min.Y {
		r.Min.Y = other.Min.Y
	}
	if other.Max.X > r.Max.X {
		r.Max.X = other.Max.X
	}
	if other.Max.Y > r.Max.Y {
		r.Max.Y = other.Max.Y
	}
}

// Union returns the minimum bounding rectangle of r and other without
// mutating either.
func (r Rectangle) Union(other Rectangle) Rectangle {
	u := r
	u.Add(other)
	return u
}

// axis returns the low and high coordinate of r along dimension d (0 = X,
// 1 = Y). Used by the split algorithm, which must treat both axes
// uniformly.
func (r Rectangle) axis(d int) (lo, hi int) {
	if d == 0 {
		return r.Min.X, r.Max.X
	}
	return r.Min.Y, r.Max.Y
}

// AxisLow returns the low coordinate of r along dimension d (0 = X, 1 = Y).
func (r Rectangle) AxisLow(d int) int {
	lo, _ := r.axis(d)
	return lo
}

// AxisHigh returns the high coordinate of r along dimension d (0 = X, 1 = Y).
func (r Rectangle) AxisHigh(d int) int {
	_, hi := r.axis(d)
	return hi
}

// DistanceTo returns the Euclidean distance from p to the closest point of
// r, or zero if p is inside r or on its boundary.
func (r Rectangle) DistanceTo(p Point) float64 {
	dx := axisGap(r.Min.X, r.Max.X, p.X)
	dy := axisGap(r.Min.Y, r.Max.Y, p.Y)
	return math.Sqrt(float64(dx*dx + dy*dy))
}

// axisGap returns how far coordinate p lies outside [lo, hi] along one
// axis, or zero if it's inside.
func axisGap(lo, hi, p int) int {
	if p < lo {
		return lo - p
	}
	if p > hi {
		return p - hi
	}
	return 0
}

// Microdegrees converts a float64 latitude or longitude in degrees to a
// fixed-point integer in millionths of a degree (about 11cm of precision at
// the equator), the coordinate space the tree itself operates in since it's
// integer-only. Points are indexed as zero-area rectangles via
// PointRectangle.
func Microdegrees(degrees float64) int {
	return int(math.Round(degrees * 1e6))
}

// PointRectangle builds the degenerate (zero-area) rectangle representing a
// single lat/long position, after converting both coordinates with
// Microdegrees.
func PointRectangle(lat, lon float64) Rectangle {
	x, y := Microdegrees(lon), Microdegrees(lat)
	return Rectangle{Min: Point{X: x, Y: y}, Max: Point{X: x, Y: y}}
}
