package geometry

import "math"

// SimplifyPath reduces the number of vertices using the Douglas-Peucker
// algorithm. The first and last points are always kept.
func SimplifyPath(path []Point2D, epsilon float64) []Point2D {
	if len(path) <= 2 {
		return path
	}

	// Find point with maximum distance from line between first and last points
	dmax := 0.0
	index := 0
	end := len(path) - 1

	for i := 1; i < end; i++ {
		d := PerpendicularDistance(path[i], path[0], path[end])
		if d > dmax {
			dmax = d
			index = i
		}
	}

	// If max distance is greater than epsilon, recursively simplify
	if dmax > epsilon {
		left := SimplifyPath(path[:index+1], epsilon)
		right := SimplifyPath(path[index:], epsilon)

		// Build result (avoid duplicating middle point)
		result := make([]Point2D, 0, len(left)+len(right)-1)
		result = append(result, left[:len(left)-1]...)
		result = append(result, right...)
		return result
	}

	// All points between first and last are within epsilon, return just endpoints
	return []Point2D{path[0], path[end]}
}

// SimplifyRing simplifies a closed ring (first point == last point) while
// keeping it closed. Rings that would collapse below a triangle are returned
// unchanged.
func SimplifyRing(ring []Point2D, epsilon float64) []Point2D {
	if len(ring) <= 4 {
		return ring
	}
	simplified := SimplifyPath(ring, epsilon)
	if len(simplified) < 4 {
		return ring
	}
	return simplified
}

// PerpendicularDistance calculates the perpendicular distance from point p to
// the line through a and b.
func PerpendicularDistance(p, a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y

	if dx == 0 && dy == 0 {
		// a and b are the same point
		return p.Distance(a)
	}

	num := math.Abs(dy*p.X - dx*p.Y + b.X*a.Y - b.Y*a.X)
	den := math.Sqrt(dx*dx + dy*dy)
	return num / den
}

// ChaikinSmooth applies one iteration of Chaikin corner cutting to a closed
// ring. Each vertex is replaced by two points at 1/4 and 3/4 of the adjacent
// segments, which rounds corners off.
func ChaikinSmooth(ring []Point2D) []Point2D {
	if len(ring) < 4 {
		return ring
	}

	// Drop the closing point, smooth the open sequence cyclically, re-close.
	open := ring[:len(ring)-1]
	n := len(open)
	smoothed := make([]Point2D, 0, 2*n+1)
	for i := 0; i < n; i++ {
		p := open[i]
		q := open[(i+1)%n]
		smoothed = append(smoothed,
			Point2D{X: 0.75*p.X + 0.25*q.X, Y: 0.75*p.Y + 0.25*q.Y},
			Point2D{X: 0.25*p.X + 0.75*q.X, Y: 0.25*p.Y + 0.75*q.Y},
		)
	}
	smoothed = append(smoothed, smoothed[0])
	return smoothed
}

// RingArea returns the unsigned area enclosed by a closed ring (shoelace).
func RingArea(ring []Point2D) float64 {
	if len(ring) < 4 {
		return 0
	}
	sum := 0.0
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return math.Abs(sum) / 2
}
