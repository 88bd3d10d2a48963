package raster

import "sort"

// clump labels 4-connected regions of equal cell value. Null cells get label
// -1. Returns the label grid (flat, row-major) and the cell count per label.
func (g *Grid) clump() (labels []int, sizes []int) {
	rows, cols := g.Rows(), g.Cols()
	labels = make([]int, rows*cols)
	for i := range labels {
		labels[i] = -1
	}

	next := 0
	stack := make([][2]int, 0, 64)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			i := g.idx(row, col)
			if g.null[i] || labels[i] != -1 {
				continue
			}
			value := g.cells[i]
			label := next
			next++
			size := 0

			stack = append(stack[:0], [2]int{row, col})
			labels[i] = label
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				size++
				r, c := cur[0], cur[1]
				for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nr, nc := r+d[0], c+d[1]
					if !g.inGrid(nr, nc) {
						continue
					}
					ni := g.idx(nr, nc)
					if g.null[ni] || labels[ni] != -1 || g.cells[ni] != value {
						continue
					}
					labels[ni] = label
					stack = append(stack, [2]int{nr, nc})
				}
			}
			sizes = append(sizes, size)
		}
	}
	return labels, sizes
}

// RemoveSmallAreas merges 4-connected same-value regions whose ground area is
// below threshold (map units squared) into the neighboring region they share
// the longest boundary with. Ties pick the neighbor with the lower cell
// value, so the result is deterministic. Removal runs smallest-first and
// repeats until every remaining region meets the threshold; a region that
// grows past the threshold by absorbing a smaller one is kept.
func (g *Grid) RemoveSmallAreas(threshold float64) *Grid {
	if threshold <= 0 {
		return g.Clone()
	}
	out := g.Clone()
	cellArea := g.Extent.CellArea()
	minCells := int(threshold / cellArea)
	if float64(minCells)*cellArea < threshold {
		minCells++
	}
	if minCells <= 1 {
		return out
	}

	for out.absorbOne(minCells) {
	}
	return out
}

// absorbOne merges the smallest under-threshold clump that has a data
// neighbor. Reports whether a merge happened.
func (g *Grid) absorbOne(minCells int) bool {
	labels, sizes := g.clump()

	// Candidates ordered smallest first, label as tie-break.
	order := make([]int, 0, len(sizes))
	for label, size := range sizes {
		if size < minCells {
			order = append(order, label)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if sizes[order[i]] != sizes[order[j]] {
			return sizes[order[i]] < sizes[order[j]]
		}
		return order[i] < order[j]
	})

	for _, label := range order {
		if value, ok := g.dominantNeighbor(labels, label); ok {
			for i, l := range labels {
				if l == label {
					g.cells[i] = value
				}
			}
			return true
		}
		// No data neighbor (isolated island): nothing to absorb it, keep it.
	}
	return false
}

// dominantNeighbor finds the cell value of the neighboring region sharing the
// longest boundary with the labeled clump. Ties pick the lower value.
func (g *Grid) dominantNeighbor(labels []int, label int) (float64, bool) {
	border := map[float64]int{}
	rows, cols := g.Rows(), g.Cols()
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if labels[g.idx(row, col)] != label {
				continue
			}
			for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nr, nc := row+d[0], col+d[1]
				if !g.inGrid(nr, nc) {
					continue
				}
				ni := g.idx(nr, nc)
				if g.null[ni] || labels[ni] == label {
					continue
				}
				border[g.cells[ni]]++
			}
		}
	}
	if len(border) == 0 {
		return 0, false
	}

	values := make([]float64, 0, len(border))
	for v := range border {
		values = append(values, v)
	}
	sort.Float64s(values)
	best := values[0]
	for _, v := range values[1:] {
		if border[v] > border[best] {
			best = v
		}
	}
	return best, true
}
