// Package spatial provides a uniform grid for neighbour queries over 2D items.
package spatial

import "math"

// MaxCells bounds the number of cells a Reset may allocate. Bounds that would need more
// get proportionally coarser cells.
const MaxCells = 1 << 20

// Neighbor holds a nearby item with precomputed spatial data.
type Neighbor[T any] struct {
	Item   T
	DX, DY float32 // delta from the query origin
	DistSq float32
}

type entry[T any] struct {
	item T
	x, y float32
}

// Grid buckets items by position into square cells. It covers the bounds passed to
// Reset; items outside are clamped into the edge cells.
//
// A Grid is not safe for concurrent mutation, but concurrent queries on a grid that
// is not being modified are safe.
type Grid[T any] struct {
	cellSize float32 // requested
	cell     float32 // in effect since the last Reset
	cols     int
	rows     int
	minX     float32
	minY     float32
	cells    [][]entry[T]
	count    int

	// Limit caps the results of a single query, 0 = unlimited.
	Limit int
}

// NewGrid creates an empty grid with the given cell size.
func NewGrid[T any](cellSize float32) *Grid[T] {
	return &Grid[T]{cellSize: cellSize}
}

// CellSize returns the edge length of a cell as of the last Reset.
func (g *Grid[T]) CellSize() float32 { return g.cell }

// Len returns the number of inserted items.
func (g *Grid[T]) Len() int { return g.count }

// SetCellSize changes the cell size. It takes effect at the next Reset.
func (g *Grid[T]) SetCellSize(size float32) {
	g.cellSize = size
}

// Reset clears the grid and resizes it to cover [minX, maxX] x [minY, maxY].
func (g *Grid[T]) Reset(minX, minY, maxX, maxY float32) {
	if g.cellSize <= 0 || maxX < minX || maxY < minY {
		g.cols, g.rows, g.count = 0, 0, 0
		return
	}
	g.minX, g.minY = minX, minY
	g.cell = g.cellSize
	w, h := float64(maxX-minX), float64(maxY-minY)
	for (w/float64(g.cell)+1)*(h/float64(g.cell)+1) > MaxCells {
		g.cell *= 2
	}
	g.cols = int((maxX-minX)/g.cell) + 1
	g.rows = int((maxY-minY)/g.cell) + 1

	n := g.cols * g.rows
	if cap(g.cells) < n {
		g.cells = make([][]entry[T], n)
	}
	g.cells = g.cells[:n]
	g.Clear()
}

// Clear removes all items, keeping the layout.
func (g *Grid[T]) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert adds an item at the given position.
func (g *Grid[T]) Insert(item T, x, y float32) {
	if g.cols == 0 {
		return
	}
	col, row := g.locate(x, y)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], entry[T]{item: item, x: x, y: y})
	g.count++
}

// Build resets the grid to the bounds of items and inserts them all.
func Build[T any](g *Grid[T], items []T, pos func(T) (float32, float32)) {
	if len(items) == 0 {
		g.Reset(0, 0, -1, -1)
		return
	}
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := float32(-math.MaxFloat32), float32(-math.MaxFloat32)
	for _, it := range items {
		x, y := pos(it)
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	g.Reset(minX, minY, maxX, maxY)
	for _, it := range items {
		x, y := pos(it)
		g.Insert(it, x, y)
	}
}

// QueryRadiusInto appends the items within radius of (x, y) to dst, up to Limit.
// skip, when non-nil, excludes items such as the query origin itself.
// Reuse dst across calls to avoid allocations.
func (g *Grid[T]) QueryRadiusInto(dst []Neighbor[T], x, y, radius float32, skip func(T) bool) []Neighbor[T] {
	if g.cols == 0 {
		return dst
	}
	cellRadius := int(radius/g.cell) + 1
	centerCol, centerRow := g.locate(x, y)
	radiusSq := radius * radius
	start := len(dst)

	for row := max(centerRow-cellRadius, 0); row <= min(centerRow+cellRadius, g.rows-1); row++ {
		for col := max(centerCol-cellRadius, 0); col <= min(centerCol+cellRadius, g.cols-1); col++ {
			for _, e := range g.cells[row*g.cols+col] {
				if skip != nil && skip(e.item) {
					continue
				}
				dx, dy := e.x-x, e.y-y
				distSq := dx*dx + dy*dy
				if distSq > radiusSq {
					continue
				}
				dst = append(dst, Neighbor[T]{Item: e.item, DX: dx, DY: dy, DistSq: distSq})
				if g.Limit > 0 && len(dst)-start >= g.Limit {
					return dst
				}
			}
		}
	}
	return dst
}

// ForEachPair calls fn once for every unordered pair of items in the same or
// adjacent cells. Pairs further apart than one cell are never visited.
func (g *Grid[T]) ForEachPair(fn func(a, b T)) {
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			cell := g.cells[row*g.cols+col]
			for i := range cell {
				// Rest of the own cell
				for j := i + 1; j < len(cell); j++ {
					fn(cell[i].item, cell[j].item)
				}
				// Half of the neighbourhood, so each cell pair is visited once
				for _, n := range forward {
					r, c := row+n[0], col+n[1]
					if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
						continue
					}
					for _, o := range g.cells[r*g.cols+c] {
						fn(cell[i].item, o.item)
					}
				}
			}
		}
	}
}

// forward lists the neighbour offsets (row, col) after the current cell in scan order.
var forward = [4][2]int{{0, 1}, {1, -1}, {1, 0}, {1, 1}}

// locate returns the clamped column and row for a position.
func (g *Grid[T]) locate(x, y float32) (int, int) {
	col := int((x - g.minX) / g.cell)
	row := int((y - g.minY) / g.cell)

	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}
