// Package spatial provides the uniform-grid broad phase used for neighbour
// queries over the live ball set.
//
// The grid stores slice indices (not pointers) in preallocated cells and is
// rebuilt from scratch whenever the caller needs it.
package spatial

import (
	"math"
)

// Grid buckets positions into fixed-size square cells in row-major order.
// Positions outside the playfield are clamped into the border cells, so a
// query may return candidates that are far away; callers always run a
// precise distance check afterwards.
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
	count       int
}

// NewGrid creates a grid covering width x height with the given cell size.
func NewGrid(width, height, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 64
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	for i := range cells {
		cells[i] = make([]uint32, 0, 4)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Reset empties every cell, keeping capacity.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert records index at (x, y).
func (g *Grid) Insert(index uint32, x, y float64) {
	col, row := g.clamp(g.cell(x), g.cell(y))
	i := row*g.cols + col
	g.cells[i] = append(g.cells[i], index)
	g.count++
}

// Near returns every index stored in the cells overlapping the square of
// half-size radius around (x, y). The slice is reused by the next call.
func (g *Grid) Near(x, y, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, minRow := g.clamp(g.cell(x-radius), g.cell(y-radius))
	maxCol, maxRow := g.clamp(g.cell(x+radius), g.cell(y+radius))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	return g.scratch
}

// Len returns the number of inserted entries.
func (g *Grid) Len() int { return g.count }

// Dimensions returns the grid shape.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}

func (g *Grid) cell(v float64) int {
	return int(math.Floor(v * g.invCellSize))
}

func (g *Grid) clamp(col, row int) (int, int) {
	col = max(0, min(col, g.cols-1))
	row = max(0, min(row, g.rows-1))
	return col, row
}
