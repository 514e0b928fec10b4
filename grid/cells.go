// Package grid provides a uniform cell list for neighbor candidate
// lookup over a particle array.
package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CellList buckets particle indices into uniform cells for O(1) neighbor
// candidate lookup. The cell size must cover the largest search radius in
// use; with multi-resolution particles that is the kernel support of the
// coarsest smoothing length. The list is rebuilt wholesale every
// iteration and never patched incrementally.
type CellList struct {
	origin   r3.Vec
	cellSize float64
	nx       int
	ny       int
	nz       int
	cells    [][]int32 // flat grid of particle index lists
}

// NewCellList creates a cell list covering box with the given cell size.
func NewCellList(box r3.Box, cellSize float64) *CellList {
	size := r3.Sub(box.Max, box.Min)
	nx := int(size.X/cellSize) + 1
	ny := int(size.Y/cellSize) + 1
	nz := int(size.Z/cellSize) + 1

	cells := make([][]int32, nx*ny*nz)
	for i := range cells {
		cells[i] = make([]int32, 0, 8) // pre-allocate small capacity
	}

	return &CellList{
		origin:   box.Min,
		cellSize: cellSize,
		nx:       nx,
		ny:       ny,
		nz:       nz,
		cells:    cells,
	}
}

// CellSize returns the edge length of a cell.
func (g *CellList) CellSize() float64 { return g.cellSize }

// CellCount returns the total number of cells.
func (g *CellList) CellCount() int { return len(g.cells) }

// Clear removes all particles from the grid, keeping cell capacity.
func (g *CellList) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds particle index i at position p.
func (g *CellList) Insert(i int, p r3.Vec) {
	idx := g.cellIndex(p)
	g.cells[idx] = append(g.cells[idx], int32(i))
}

// Build clears the grid and scatters every position into its cell.
func (g *CellList) Build(pos []r3.Vec) {
	g.Clear()
	for i, p := range pos {
		idx := g.cellIndex(p)
		g.cells[idx] = append(g.cells[idx], int32(i))
	}
}

// CandidatesInto appends the indices of all particles in cells within
// radius of p to dst and returns the updated slice. Candidates are a
// superset of the true neighbors; the caller applies the exact distance
// cutoff. Reuse dst across calls to avoid allocations.
func (g *CellList) CandidatesInto(dst []int32, p r3.Vec, radius float64) []int32 {
	// A radius equal to the cell size walks exactly the 27-cell block.
	cellRadius := int(math.Ceil(radius / g.cellSize))
	if cellRadius < 1 {
		cellRadius = 1
	}

	cx := g.coord(p.X-g.origin.X, g.nx)
	cy := g.coord(p.Y-g.origin.Y, g.ny)
	cz := g.coord(p.Z-g.origin.Z, g.nz)

	for dz := -cellRadius; dz <= cellRadius; dz++ {
		z := cz + dz
		if z < 0 || z >= g.nz {
			continue
		}
		for dy := -cellRadius; dy <= cellRadius; dy++ {
			y := cy + dy
			if y < 0 || y >= g.ny {
				continue
			}
			for dx := -cellRadius; dx <= cellRadius; dx++ {
				x := cx + dx
				if x < 0 || x >= g.nx {
					continue
				}
				dst = append(dst, g.cells[x+g.nx*(y+g.ny*z)]...)
			}
		}
	}
	return dst
}

// OccupiedCells returns the number of non-empty cells and the largest
// cell population, for grid quality diagnostics.
func (g *CellList) OccupiedCells() (occupied, maxLoad int) {
	for i := range g.cells {
		n := len(g.cells[i])
		if n > 0 {
			occupied++
		}
		if n > maxLoad {
			maxLoad = n
		}
	}
	return occupied, maxLoad
}

// cellIndex returns the flat cell index for a position, clamped to the
// grid so out-of-box particles land in edge cells instead of panicking.
func (g *CellList) cellIndex(p r3.Vec) int {
	x := g.coord(p.X-g.origin.X, g.nx)
	y := g.coord(p.Y-g.origin.Y, g.ny)
	z := g.coord(p.Z-g.origin.Z, g.nz)
	return x + g.nx*(y+g.ny*z)
}

func (g *CellList) coord(d float64, n int) int {
	c := int(d / g.cellSize)
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}
