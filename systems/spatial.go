// Package systems provides the per-tick machinery agents are driven by:
// the occupancy index, steering, metabolism, and energy transfer.
package systems

import (
	"github.com/mlange-42/ark/ecs"
)

// OccupancyGrid is an ephemeral coordinate → agents index. It is rebuilt
// from the authoritative position components every tick and never
// persisted across ticks.
type OccupancyGrid struct {
	width  int
	height int
	cells  [][]ecs.Entity
}

// NewOccupancyGrid creates an empty index covering the grid.
func NewOccupancyGrid(width, height int) *OccupancyGrid {
	cells := make([][]ecs.Entity, width*height)
	return &OccupancyGrid{width: width, height: height, cells: cells}
}

// Clear removes all entities, retaining cell capacity.
func (o *OccupancyGrid) Clear() {
	for i := range o.cells {
		o.cells[i] = o.cells[i][:0]
	}
}

// Insert adds an entity at the (wrapped) coordinate.
func (o *OccupancyGrid) Insert(e ecs.Entity, x, y int) {
	o.cells[o.index(x, y)] = append(o.cells[o.index(x, y)], e)
}

// At returns the entities occupying the (wrapped) coordinate. The slice
// is owned by the grid and valid until the next Clear.
func (o *OccupancyGrid) At(x, y int) []ecs.Entity {
	return o.cells[o.index(x, y)]
}

// EachInRadius visits entities in expanding Chebyshev shells around the
// origin: the own cell first, then distance 1, and so on up to radius.
// Cells wrap toroidally; each cell is visited at most once even when the
// radius exceeds the half-dimensions. The callback returns false to stop
// early.
func (o *OccupancyGrid) EachInRadius(x, y, radius int, fn func(e ecs.Entity) bool) {
	for d := 0; d <= radius; d++ {
		for dy := -d; dy <= d; dy++ {
			if !uniqueOffset(dy, o.height) {
				continue
			}
			for dx := -d; dx <= d; dx++ {
				// Shell only: interior cells were visited at smaller d.
				if maxAbs(dx, dy) != d || !uniqueOffset(dx, o.width) {
					continue
				}
				for _, e := range o.At(x+dx, y+dy) {
					if !fn(e) {
						return
					}
				}
			}
		}
	}
}

// uniqueOffset reports whether d is the canonical representative of its
// wrapped residue class: past the half-dimension an offset lands on a
// cell a smaller shell already covered, and on even sizes the antipodal
// cell is reachable from both signs.
func uniqueOffset(d, size int) bool {
	if d > size/2 || d < -size/2 {
		return false
	}
	return size%2 != 0 || d != -size/2
}

// ToroidalDelta returns the shortest wrapped delta from (x1,y1) to (x2,y2).
func ToroidalDelta(x1, y1, x2, y2, w, h int) (dx, dy int) {
	dx = x2 - x1
	dy = y2 - y1
	if dx > w/2 {
		dx -= w
	} else if dx < -w/2 {
		dx += w
	}
	if dy > h/2 {
		dy -= h
	} else if dy < -h/2 {
		dy += h
	}
	return dx, dy
}

func (o *OccupancyGrid) index(x, y int) int {
	x = ((x % o.width) + o.width) % o.width
	y = ((y % o.height) + o.height) % o.height
	return y*o.width + x
}

func maxAbs(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}
