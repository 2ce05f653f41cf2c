package domain

import "sync"

// Geometry is the immutable layout of a board: its cells, its lines and the
// lines passing through each cell. Shared between games of the same size.
type Geometry struct {
	Size      int
	Shape     Shape
	Cells     int
	Lines     []Line
	CellLines [][]int
}

type geometryKey struct {
	size  int
	shape Shape
}

var geometries sync.Map // geometryKey -> *Geometry

// GeometryFor returns the cached geometry for the size and shape, enumerating
// the lines on first use.
func GeometryFor(size int, shape Shape) (*Geometry, error) {
	key := geometryKey{size: size, shape: shape}
	if g, ok := geometries.Load(key); ok {
		return g.(*Geometry), nil
	}
	lines, err := Lines(size, shape)
	if err != nil {
		return nil, err
	}
	cells := pow(size, shape.Dim())
	cellLines := make([][]int, cells)
	for li, l := range lines {
		for _, c := range l {
			cellLines[c] = append(cellLines[c], li)
		}
	}
	g := &Geometry{Size: size, Shape: shape, Cells: cells, Lines: lines, CellLines: cellLines}
	actual, _ := geometries.LoadOrStore(key, g)
	return actual.(*Geometry), nil
}

// Coords splits a cell index into (layer, row, col) for cubes and (row, col)
// for squares.
func (g *Geometry) Coords(cell int) []int {
	out := make([]int, g.Shape.Dim())
	coords(cell, g.Size, out)
	return out
}

// Index is the inverse of Coords. ok is false when the coordinates do not
// address a cell.
func (g *Geometry) Index(c ...int) (int, bool) {
	if len(c) != g.Shape.Dim() {
		return 0, false
	}
	idx := 0
	for _, v := range c {
		if v < 0 || v >= g.Size {
			return 0, false
		}
		idx = idx*g.Size + v
	}
	return idx, true
}
