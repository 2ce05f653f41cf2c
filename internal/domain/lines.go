package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Shape is the board dimensionality.
type Shape uint8

const (
	Square Shape = 2
	Cube   Shape = 3
)

// MinSize is the smallest board edge that yields non-trivial lines.
const MinSize = 3

func (s Shape) String() string {
	switch s {
	case Square:
		return "square"
	case Cube:
		return "cube"
	default:
		return "shape(" + strconv.Itoa(int(s)) + ")"
	}
}

// Dim is the number of coordinates per cell.
func (s Shape) Dim() int { return int(s) }

func (s Shape) valid() bool { return s == Square || s == Cube }

// ParseShape accepts "square"/"2d" and "cube"/"3d".
func ParseShape(v string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "square", "2d", "2":
		return Square, nil
	case "cube", "3d", "3":
		return Cube, nil
	}
	return 0, fmt.Errorf("%w: unknown shape %q", ErrConfiguration, v)
}

// Line is the ordered list of cell indices that wins when fully owned.
type Line []int

// Lines enumerates every winning line of an n-sized board of the given shape.
// Directions are the non-zero vectors of {-1,0,1}^D whose first non-zero
// component is positive, so a line and its reverse are generated once.
func Lines(n int, shape Shape) ([]Line, error) {
	if !shape.valid() {
		return nil, fmt.Errorf("%w: unsupported shape %v", ErrConfiguration, shape)
	}
	if n < MinSize {
		return nil, fmt.Errorf("%w: size %d is below %d", ErrConfiguration, n, MinSize)
	}
	dim := shape.Dim()
	cells := pow(n, dim)
	dirs := directions(dim)

	seen := make(map[string]struct{})
	var lines []Line
	start := make([]int, dim)
	for idx := 0; idx < cells; idx++ {
		coords(idx, n, start)
		for _, d := range dirs {
			if !inBox(start, d, n-1, n) {
				continue
			}
			line := make(Line, n)
			for step := 0; step < n; step++ {
				line[step] = offset(start, d, step, n)
			}
			key := lineKey(line)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func directions(dim int) [][]int {
	var out [][]int
	d := make([]int, dim)
	var walk func(k int)
	walk = func(k int) {
		if k == dim {
			for _, v := range d {
				if v != 0 {
					if v > 0 {
						out = append(out, append([]int(nil), d...))
					}
					return
				}
			}
			return
		}
		for v := -1; v <= 1; v++ {
			d[k] = v
			walk(k + 1)
		}
	}
	walk(0)
	return out
}

// coords writes the coordinates of idx into dst, most significant first.
func coords(idx, n int, dst []int) {
	for k := len(dst) - 1; k >= 0; k-- {
		dst[k] = idx % n
		idx /= n
	}
}

func inBox(c, d []int, step, n int) bool {
	for k := range c {
		v := c[k] + d[k]*step
		if v < 0 || v >= n {
			return false
		}
	}
	return true
}

func offset(c, d []int, step, n int) int {
	idx := 0
	for k := range c {
		idx = idx*n + c[k] + d[k]*step
	}
	return idx
}

func lineKey(l Line) string {
	s := append([]int(nil), l...)
	sort.Ints(s)
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func pow(n, k int) int {
	r := 1
	for i := 0; i < k; i++ {
		r *= n
	}
	return r
}
