package grid

import "errors"

// Fixed dimensions: one column per week, one row per weekday, over an
// eight-week window.
const (
	Width  = 8
	Height = 7
	Cells  = Width * Height
)

var ErrOutOfBounds = errors.New("grid: coordinate out of bounds")

// Record is one activity sample from the feed.
type Record struct {
	Count int    `json:"count"`
	Date  string `json:"date"`
}

// Cell holds one scored grid position. A negative RawCount means "no
// data": level 0, score 0.
type Cell struct {
	RawCount int    `json:"raw_count"`
	Level    int    `json:"level"`
	Date     string `json:"date,omitempty"`
}

// Grid is the 8x7 scoring surface. All methods assume a single
// writing goroutine; Load replaces the whole cell array at once so a
// reader in the same goroutine never sees a partial refresh.
type Grid struct {
	cells [Cells]Cell
}

// New returns a grid with every cell in the no-data state.
func New() *Grid {
	g := &Grid{}
	for i := range g.cells {
		g.cells[i] = Cell{RawCount: -1, Level: 0}
	}
	return g
}

// Load fills the grid column-major: record i lands on
// x = i / Height, y = i % Height. Records past the 56th are ignored;
// unfilled trailing cells stay in the no-data state. The replacement
// is wholesale, never partial.
func (g *Grid) Load(records []Record) {
	var next [Cells]Cell
	for i := range next {
		next[i] = Cell{RawCount: -1, Level: 0}
	}
	n := len(records)
	if n > Cells {
		n = Cells
	}
	for i := 0; i < n; i++ {
		next[i] = Cell{
			RawCount: records[i].Count,
			Level:    LevelOf(records[i].Count),
			Date:     records[i].Date,
		}
	}
	g.cells = next
}

// InBounds reports whether (x,y) is a real cell.
func InBounds(x, y int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height
}

// CellAt returns the cell at (x,y), or ErrOutOfBounds.
func (g *Grid) CellAt(x, y int) (Cell, error) {
	if !InBounds(x, y) {
		return Cell{}, ErrOutOfBounds
	}
	return g.cells[x*Height+y], nil
}

// ScoreAt is the score of the cell at (x,y); callers must pass
// in-bounds coordinates.
func (g *Grid) ScoreAt(x, y int) int {
	return ScoreOf(g.cells[x*Height+y].Level)
}

// All returns a copy of every cell in column-major order.
func (g *Grid) All() []Cell {
	out := make([]Cell, Cells)
	copy(out, g.cells[:])
	return out
}

// LevelOf maps a raw activity count onto a 0..5 level. A count of
// exactly 0 is level 1; level 0 is reserved for negative counts
// ("no data").
func LevelOf(count int) int {
	switch {
	case count > 20:
		return 5
	case count > 10:
		return 4
	case count > 5:
		return 3
	case count > 0:
		return 2
	case count >= 0:
		return 1
	default:
		return 0
	}
}

// ScoreOf converts a level into points.
func ScoreOf(level int) int { return level * 100 }
