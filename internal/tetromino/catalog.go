package tetromino

import "fmt"

// Type identifies one of the seven tetromino shapes.
type Type string

const (
	TypeI Type = "I"
	TypeO Type = "O"
	TypeT Type = "T"
	TypeS Type = "S"
	TypeZ Type = "Z"
	TypeJ Type = "J"
	TypeL Type = "L"
)

// Point is a cell coordinate. Relative inside a Shape, absolute once
// the shape is anchored on the grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Shape is the four cells of a piece.
type Shape [4]Point

// Pivot is the rotation center of a shape. Components may be
// half-integers (shapes with even bounding boxes), so both are stored
// doubled to keep the whole rotation path in exact integers.
type Pivot struct {
	X2 int
	Y2 int
}

// Spawn shapes, y growing downward. Each spans from (0,0) and stays
// within a 4x1 or 3x2 or 2x2 box.
var shapes = map[Type]Shape{
	TypeI: {{0, 0}, {1, 0}, {2, 0}, {3, 0}},
	TypeO: {{0, 0}, {1, 0}, {0, 1}, {1, 1}},
	TypeT: {{1, 0}, {0, 1}, {1, 1}, {2, 1}},
	TypeS: {{1, 0}, {2, 0}, {0, 1}, {1, 1}},
	TypeZ: {{0, 0}, {1, 0}, {1, 1}, {2, 1}},
	TypeJ: {{0, 0}, {0, 1}, {1, 1}, {2, 1}},
	TypeL: {{2, 0}, {0, 1}, {1, 1}, {2, 1}},
}

// Pivots chosen so every 90-degree turn lands all four cells back on
// the integer lattice: I rotates about (1.5, 0.5), O about its center
// (0.5, 0.5), the 3-wide pieces about their middle-bottom cell (1,1).
var pivots = map[Type]Pivot{
	TypeI: {3, 1},
	TypeO: {1, 1},
	TypeT: {2, 2},
	TypeS: {2, 2},
	TypeZ: {2, 2},
	TypeJ: {2, 2},
	TypeL: {2, 2},
}

// Types lists all piece types in catalog order.
func Types() []Type {
	return []Type{TypeI, TypeO, TypeT, TypeS, TypeZ, TypeJ, TypeL}
}

// ParseType validates a wire-level type string.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := shapes[t]; !ok {
		return "", fmt.Errorf("unknown piece type %q", s)
	}
	return t, nil
}

// ShapeOf returns the spawn-rotation shape of t.
func ShapeOf(t Type) Shape { return shapes[t] }

// PivotOf returns the rotation pivot of t.
func PivotOf(t Type) Pivot { return pivots[t] }

// AnchorOffset is floor(pivot): the offset subtracted from a requested
// drop coordinate so the drop feels centered on the piece rather than
// on its shape origin.
func AnchorOffset(t Type) (int, int) {
	p := pivots[t]
	return p.X2 / 2, p.Y2 / 2
}
