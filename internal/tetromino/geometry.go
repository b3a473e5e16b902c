package tetromino

// Exact integer rotation matrices for 0/90/180/270 degrees, indexed
// by quarter turns.
var rotationMatrices = [4][2][2]int{
	{{1, 0}, {0, 1}},
	{{0, -1}, {1, 0}},
	{{-1, 0}, {0, -1}},
	{{0, 1}, {-1, 0}},
}

// NormalizeAngle maps any multiple of 90 into {0, 90, 180, 270}.
func NormalizeAngle(deg int) int {
	return ((deg % 360) + 360) % 360
}

// Rotate turns shape by deg (a multiple of 90) about pivot. The math
// runs in doubled coordinates so half-integer pivots stay exact; the
// final halving rounds like floor(x+0.5).
func Rotate(shape Shape, pivot Pivot, deg int) Shape {
	m := rotationMatrices[NormalizeAngle(deg)/90]
	var out Shape
	for i, p := range shape {
		dx := 2*p.X - pivot.X2
		dy := 2*p.Y - pivot.Y2
		out[i] = Point{
			X: halve(m[0][0]*dx + m[0][1]*dy + pivot.X2),
			Y: halve(m[1][0]*dx + m[1][1]*dy + pivot.Y2),
		}
	}
	return out
}

// RotatedShape is the spawn shape of t turned by deg about its pivot.
func RotatedShape(t Type, deg int) Shape {
	return Rotate(ShapeOf(t), PivotOf(t), deg)
}

// Absolute translates a relative shape onto grid coordinates.
func Absolute(shape Shape, anchorX, anchorY int) Shape {
	var out Shape
	for i, p := range shape {
		out[i] = Point{X: p.X + anchorX, Y: p.Y + anchorY}
	}
	return out
}

// Box is the minimal axis-aligned rectangle covering a shape.
type Box struct {
	MinX, MinY int
	MaxX, MaxY int
}

// BoundingBox computes the bounds of shape's four cells.
func BoundingBox(shape Shape) Box {
	b := Box{MinX: shape[0].X, MinY: shape[0].Y, MaxX: shape[0].X, MaxY: shape[0].Y}
	for _, p := range shape[1:] {
		if p.X < b.MinX {
			b.MinX = p.X
		}
		if p.X > b.MaxX {
			b.MaxX = p.X
		}
		if p.Y < b.MinY {
			b.MinY = p.Y
		}
		if p.Y > b.MaxY {
			b.MaxY = p.Y
		}
	}
	return b
}

// halve divides a doubled coordinate by two, rounding halves toward
// positive infinity (arithmetic shift floors, so (v+1)>>1 is
// floor(v/2 + 0.5)).
func halve(v int) int { return (v + 1) >> 1 }
