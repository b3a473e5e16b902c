package tetromino

import (
	"sort"
	"testing"
)

func sortedCells(s Shape) []Point {
	out := append([]Point(nil), s[:]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func TestRotate_ZeroIsIdentity(t *testing.T) {
	for _, typ := range Types() {
		got := RotatedShape(typ, 0)
		if got != ShapeOf(typ) {
			t.Fatalf("%s: rotate 0 changed shape: %v -> %v", typ, ShapeOf(typ), got)
		}
	}
}

func TestRotate_FourTurnsReturnToSpawn(t *testing.T) {
	for _, typ := range Types() {
		s := ShapeOf(typ)
		p := PivotOf(typ)
		for i := 0; i < 4; i++ {
			s = Rotate(s, p, 90)
		}
		if s != ShapeOf(typ) {
			t.Fatalf("%s: four quarter turns drifted: %v", typ, s)
		}
	}
}

func TestRotate_CompositionMatchesAbsoluteAngle(t *testing.T) {
	for _, typ := range Types() {
		p := PivotOf(typ)
		stepped := ShapeOf(typ)
		for _, deg := range []int{90, 180, 270} {
			stepped = Rotate(stepped, p, 90)
			direct := RotatedShape(typ, deg)
			if stepped != direct {
				t.Fatalf("%s at %d: stepped %v != direct %v", typ, deg, stepped, direct)
			}
		}
	}
}

func TestRotate_CellsStayDistinct(t *testing.T) {
	for _, typ := range Types() {
		for _, deg := range []int{0, 90, 180, 270} {
			s := RotatedShape(typ, deg)
			seen := map[Point]bool{}
			for _, c := range s[:] {
				if seen[c] {
					t.Fatalf("%s at %d: duplicate cell %v in %v", typ, deg, c, s)
				}
				seen[c] = true
			}
		}
	}
}

func TestRotate_IVertical(t *testing.T) {
	got := sortedCells(RotatedShape(TypeI, 90))
	want := []Point{{2, -1}, {2, 0}, {2, 1}, {2, 2}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("I at 90: got %v want %v", got, want)
		}
	}
}

func TestRotate_OIsInvariant(t *testing.T) {
	base := sortedCells(ShapeOf(TypeO))
	for _, deg := range []int{90, 180, 270} {
		got := sortedCells(RotatedShape(TypeO, deg))
		for i := range base {
			if got[i] != base[i] {
				t.Fatalf("O at %d: got %v want %v", deg, got, base)
			}
		}
	}
}

func TestNormalizeAngle(t *testing.T) {
	cases := map[int]int{0: 0, 90: 90, 360: 0, 450: 90, -90: 270, -180: 180}
	for in, want := range cases {
		if got := NormalizeAngle(in); got != want {
			t.Fatalf("NormalizeAngle(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAbsolute(t *testing.T) {
	s := Absolute(ShapeOf(TypeI), 3, 2)
	want := Shape{{3, 2}, {4, 2}, {5, 2}, {6, 2}}
	if s != want {
		t.Fatalf("Absolute = %v, want %v", s, want)
	}
}

func TestBoundingBox(t *testing.T) {
	for _, typ := range Types() {
		b := BoundingBox(ShapeOf(typ))
		if b.MinX != 0 || b.MinY != 0 {
			t.Fatalf("%s: spawn shape not origin-based: %+v", typ, b)
		}
		if b.MaxX-b.MinX > 3 || b.MaxY-b.MinY > 3 {
			t.Fatalf("%s: bounding box too large: %+v", typ, b)
		}
	}
	v := BoundingBox(RotatedShape(TypeI, 90))
	if v.MinX != 2 || v.MaxX != 2 || v.MinY != -1 || v.MaxY != 2 {
		t.Fatalf("vertical I box: %+v", v)
	}
}
