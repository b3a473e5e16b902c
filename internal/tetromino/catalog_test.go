package tetromino

import "testing"

func TestCatalog_SevenTypes(t *testing.T) {
	if len(Types()) != 7 {
		t.Fatalf("catalog has %d types, want 7", len(Types()))
	}
	for _, typ := range Types() {
		s := ShapeOf(typ)
		seen := map[Point]bool{}
		for _, c := range s[:] {
			if seen[c] {
				t.Fatalf("%s: duplicate spawn cell %v", typ, c)
			}
			seen[c] = true
		}
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(string(typ))
		if err != nil || got != typ {
			t.Fatalf("ParseType(%q) = %q, %v", typ, got, err)
		}
	}
	if _, err := ParseType("Q"); err == nil {
		t.Fatal("ParseType accepted unknown type")
	}
	if _, err := ParseType(""); err == nil {
		t.Fatal("ParseType accepted empty type")
	}
}

func TestAnchorOffset(t *testing.T) {
	cases := map[Type][2]int{
		TypeI: {1, 0},
		TypeO: {0, 0},
		TypeT: {1, 1},
		TypeS: {1, 1},
		TypeZ: {1, 1},
		TypeJ: {1, 1},
		TypeL: {1, 1},
	}
	for typ, want := range cases {
		x, y := AnchorOffset(typ)
		if x != want[0] || y != want[1] {
			t.Fatalf("%s: offset (%d,%d), want (%d,%d)", typ, x, y, want[0], want[1])
		}
	}
}
