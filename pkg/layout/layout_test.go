package layout

import (
	"reflect"
	"testing"

	"github.com/canvasflow/canvasflow/pkg/canvas"
)

// testConfig keeps the numbers small enough to check by hand.
func testConfig() Config {
	return Config{
		NodeWidth:     200,
		NodeHeight:    100,
		Padding:       20,
		VerticalGap:   40,
		HorizontalGap: 60,
		SafeZone:      80,
		HeaderHeight:  50,
		MaxGrid:       100,
	}
}

// place positions an element and registers it, returning the new tracks.
func place(t *testing.T, tracks Tracks, a Anchor, id string, row, col int, h float64, cfg Config) (canvas.Point, Tracks) {
	t.Helper()
	pos := NodePosition(row, col, a, tracks, cfg)
	nr, nc := a.Normalize(row, col, cfg)
	tracks = RegisterNode(tracks, nc, Entry{ID: id, Row: nr, Y: pos.Y, Height: h}, cfg.NodeWidth)
	return pos, tracks
}

func TestStackingOnActualHeights(t *testing.T) {
	cfg := testConfig()
	a := Anchor{}.Lock(canvas.Point{}, 0, 0, cfg)
	tracks := Tracks{}

	var pos [3]canvas.Point
	heights := []float64{100, 300, 100}
	for i, h := range heights {
		pos[i], tracks = place(t, tracks, a, []string{"a", "b", "c"}[i], i, 0, h, cfg)
	}

	// First row clears the header band plus padding.
	if want := cfg.HeaderHeight + cfg.Padding; pos[0].Y != want {
		t.Fatalf("first y = %v, want %v", pos[0].Y, want)
	}
	if got, want := pos[1].Y-pos[0].Y, heights[0]+cfg.VerticalGap; got != want {
		t.Fatalf("second offset = %v, want %v", got, want)
	}
	if got, want := pos[2].Y-pos[0].Y, heights[0]+heights[1]+2*cfg.VerticalGap; got != want {
		t.Fatalf("third offset = %v, want %v", got, want)
	}
	if pos[0].X != pos[1].X || pos[1].X != pos[2].X {
		t.Fatalf("same column drifted horizontally: %v", pos)
	}
	if err := ValidateNoOverlap(tracks, cfg); err != nil {
		t.Fatal(err)
	}
}

func TestNodePositionDeterministic(t *testing.T) {
	cfg := testConfig()
	a := Anchor{}.Lock(canvas.Point{X: 10, Y: 20}, 0, 0, cfg)
	tracks := RegisterNode(Tracks{}, 0, Entry{ID: "a", Row: 0, Y: 90, Height: 130}, 200)

	snapshot := map[int]Column{}
	for k, v := range tracks {
		snapshot[k] = Column{Entries: append([]Entry(nil), v.Entries...), MaxWidth: v.MaxWidth}
	}

	p1 := NodePosition(1, 0, a, tracks, cfg)
	p2 := NodePosition(1, 0, a, tracks, cfg)
	if p1 != p2 {
		t.Fatalf("same inputs gave %v then %v", p1, p2)
	}
	if !reflect.DeepEqual(map[int]Column(tracks), snapshot) {
		t.Fatalf("NodePosition mutated its input tracks")
	}
}

func TestRegisterNodeDoesNotMutate(t *testing.T) {
	orig := RegisterNode(Tracks{}, 0, Entry{ID: "a", Row: 0, Y: 70, Height: 100}, 200)
	_ = RegisterNode(orig, 0, Entry{ID: "b", Row: 1, Y: 210, Height: 100}, 250)

	c := orig[0]
	if len(c.Entries) != 1 || c.Entries[0].ID != "a" {
		t.Fatalf("original tracks changed: %+v", c.Entries)
	}
	if c.MaxWidth != 200 {
		t.Fatalf("original max width changed: %v", c.MaxWidth)
	}
}

func TestRegisterNodeReplacesSameID(t *testing.T) {
	tracks := RegisterNode(Tracks{}, 0, Entry{ID: "a", Row: 0, Y: 70, Height: 100}, 200)
	tracks = RegisterNode(tracks, 0, Entry{ID: "a", Row: 0, Y: 70, Height: 260}, 200)

	c := tracks[0]
	if len(c.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(c.Entries))
	}
	if c.Entries[0].Height != 260 {
		t.Fatalf("got height %v, want 260", c.Entries[0].Height)
	}
}

func TestColumnOffsets(t *testing.T) {
	cfg := testConfig()
	a := Anchor{}.Lock(canvas.Point{}, 0, 0, cfg)
	tracks := Tracks{}

	base := NodePosition(0, 0, a, tracks, cfg)
	right := NodePosition(0, 1, a, tracks, cfg)
	left := NodePosition(0, -1, a, tracks, cfg)

	if got, want := right.X-base.X, cfg.NodeWidth+cfg.HorizontalGap; got != want {
		t.Fatalf("column 1 offset = %v, want %v", got, want)
	}
	if got, want := base.X-left.X, cfg.NodeWidth+cfg.HorizontalGap; got != want {
		t.Fatalf("column -1 offset = %v, want %v", got, want)
	}

	// A wider element in column 0 pushes column 1 further right.
	tracks = RegisterNode(tracks, 0, Entry{ID: "wide", Row: 0, Y: base.Y, Height: 100}, 320)
	right = NodePosition(0, 1, a, tracks, cfg)
	if got, want := right.X-base.X, 320+cfg.HorizontalGap; got != want {
		t.Fatalf("column 1 offset after widening = %v, want %v", got, want)
	}
}

func TestSafeZoneReservation(t *testing.T) {
	cfg := testConfig()

	plain := Anchor{}.Lock(canvas.Point{}, 0, 0, cfg)
	left := Anchor{Incoming: SideLeft}.Lock(canvas.Point{}, 0, 0, cfg)
	top := Anchor{Incoming: SideTop}.Lock(canvas.Point{}, 0, 0, cfg)

	p0 := NodePosition(0, 0, plain, Tracks{}, cfg)
	pl := NodePosition(0, 0, left, Tracks{}, cfg)
	pt := NodePosition(0, 0, top, Tracks{}, cfg)

	if got := pl.X - p0.X; got != cfg.SafeZone {
		t.Fatalf("left safe zone = %v, want %v", got, cfg.SafeZone)
	}
	if pl.Y != p0.Y {
		t.Fatalf("left safe zone must not move y: %v vs %v", pl.Y, p0.Y)
	}
	if got := pt.Y - p0.Y; got != cfg.SafeZone {
		t.Fatalf("top safe zone = %v, want %v", got, cfg.SafeZone)
	}
}

func TestAnchorLockIsFinal(t *testing.T) {
	cfg := testConfig()
	a := Anchor{}.Lock(canvas.Point{X: 5, Y: 5}, 2, 3, cfg)
	b := a.Lock(canvas.Point{X: 99, Y: 99}, 0, 0, cfg)

	if b != a {
		t.Fatalf("relocking changed the anchor: %+v vs %+v", b, a)
	}
}

func TestNormalizeFirstSeenIsZero(t *testing.T) {
	cfg := testConfig()
	a := Anchor{}.Lock(canvas.Point{}, 5, 3, cfg)

	if r, c := a.Normalize(5, 3, cfg); r != 0 || c != 0 {
		t.Fatalf("first-seen normalized to (%d,%d), want (0,0)", r, c)
	}
	// Smaller coordinates arriving later go negative instead of shifting
	// everything already placed.
	if r, c := a.Normalize(4, 1, cfg); r != -1 || c != -2 {
		t.Fatalf("got (%d,%d), want (-1,-2)", r, c)
	}
	// Out-of-range coordinates clamp instead of exploding the surface.
	if r, _ := a.Normalize(100000, 3, cfg); r != cfg.MaxGrid-5 {
		t.Fatalf("got row %d, want clamped %d", r, cfg.MaxGrid-5)
	}
}

func TestRepositionCascade(t *testing.T) {
	cfg := testConfig()
	a := Anchor{}.Lock(canvas.Point{}, 0, 0, cfg)
	tracks := Tracks{}

	var pos [3]canvas.Point
	for i, h := range []float64{100, 300, 100} {
		pos[i], tracks = place(t, tracks, a, []string{"a", "b", "c"}[i], i, 0, h, cfg)
	}

	// a grew from 100 to 200: everything below must move down by 100,
	// chaining off recomputed positions.
	tracks = RegisterNode(tracks, 0, Entry{ID: "a", Row: 0, Y: pos[0].Y, Height: 200}, cfg.NodeWidth)
	shifts := Reposition(tracks, 0, 0, cfg)
	if len(shifts) != 2 {
		t.Fatalf("got %d shifts, want 2: %+v", len(shifts), shifts)
	}
	if shifts[0].ID != "b" || shifts[0].Y != pos[1].Y+100 {
		t.Fatalf("b shifted to %+v, want y %v", shifts[0], pos[1].Y+100)
	}
	if shifts[1].ID != "c" || shifts[1].Y != pos[2].Y+100 {
		t.Fatalf("c shifted to %+v, want y %v", shifts[1], pos[2].Y+100)
	}
}

func TestRepositionTolerance(t *testing.T) {
	cfg := testConfig()
	a := Anchor{}.Lock(canvas.Point{}, 0, 0, cfg)
	tracks := Tracks{}

	var pos [2]canvas.Point
	for i, h := range []float64{100, 100} {
		pos[i], tracks = place(t, tracks, a, []string{"a", "b"}[i], i, 0, h, cfg)
	}

	// Sub-pixel growth is visual noise, not worth a move.
	tracks = RegisterNode(tracks, 0, Entry{ID: "a", Row: 0, Y: pos[0].Y, Height: 100.5}, cfg.NodeWidth)
	if shifts := Reposition(tracks, 0, 0, cfg); len(shifts) != 0 {
		t.Fatalf("sub-pixel change produced shifts: %+v", shifts)
	}
}

func TestDetectOverlaps(t *testing.T) {
	cfg := testConfig()
	tracks := RegisterNode(Tracks{}, 0, Entry{ID: "a", Row: 0, Y: 70, Height: 200}, 200)
	tracks = RegisterNode(tracks, 0, Entry{ID: "b", Row: 1, Y: 150, Height: 100}, 200)

	if err := ValidateNoOverlap(tracks, cfg); err == nil {
		t.Fatal("overlap not detected")
	}
	shifts := DetectOverlaps(tracks, cfg)
	if len(shifts) != 1 || shifts[0].ID != "b" {
		t.Fatalf("got %+v, want corrective shift for b", shifts)
	}
	if want := 70 + 200 + cfg.VerticalGap; shifts[0].Y != float64(want) {
		t.Fatalf("corrective y = %v, want %v", shifts[0].Y, want)
	}
}

func TestGroupBoundsMonotonic(t *testing.T) {
	cfg := testConfig()
	a := Anchor{}.Lock(canvas.Point{X: 100, Y: 100}, 0, 0, cfg)

	members := []canvas.Rect{{
		Point: canvas.Point{X: 120, Y: 170},
		Size:  canvas.Size{Width: 200, Height: 100},
	}}
	b1 := GroupBounds(canvas.Size{}, members, a, cfg)
	if want := 120 + 200 - 100 + cfg.Padding; b1.Width != float64(want) {
		t.Fatalf("width = %v, want %v", b1.Width, want)
	}

	// A member growing taller grows the bounds.
	members[0].Height = 300
	b2 := GroupBounds(b1, members, a, cfg)
	if b2.Height <= b1.Height || b2.Width != b1.Width {
		t.Fatalf("bounds %v -> %v, want taller only", b1, b2)
	}

	// Members shrinking never shrinks the bounds.
	members[0].Size = canvas.Size{Width: 50, Height: 50}
	b3 := GroupBounds(b2, members, a, cfg)
	if b3 != b2 {
		t.Fatalf("bounds shrank: %v -> %v", b2, b3)
	}
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	got := Config{}.WithDefaults()
	if got != Default() {
		t.Fatalf("got %+v, want %+v", got, Default())
	}

	partial := Config{NodeWidth: 500}.WithDefaults()
	if partial.NodeWidth != 500 || partial.VerticalGap != Default().VerticalGap {
		t.Fatalf("partial override broken: %+v", partial)
	}
}
