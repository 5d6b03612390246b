// Package layout computes stable on-surface positions for streamed elements.
// All functions are pure: inputs are never mutated and results are returned
// as new values, so a position computed for the same inputs is always
// identical. Columns stack dynamically on actual rendered heights, container
// bounds only grow, and positions once assigned are never revised by the
// engine itself; cascading after a mid-stream resize is an explicit,
// separate computation.
package layout

import (
	"fmt"
	"math"
	"slices"

	"github.com/canvasflow/canvasflow/pkg/canvas"
)

// repositionTolerance is the Y delta below which a cascade shift is dropped
// as visual noise.
const repositionTolerance = 1.0

// Side identifies where a container's incoming edge enters from.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideTop
	SideRight
	SideBottom
)

// Anchor is the fixed origin of a placement context. Its position is locked
// the instant the first member is realized; the row/col minima captured then
// normalize the grid so the first-seen coordinate in each axis becomes zero.
type Anchor struct {
	// Pos is the pixel origin. Immutable once Locked.
	Pos canvas.Point

	// Locked reports whether Pos has been fixed.
	Locked bool

	// MinRow and MinCol are the normalization origin, captured from the
	// first observed element. Later elements may normalize to negative
	// coordinates; that is fine, distinct grid cells stay distinct.
	MinRow int
	MinCol int

	// Incoming is the side the container's incoming edge enters from,
	// reserving a safe zone on that side.
	Incoming Side
}

// Lock returns the anchor locked at pos with the normalization origin taken
// from the first element's clamped coordinates. Locking a locked anchor is a
// no-op: the original is returned unchanged.
func (a Anchor) Lock(pos canvas.Point, row, col int, cfg Config) Anchor {
	if a.Locked {
		return a
	}
	cfg = cfg.WithDefaults()
	a.Pos = pos
	a.MinRow = clampGrid(row, cfg.MaxGrid)
	a.MinCol = clampGrid(col, cfg.MaxGrid)
	a.Locked = true
	return a
}

// Normalize clamps raw grid coordinates and shifts them by the anchor's
// normalization origin.
func (a Anchor) Normalize(row, col int, cfg Config) (int, int) {
	cfg = cfg.WithDefaults()
	return clampGrid(row, cfg.MaxGrid) - a.MinRow, clampGrid(col, cfg.MaxGrid) - a.MinCol
}

// Entry is one placed element in a column track.
type Entry struct {
	ID     string
	Row    int // normalized row
	Y      float64
	Height float64
}

// Column is the per-column bookkeeping of placed elements, sorted by row.
// MaxWidth is the widest element observed in the column and never shrinks.
type Column struct {
	Entries  []Entry
	MaxWidth float64
}

// Tracks maps normalized column index to its column. One track set exists
// per placement context (container or free-floating).
type Tracks map[int]Column

// Shift is a corrective vertical move produced by a cascade.
type Shift struct {
	ID string
	Y  float64
}

// NodePosition computes the pixel position for an element at the given raw
// grid coordinates. The anchor must already be locked. Neither the anchor
// nor the tracks are mutated; callers that keep the element must register it
// with [RegisterNode] afterwards.
func NodePosition(row, col int, a Anchor, tracks Tracks, cfg Config) canvas.Point {
	cfg = cfg.WithDefaults()
	nr, nc := a.Normalize(row, col, cfg)

	x := a.Pos.X + cfg.Padding + columnOffset(nc, tracks, cfg)
	if a.Incoming == SideLeft {
		x += cfg.SafeZone
	}

	prev, ok := previousInColumn(tracks[nc], nr)
	if !ok {
		y := a.Pos.Y + cfg.HeaderHeight + cfg.Padding
		if a.Incoming == SideTop {
			y += cfg.SafeZone
		}
		return canvas.Point{X: x, Y: y}
	}
	return canvas.Point{X: x, Y: prev.Y + prev.Height + cfg.VerticalGap}
}

// RegisterNode returns tracks with the entry inserted into column col,
// keeping the column sorted by row. An entry with the same id replaces its
// old slot (moving it if the row changed). The column's max width grows to
// cover width and never shrinks. The input tracks are left untouched.
func RegisterNode(tracks Tracks, col int, e Entry, width float64) Tracks {
	out := make(Tracks, len(tracks)+1)
	for k, v := range tracks {
		out[k] = v
	}

	c := out[col]
	entries := make([]Entry, 0, len(c.Entries)+1)
	for _, old := range c.Entries {
		if old.ID == e.ID {
			continue
		}
		entries = append(entries, old)
	}
	at, _ := slices.BinarySearchFunc(entries, e, func(a, b Entry) int {
		return a.Row - b.Row
	})
	entries = slices.Insert(entries, at, e)
	c.Entries = entries
	if width > c.MaxWidth {
		c.MaxWidth = width
	}
	out[col] = c
	return out
}

// Reposition recomputes Y for every element strictly below changedRow in
// column col, cascading the stacking formula on actual heights. The tracks
// must already hold the changed element's new height. Only shifts larger
// than a one pixel tolerance are returned; the tracks are not mutated, and
// callers apply the shifts by re-registering the moved entries.
func Reposition(tracks Tracks, col, changedRow int, cfg Config) []Shift {
	cfg = cfg.WithDefaults()
	c, ok := tracks[col]
	if !ok {
		return nil
	}

	// Work on a clone so the caller's tracks stay untouched; the cascade
	// must chain off recomputed positions, not stale ones.
	entries := slices.Clone(c.Entries)

	var shifts []Shift
	var prev *Entry
	for i := range entries {
		if entries[i].Row <= changedRow || prev == nil {
			prev = &entries[i]
			continue
		}
		y := prev.Y + prev.Height + cfg.VerticalGap
		if math.Abs(y-entries[i].Y) > repositionTolerance {
			shifts = append(shifts, Shift{ID: entries[i].ID, Y: y})
		}
		entries[i].Y = y
		prev = &entries[i]
	}
	return shifts
}

// DetectOverlaps scans every column for adjacent pairs violating the gap
// invariant and returns corrective target positions. It is a safety net;
// regular placement never produces overlaps.
func DetectOverlaps(tracks Tracks, cfg Config) []Shift {
	cfg = cfg.WithDefaults()
	var shifts []Shift
	for _, col := range sortedColumns(tracks) {
		c := tracks[col]
		for i := 1; i < len(c.Entries); i++ {
			prev, e := c.Entries[i-1], c.Entries[i]
			floor := prev.Y + prev.Height + cfg.VerticalGap
			if e.Y < floor-repositionTolerance {
				shifts = append(shifts, Shift{ID: e.ID, Y: floor})
			}
		}
	}
	return shifts
}

// ValidateNoOverlap reports the first gap-invariant violation found, or nil.
func ValidateNoOverlap(tracks Tracks, cfg Config) error {
	cfg = cfg.WithDefaults()
	for _, col := range sortedColumns(tracks) {
		c := tracks[col]
		for i := 1; i < len(c.Entries); i++ {
			prev, e := c.Entries[i-1], c.Entries[i]
			if e.Y < prev.Y+prev.Height+cfg.VerticalGap-repositionTolerance {
				return fmt.Errorf("layout: overlap in column %d: %s (row %d, y %.1f) under %s (row %d, y %.1f, h %.1f)",
					col, e.ID, e.Row, e.Y, prev.ID, prev.Row, prev.Y, prev.Height)
			}
		}
	}
	return nil
}

// GroupBounds returns the size needed for a container to enclose all member
// boxes plus padding, never smaller than current in either axis. The anchor
// position itself is not part of the result.
func GroupBounds(current canvas.Size, members []canvas.Rect, a Anchor, cfg Config) canvas.Size {
	cfg = cfg.WithDefaults()
	need := canvas.Size{}
	for _, m := range members {
		if w := m.X + m.Width - a.Pos.X + cfg.Padding; w > need.Width {
			need.Width = w
		}
		if h := m.Y + m.Height - a.Pos.Y + cfg.Padding; h > need.Height {
			need.Height = h
		}
	}
	if current.Width > need.Width {
		need.Width = current.Width
	}
	if current.Height > need.Height {
		need.Height = current.Height
	}
	return need
}

// columnOffset is the horizontal distance from the content origin to column
// nc: the widths of all columns between zero and nc plus gaps. Unseen
// columns count at the default element width. Negative normalized columns
// sit left of the origin.
func columnOffset(nc int, tracks Tracks, cfg Config) float64 {
	width := func(c int) float64 {
		if col, ok := tracks[c]; ok && col.MaxWidth > 0 {
			return col.MaxWidth
		}
		return cfg.NodeWidth
	}
	var off float64
	switch {
	case nc > 0:
		for c := 0; c < nc; c++ {
			off += width(c) + cfg.HorizontalGap
		}
	case nc < 0:
		for c := nc; c < 0; c++ {
			off -= width(c) + cfg.HorizontalGap
		}
	}
	return off
}

// previousInColumn finds the entry with the highest row strictly below row.
func previousInColumn(c Column, row int) (Entry, bool) {
	for i := len(c.Entries) - 1; i >= 0; i-- {
		if c.Entries[i].Row < row {
			return c.Entries[i], true
		}
	}
	return Entry{}, false
}

func sortedColumns(tracks Tracks) []int {
	cols := make([]int, 0, len(tracks))
	for c := range tracks {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}

func clampGrid(v, max int) int {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}
