package surface

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/canvasflow/canvasflow/pkg/canvas"
)

// SizeFunc decides the actual rendered size of an element from its content
// and the requested size. The default wraps nothing fancier than a
// line-count heuristic.
type SizeFunc func(content string, requested canvas.Size) canvas.Size

// Recorder is an in-memory [Adapter]. It backs the CLI's offline rendering
// and doubles as the substitutable fake for session tests: every operation
// is recorded and can be inspected afterwards.
type Recorder struct {
	// Sizer computes actual rendered sizes. Nil uses [LineCountSizer].
	Sizer SizeFunc

	seq        int
	elements   map[Handle]*Recorded
	order      []Handle
	connectors []RecordedConnector
	batches    [][]Move
	removed    []Handle
	grown      map[string]canvas.Size
}

// Recorded is one realized element with its current state.
type Recorded struct {
	Element
	Handle Handle
	// Actual is the rendered size reported back to the session.
	Actual canvas.Size
	// Updates counts content updates applied after creation.
	Updates int
}

// RecordedConnector is one realized edge.
type RecordedConnector struct {
	From, To Handle
	Dir      canvas.Direction
	Label    string
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		elements: make(map[Handle]*Recorded),
		grown:    make(map[string]canvas.Size),
	}
}

// LineCountSizer keeps the requested width and stretches height to fit the
// content line count at 24px per line, never below the requested height.
func LineCountSizer(content string, requested canvas.Size) canvas.Size {
	lines := strings.Count(content, "\n") + 1
	if h := float64(lines)*24 + 16; h > requested.Height {
		requested.Height = h
	}
	return requested
}

func (r *Recorder) size(content string, requested canvas.Size) canvas.Size {
	if r.Sizer != nil {
		return r.Sizer(content, requested)
	}
	return LineCountSizer(content, requested)
}

func (r *Recorder) CreateElement(_ context.Context, el Element) (Handle, canvas.Size, error) {
	r.seq++
	h := Handle(fmt.Sprintf("el-%d", r.seq))
	actual := el.Size
	if !el.Container {
		actual = r.size(el.Content, el.Size)
	}
	r.elements[h] = &Recorded{Element: el, Handle: h, Actual: actual}
	r.order = append(r.order, h)
	return h, actual, nil
}

func (r *Recorder) UpdateElementContent(_ context.Context, h Handle, content string) (canvas.Size, error) {
	el, ok := r.elements[h]
	if !ok {
		return canvas.Size{}, fmt.Errorf("surface: unknown handle %q", h)
	}
	el.Content = content
	el.Updates++
	el.Actual = r.size(content, el.Size)
	return el.Actual, nil
}

func (r *Recorder) RemoveElement(_ context.Context, h Handle) error {
	if _, ok := r.elements[h]; !ok {
		return fmt.Errorf("surface: unknown handle %q", h)
	}
	delete(r.elements, h)
	r.removed = append(r.removed, h)
	return nil
}

func (r *Recorder) CreateConnector(_ context.Context, from, to Handle, dir canvas.Direction, label string) (Handle, error) {
	if _, ok := r.elements[from]; !ok {
		return "", fmt.Errorf("surface: unknown handle %q", from)
	}
	if _, ok := r.elements[to]; !ok {
		return "", fmt.Errorf("surface: unknown handle %q", to)
	}
	r.connectors = append(r.connectors, RecordedConnector{From: from, To: to, Dir: dir, Label: label})
	r.seq++
	return Handle(fmt.Sprintf("conn-%d", r.seq)), nil
}

func (r *Recorder) BatchReposition(_ context.Context, moves []Move) error {
	for _, m := range moves {
		el, ok := r.elements[m.Handle]
		if !ok {
			return fmt.Errorf("surface: unknown handle %q", m.Handle)
		}
		el.Pos.Y = m.Y
	}
	r.batches = append(r.batches, moves)
	return nil
}

func (r *Recorder) ClearContainerMembers(_ context.Context, containerID string) ([]Handle, error) {
	var removed []Handle
	for h, el := range r.elements {
		if !el.Container && el.ContainerID == containerID {
			removed = append(removed, h)
			delete(r.elements, h)
		}
	}
	r.removed = append(r.removed, removed...)
	return removed, nil
}

func (r *Recorder) GrowContainer(_ context.Context, containerID string, size canvas.Size) error {
	cur := r.grown[containerID]
	if size.Width < cur.Width || size.Height < cur.Height {
		return fmt.Errorf("surface: container %q shrank: %v -> %v", containerID, cur, size)
	}
	r.grown[containerID] = size
	for _, el := range r.elements {
		if el.Container && el.ID == containerID {
			el.Size = size
			el.Actual = size
		}
	}
	return nil
}

// Lookup returns the recorded element for a semantic id.
func (r *Recorder) Lookup(id string) (*Recorded, bool) {
	for _, el := range r.elements {
		if el.ID == id {
			return el, true
		}
	}
	return nil, false
}

// Elements returns all live elements in creation order.
func (r *Recorder) Elements() []*Recorded {
	out := make([]*Recorded, 0, len(r.elements))
	for _, h := range r.order {
		if el, ok := r.elements[h]; ok {
			out = append(out, el)
		}
	}
	return out
}

// Connectors returns all realized connectors in creation order.
func (r *Recorder) Connectors() []RecordedConnector {
	return r.connectors
}

// Batches returns every BatchReposition call with its moves.
func (r *Recorder) Batches() [][]Move {
	return r.batches
}

// ContainerSize returns the last grown size for a container id.
func (r *Recorder) ContainerSize(containerID string) (canvas.Size, bool) {
	s, ok := r.grown[containerID]
	return s, ok
}

// Dump renders a deterministic plain-text summary of the surface, sorted by
// position. Useful in golden-style tests and CLI output.
func (r *Recorder) Dump() string {
	els := r.Elements()
	sort.SliceStable(els, func(i, j int) bool {
		if els[i].Pos.X != els[j].Pos.X {
			return els[i].Pos.X < els[j].Pos.X
		}
		return els[i].Pos.Y < els[j].Pos.Y
	})
	var b strings.Builder
	for _, el := range els {
		tag := "node"
		if el.Container {
			tag = "group"
		}
		fmt.Fprintf(&b, "%s %s (%.0f,%.0f) %gx%g\n", tag, el.ID, el.Pos.X, el.Pos.Y, el.Actual.Width, el.Actual.Height)
	}
	for _, c := range r.connectors {
		fmt.Fprintf(&b, "edge %s -> %s %s\n", c.From, c.To, c.Dir)
	}
	return b.String()
}
