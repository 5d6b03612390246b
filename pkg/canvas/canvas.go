// Package canvas defines the shared data model for streamed graph content:
// nodes, groups and edges parsed from the markup stream, and the geometric
// primitives the layout engine positions them with. Descriptors are identified
// by unique string ids within a session and carry the grid coordinates the
// model emitted, which may be negative.
package canvas

// Kind is a node's style hint. It only selects a color/shape on the rendering
// surface and never affects layout.
type Kind int

const (
	KindDefault Kind = iota
	KindIdea
	KindQuestion
	KindAction
	KindDecision
	KindNote
)

// ParseKind maps a markup type attribute to a Kind. Unknown values map to
// KindDefault; the caller decides whether that deserves a warning.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "", "default":
		return KindDefault, true
	case "idea":
		return KindIdea, true
	case "question":
		return KindQuestion, true
	case "action":
		return KindAction, true
	case "decision":
		return KindDecision, true
	case "note":
		return KindNote, true
	}
	return KindDefault, false
}

// String returns the markup name of the kind.
func (k Kind) String() string {
	switch k {
	case KindIdea:
		return "idea"
	case KindQuestion:
		return "question"
	case KindAction:
		return "action"
	case KindDecision:
		return "decision"
	case KindNote:
		return "note"
	}
	return "default"
}

// Direction is an edge's arrow style.
type Direction int

const (
	DirForward Direction = iota
	DirBidirectional
	DirNone
)

// ParseDirection maps a markup dir attribute to a Direction.
// Unknown values map to DirForward.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "", "forward":
		return DirForward, true
	case "bi":
		return DirBidirectional, true
	case "none":
		return DirNone, true
	}
	return DirForward, false
}

// String returns the markup name of the direction.
func (d Direction) String() string {
	switch d {
	case DirBidirectional:
		return "bi"
	case DirNone:
		return "none"
	}
	return "forward"
}

// Point is a position on the rendering surface, in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	Point
	Size
}

// Node is a content element parsed from the stream.
//
// Id, Row, Col and GroupID are fixed the first time the node is observed;
// Content and the derived rendered height may change on later observations
// of the same id.
type Node struct {
	// ID is the semantic identifier, unique within a session.
	ID string `json:"id"`

	// Kind is the style hint from the type attribute.
	Kind Kind `json:"kind"`

	// Title is an optional display title.
	Title string `json:"title,omitempty"`

	// Row and Col are grid coordinates as emitted by the model.
	// Both may be negative.
	Row int `json:"row"`
	Col int `json:"col"`

	// Content is the raw text body. Mutable while the node is open.
	Content string `json:"content"`

	// GroupID is the owning container id, empty for free-floating nodes.
	GroupID string `json:"group_id,omitempty"`

	// Complete reports whether the closing tag has been consumed.
	// A complete node's content is final.
	Complete bool `json:"complete"`
}

// Edge is a directed connection between two nodes. Immutable once parsed.
type Edge struct {
	// From and To are node ids.
	From string `json:"from"`
	To   string `json:"to"`

	// Dir is the arrow style.
	Dir Direction `json:"dir"`

	// Label is an optional caption shown on the connector.
	Label string `json:"label,omitempty"`
}

// Key returns the dedupe key for the edge. A (from,to) pair is realized at
// most once regardless of direction or label.
func (e Edge) Key() string {
	return e.From + "\x00" + e.To
}

// Group is a container of nodes. Its position is locked when its first
// member is realized; its size only grows.
type Group struct {
	// ID is the container identifier, unique within a session.
	ID string `json:"id"`

	// Title is the container's header text.
	Title string `json:"title"`

	// Row and Col position the group itself when it was authored with
	// grid coordinates (nested-node form).
	Row int `json:"row"`
	Col int `json:"col"`

	// Nodes are members authored inline inside the group tag.
	Nodes []Node `json:"nodes,omitempty"`

	// MemberIDs are references to previously authored nodes
	// (member-reference form). Mutually exclusive with Nodes.
	MemberIDs []string `json:"member_ids,omitempty"`

	// Bounds is the group's current bounding box on the surface.
	Bounds Rect `json:"bounds"`
}
