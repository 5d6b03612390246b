// Package surface defines the contract between the stream session and the
// host rendering surface, plus an in-memory recording implementation. The
// session core never imports a concrete rendering library; hosts inject an
// [Adapter] and materialize layout decisions however they like.
package surface

import (
	"context"

	"github.com/canvasflow/canvasflow/pkg/canvas"
)

// Handle identifies a realized visual element on the host surface. It is
// opaque to the session; hosts choose their own scheme.
type Handle string

// Element describes a visual element to realize: a content node or a
// container frame.
type Element struct {
	// ID is the semantic id from the stream.
	ID string

	// Container marks a group frame rather than a content node.
	Container bool

	// Kind is the style hint; ignored for containers.
	Kind canvas.Kind

	// Title is the display title (the header text for containers).
	Title string

	// Content is the text body; empty for containers.
	Content string

	// ContainerID is the owning container's id, empty when free-floating.
	ContainerID string

	// Pos and Size are the layout decision. Hosts may render at a
	// different actual size; the returned size feeds dynamic stacking.
	Pos  canvas.Point
	Size canvas.Size
}

// Move is one entry of a batched repositioning.
type Move struct {
	Handle Handle
	Y      float64
}

// Adapter is the host rendering surface. All operations are sequential
// suspension points for the session: it fully processes one chunk's
// consequences before issuing the next.
type Adapter interface {
	// CreateElement realizes a new element and returns its handle along
	// with the actual rendered size, which may differ from the requested
	// one when content forces a different height.
	CreateElement(ctx context.Context, el Element) (Handle, canvas.Size, error)

	// UpdateElementContent replaces an element's text. The element's
	// current position must be preserved even if the update resizes it;
	// the new actual size is returned.
	UpdateElementContent(ctx context.Context, h Handle, content string) (canvas.Size, error)

	// RemoveElement removes a realized element.
	RemoveElement(ctx context.Context, h Handle) error

	// CreateConnector realizes an edge between two realized elements.
	CreateConnector(ctx context.Context, from, to Handle, dir canvas.Direction, label string) (Handle, error)

	// BatchReposition applies all moves as a single visual refresh,
	// never one refresh per entry.
	BatchReposition(ctx context.Context, moves []Move) error

	// ClearContainerMembers removes every member of a container, leaving
	// the container frame itself, and returns the removed handles.
	ClearContainerMembers(ctx context.Context, containerID string) ([]Handle, error)

	// GrowContainer resizes a container frame. Callers never pass a size
	// smaller than the container's current one.
	GrowContainer(ctx context.Context, containerID string, size canvas.Size) error
}
