// Package stream orchestrates a streamed generation end to end: it feeds raw
// chunks to the markup parser, asks the layout engine for a position per
// element, realizes elements through the injected surface adapter and fires
// lifecycle callbacks in a fixed order.
//
// A session is a four-state machine (idle, streaming, complete, error).
// Processing is single-threaded and chunk-at-a-time: one chunk's full
// consequences (parse, layout, realize, callback) land before the next
// chunk is accepted. Cancellation is cooperative and leaves already realized
// elements untouched.
package stream

import (
	"errors"

	"github.com/canvasflow/canvasflow/pkg/canvas"
)

// ErrInvalidTransition is returned when an operation is rejected because the
// session is in the wrong state. The operation is a no-op; the session never
// panics on misuse.
var ErrInvalidTransition = errors.New("stream: invalid state transition")

// Status is the session lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusComplete
	StatusError
)

// String returns the lowercase state name.
func (s Status) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	}
	return "idle"
}

// Callbacks receive lifecycle events. Any field may be nil. Per generation
// OnStart fires exactly once, OnProgress zero or more times, and exactly one
// of OnComplete or OnError terminates, unless the generation is aborted, in
// which case no terminal callback fires at all.
type Callbacks struct {
	OnStart       func()
	OnNodeCreated func(n canvas.Node, pos canvas.Point)
	OnNodeUpdated func(n canvas.Node, pos canvas.Point)
	OnEdgeCreated func(e canvas.Edge)
	OnProgress    func(pct int)
	OnComplete    func()
	OnError       func(err error)
}

// Options tune one generation.
type Options struct {
	// TargetContainerID streams free-floating nodes into an existing
	// container instead of the open surface.
	TargetContainerID string

	// ClearExisting wipes the target container's members through the
	// surface adapter before streaming.
	ClearExisting bool

	// PreserveBounds reuses the target container's anchor and current
	// size instead of recomputing them from zero. The anchor is reused,
	// never relocked.
	PreserveBounds bool

	// Origin anchors free-floating placement. Zero means surface origin.
	Origin canvas.Point

	// AssumedElements is the denominator of the progress heuristic.
	// Zero means a default guess. Progress is a monotonic estimate with
	// no accuracy contract; it reaches 100 only at completion.
	AssumedElements int
}
