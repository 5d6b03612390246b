package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/canvasflow/canvasflow/pkg/canvas"
	"github.com/canvasflow/canvasflow/pkg/layout"
	"github.com/canvasflow/canvasflow/pkg/llmsource"
	"github.com/canvasflow/canvasflow/pkg/markup"
	"github.com/canvasflow/canvasflow/pkg/surface"
)

// Session drives generations against one surface adapter. It is not safe
// for concurrent use except [Session.Abort], which may be called from any
// goroutine. A session is reusable: complete and error states accept a new
// generation.
type Session struct {
	logger  *slog.Logger
	cfg     layout.Config
	adapter surface.Adapter
	cb      Callbacks

	status  Status
	aborted atomic.Bool
	opts    Options

	parser *markup.Parser

	nodes   map[string]*nodeState
	nodeIDs []string // creation order

	edges       []canvas.Edge
	edgeSeen    map[string]bool
	pendingEdge []canvas.Edge
	pendingSeen map[string]bool

	// incoming maps an element or group id to the id of the first edge
	// source pointing at it; captured before placement so containers can
	// reserve a safe zone on the side the edge enters from.
	incoming map[string]string

	contexts map[string]*placement // keyed by group id; "" is free-floating

	// groupMeta remembers group attributes seen in the stream (including
	// still-open groups) for on-demand frame creation.
	groupMeta map[string]canvas.Group

	// adopted maps node id to the member-reference group that encloses
	// it, for bounds growth on later content updates.
	adopted map[string]string

	progress int
	lastErr  error
}

// nodeState is the session-side record of a realized node.
type nodeState struct {
	node   canvas.Node
	pos    canvas.Point
	size   canvas.Size
	handle surface.Handle
	ctxID  string
	row    int // normalized
	col    int // normalized
}

// placement is one layout context: the free surface or a container.
type placement struct {
	id     string // group id, empty for the free context
	title  string
	anchor layout.Anchor
	tracks layout.Tracks
	bounds canvas.Size
	handle surface.Handle

	// framePos is the container frame corner; it equals the anchor
	// position once the anchor locks. frameRow/frameCol locate the frame
	// inside the free context, so frame growth can cascade elements
	// below it.
	framePos canvas.Point
	frameRow int
	frameCol int
}

// NewSession creates a session over the given adapter. The logger is the
// session's debug output; nil falls back to [slog.Default].
func NewSession(adapter surface.Adapter, cfg layout.Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		logger:  logger,
		cfg:     cfg.WithDefaults(),
		adapter: adapter,
	}
	s.clear()
	return s
}

// SetCallbacks replaces the session's callbacks. Call before starting a
// generation.
func (s *Session) SetCallbacks(cb Callbacks) { s.cb = cb }

// Status returns the current lifecycle state.
func (s *Session) Status() Status { return s.status }

// Progress returns the current progress estimate, 0..100.
func (s *Session) Progress() int { return s.progress }

// Err returns the error of the last failed generation, if any.
func (s *Session) Err() error { return s.lastErr }

// Nodes returns the latest descriptors of all realized nodes in creation
// order.
func (s *Session) Nodes() []canvas.Node {
	out := make([]canvas.Node, 0, len(s.nodeIDs))
	for _, id := range s.nodeIDs {
		out = append(out, s.nodes[id].node)
	}
	return out
}

// Edges returns all realized edges in realization order.
func (s *Session) Edges() []canvas.Edge {
	out := make([]canvas.Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// NodePosition returns the assigned position of a realized node.
func (s *Session) NodePosition(id string) (canvas.Point, bool) {
	st, ok := s.nodes[id]
	if !ok {
		return canvas.Point{}, false
	}
	return st.pos, true
}

// clear resets all session bookkeeping. The parser, element maps, edge
// tracking, error and progress all go; contexts go too unless re-seeded by
// the caller (regeneration with preserved bounds).
func (s *Session) clear() {
	s.parser = markup.NewParser(s.logger)
	s.nodes = make(map[string]*nodeState)
	s.nodeIDs = nil
	s.edges = nil
	s.edgeSeen = make(map[string]bool)
	s.pendingEdge = nil
	s.pendingSeen = make(map[string]bool)
	s.incoming = make(map[string]string)
	s.contexts = make(map[string]*placement)
	s.groupMeta = make(map[string]canvas.Group)
	s.adopted = make(map[string]string)
	s.progress = 0
	s.lastErr = nil
}

// transition moves the state machine, rejecting invalid moves as warned
// no-ops.
func (s *Session) transition(to Status) bool {
	ok := false
	switch to {
	case StatusIdle:
		ok = true // explicit reset or abort, from any state
	case StatusStreaming:
		ok = s.status == StatusIdle || s.status == StatusComplete || s.status == StatusError
	case StatusComplete, StatusError:
		ok = s.status == StatusStreaming
	}
	if !ok {
		s.logger.Warn("stream: invalid transition", "from", s.status, "to", to)
		return false
	}
	s.status = to
	return true
}

// Start begins a generation. Valid from idle, complete and error. When
// regenerating into an existing container it captures the container's
// bounds, clears its members if asked, and re-seeds the placement context so
// the anchor is reused, never relocked.
func (s *Session) Start(ctx context.Context, opts Options) error {
	if s.status == StatusStreaming {
		s.logger.Warn("stream: start rejected, already streaming")
		return ErrInvalidTransition
	}

	var keep *placement
	if opts.TargetContainerID != "" {
		if pc, ok := s.contexts[opts.TargetContainerID]; ok {
			if opts.ClearExisting {
				if _, err := s.adapter.ClearContainerMembers(ctx, pc.id); err != nil {
					return err
				}
			}
			if opts.PreserveBounds {
				acquired := *pc
				acquired.tracks = layout.Tracks{}
				keep = &acquired
			}
		}
	}

	s.aborted.Store(false)
	s.clear()
	s.opts = opts
	if keep != nil {
		s.contexts[keep.id] = keep
	}

	s.transition(StatusStreaming)
	if s.cb.OnStart != nil {
		s.cb.OnStart()
	}
	return nil
}

// Abort requests cooperative cancellation. The flag is checked before each
// chunk and before completion; in-flight adapter calls for the current chunk
// finish, then no further chunks are processed and no terminal callback
// fires. Realized elements stay exactly as they are.
func (s *Session) Abort() {
	s.aborted.Store(true)
}

// Reset returns the session to idle and clears all session data. Realized
// elements on the surface are untouched; only bookkeeping is dropped.
func (s *Session) Reset() {
	s.transition(StatusIdle)
	s.aborted.Store(false)
	s.clear()
}

// Generate runs a whole generation: Start, pull chunks from the source
// until it ends, then finish with complete or error. A truncated source is
// treated as a clean end with a warning: everything parsed so far is kept.
func (s *Session) Generate(ctx context.Context, src llmsource.Source, opts Options) error {
	if err := s.Start(ctx, opts); err != nil {
		return err
	}
	defer src.Close()

	for {
		if s.aborted.Load() {
			s.finishAborted()
			return nil
		}
		chunk, err := src.Next()
		if chunk != "" {
			if perr := s.ProcessChunk(ctx, chunk); perr != nil {
				return perr
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, llmsource.ErrTruncated) {
			if errors.Is(err, llmsource.ErrTruncated) {
				s.logger.Warn("stream: generation truncated, completing with partial content")
			}
			s.finishComplete()
			return nil
		}
		s.fail(err)
		return err
	}
}

// ProcessChunk feeds one chunk through the pipeline: parse, then realize
// complete edges first (dependency information before dependent elements),
// then complete groups and nodes, then best-effort previews, then retry
// deferred edges and refresh progress. Public so tests and offline tools
// can drive the session directly.
func (s *Session) ProcessChunk(ctx context.Context, text string) error {
	if s.status != StatusStreaming {
		s.logger.Warn("stream: chunk ignored, not streaming", "status", s.status)
		return nil
	}
	if s.aborted.Load() {
		return nil
	}

	s.parser.Append(text)

	for _, e := range s.parser.CompleteEdges() {
		s.queueEdge(e)
	}
	for _, g := range s.parser.CompleteGroups() {
		if err := s.realizeGroup(ctx, g); err != nil {
			s.fail(err)
			return err
		}
	}
	for _, n := range s.parser.CompleteNodes() {
		if err := s.realizeNode(ctx, n); err != nil {
			s.fail(err)
			return err
		}
	}
	for _, g := range s.parser.OpenGroups() {
		if _, ok := s.groupMeta[g.ID]; !ok {
			s.groupMeta[g.ID] = g
		}
	}
	for _, n := range s.parser.IncompleteNodes() {
		if err := s.realizeNode(ctx, n); err != nil {
			s.fail(err)
			return err
		}
	}
	if err := s.flushEdges(ctx); err != nil {
		s.fail(err)
		return err
	}
	s.updateProgress(false)
	return nil
}

// finishComplete ends the generation cleanly: dangling edges are dropped
// with reference warnings, progress hits exactly 100, then the terminal
// callback fires. Skipped entirely when aborted.
func (s *Session) finishComplete() {
	if s.aborted.Load() {
		s.finishAborted()
		return
	}
	for _, e := range s.pendingEdge {
		s.logger.Warn("stream: edge references unrealized element, dropped",
			"from", e.From, "to", e.To)
	}
	s.pendingEdge = nil

	if !s.transition(StatusComplete) {
		return
	}
	s.updateProgress(true)
	if s.cb.OnComplete != nil {
		s.cb.OnComplete()
	}
}

// finishAborted transitions to idle without any terminal callback.
func (s *Session) finishAborted() {
	s.transition(StatusIdle)
}

// fail ends the generation with an error. The error surfaces through
// OnError exactly once; realized elements are left in place.
func (s *Session) fail(err error) {
	if !s.transition(StatusError) {
		return
	}
	s.lastErr = err
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}

// updateProgress recomputes the monotonic estimate and emits OnProgress
// when it moved. The heuristic divides realized elements by an assumed
// total; it saturates at 99 until completion.
func (s *Session) updateProgress(final bool) {
	p := s.progress
	if final {
		p = 100
	} else {
		assumed := s.opts.AssumedElements
		if assumed <= 0 {
			assumed = 12
		}
		realized := len(s.nodeIDs) + len(s.edges)
		if est := realized * 100 / assumed; est > p {
			p = est
		}
		if p > 99 {
			p = 99
		}
	}
	if p == s.progress {
		return
	}
	s.progress = p
	if s.cb.OnProgress != nil {
		s.cb.OnProgress(p)
	}
}
