package stream

import (
	"context"

	"github.com/canvasflow/canvasflow/pkg/canvas"
	"github.com/canvasflow/canvasflow/pkg/layout"
	"github.com/canvasflow/canvasflow/pkg/surface"
)

// freeContext returns the free-floating placement context, creating it on
// first use. Its anchor stays unlocked until the first free element.
func (s *Session) freeContext() *placement {
	pc, ok := s.contexts[""]
	if !ok {
		pc = &placement{tracks: layout.Tracks{}}
		s.contexts[""] = pc
	}
	return pc
}

// groupContext returns the placement context for a container, realizing the
// container frame on first sight. The frame itself is placed like an
// element in the free grid at the group's row/col, so frames and free nodes
// share one non-overlapping column system.
func (s *Session) groupContext(ctx context.Context, gid string) (*placement, error) {
	if pc, ok := s.contexts[gid]; ok {
		return pc, nil
	}
	meta := s.groupMeta[gid]

	free := s.freeContext()
	if !free.anchor.Locked {
		free.anchor = free.anchor.Lock(s.opts.Origin, meta.Row, meta.Col, s.cfg)
	}
	framePos := layout.NodePosition(meta.Row, meta.Col, free.anchor, free.tracks, s.cfg)
	fr, fc := free.anchor.Normalize(meta.Row, meta.Col, s.cfg)

	initial := canvas.Size{
		Width:  s.cfg.NodeWidth + 2*s.cfg.Padding,
		Height: s.cfg.HeaderHeight + s.cfg.NodeHeight + 2*s.cfg.Padding,
	}
	h, _, err := s.adapter.CreateElement(ctx, surface.Element{
		ID:        gid,
		Container: true,
		Title:     meta.Title,
		Pos:       framePos,
		Size:      initial,
	})
	if err != nil {
		return nil, err
	}

	pc := &placement{
		id:       gid,
		title:    meta.Title,
		tracks:   layout.Tracks{},
		bounds:   initial,
		handle:   h,
		framePos: framePos,
		frameRow: fr,
		frameCol: fc,
	}
	s.contexts[gid] = pc
	free.tracks = layout.RegisterNode(free.tracks, fc,
		layout.Entry{ID: gid, Row: fr, Y: framePos.Y, Height: initial.Height}, initial.Width)
	return pc, nil
}

// realizeNode creates or updates one node. The first observation of an id
// creates; every later observation updates content only, the assigned
// position never changes.
func (s *Session) realizeNode(ctx context.Context, n canvas.Node) error {
	if st, ok := s.nodes[n.ID]; ok {
		return s.updateNode(ctx, st, n)
	}

	gid := n.GroupID
	if gid == "" {
		gid = s.opts.TargetContainerID
	}

	var pc *placement
	if gid == "" {
		pc = s.freeContext()
		if !pc.anchor.Locked {
			pc.anchor = pc.anchor.Lock(s.opts.Origin, n.Row, n.Col, s.cfg)
		}
	} else {
		var err error
		if pc, err = s.groupContext(ctx, gid); err != nil {
			return err
		}
		if !pc.anchor.Locked {
			a := layout.Anchor{Incoming: s.incomingSide(gid, pc.framePos)}
			pc.anchor = a.Lock(pc.framePos, n.Row, n.Col, s.cfg)
		}
	}

	pos := layout.NodePosition(n.Row, n.Col, pc.anchor, pc.tracks, s.cfg)
	nr, nc := pc.anchor.Normalize(n.Row, n.Col, s.cfg)

	req := canvas.Size{Width: s.cfg.NodeWidth, Height: s.cfg.NodeHeight}
	h, actual, err := s.adapter.CreateElement(ctx, surface.Element{
		ID:          n.ID,
		Kind:        n.Kind,
		Title:       n.Title,
		Content:     n.Content,
		ContainerID: gid,
		Pos:         pos,
		Size:        req,
	})
	if err != nil {
		return err
	}

	st := &nodeState{node: n, pos: pos, size: actual, handle: h, ctxID: gid, row: nr, col: nc}
	st.node.GroupID = gid
	s.nodes[n.ID] = st
	s.nodeIDs = append(s.nodeIDs, n.ID)

	pc.tracks = layout.RegisterNode(pc.tracks, nc,
		layout.Entry{ID: n.ID, Row: nr, Y: pos.Y, Height: actual.Height}, actual.Width)
	if actual.Height != req.Height {
		// The host rendered a different height than assumed; elements
		// already stacked below must make room.
		if err := s.cascade(ctx, pc, nc, nr); err != nil {
			return err
		}
	}
	if err := s.growGroup(ctx, pc); err != nil {
		return err
	}

	if s.cb.OnNodeCreated != nil {
		s.cb.OnNodeCreated(st.node, st.pos)
	}
	return nil
}

// updateNode applies a later observation of an already realized id. Content
// updates keep x/y; an induced height change cascades the column below.
func (s *Session) updateNode(ctx context.Context, st *nodeState, n canvas.Node) error {
	if st.node.Complete && !n.Complete {
		// Preview of an element already finalized; parser state was
		// reset or the stream repeats itself. Either way, ignore.
		return nil
	}
	changed := n.Content != st.node.Content
	completing := n.Complete && !st.node.Complete
	if !changed && !completing {
		return nil
	}

	st.node.Complete = st.node.Complete || n.Complete
	if n.Title != "" {
		st.node.Title = n.Title
	}
	if changed {
		st.node.Content = n.Content
		size, err := s.adapter.UpdateElementContent(ctx, st.handle, n.Content)
		if err != nil {
			return err
		}
		if size != st.size {
			st.size = size
			pc := s.contexts[st.ctxID]
			pc.tracks = layout.RegisterNode(pc.tracks, st.col,
				layout.Entry{ID: st.node.ID, Row: st.row, Y: st.pos.Y, Height: size.Height}, size.Width)
			if err := s.cascade(ctx, pc, st.col, st.row); err != nil {
				return err
			}
			if err := s.growGroup(ctx, pc); err != nil {
				return err
			}
			if gid, ok := s.adopted[st.node.ID]; ok {
				if err := s.growAdopted(ctx, gid); err != nil {
					return err
				}
			}
		}
	}

	if s.cb.OnNodeUpdated != nil {
		s.cb.OnNodeUpdated(st.node, st.pos)
	}
	return nil
}

// realizeGroup handles a fully closed group in either authoring form.
func (s *Session) realizeGroup(ctx context.Context, g canvas.Group) error {
	if len(g.MemberIDs) > 0 {
		return s.adoptMembers(ctx, g)
	}

	s.groupMeta[g.ID] = g
	if _, err := s.groupContext(ctx, g.ID); err != nil {
		return err
	}
	for _, n := range g.Nodes {
		if err := s.realizeNode(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// adoptMembers realizes a member-reference group: a frame drawn around
// already placed nodes. The members keep their positions; the frame anchors
// at their bounding corner and only ever grows from there.
func (s *Session) adoptMembers(ctx context.Context, g canvas.Group) error {
	if _, ok := s.contexts[g.ID]; ok {
		s.logger.Warn("stream: duplicate group, ignored", "id", g.ID)
		return nil
	}

	var members []*nodeState
	for _, id := range g.MemberIDs {
		st, ok := s.nodes[id]
		if !ok {
			s.logger.Warn("stream: group member not realized, skipped", "group", g.ID, "member", id)
			continue
		}
		members = append(members, st)
	}
	if len(members) == 0 {
		s.logger.Warn("stream: group has no realized members, dropped", "id", g.ID)
		return nil
	}

	corner := canvas.Point{X: members[0].pos.X, Y: members[0].pos.Y}
	for _, st := range members[1:] {
		if st.pos.X < corner.X {
			corner.X = st.pos.X
		}
		if st.pos.Y < corner.Y {
			corner.Y = st.pos.Y
		}
	}
	corner.X -= s.cfg.Padding
	corner.Y -= s.cfg.HeaderHeight + s.cfg.Padding

	anchor := layout.Anchor{Incoming: s.incomingSide(g.ID, corner)}
	anchor = anchor.Lock(corner, members[0].node.Row, members[0].node.Col, s.cfg)

	rects := make([]canvas.Rect, len(members))
	for i, st := range members {
		rects[i] = canvas.Rect{Point: st.pos, Size: st.size}
	}
	bounds := layout.GroupBounds(canvas.Size{}, rects, anchor, s.cfg)

	h, _, err := s.adapter.CreateElement(ctx, surface.Element{
		ID:        g.ID,
		Container: true,
		Title:     g.Title,
		Pos:       corner,
		Size:      bounds,
	})
	if err != nil {
		return err
	}
	if err := s.adapter.GrowContainer(ctx, g.ID, bounds); err != nil {
		return err
	}

	s.contexts[g.ID] = &placement{
		id:       g.ID,
		title:    g.Title,
		anchor:   anchor,
		tracks:   layout.Tracks{},
		bounds:   bounds,
		handle:   h,
		framePos: corner,
	}
	for _, st := range members {
		s.adopted[st.node.ID] = g.ID
	}
	return nil
}

// growAdopted re-fits a member-reference group around its members after one
// of them resized.
func (s *Session) growAdopted(ctx context.Context, gid string) error {
	pc, ok := s.contexts[gid]
	if !ok {
		return nil
	}
	var rects []canvas.Rect
	for id, owner := range s.adopted {
		if owner != gid {
			continue
		}
		if st, ok := s.nodes[id]; ok {
			rects = append(rects, canvas.Rect{Point: st.pos, Size: st.size})
		}
	}
	size := layout.GroupBounds(pc.bounds, rects, pc.anchor, s.cfg)
	if size == pc.bounds {
		return nil
	}
	pc.bounds = size
	return s.adapter.GrowContainer(ctx, gid, size)
}

// growGroup grows a container to enclose its streamed members, then lets
// the taller frame push free-grid elements below it out of the way.
func (s *Session) growGroup(ctx context.Context, pc *placement) error {
	if pc.id == "" {
		return nil
	}
	var rects []canvas.Rect
	for _, id := range s.nodeIDs {
		st := s.nodes[id]
		if st.ctxID == pc.id {
			rects = append(rects, canvas.Rect{Point: st.pos, Size: st.size})
		}
	}
	size := layout.GroupBounds(pc.bounds, rects, pc.anchor, s.cfg)
	if size == pc.bounds {
		return nil
	}
	pc.bounds = size
	if err := s.adapter.GrowContainer(ctx, pc.id, size); err != nil {
		return err
	}

	free := s.freeContext()
	if _, ok := free.tracks[pc.frameCol]; !ok {
		return nil
	}
	free.tracks = layout.RegisterNode(free.tracks, pc.frameCol,
		layout.Entry{ID: pc.id, Row: pc.frameRow, Y: pc.framePos.Y, Height: size.Height}, size.Width)
	return s.cascade(ctx, free, pc.frameCol, pc.frameRow)
}

// cascade repositions everything below a resized entry in one column and
// applies all moves as a single batch. Anchored container frames are never
// moved; a warning is logged if one stands in the way.
func (s *Session) cascade(ctx context.Context, pc *placement, col, row int) error {
	shifts := layout.Reposition(pc.tracks, col, row, s.cfg)
	if len(shifts) == 0 {
		return nil
	}

	moves := make([]surface.Move, 0, len(shifts))
	for _, sh := range shifts {
		if st, ok := s.nodes[sh.ID]; ok {
			st.pos.Y = sh.Y
			moves = append(moves, surface.Move{Handle: st.handle, Y: sh.Y})
			pc.tracks = layout.RegisterNode(pc.tracks, col,
				layout.Entry{ID: sh.ID, Row: st.row, Y: sh.Y, Height: st.size.Height}, st.size.Width)
			continue
		}
		if sub, ok := s.contexts[sh.ID]; ok {
			if sub.anchor.Locked {
				s.logger.Warn("stream: anchored container cannot move, shift skipped", "id", sh.ID)
				continue
			}
			sub.framePos.Y = sh.Y
			moves = append(moves, surface.Move{Handle: sub.handle, Y: sh.Y})
			pc.tracks = layout.RegisterNode(pc.tracks, col,
				layout.Entry{ID: sh.ID, Row: sub.frameRow, Y: sh.Y, Height: sub.bounds.Height}, sub.bounds.Width)
		}
	}
	if len(moves) == 0 {
		return nil
	}
	return s.adapter.BatchReposition(ctx, moves)
}

// queueEdge records a parsed edge for realization once both endpoints
// exist. A (from,to) pair is queued and realized at most once. The first
// edge pointing at an id is also remembered so a container created later
// can reserve a safe zone on the side the edge enters from.
func (s *Session) queueEdge(e canvas.Edge) {
	key := e.Key()
	if s.edgeSeen[key] || s.pendingSeen[key] {
		return
	}
	s.pendingSeen[key] = true
	s.pendingEdge = append(s.pendingEdge, e)
	if _, ok := s.incoming[e.To]; !ok {
		s.incoming[e.To] = e.From
	}
}

// flushEdges realizes every pending edge whose endpoints are both realized;
// the rest stay pending until more elements arrive or the stream ends.
func (s *Session) flushEdges(ctx context.Context) error {
	var remain []canvas.Edge
	for _, e := range s.pendingEdge {
		from, fok := s.handleFor(e.From)
		to, tok := s.handleFor(e.To)
		if !fok || !tok {
			remain = append(remain, e)
			continue
		}
		if _, err := s.adapter.CreateConnector(ctx, from, to, e.Dir, e.Label); err != nil {
			return err
		}
		s.edgeSeen[e.Key()] = true
		s.edges = append(s.edges, e)
		if s.cb.OnEdgeCreated != nil {
			s.cb.OnEdgeCreated(e)
		}
	}
	s.pendingEdge = remain
	return nil
}

// handleFor resolves an id to its surface handle, node or container.
func (s *Session) handleFor(id string) (surface.Handle, bool) {
	if st, ok := s.nodes[id]; ok {
		return st.handle, true
	}
	if pc, ok := s.contexts[id]; ok {
		return pc.handle, true
	}
	return "", false
}

// incomingSide derives which side an incoming edge enters a container from,
// by comparing the edge source's realized position with the frame corner.
func (s *Session) incomingSide(gid string, frame canvas.Point) layout.Side {
	src, ok := s.incoming[gid]
	if !ok {
		return layout.SideNone
	}
	st, ok := s.nodes[src]
	if !ok {
		return layout.SideNone
	}
	if st.pos.X+st.size.Width <= frame.X {
		return layout.SideLeft
	}
	if st.pos.Y+st.size.Height <= frame.Y {
		return layout.SideTop
	}
	return layout.SideNone
}
