// Package markup implements the incremental parser for the streamed canvas
// markup grammar. Text arrives in arbitrary chunks and a tag may be split at
// any byte, even mid-attribute, so the parser buffers everything appended
// and re-scans on demand. Each element kind has its own consumption cursor:
// an element returned as complete is never returned again.
//
// The grammar is a small closed tag set, not XML:
//
//	<node id="n1" type="idea" row="0" col="0">body</node>
//	<group id="g1" title="..." row="0" col="0"> <node.../> ... </group>
//	<group id="g2" title="..."> <member id="n1"/> ... </group>
//	<edge from="n1" to="n2" dir="forward" label="..."/>
//
// A node's body is opaque text: tags it merely quotes are never parsed as
// elements, and while a node is still open everything after its opening tag
// belongs to its body in progress.
//
// Malformed input is never fatal: missing required attributes get generated
// defaults, unknown kinds fall back to the default kind, and anything
// unrecognized stays in the buffer as unprocessed text. All recoveries are
// logged as warnings.
package markup

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/canvasflow/canvasflow/pkg/canvas"
)

// Parser buffers streamed markup and extracts complete and in-progress
// elements. It is not safe for concurrent use; the stream session drives it
// one chunk at a time.
type Parser struct {
	logger *slog.Logger

	buf strings.Builder

	// Per-kind consumption cursors: byte offsets past the last consumed
	// element of that kind. Scans only consider opens at or after the
	// cursor, so completed elements are reported exactly once.
	nodeCursor  int
	edgeCursor  int
	groupCursor int

	// completed tracks node ids whose closing tag has been consumed, so
	// incomplete previews never re-announce a finished element.
	completed map[string]bool
}

// NewParser returns an empty parser. A nil logger falls back to
// [slog.Default].
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger:    logger,
		completed: make(map[string]bool),
	}
}

// Append adds a chunk to the internal buffer. It never fails and performs no
// scanning; call the detect methods to extract elements.
func (p *Parser) Append(chunk string) {
	p.buf.WriteString(chunk)
}

// Reset discards all buffered content and consumption state.
func (p *Parser) Reset() {
	p.buf.Reset()
	p.nodeCursor = 0
	p.edgeCursor = 0
	p.groupCursor = 0
	p.completed = make(map[string]bool)
}

// Unprocessed returns trailing buffer content past every consumption cursor.
func (p *Parser) Unprocessed() string {
	c := p.nodeCursor
	if p.edgeCursor > c {
		c = p.edgeCursor
	}
	if p.groupCursor > c {
		c = p.groupCursor
	}
	s := p.buf.String()
	if c >= len(s) {
		return ""
	}
	return s[c:]
}

// CompleteNodes scans for top-level nodes whose closing tag has arrived and
// returns all not yet consumed, advancing the node cursor past them. Nodes
// nested inside groups are reported by [Parser.CompleteGroups] instead.
func (p *Parser) CompleteNodes() []canvas.Node {
	s := p.buf.String()
	toks := scanTags(s)

	var out []canvas.Node
	groupDepth := 0
	for i := 0; i < len(toks); {
		t := toks[i]
		switch {
		case t.name == "group":
			if t.closing {
				if groupDepth > 0 {
					groupDepth--
				}
			} else if !t.self {
				groupDepth++
			}
			i++
		case t.name == "node" && !t.closing:
			if t.self {
				if groupDepth == 0 && t.start >= p.nodeCursor {
					n := p.parseNode(t, "", "", true)
					p.nodeCursor = t.end
					out = append(out, n)
					p.completed[n.ID] = true
				}
				i++
				continue
			}
			closeIdx := matchingClose(toks, i, "node")
			if closeIdx < 0 {
				// Still open; the rest of the buffer is its body.
				return out
			}
			if groupDepth == 0 && t.start >= p.nodeCursor {
				n := p.parseNode(t, s[t.end:toks[closeIdx].start], "", true)
				p.nodeCursor = toks[closeIdx].end
				out = append(out, n)
				p.completed[n.ID] = true
			}
			// Tags inside the body are quoted text, never elements.
			i = closeIdx + 1
		default:
			i++
		}
	}
	return out
}

// CompleteEdges scans for fully arrived edge elements outside any node body
// and returns all not yet consumed, advancing the edge cursor past them.
func (p *Parser) CompleteEdges() []canvas.Edge {
	toks := scanTags(p.buf.String())

	var out []canvas.Edge
	for i := 0; i < len(toks); {
		t := toks[i]
		if t.name == "node" && !t.closing && !t.self {
			nc := matchingClose(toks, i, "node")
			if nc < 0 {
				break
			}
			i = nc + 1
			continue
		}
		if t.name != "edge" || t.closing || t.start < p.edgeCursor {
			i++
			continue
		}
		end := t.end
		if !t.self {
			closeIdx := matchingClose(toks, i, "edge")
			if closeIdx < 0 {
				i++
				continue
			}
			end = toks[closeIdx].end
		}
		e, ok := p.parseEdge(t)
		p.edgeCursor = end
		if ok {
			out = append(out, e)
		}
		i++
	}
	return out
}

// CompleteGroups scans for groups whose closing tag has arrived and returns
// all not yet consumed, advancing the group cursor past them. Each group is
// classified as exactly one of the two authoring forms: nested nodes, or
// member references to pre-existing ids. Group tags quoted inside a node
// body are ignored.
func (p *Parser) CompleteGroups() []canvas.Group {
	s := p.buf.String()
	toks := scanTags(s)

	var out []canvas.Group
	for i := 0; i < len(toks); {
		t := toks[i]
		if t.name == "node" && !t.closing && !t.self {
			nc := matchingClose(toks, i, "node")
			if nc < 0 {
				break
			}
			i = nc + 1
			continue
		}
		if t.name != "group" || t.closing || t.self || t.start < p.groupCursor {
			i++
			continue
		}
		closeIdx := matchingClose(toks, i, "group")
		if closeIdx < 0 {
			i++
			continue
		}
		g := p.parseGroup(s, toks, i, closeIdx)
		p.groupCursor = toks[closeIdx].end
		for _, n := range g.Nodes {
			p.completed[n.ID] = true
		}
		out = append(out, g)
		i = closeIdx + 1
	}
	return out
}

// OpenGroups returns best-effort descriptors for groups whose opening tag
// has arrived but whose closing tag has not, so a container frame can be
// realized before its members finish streaming. Members are not included;
// they surface through [Parser.IncompleteNodes] and [Parser.CompleteGroups].
func (p *Parser) OpenGroups() []canvas.Group {
	toks := scanTags(p.buf.String())

	var out []canvas.Group
	for i := 0; i < len(toks); {
		t := toks[i]
		if t.name == "node" && !t.closing && !t.self {
			nc := matchingClose(toks, i, "node")
			if nc < 0 {
				break
			}
			i = nc + 1
			continue
		}
		if t.name != "group" || t.closing || t.self || t.start < p.groupCursor {
			i++
			continue
		}
		if matchingClose(toks, i, "group") >= 0 {
			i++
			continue
		}
		attrs := attrValues(t.attrs)
		if attrs["id"] == "" {
			// No stable identity yet; wait for more input.
			i++
			continue
		}
		g := canvas.Group{ID: attrs["id"], Title: attrs["title"]}
		if _, ok := attrs["row"]; ok {
			g.Row = p.atoi(attrs, "row", g.ID)
		}
		if _, ok := attrs["col"]; ok {
			g.Col = p.atoi(attrs, "col", g.ID)
		}
		out = append(out, g)
		i++
	}
	return out
}

// IncompleteNodes returns a best-effort preview for a node whose opening tag
// has arrived but whose closing tag has not. All buffered content after the
// opening tag serves as a placeholder body, with any trailing partial tag
// stripped. The preview evolves across calls; nodes already reported
// complete are never re-announced.
func (p *Parser) IncompleteNodes() []canvas.Node {
	s := p.buf.String()
	toks := scanTags(s)

	var out []canvas.Node
	openGroup := "" // id of the innermost group still open
	groupDepth := 0
	for i := 0; i < len(toks); {
		t := toks[i]
		switch t.name {
		case "group":
			if t.closing {
				if groupDepth > 0 {
					groupDepth--
				}
				if groupDepth == 0 {
					openGroup = ""
				}
			} else if !t.self {
				groupDepth++
				if groupDepth == 1 {
					openGroup = attrValues(t.attrs)["id"]
				}
			}
			i++
		case "node":
			if t.closing || t.self {
				i++
				continue
			}
			if nc := matchingClose(toks, i, "node"); nc >= 0 {
				// Closed element; its body may quote tags.
				i = nc + 1
				continue
			}
			if groupDepth == 0 && t.start < p.nodeCursor {
				i++
				continue
			}
			n := p.parseNode(t, trimPartialTag(s[t.end:]), openGroup, false)
			if !p.completed[n.ID] {
				out = append(out, n)
			}
			// Everything that follows belongs to this body in progress.
			return out
		default:
			i++
		}
	}
	return out
}

func (p *Parser) parseGroup(s string, toks []tagToken, openIdx, closeIdx int) canvas.Group {
	t := toks[openIdx]
	attrs := attrValues(t.attrs)

	g := canvas.Group{
		ID:    attrs["id"],
		Title: attrs["title"],
	}
	if g.ID == "" {
		g.ID = "group-" + uuid.NewString()[:8]
		p.logger.Warn("markup: group missing id, generated", "id", g.ID)
	}
	// Member-reference groups carry no grid coordinates, so absent row/col
	// are silently zero here.
	if _, ok := attrs["row"]; ok {
		g.Row = p.atoi(attrs, "row", g.ID)
	}
	if _, ok := attrs["col"]; ok {
		g.Col = p.atoi(attrs, "col", g.ID)
	}

	// Member references and nested nodes are distinct authoring forms.
	// Member tags win; nested nodes alongside them are ignored. A member
	// tag quoted inside a nested node's body is body text, not a member.
	for i := openIdx + 1; i < closeIdx; i++ {
		m := toks[i]
		if m.name == "node" && !m.closing && !m.self {
			if nc := matchingClose(toks, i, "node"); nc >= 0 && nc < closeIdx {
				i = nc
			}
			continue
		}
		if m.name != "member" || m.closing {
			continue
		}
		id := attrValues(m.attrs)["id"]
		if id == "" {
			p.logger.Warn("markup: member missing id, dropped", "group", g.ID)
			continue
		}
		g.MemberIDs = append(g.MemberIDs, id)
	}
	if len(g.MemberIDs) > 0 {
		return g
	}

	for i := openIdx + 1; i < closeIdx; {
		m := toks[i]
		if m.name != "node" || m.closing {
			i++
			continue
		}
		if m.self {
			g.Nodes = append(g.Nodes, p.parseNode(m, "", g.ID, true))
			i++
			continue
		}
		nc := matchingClose(toks, i, "node")
		if nc < 0 || nc > closeIdx {
			break
		}
		g.Nodes = append(g.Nodes, p.parseNode(m, s[m.end:toks[nc].start], g.ID, true))
		i = nc + 1
	}
	return g
}

func (p *Parser) parseNode(t tagToken, body, groupID string, complete bool) canvas.Node {
	attrs := attrValues(t.attrs)

	n := canvas.Node{
		ID:       attrs["id"],
		Title:    attrs["title"],
		Content:  strings.TrimSpace(body),
		GroupID:  groupID,
		Complete: complete,
	}
	if n.ID == "" {
		// Keyed on the opening tag's offset: the buffer is append-only,
		// so every preview and the final parse agree on the same id.
		n.ID = fmt.Sprintf("node-%d", t.start)
		p.logger.Warn("markup: node missing id, generated", "id", n.ID)
	}
	kind, known := canvas.ParseKind(attrs["type"])
	if !known {
		p.logger.Warn("markup: unknown node type, using default", "id", n.ID, "type", attrs["type"])
	}
	n.Kind = kind
	n.Row = p.atoi(attrs, "row", n.ID)
	n.Col = p.atoi(attrs, "col", n.ID)
	return n
}

func (p *Parser) parseEdge(t tagToken) (canvas.Edge, bool) {
	attrs := attrValues(t.attrs)

	e := canvas.Edge{
		From:  attrs["from"],
		To:    attrs["to"],
		Label: attrs["label"],
	}
	if e.From == "" || e.To == "" {
		p.logger.Warn("markup: edge missing endpoint, dropped", "from", e.From, "to", e.To)
		return canvas.Edge{}, false
	}
	dir, known := canvas.ParseDirection(attrs["dir"])
	if !known {
		p.logger.Warn("markup: unknown edge dir, using forward", "dir", attrs["dir"])
	}
	e.Dir = dir
	return e, true
}
