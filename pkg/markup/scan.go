package markup

import (
	"regexp"
	"strconv"
	"strings"
)

// tagToken is one recognized tag occurrence in the buffer. Only tags of the
// closed grammar set are tokenized; any other angle-bracket text is treated
// as plain content.
type tagToken struct {
	name    string // node, group, edge, member
	closing bool   // </name>
	self    bool   // <name .../>
	attrs   string // raw attribute text between name and '>'
	start   int    // offset of '<'
	end     int    // offset just past '>'
}

var (
	// Quoted attribute values may contain '>', so the attribute region
	// consumes quoted spans whole instead of stopping at the first '>'.
	tagRe  = regexp.MustCompile(`(?s)<(/?)(node|group|edge|member)(\s(?:[^>"']|"[^"]*"|'[^']*')*?)?(/?)>`)
	attrRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_-]*)\s*=\s*("([^"]*)"|'([^']*)'|[^\s>/"']+)`)
)

// scanTags tokenizes every fully arrived tag in s. A tag split across a
// chunk boundary has no terminating '>' yet and is simply not matched; it
// becomes visible once the rest of it arrives.
func scanTags(s string) []tagToken {
	ms := tagRe.FindAllStringSubmatchIndex(s, -1)
	toks := make([]tagToken, 0, len(ms))
	for _, m := range ms {
		t := tagToken{
			name:    s[m[4]:m[5]],
			closing: m[3] > m[2],
			self:    m[9] > m[8],
			start:   m[0],
			end:     m[1],
		}
		if m[6] >= 0 {
			t.attrs = s[m[6]:m[7]]
		}
		toks = append(toks, t)
	}
	return toks
}

// matchingClose returns the index of the close token pairing with the open
// token at openIdx, tracking nesting depth of same-named opens so a body
// that quotes a tag of the same name does not end the element early.
// Returns -1 when the close has not arrived.
func matchingClose(toks []tagToken, openIdx int, name string) int {
	depth := 1
	for i := openIdx + 1; i < len(toks); i++ {
		t := toks[i]
		if t.name != name || t.self {
			continue
		}
		if t.closing {
			depth--
			if depth == 0 {
				return i
			}
		} else {
			depth++
		}
	}
	return -1
}

// attrValues parses the attribute text of a tag into a map. Values may be
// double-quoted, single-quoted or bare. Unknown attributes are kept; callers
// read only the ones they recognize.
func attrValues(attrs string) map[string]string {
	out := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(attrs, -1) {
		switch {
		case m[3] != "":
			out[m[1]] = m[3]
		case m[4] != "":
			out[m[1]] = m[4]
		default:
			v := m[2]
			if strings.HasPrefix(v, `"`) || strings.HasPrefix(v, `'`) {
				// Quoted but empty value.
				v = ""
			}
			out[m[1]] = v
		}
	}
	return out
}

// trimPartialTag strips a trailing partially arrived tag from preview
// content, so a split "</nod" never leaks into a placeholder body.
func trimPartialTag(s string) string {
	if i := strings.LastIndexByte(s, '<'); i >= 0 && !strings.ContainsRune(s[i:], '>') {
		s = s[:i]
	}
	return s
}

// atoi reads an integer attribute, defaulting to zero with a warning when
// the attribute is missing or malformed.
func (p *Parser) atoi(attrs map[string]string, key, id string) int {
	v, ok := attrs[key]
	if !ok {
		p.logger.Warn("markup: missing attribute, using 0", "attr", key, "id", id)
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.logger.Warn("markup: bad integer attribute, using 0", "attr", key, "id", id, "value", v)
		return 0
	}
	return n
}
