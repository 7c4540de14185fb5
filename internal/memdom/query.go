package memdom

import (
	"strconv"
	"strings"

	"pageflow/backend/internal/engine"
)

// Query returns all elements matching a selector. The supported grammar is
// the subset the engine's synthesizer and pattern detector emit: compound
// selectors of tag, #id, .class, [attr="v"], [attr*="v"], :nth-child(n) and
// :contains("text"), optionally joined by a single child combinator.
// Selectors outside the subset match nothing.
func (d *Document) Query(selector string) []engine.Element {
	if d.root == nil {
		return nil
	}
	parts := splitChildCombinator(selector)
	if len(parts) == 0 {
		return nil
	}

	first, ok := parseCompound(parts[0])
	if !ok {
		return nil
	}
	var matches []*Node
	walk(d.root, func(n *Node) {
		if first.matches(n) {
			matches = append(matches, n)
		}
	})

	for _, part := range parts[1:] {
		sel, ok := parseCompound(part)
		if !ok {
			return nil
		}
		var next []*Node
		for _, parent := range matches {
			for _, child := range parent.children {
				if sel.matches(child) {
					next = append(next, child)
				}
			}
		}
		matches = next
	}

	out := make([]engine.Element, len(matches))
	for i, n := range matches {
		out[i] = n
	}
	return out
}

// splitChildCombinator splits on '>' outside quoted strings, so attribute
// values and :contains text may carry the character literally.
func splitChildCombinator(selector string) []string {
	var parts []string
	var b strings.Builder
	var quote byte
	for i := 0; i < len(selector); i++ {
		ch := selector[i]
		switch {
		case quote != 0:
			b.WriteByte(ch)
			if ch == '\\' && i+1 < len(selector) {
				i++
				b.WriteByte(selector[i])
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			b.WriteByte(ch)
		case ch == '\\' && i+1 < len(selector):
			b.WriteByte(ch)
			i++
			b.WriteByte(selector[i])
		case ch == '>':
			p := strings.TrimSpace(b.String())
			if p == "" {
				return nil
			}
			parts = append(parts, p)
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	p := strings.TrimSpace(b.String())
	if p == "" {
		return nil
	}
	return append(parts, p)
}

type compound struct {
	tag      string
	id       string
	classes  []string
	attrName string
	attrOp   byte // '=' exact, '*' substring
	attrVal  string
	nth      int // 1-based position among element siblings; 0 = unset
	contains string
}

func (c compound) matches(n *Node) bool {
	if c.tag != "" && n.tag != c.tag {
		return false
	}
	if c.id != "" && n.ID() != c.id {
		return false
	}
	for _, class := range c.classes {
		if !hasClass(n, class) {
			return false
		}
	}
	if c.attrName != "" {
		v, ok := n.Attr(c.attrName)
		if !ok {
			return false
		}
		switch c.attrOp {
		case '*':
			if !strings.Contains(v, c.attrVal) {
				return false
			}
		default:
			if v != c.attrVal {
				return false
			}
		}
	}
	if c.nth > 0 {
		if n.parent == nil {
			return false
		}
		idx := 0
		for i, sib := range n.parent.children {
			if sib == n {
				idx = i + 1
				break
			}
		}
		if idx != c.nth {
			return false
		}
	}
	if c.contains != "" && !strings.Contains(n.Text(), c.contains) {
		return false
	}
	return true
}

func hasClass(n *Node, class string) bool {
	for _, c := range n.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// parseCompound parses one compound selector part. Returns ok=false for
// anything outside the supported grammar.
func parseCompound(s string) (compound, bool) {
	var c compound
	i := 0
	readIdent := func() string {
		var b strings.Builder
		for i < len(s) {
			ch := s[i]
			if ch == '\\' && i+1 < len(s) {
				// Simple escapes only; hex escapes are out of scope.
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			if ch == '#' || ch == '.' || ch == '[' || ch == ':' {
				break
			}
			b.WriteByte(ch)
			i++
		}
		return b.String()
	}

	if i < len(s) && s[i] != '#' && s[i] != '.' && s[i] != '[' && s[i] != ':' {
		c.tag = strings.ToLower(readIdent())
	}

	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			c.id = readIdent()
			if c.id == "" {
				return c, false
			}
		case '.':
			i++
			class := readIdent()
			if class == "" {
				return c, false
			}
			c.classes = append(c.classes, class)
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return c, false
			}
			body := s[i+1 : i+end]
			i += end + 1
			if !parseAttr(body, &c) {
				return c, false
			}
		case ':':
			rest := s[i+1:]
			switch {
			case strings.HasPrefix(rest, "nth-child(") && strings.HasSuffix(rest, ")"):
				n, err := strconv.Atoi(rest[len("nth-child(") : len(rest)-1])
				if err != nil || n < 1 {
					return c, false
				}
				c.nth = n
				i = len(s)
			case strings.HasPrefix(rest, "contains(") && strings.HasSuffix(rest, ")"):
				c.contains = strings.Trim(rest[len("contains("):len(rest)-1], `"'`)
				i = len(s)
			default:
				return c, false
			}
		default:
			return c, false
		}
	}

	return c, true
}

func parseAttr(body string, c *compound) bool {
	if body == "" {
		return false
	}
	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		// Presence-only: an empty substring matches any value.
		c.attrName = strings.ToLower(body)
		c.attrOp = '*'
		c.attrVal = ""
		return true
	}
	name := body[:eq]
	c.attrOp = '='
	if strings.HasSuffix(name, "*") {
		c.attrOp = '*'
		name = name[:len(name)-1]
	}
	c.attrName = strings.ToLower(strings.TrimSpace(name))
	val := strings.TrimSpace(body[eq+1:])
	val = strings.Trim(val, `"'`)
	c.attrVal = strings.ReplaceAll(val, "\\\"", "\"")
	c.attrVal = strings.ReplaceAll(c.attrVal, "\\\\", "\\")
	if c.attrName == "" {
		return false
	}
	return true
}
