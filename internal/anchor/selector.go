package anchor

import (
	"fmt"
	"strconv"
	"strings"
)

// The selector engine understands the subset of CSS this package generates:
// tag, #id, .class, [attr="value"], :nth-child(n), compound selectors, and
// the descendant (space) and child (>) combinators.

type compound struct {
	tag      string
	id       string
	classes  []string
	attrs    []attrMatch
	nthChild int // 0 when absent
}

type attrMatch struct {
	name  string
	value string
	// exact is false for bare [attr] presence checks.
	exact bool
}

type step struct {
	compound compound
	// childOnly is true when this step is joined to the next (rightward)
	// step with the ">" combinator rather than descendant whitespace.
	childOnly bool
}

type selector struct {
	steps []step // leftmost first
}

// IsValidSelector reports whether s parses under the engine's grammar.
// Malformed persisted selectors must degrade to "not found", never to a
// parse failure escaping into rendering, so this is the guard callers run
// before Resolve.
func IsValidSelector(s string) bool {
	_, err := parseSelector(s)
	return err == nil
}

// Resolve returns the first element under root matching the selector, in
// document order. A selector that matches nothing, or fails to parse,
// resolves to (nil, false).
func Resolve(root Element, sel string) (Element, bool) {
	matches := Query(root, sel)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

// Query returns all elements under root (inclusive) matching the selector,
// in document order. An unparseable selector matches nothing.
func Query(root Element, sel string) []Element {
	parsed, err := parseSelector(sel)
	if err != nil {
		return nil
	}
	var out []Element
	walk(root, func(el Element) {
		if matchSelector(parsed, el) {
			out = append(out, el)
		}
	})
	return out
}

func walk(el Element, visit func(Element)) {
	visit(el)
	for _, child := range el.Children() {
		walk(child, visit)
	}
}

// matchSelector checks el against the rightmost compound, then satisfies
// the remaining steps right to left against el's ancestors.
func matchSelector(sel selector, el Element) bool {
	last := len(sel.steps) - 1
	if !matchCompound(sel.steps[last].compound, el) {
		return false
	}
	return matchAncestors(sel.steps[:last], el)
}

// matchAncestors binds steps (leftmost first, rightmost closest to el) to
// ancestors of el. Descendant steps backtrack: when the nearest matching
// ancestor cannot carry the rest of the chain, the search resumes from the
// next ancestor up. Without this, a mixed chain like "ul > li.item span"
// would false-negative whenever a nearer li.item lacks the ul parent that
// a higher one has.
func matchAncestors(steps []step, el Element) bool {
	if len(steps) == 0 {
		return true
	}
	st := steps[len(steps)-1]
	rest := steps[:len(steps)-1]
	if st.childOnly {
		parent := el.Parent()
		if parent == nil || !matchCompound(st.compound, parent) {
			return false
		}
		return matchAncestors(rest, parent)
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		if matchCompound(st.compound, p) && matchAncestors(rest, p) {
			return true
		}
	}
	return false
}

func matchCompound(c compound, el Element) bool {
	if c.tag != "" && c.tag != el.TagName() {
		return false
	}
	if c.id != "" && c.id != el.ID() {
		return false
	}
	for _, class := range c.classes {
		if !hasClass(el, class) {
			return false
		}
	}
	for _, am := range c.attrs {
		got, ok := el.Attr(am.name)
		if !ok {
			return false
		}
		if am.exact && got != am.value {
			return false
		}
	}
	if c.nthChild > 0 && childIndex(el) != c.nthChild {
		return false
	}
	return true
}

func hasClass(el Element, class string) bool {
	for _, c := range el.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// parseSelector parses a complex selector into its steps.
func parseSelector(s string) (selector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return selector{}, fmt.Errorf("empty selector")
	}

	var sel selector
	rest := s
	for {
		var comp compound
		var err error
		comp, rest, err = parseCompound(rest)
		if err != nil {
			return selector{}, err
		}
		sel.steps = append(sel.steps, step{compound: comp})

		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			return sel, nil
		}
		if rest[0] == '>' {
			sel.steps[len(sel.steps)-1].childOnly = true
			rest = strings.TrimLeft(rest[1:], " \t")
			if rest == "" {
				return selector{}, fmt.Errorf("selector %q: dangling combinator", s)
			}
		}
	}
}

// parseCompound consumes one compound selector and returns the remainder.
func parseCompound(s string) (compound, string, error) {
	var c compound
	i := 0

	// Optional leading tag name.
	start := i
	for i < len(s) && isNameChar(s[i]) {
		i++
	}
	c.tag = strings.ToLower(s[start:i])

	parsedAny := c.tag != ""
	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			name, n, err := readName(s[i:])
			if err != nil {
				return c, "", fmt.Errorf("selector: bad id at %q", s[i:])
			}
			c.id = name
			i += n
		case '.':
			i++
			name, n, err := readName(s[i:])
			if err != nil {
				return c, "", fmt.Errorf("selector: bad class at %q", s[i:])
			}
			c.classes = append(c.classes, name)
			i += n
		case '[':
			am, n, err := parseAttr(s[i:])
			if err != nil {
				return c, "", err
			}
			c.attrs = append(c.attrs, am)
			i += n
		case ':':
			nth, n, err := parseNthChild(s[i:])
			if err != nil {
				return c, "", err
			}
			c.nthChild = nth
			i += n
		case ' ', '\t', '>':
			if !parsedAny {
				return c, "", fmt.Errorf("selector: empty compound at %q", s)
			}
			return c, s[i:], nil
		default:
			return c, "", fmt.Errorf("selector: unexpected character %q", s[i])
		}
		parsedAny = true
	}
	if !parsedAny {
		return c, "", fmt.Errorf("selector: empty compound")
	}
	return c, "", nil
}

// parseAttr consumes "[name]" or `[name="value"]` and returns bytes consumed.
func parseAttr(s string) (attrMatch, int, error) {
	// s[0] == '['
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return attrMatch{}, 0, fmt.Errorf("selector: unterminated attribute %q", s)
	}
	body := s[1:end]
	if body == "" {
		return attrMatch{}, 0, fmt.Errorf("selector: empty attribute")
	}
	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		if !isName(body) {
			return attrMatch{}, 0, fmt.Errorf("selector: bad attribute name %q", body)
		}
		return attrMatch{name: body}, end + 1, nil
	}
	name := body[:eq]
	value := body[eq+1:]
	if !isName(name) {
		return attrMatch{}, 0, fmt.Errorf("selector: bad attribute name %q", name)
	}
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return attrMatch{}, 0, fmt.Errorf("selector: attribute value must be quoted in %q", body)
	}
	return attrMatch{name: name, value: unescapeAttr(value[1 : len(value)-1]), exact: true}, end + 1, nil
}

// parseNthChild consumes ":nth-child(n)" and returns bytes consumed.
func parseNthChild(s string) (int, int, error) {
	const prefix = ":nth-child("
	if !strings.HasPrefix(s, prefix) {
		return 0, 0, fmt.Errorf("selector: unsupported pseudo-class %q", s)
	}
	close := strings.IndexByte(s, ')')
	if close < 0 {
		return 0, 0, fmt.Errorf("selector: unterminated nth-child %q", s)
	}
	n, err := strconv.Atoi(s[len(prefix):close])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("selector: bad nth-child index %q", s[len(prefix):close])
	}
	return n, close + 1, nil
}

func readName(s string) (string, int, error) {
	i := 0
	for i < len(s) && isNameChar(s[i]) {
		i++
	}
	if i == 0 {
		return "", 0, fmt.Errorf("expected name")
	}
	return s[:i], i, nil
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameChar(s[i]) {
			return false
		}
	}
	return true
}

func isNameChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' || b == '-' || b == '_'
}

func escapeAttr(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`)
}

func unescapeAttr(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, `\"`, `"`), `\\`, `\`)
}
