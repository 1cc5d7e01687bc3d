package anchor

import (
	"fmt"
	"regexp"
	"strings"
)

// Data attributes checked, in preference order, when an element has no
// stable id. These are the attributes test tooling and design systems tend
// to keep stable across builds.
var preferredDataAttrs = []string{
	"data-testid",
	"data-test",
	"data-cy",
	"data-qa",
	"data-id",
	"data-key",
	"data-name",
	"data-component",
}

var (
	// Framework-generated ids and classes churn on every build or render:
	// long digit runs, hex hashes, css-module suffixes, React useId colons.
	digitRunRe = regexp.MustCompile(`\d{4,}`)
	hexHashRe  = regexp.MustCompile(`(?i)(^|[-_])[0-9a-f]{6,}($|[-_])`)
	cssModRe   = regexp.MustCompile(`(?i)^(css|sc|jsx|svelte)-`)
)

// maxAncestorHops bounds how far GenerateSelector scopes upward before
// giving up on attribute selectors and switching to a structural path.
const maxAncestorHops = 4

// GenerateSelector produces a selector that uniquely matches el in its tree
// right now and is biased toward still resolving after a reload or minor
// DOM change. Preference order: stable id, stable data attribute, tag+class
// scoped by as few ancestors as disambiguation needs, and finally an
// nth-child path from the nearest stable ancestor.
func GenerateSelector(el Element) string {
	root := RootOf(el)

	if sel, ok := idSelector(el); ok && uniquelyMatches(root, sel, el) {
		return sel
	}
	if sel, ok := dataAttrSelector(el); ok && uniquelyMatches(root, sel, el) {
		return sel
	}
	if sel, ok := scopedClassSelector(root, el); ok {
		return sel
	}
	return structuralPath(el)
}

func idSelector(el Element) (string, bool) {
	id := el.ID()
	if !stableToken(id) {
		return "", false
	}
	return "#" + id, true
}

func dataAttrSelector(el Element) (string, bool) {
	for _, attr := range preferredDataAttrs {
		v, ok := el.Attr(attr)
		if !ok || v == "" {
			continue
		}
		return fmt.Sprintf(`%s[%s="%s"]`, el.TagName(), attr, escapeAttr(v)), true
	}
	return "", false
}

// scopedClassSelector builds tag.class selectors, prefixing ancestor
// compounds one at a time until the selector matches only el.
func scopedClassSelector(root Element, el Element) (string, bool) {
	base := tagClassCompound(el)
	if base == el.TagName() && len(stableClasses(el)) == 0 {
		// Bare tag selectors are too generic to be worth scoping.
		return "", false
	}
	sel := base
	if uniquelyMatches(root, sel, el) {
		return sel, true
	}

	hops := 0
	for p := el.Parent(); p != nil && hops < maxAncestorHops; p = p.Parent() {
		var anc string
		if s, ok := idSelector(p); ok {
			anc = s
		} else if s, ok := dataAttrSelector(p); ok {
			anc = s
		} else {
			anc = tagClassCompound(p)
		}
		sel = anc + " " + sel
		if uniquelyMatches(root, sel, el) {
			return sel, true
		}
		hops++
	}
	return "", false
}

func tagClassCompound(el Element) string {
	var b strings.Builder
	b.WriteString(el.TagName())
	for _, class := range stableClasses(el) {
		b.WriteByte('.')
		b.WriteString(class)
	}
	return b.String()
}

// structuralPath builds a child-combinator nth-child chain from the nearest
// ancestor with a stable id (or the tree root) down to el. Least resilient
// form, used only when nothing attribute-based disambiguates.
func structuralPath(el Element) string {
	var parts []string
	current := el
	for {
		parent := current.Parent()
		if parent == nil {
			parts = append(parts, current.TagName())
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", current.TagName(), childIndex(current)))
		if sel, ok := idSelector(parent); ok {
			parts = append(parts, sel)
			break
		}
		current = parent
	}

	// parts were collected leaf-first.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func uniquelyMatches(root Element, sel string, el Element) bool {
	matches := Query(root, sel)
	return len(matches) == 1 && matches[0] == el
}

// stableClasses filters out classes that look generated.
func stableClasses(el Element) []string {
	var out []string
	for _, class := range el.Classes() {
		if stableToken(class) {
			out = append(out, class)
		}
	}
	return out
}

// stableToken reports whether an id or class looks hand-written rather than
// build-generated, so it is worth persisting across reloads.
func stableToken(tok string) bool {
	if tok == "" || !isName(tok) {
		return false
	}
	if digitRunRe.MatchString(tok) || hexHashRe.MatchString(tok) || cssModRe.MatchString(tok) {
		return false
	}
	return true
}
