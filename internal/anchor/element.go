// Package anchor generates stable selectors for page elements and resolves
// persisted selectors back to elements. It works against the Element
// interface rather than a live DOM so the resolution algorithm can run
// against any element tree, including mock trees in tests.
package anchor

// Element is an opaque handle to one node of an element tree. Implementations
// wrap whatever the host environment provides (a browser DOM node, a parsed
// HTML document, a test fixture).
type Element interface {
	// TagName returns the lowercase tag name, e.g. "div".
	TagName() string
	// ID returns the id attribute, or "" when absent.
	ID() string
	// Attr returns the named attribute value and whether it is present.
	Attr(name string) (string, bool)
	// Classes returns the element's class list.
	Classes() []string
	// Parent returns the parent element, or nil at the root.
	Parent() Element
	// Children returns the child elements in document order.
	Children() []Element
	// Text returns the element's visible text content.
	Text() string
}

// RootOf walks up to the topmost ancestor of el.
func RootOf(el Element) Element {
	for el.Parent() != nil {
		el = el.Parent()
	}
	return el
}

// childIndex returns the 1-based position of el among its siblings, as used
// by :nth-child. Returns 1 for a root element.
func childIndex(el Element) int {
	parent := el.Parent()
	if parent == nil {
		return 1
	}
	for i, sibling := range parent.Children() {
		if sibling == el {
			return i + 1
		}
	}
	return 1
}
