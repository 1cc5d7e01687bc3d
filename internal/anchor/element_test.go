package anchor

import "strings"

// testElement is an in-memory element tree for exercising the resolver
// without a browser.
type testElement struct {
	tag      string
	id       string
	attrs    map[string]string
	classes  []string
	text     string
	parent   *testElement
	children []*testElement
}

func newTestElement(tag string) *testElement {
	return &testElement{tag: tag, attrs: map[string]string{}}
}

func (e *testElement) withID(id string) *testElement {
	e.id = id
	return e
}

func (e *testElement) withAttr(name, value string) *testElement {
	e.attrs[name] = value
	return e
}

func (e *testElement) withClasses(classes ...string) *testElement {
	e.classes = append(e.classes, classes...)
	return e
}

func (e *testElement) withText(text string) *testElement {
	e.text = text
	return e
}

func (e *testElement) append(children ...*testElement) *testElement {
	for _, c := range children {
		c.parent = e
		e.children = append(e.children, c)
	}
	return e
}

func (e *testElement) TagName() string { return strings.ToLower(e.tag) }
func (e *testElement) ID() string      { return e.id }

func (e *testElement) Attr(name string) (string, bool) {
	if name == "id" && e.id != "" {
		return e.id, true
	}
	v, ok := e.attrs[name]
	return v, ok
}

func (e *testElement) Classes() []string { return e.classes }

func (e *testElement) Parent() Element {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

func (e *testElement) Children() []Element {
	out := make([]Element, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out
}

func (e *testElement) Text() string {
	parts := []string{e.text}
	for _, c := range e.children {
		parts = append(parts, c.Text())
	}
	return strings.Join(parts, " ")
}
