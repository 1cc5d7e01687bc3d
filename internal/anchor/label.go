package anchor

import "strings"

const maxLabelLen = 40

// ElementLabel derives a short human-readable label for an element, for
// display next to a drawn connector. Best effort only: falls through
// aria-label, visible text, title, alt, and finally the tag name, and
// always returns a non-empty string.
func ElementLabel(el Element) string {
	if v, ok := el.Attr("aria-label"); ok {
		if label := tidyLabel(v); label != "" {
			return label
		}
	}
	if label := tidyLabel(el.Text()); label != "" {
		return label
	}
	for _, attr := range []string{"title", "alt", "placeholder", "name"} {
		if v, ok := el.Attr(attr); ok {
			if label := tidyLabel(v); label != "" {
				return label
			}
		}
	}
	if tag := strings.TrimSpace(el.TagName()); tag != "" {
		return tag
	}
	return "element"
}

// tidyLabel collapses whitespace and truncates with an ellipsis.
func tidyLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) > maxLabelLen {
		return string(runes[:maxLabelLen-1]) + "…"
	}
	return s
}
