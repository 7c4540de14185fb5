package engine

import "strings"

// IsVisible reports whether an element takes up space on the page and is not
// styled away. Containers failing this check are skipped by the structural
// extractor and the pattern detector.
func IsVisible(el Element) bool {
	if el == nil || el.Hidden() {
		return false
	}
	r := el.Rect()
	return r.Width > 0 && r.Height > 0
}

// semanticAttrNames are the attributes captured with click actions, in the
// order they are reported.
var semanticAttrNames = []string{"id", "class", "name", "type", "placeholder", "title", "href", "src", "alt", "role"}

// SemanticAttrs collects the identifying attributes of an element. Values
// are trimmed and capped so an attribute-stuffed element cannot bloat the
// action payload.
func SemanticAttrs(el Element) map[string]string {
	attrs := make(map[string]string)
	for _, name := range semanticAttrNames {
		if v, ok := el.Attr(name); ok && v != "" {
			attrs[name] = truncate(strings.TrimSpace(v), 200)
		}
	}
	for _, a := range el.Attrs() {
		if strings.HasPrefix(a.Name, "data-") {
			attrs[a.Name] = truncate(a.Value, 200)
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// IsFormControl reports whether an element is an input, select or textarea,
// and returns its control type ("text", "checkbox", "select", ...).
func IsFormControl(el Element) (string, bool) {
	switch el.Tag() {
	case "input":
		if t, ok := el.Attr("type"); ok && t != "" {
			return strings.ToLower(t), true
		}
		return "text", true
	case "select":
		return "select", true
	case "textarea":
		return "textarea", true
	}
	return "", false
}

// ElementText returns the element's text content trimmed and capped at max
// runes. max <= 0 means no cap.
func ElementText(el Element, max int) string {
	text := strings.TrimSpace(el.Text())
	if max > 0 {
		text = truncate(text, max)
	}
	return text
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// collapseSpace folds runs of whitespace into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
