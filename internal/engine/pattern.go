package engine

import (
	"strings"
	"time"
)

const (
	repeatedMinChildren = 3
	repeatedThreshold   = 0.7
	maxSamples          = 3
	maxSampleText       = 100
	maxSampleHTML       = 300
	patternTriggerSize  = 3
)

// containerHints are the locator heuristics tried, in order, when scanning
// for repeated item grids. Brittle by construction: source-order-dependent
// and keyed to English class vocabulary. Internationalized class names and
// shadow-DOM hosts are out of scope.
var containerHints = []string{
	"[class*=\"product\"]",
	"[class*=\"item\"]",
	"[class*=\"card\"]",
	".products",
	".items",
	".cards",
	".grid",
	".results",
}

// DetectRepeatedElements scans the document for the first container whose
// direct children repeat one structural signature. At most one action is
// produced per pass, with at most three truncated samples.
func DetectRepeatedElements(doc Document, syn *Synthesizer) *Action {
	if doc == nil {
		return nil
	}
	for _, hint := range containerHints {
		for _, container := range doc.Query(hint) {
			if !IsVisible(container) {
				continue
			}
			children := container.Children()
			if len(children) < repeatedMinChildren {
				continue
			}

			sig := childSignature(children[0])
			if sig == "" {
				continue
			}
			count := 0
			var matched []Element
			for _, child := range children {
				if childSignature(child) == sig {
					count++
					matched = append(matched, child)
				}
			}
			if float64(count)/float64(len(children)) < repeatedThreshold {
				continue
			}

			action := &Action{
				Type:              ActionRepeatedElements,
				ContainerSelector: syn.Synthesize(container),
				ItemSelector:      itemSelector(children[0]),
				Count:             count,
			}
			for _, item := range matched {
				if len(action.Samples) >= maxSamples {
					break
				}
				action.Samples = append(action.Samples, Snippet{
					Text: ElementText(item, maxSampleText),
					HTML: truncate(strings.TrimSpace(item.HTML()), maxSampleHTML),
				})
			}
			return action
		}
	}
	return nil
}

// childSignature is the tag+class identity used to compare siblings.
func childSignature(el Element) string {
	if el == nil {
		return ""
	}
	return el.Tag() + "|" + strings.Join(el.Classes(), ".")
}

// itemSelector renders the signature of a sample item as a selector hint,
// bounded to two classes like the synthesizer's class step.
func itemSelector(el Element) string {
	sel := el.Tag()
	classes := el.Classes()
	if len(classes) > 2 {
		classes = classes[:2]
	}
	for _, c := range classes {
		sel += "." + EscapeIdent(c)
	}
	return sel
}

// SelectedElement is one entry of the rolling selection window.
type SelectedElement struct {
	Element     Element
	Selector    string
	TagName     string
	TextSample  string
	Occurrences int
	FirstSeenAt time.Time
}

// selectionWindow is a fixed-capacity FIFO of recently clicked elements.
type selectionWindow struct {
	entries  []*SelectedElement
	capacity int
}

func newSelectionWindow(capacity int) *selectionWindow {
	return &selectionWindow{capacity: capacity}
}

// push records a selection. Re-selecting an element already in the window
// bumps its occurrence count instead of adding a duplicate entry. Overflow
// evicts the oldest entry, never fails the insertion.
func (w *selectionWindow) push(entry *SelectedElement) {
	for _, existing := range w.entries {
		if existing.Element == entry.Element {
			existing.Occurrences++
			return
		}
	}
	w.entries = append(w.entries, entry)
	if len(w.entries) > w.capacity {
		w.entries = w.entries[1:]
	}
}

func (w *selectionWindow) size() int {
	return len(w.entries)
}

// recent returns the n most recent entries, oldest first.
func (w *selectionWindow) recent(n int) []*SelectedElement {
	if len(w.entries) < n {
		return nil
	}
	return w.entries[len(w.entries)-n:]
}

func (w *selectionWindow) reset() {
	w.entries = nil
}

// DetectSelectionPatterns examines the three most recent selections for
// structural relationships. The sibling-group and repeated-type checks are
// independent; both may fire on the same triple. An empty result is the
// normal "no signal" outcome, not an error.
func DetectSelectionPatterns(window *selectionWindow, syn *Synthesizer) []Action {
	recent := window.recent(patternTriggerSize)
	if recent == nil {
		return nil
	}

	var actions []Action

	parent := recent[0].Element.Parent()
	sameParent := parent != nil
	for _, entry := range recent[1:] {
		if entry.Element.Parent() != parent {
			sameParent = false
			break
		}
	}
	if sameParent {
		action := Action{
			Type:           ActionSelectionPattern,
			Pattern:        PatternSiblingGroup,
			ParentSelector: syn.Synthesize(parent),
		}
		for _, entry := range recent {
			action.ChildSelectors = append(action.ChildSelectors, entry.Selector)
		}
		actions = append(actions, action)
	}

	tag := recent[0].TagName
	sameTag := tag != ""
	for _, entry := range recent[1:] {
		if entry.TagName != tag {
			sameTag = false
			break
		}
	}
	if sameTag {
		action := Action{
			Type:        ActionSelectionPattern,
			Pattern:     PatternRepeatedType,
			ElementType: tag,
		}
		for _, entry := range recent {
			action.Selectors = append(action.Selectors, entry.Selector)
		}
		actions = append(actions, action)
	}

	return actions
}
