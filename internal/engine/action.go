package engine

import "time"

// Action types produced by the recording engine.
const (
	ActionClick            = "click"
	ActionInput            = "input"
	ActionChange           = "change"
	ActionScroll           = "scroll"
	ActionPageState        = "pageState"
	ActionDataTable        = "dataTable"
	ActionDataList         = "dataList"
	ActionRepeatedElements = "repeatedElements"
	ActionSelectionPattern = "selectionPattern"
	ActionNavigation       = "navigation"
)

// Selection pattern sub-kinds.
const (
	PatternSiblingGroup = "sibling_group"
	PatternRepeatedType = "repeated_type"
)

// Position is a point in page coordinates, or a scroll offset.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Viewport is the visible page area at capture time.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TableData is the bounded representation of an extracted table.
type TableData struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Snippet is one extracted list item or repeated-element sample.
type Snippet struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Action is one normalized, timestamped record of an observed interaction
// or extracted page structure. Fields not used by a given Type are omitted
// from the JSON encoding, never null-filled.
type Action struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`

	Selector   string            `json:"selector,omitempty"`
	TagName    string            `json:"tagName,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Position   *Position         `json:"position,omitempty"`
	Viewport   *Viewport         `json:"viewport,omitempty"`

	Value     string `json:"value,omitempty"`
	InputType string `json:"inputType,omitempty"`

	Table *TableData `json:"table,omitempty"`
	List  []Snippet  `json:"list,omitempty"`

	ContainerSelector string    `json:"containerSelector,omitempty"`
	ItemSelector      string    `json:"itemSelector,omitempty"`
	Count             int       `json:"count,omitempty"`
	Samples           []Snippet `json:"samples,omitempty"`

	Pattern        string   `json:"pattern,omitempty"`
	ParentSelector string   `json:"parentSelector,omitempty"`
	ChildSelectors []string `json:"childSelectors,omitempty"`
	ElementType    string   `json:"elementType,omitempty"`
	Selectors      []string `json:"selectors,omitempty"`

	// DocumentHeight accompanies scroll and pageState actions so the
	// collector can relate the scroll offset to the full page length.
	DocumentHeight int `json:"documentHeight,omitempty"`
}

// Timestamp layout for Action records.
const timestampLayout = time.RFC3339Nano
