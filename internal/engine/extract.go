package engine

import "strings"

const (
	maxTableRows = 10
	maxListItems = 10
	minListItems = 3
	maxItemHTML  = 500
)

// ExtractTable builds a bounded structured representation of a table
// element: headers from a header row when one exists, otherwise the first
// row is promoted to headers and excluded from the data. Returns nil when
// the table is not visible or holds no rows.
func ExtractTable(table Element) (data *TableData) {
	defer func() {
		// A table mutated mid-walk degrades to "nothing extracted".
		if r := recover(); r != nil {
			data = nil
		}
	}()

	if table == nil || table.Tag() != "table" || !IsVisible(table) {
		return nil
	}

	rows := collectRows(table)
	if len(rows) == 0 {
		return nil
	}

	data = &TableData{}
	headerCells := cellTexts(rows[0], "th")
	if len(headerCells) > 0 {
		data.Headers = headerCells
		rows = rows[1:]
	} else {
		// No header row: treat the first row as one.
		data.Headers = cellTexts(rows[0], "td")
		rows = rows[1:]
	}

	for _, row := range rows {
		if len(data.Rows) >= maxTableRows {
			break
		}
		cells := cellTexts(row, "td")
		if len(cells) == 0 {
			cells = cellTexts(row, "th")
		}
		if len(cells) > 0 {
			data.Rows = append(data.Rows, cells)
		}
	}
	return data
}

// collectRows gathers tr elements whether or not the table nests them under
// thead/tbody/tfoot sections.
func collectRows(table Element) []Element {
	var rows []Element
	for _, child := range table.Children() {
		switch child.Tag() {
		case "tr":
			rows = append(rows, child)
		case "thead", "tbody", "tfoot":
			for _, row := range child.Children() {
				if row.Tag() == "tr" {
					rows = append(rows, row)
				}
			}
		}
	}
	return rows
}

func cellTexts(row Element, cellTag string) []string {
	var cells []string
	for _, cell := range row.Children() {
		if cell.Tag() == cellTag {
			cells = append(cells, collapseSpace(cell.Text()))
		}
	}
	return cells
}

// ExtractList builds a bounded representation of a ul/ol element. Containers
// with fewer than three items are markup, not data, and yield nil.
func ExtractList(list Element) (items []Snippet) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
		}
	}()

	if list == nil || !IsVisible(list) {
		return nil
	}
	switch list.Tag() {
	case "ul", "ol":
	default:
		return nil
	}

	children := list.Children()
	if len(children) < minListItems {
		return nil
	}

	for _, child := range children {
		if len(items) >= maxListItems {
			break
		}
		items = append(items, Snippet{
			Text: collapseSpace(child.Text()),
			HTML: truncate(strings.TrimSpace(child.HTML()), maxItemHTML),
		})
	}
	return items
}
