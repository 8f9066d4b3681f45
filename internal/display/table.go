package display

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// indent is prepended to every rendered table line.
const indent = "  "

// Table collects rows for a borderless, header-separated listing.
type Table struct {
	headers      []string
	rows         [][]string
	highlightRow int // 0-based row to highlight, -1 for none
}

// NewTable creates a new table with the given column headers.
func NewTable(headers []string) *Table {
	return &Table{
		headers:      headers,
		highlightRow: -1,
	}
}

// AddRow appends a row of values. Missing trailing cells render empty.
func (t *Table) AddRow(values []string) {
	t.rows = append(t.rows, values)
}

// SetHighlightRow sets which row index (0-based) should be highlighted.
func (t *Table) SetHighlightRow(idx int) {
	t.highlightRow = idx
}

// Render produces the formatted table string with leading indent.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	last := len(t.headers) - 1
	lt := table.New().
		Headers(t.headers...).
		Rows(t.normalizedRows()...).
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderRow(false).
		BorderHeader(true).
		BorderStyle(styleOf(dimStyle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := renderer.NewStyle()
			switch {
			case row == table.HeaderRow:
				s = styleOf(boldStyle)
			case row == t.highlightRow:
				s = styleOf(accentStyle)
			}
			if col < last {
				s = s.PaddingRight(2)
			}
			return s
		})

	var sb strings.Builder
	for _, line := range strings.Split(lt.Render(), "\n") {
		sb.WriteString(indent + line + "\n")
	}
	return sb.String()
}

// styleOf returns s when color is active and a plain style otherwise.
func styleOf(s lipgloss.Style) lipgloss.Style {
	if !enabled {
		return renderer.NewStyle()
	}
	return s
}

// normalizedRows pads or truncates each row to the header count.
func (t *Table) normalizedRows() [][]string {
	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		cells := make([]string, len(t.headers))
		copy(cells, row)
		out[i] = cells
	}
	return out
}
