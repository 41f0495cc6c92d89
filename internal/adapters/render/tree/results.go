package tree

import (
	"fmt"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const maxCellWidth = 40

func renderResults(results *domain.QueryResults, s styles) string {
	header := results.Header()
	records := results.Records()

	lines := []string{
		s.title.Render("Query results " + results.ID),
		s.header.Render(fmt.Sprintf("records: %d  columns: %d", len(records), len(header))),
	}
	if len(records) == 0 {
		lines = append(lines, s.empty.Render("No records."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	rows := make([][]string, 0, len(records))
	widths := make([]int, len(header))
	for i, column := range header {
		widths[i] = lipgloss.Width(column)
	}
	for _, record := range records {
		row := make([]string, len(header))
		for i, column := range header {
			row[i] = truncate(cellText(record.Values[column]), maxCellWidth)
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
		rows = append(rows, row)
	}

	lines = append(lines, s.column.Render(joinCells(header, widths)))
	for _, row := range rows {
		lines = append(lines, s.cell.Render(joinCells(row, widths)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func joinCells(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
	}
	return strings.TrimRight(strings.Join(padded, "  "), " ")
}

func cellText(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case domain.Value:
		return FormatValue(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
