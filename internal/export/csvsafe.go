package export

import "strings"

// EscapeCell protects against formula injection by prefixing cells that a
// spreadsheet would evaluate with a single quote.
func EscapeCell(value string) string {
	if value == "" {
		return value
	}

	switch value[0] {
	case '=', '+', '-', '@', '|', '%', '\t', '\r', '\n':
		return "'" + value
	}
	// full-width variants are normalised to formulas by some spreadsheet apps
	if strings.HasPrefix(value, "＝") || strings.HasPrefix(value, "＋") || strings.HasPrefix(value, "－") || strings.HasPrefix(value, "＠") {
		return "'" + value
	}
	return value
}

// EscapeRow escapes all cells in a row
func EscapeRow(row []string) []string {
	escaped := make([]string, len(row))
	for i, cell := range row {
		escaped[i] = EscapeCell(cell)
	}
	return escaped
}
