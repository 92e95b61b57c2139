// Package sheetcsv parses the loosely formatted CSV text produced by
// spreadsheet export endpoints. Exports in the wild carry ragged rows,
// stray blank records and quoted cells with embedded commas and newlines,
// so this is a forgiving character scanner rather than encoding/csv.
// Header semantics live in the normalizer, not here.
package sheetcsv

import "strings"

// Parse scans raw CSV text into rows of trimmed cells.
//
// A double quote toggles quoted mode; a doubled quote inside quoted mode
// emits one literal quote. A comma outside quotes ends a field and a
// newline outside quotes ends a record. Any trailing partial field or
// record at end of input is flushed. Rows with no non-empty cell at the
// tail of the input are dropped.
func Parse(text string) [][]string {
	var (
		rows   [][]string
		row    []string
		field  strings.Builder
		quoted bool
	)

	endField := func() {
		row = append(row, strings.TrimSpace(field.String()))
		field.Reset()
	}
	endRow := func() {
		endField()
		rows = append(rows, row)
		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch {
		case ch == '"':
			if quoted && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
				continue
			}
			quoted = !quoted
		case ch == ',' && !quoted:
			endField()
		case (ch == '\n' || ch == '\r') && !quoted:
			if ch == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRow()
		default:
			field.WriteRune(ch)
		}
	}

	// Flush whatever is pending at EOF.
	if field.Len() > 0 || len(row) > 0 {
		endRow()
	}

	// Drop zero-content trailing records left by terminal blank lines.
	// A row of empty cells like ",," is real data and is kept; the filter
	// decides what to do with it.
	for len(rows) > 0 && isBlankRecord(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}

	return rows
}

func isBlankRecord(row []string) bool {
	return len(row) == 1 && row[0] == ""
}
