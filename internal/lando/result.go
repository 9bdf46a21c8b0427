package lando

import (
	"strconv"
	"strings"

	"github.com/entl/dbdeck/internal/paginate"
)

// ParseTable interprets query output as a tab-separated table: a header
// line followed by one row per line, the format mysql and friends emit for
// `-e` batch execution. ok is false when the output has no tabular shape
// (empty, or a single untabbed line such as a status message).
func ParseTable(out string) (src *paginate.TableSource, ok bool) {
	trimmed := strings.TrimRight(out, "\n")
	if trimmed == "" {
		return nil, false
	}

	lines := strings.Split(trimmed, "\n")
	header := strings.Split(lines[0], "\t")
	if len(header) == 1 && len(lines) == 1 {
		return nil, false
	}

	rows := make([]paginate.Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		row := make(paginate.Row, len(header))
		for i, col := range header {
			if i < len(fields) {
				row[col] = fields[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return paginate.NewTableSource(header, rows), true
}

// RowsAffected extracts an affected-row count from non-tabular output such
// as "Query OK, 3 rows affected". It scans lines mentioning "row" for a
// leading integer token.
func RowsAffected(out string) (int, bool) {
	if !strings.Contains(out, "row") {
		return 0, false
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "row") {
			continue
		}
		for _, tok := range strings.Fields(line) {
			tok = strings.Trim(tok, ",")
			if n, err := strconv.Atoi(tok); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
