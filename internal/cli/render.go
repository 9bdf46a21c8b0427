package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"github.com/entl/dbdeck/internal/paginate"
)

// renderPage writes one result page in the requested format.
func renderPage(w io.Writer, page *paginate.Page, format string) error {
	switch format {
	case "json":
		return renderJSON(w, page)
	case "csv":
		return renderCSV(w, page)
	default:
		return renderTable(w, page)
	}
}

func renderTable(w io.Writer, page *paginate.Page) error {
	if len(page.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	if isTTY(w) {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleDefault)
	}

	headerRow := make(table.Row, len(page.Columns))
	for i, col := range page.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, row := range page.Rows {
		out := make(table.Row, len(page.Columns))
		for i, col := range page.Columns {
			out[i] = row[col]
		}
		t.AppendRow(out)
	}

	t.Render()
	if page.TotalKnown {
		_, _ = fmt.Fprintf(w, "page %d (%d of %d rows)\n", page.Index, len(page.Rows), page.Total)
	} else {
		_, _ = fmt.Fprintf(w, "page %d (%d rows)\n", page.Index, len(page.Rows))
	}
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderCSV(w io.Writer, page *paginate.Page) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(page.Columns); err != nil {
		return err
	}
	for _, row := range page.Rows {
		values := make([]string, len(page.Columns))
		for i, col := range page.Columns {
			values[i] = row[col]
		}
		if err := cw.Write(values); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
