package paginate

// TableSource is an in-memory Source over fully materialized rows. Its
// total is always known.
type TableSource struct {
	cols []string
	rows []Row
}

// NewTableSource builds a source from column names and rows.
func NewTableSource(cols []string, rows []Row) *TableSource {
	return &TableSource{cols: cols, rows: rows}
}

func (t *TableSource) Columns() []string { return t.cols }

func (t *TableSource) Total() (int, bool) { return len(t.rows), true }

func (t *TableSource) Slice(offset, limit int) ([]Row, error) {
	if offset >= len(t.rows) {
		return []Row{}, nil
	}
	end := offset + limit
	if end > len(t.rows) {
		end = len(t.rows)
	}
	return t.rows[offset:end], nil
}

// Untotaled hides a source's row count, modeling external commands that do
// not report totals. Requests past the end of data then produce empty
// pages instead of ErrPageOutOfRange.
func Untotaled(src Source) Source {
	return untotaled{src}
}

type untotaled struct {
	Source
}

func (untotaled) Total() (int, bool) { return 0, false }
