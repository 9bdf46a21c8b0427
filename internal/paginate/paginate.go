// Package paginate exposes page-at-a-time access over tabular query
// results. It is stateless: every call works purely from the supplied
// source, and nothing is cached between page requests.
package paginate

import (
	"errors"
)

// Page size bounds accepted by Paginate.
const (
	MinPageSize = 10
	MaxPageSize = 1000
)

var (
	// ErrInvalidPageSize is returned when the requested page size is
	// outside [MinPageSize, MaxPageSize].
	ErrInvalidPageSize = errors.New("page size out of range")

	// ErrPageOutOfRange is returned when the requested page starts beyond
	// a known total row count.
	ErrPageOutOfRange = errors.New("page index out of range")
)

// Row maps column name to value.
type Row map[string]string

// Source is an opaque handle to a query's full or streamed result. If the
// backing command must be re-invoked per page, that is the source
// implementation's concern, not the paginator's.
type Source interface {
	// Columns returns the column names in result order.
	Columns() []string
	// Total returns the total row count and whether it is known. Streamed
	// sources that cannot report a count return (0, false).
	Total() (int, bool)
	// Slice returns up to limit rows starting at offset. Past the end of
	// data it returns an empty slice, not an error.
	Slice(offset, limit int) ([]Row, error)
}

// Page is one bounded slice of a result set.
type Page struct {
	Columns    []string `json:"columns"`
	Rows       []Row    `json:"rows"`
	Index      int      `json:"page"`
	Size       int      `json:"page_size"`
	Total      int      `json:"total"`
	TotalKnown bool     `json:"total_known"`
}

// Paginate returns page index (0-based) of size rows from src.
//
// A size outside [MinPageSize, MaxPageSize] fails with ErrInvalidPageSize
// for any source. When the total is known and index*size exceeds it, the
// call fails with ErrPageOutOfRange. When the total is unknown, requests
// past the end of data yield an empty page: end-of-data is a signal, not
// an error.
func Paginate(src Source, index, size int) (*Page, error) {
	if size < MinPageSize || size > MaxPageSize {
		return nil, ErrInvalidPageSize
	}
	if index < 0 {
		return nil, ErrPageOutOfRange
	}

	offset := index * size
	if index > 0 && offset/index != size {
		// index*size overflowed int; no source has that many rows.
		return nil, ErrPageOutOfRange
	}
	total, known := src.Total()
	if known && offset > total {
		return nil, ErrPageOutOfRange
	}

	rows, err := src.Slice(offset, size)
	if err != nil {
		return nil, err
	}

	return &Page{
		Columns:    src.Columns(),
		Rows:       rows,
		Index:      index,
		Size:       size,
		Total:      total,
		TotalKnown: known,
	}, nil
}
