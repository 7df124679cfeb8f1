// Package fetcher downloads remote archive files and parses the tabular
// formats that surveillance line lists arrive in.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming line-list parser.
type CSVOptions struct {
	Delimiter  rune // default ','; some exports use ';' or '|'
	Comment    rune // lines starting with this rune are skipped (0 = none)
	LazyQuotes bool // tolerate stray quotes in hand-edited exports
	TrimSpace  bool // strip surrounding whitespace from every field
}

// StreamCSV reads rows into a channel so a multi-season export never
// sits in memory whole. The caller drains the row channel first, then
// the error channel; both close when parsing ends. Rows keep whatever
// field count they have, column resolution happens against the header
// row downstream.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
