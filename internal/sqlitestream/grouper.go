package sqlitestream

// rowMsg is one decoded row in page-arrival order, handed from the
// router goroutine to the row grouper.
type rowMsg struct {
	name   string
	schema TableSchema
	row    []interface{}
	err    error
}

// TableStream is one grouped run of consecutive rows belonging to the
// same table: a name, its column schema, and a lazily-pulled iterator
// over its rows.
type TableStream struct {
	Name   string
	Schema TableSchema
	Rows   func(yield func([]interface{}, error) bool)
}

// groupRows turns a channel of individually-decoded rows into an
// iterator of TableStream runs, merging only rows that are adjacent and
// share a table name — the Go rendering of stream_sqlite.py's
// itertools.groupby(rows, key=lambda r: r[0]), per spec.md §4.4. Two
// non-adjacent spans of the same table's rows (possible when another
// table's subtree interleaves between them) surface as separate
// TableStream runs rather than being merged.
func groupRows(ch <-chan rowMsg) func(yield func(TableStream, error) bool) {
	return func(yield func(TableStream, error) bool) {
		var lookahead *rowMsg

		recv := func() *rowMsg {
			if lookahead != nil {
				m := lookahead
				lookahead = nil
				return m
			}
			m, ok := <-ch
			if !ok {
				return nil
			}
			return &m
		}

		// drain discards the rest of the current table's run after the
		// consumer abandons its Rows iterator early, so the next recv()
		// at the outer level lines up on a genuine table boundary.
		drain := func(name string) {
			for {
				m := recv()
				if m == nil {
					return
				}
				if m.name != name {
					lookahead = m
					return
				}
			}
		}

		for {
			first := recv()
			if first == nil {
				return
			}
			if first.err != nil {
				yield(TableStream{}, first.err)
				return
			}
			name, schema, firstRow := first.name, first.schema, first.row

			rows := func(yield2 func([]interface{}, error) bool) {
				if !yield2(firstRow, nil) {
					drain(name)
					return
				}
				for {
					m := recv()
					if m == nil {
						return
					}
					if m.err != nil {
						yield2(nil, m.err)
						lookahead = m
						return
					}
					if m.name != name {
						lookahead = m
						return
					}
					if !yield2(m.row, nil) {
						drain(name)
						return
					}
				}
			}

			if !yield(TableStream{Name: name, Schema: schema, Rows: rows}, nil) {
				return
			}
		}
	}
}
