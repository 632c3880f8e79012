// Package sqlitestream decodes a SQLite database file delivered as an
// arbitrary sequence of byte chunks into its tables, schemas and rows,
// without ever materializing the whole file in memory.
package sqlitestream

// Stream is the engine's single entry point. It returns a range-over-func
// iterator of TableStream, suitable for `for table, err := range
// sqlitestream.Stream(src) { ... }`. Each TableStream's Rows field is
// itself a range-over-func iterator. The decoder goroutine reads src a
// page at a time and blocks on each decoded row until the consumer takes
// it. Abandoning a Rows iterator early (a `break`) skips the rest of that
// table's run, and the outer iterator goes on with the next table;
// abandoning the outer iterator early releases the decoder goroutine and
// every buffered page.
//
// The returned iterator is single-use: ranging over it a second time
// will panic, the same restriction most channel-backed range-over-func
// adapters carry.
func Stream(src ChunkSource, opts ...Option) func(yield func(TableStream, error) bool) {
	cfg := newConfig(opts)
	ch := make(chan rowMsg)
	stop := make(chan struct{})
	go runRouter(src, cfg, ch, stop)

	grouped := groupRows(ch)
	return func(yield func(TableStream, error) bool) {
		defer close(stop)
		grouped(yield)
	}
}

// send delivers m on out, unless stop fires first because the consumer
// abandoned the stream — the decoder goroutine's only suspension point
// besides byteReader.take, and the mechanism by which cancellation
// unblocks it.
func send(out chan<- rowMsg, stop <-chan struct{}, m rowMsg) bool {
	select {
	case out <- m:
		return true
	case <-stop:
		return false
	}
}

// runRouter drives the byte reader, page segmenter and page router to
// completion, publishing each decoded row on out in page-arrival order.
// It runs on its own goroutine so that a push-style producer (the
// router, which decides when rows exist as pages arrive) can feed a
// pull-style consumer (Stream's range-over-func iterator) with bounded,
// backpressured buffering, per spec.md §9's note that push-native
// implementations need a bounded queue at the push/pull boundary.
func runRouter(src ChunkSource, cfg Config, out chan<- rowMsg, stop <-chan struct{}) {
	defer close(out)

	br := newByteReader(src)
	seg, hdr, err := newPageSegmenter(br)
	if err != nil {
		send(out, stop, rowMsg{err: err})
		return
	}

	rt := newRouter(cfg, hdr)
	for {
		pg, ok, err := seg.next()
		if err != nil {
			send(out, stop, rowMsg{err: err})
			return
		}
		if !ok {
			break
		}
		if err := rt.feed(pg); err != nil {
			send(out, stop, rowMsg{err: err})
			return
		}
		for _, ev := range rt.queue {
			if !send(out, stop, rowMsg{name: ev.table.name, schema: ev.table.schema, row: ev.row}) {
				return
			}
		}
		rt.queue = rt.queue[:0]
	}

	if err := rt.finish(); err != nil {
		send(out, stop, rowMsg{err: err})
	}
}
