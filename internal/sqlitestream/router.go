package sqlitestream

import "encoding/binary"

// tableCtx is the context threaded through a table B-tree's recursive
// descent: the owning table's name and already-parsed column schema.
// Grounded on stream_sqlite.py's process_table_page closure, which
// closes over the same two values via functools.partial.
type tableCtx struct {
	name   string
	schema TableSchema
}

// rowEvent is one decoded row, queued by a processor until the
// top-level stream drains it.
type rowEvent struct {
	table tableCtx
	row   []interface{}
}

// processor is a page handler: given the now-arrived bytes of the page
// it was registered for, it decodes/recurses as appropriate. This is
// the Go rendering of spec.md §9's "tagged variant dispatched by a
// single apply" suggestion — a closure plays the role of the tagged
// variant, closing over whatever context (table name + schema, or
// nothing, for index/freelist pages) that variant would have carried.
type processor func(rt *router) error

// router is the central engine of spec.md §4.3: the two-map rendezvous
// between pages that have arrived with unknown role (bufferedPages) and
// roles that are known but whose page hasn't arrived yet (processors).
type router struct {
	cfg           Config
	usableSize    int
	ddl           *ddlCache
	bufferedPages map[uint32]page
	bufferedBytes int
	processors    map[uint32]processor
	queue         []rowEvent
	current       page
}

func newRouter(cfg Config, hdr *databaseHeader) *router {
	rt := &router{
		cfg:           cfg,
		usableSize:    hdr.PageSize,
		ddl:           newDDLCache(cfg.ColumnCacheSize),
		bufferedPages: make(map[uint32]page),
		processors:    make(map[uint32]processor),
	}
	rt.processors[1] = rt.tableProcessor(tableCtx{name: schemaName})
	if hdr.FirstFreelistTrunkPage != 0 {
		rt.processors[hdr.FirstFreelistTrunkPage] = rt.freelistTrunkProcessor()
	}
	return rt
}

// feed delivers a newly-arrived page to the router: if a processor is
// already waiting for it, the processor runs immediately; otherwise the
// page is buffered until a processor is registered for it.
func (rt *router) feed(pg page) error {
	if proc, ok := rt.processors[pg.Num]; ok {
		delete(rt.processors, pg.Num)
		rt.current = pg
		return proc(rt)
	}
	rt.bufferedPages[pg.Num] = pg
	rt.bufferedBytes += len(pg.Bytes)
	if rt.cfg.BufferSize > 0 && rt.bufferedBytes > rt.cfg.BufferSize {
		return wrapErr("router.feed", ErrBufferExceeded, map[string]interface{}{
			"buffered_bytes": rt.bufferedBytes, "limit": rt.cfg.BufferSize,
		})
	}
	return nil
}

// dispatch registers proc for pageNum: if that page is already
// buffered, proc runs immediately against it; otherwise proc is
// remembered until the page arrives. This is process_if_buffered_or_remember
// in stream_sqlite.py.
func (rt *router) dispatch(pageNum uint32, proc processor) error {
	if pageNum == 0 {
		return nil
	}
	if pg, ok := rt.bufferedPages[pageNum]; ok {
		delete(rt.bufferedPages, pageNum)
		rt.bufferedBytes -= len(pg.Bytes)
		saved := rt.current
		rt.current = pg
		err := proc(rt)
		rt.current = saved
		return err
	}
	rt.processors[pageNum] = proc
	return nil
}

// finish fails with ErrUnusedPage if any page arrived but was never
// claimed by a processor — the invariant in spec.md §3 that every page
// must be classifiable by end of stream.
func (rt *router) finish() error {
	if len(rt.bufferedPages) == 0 {
		return nil
	}
	nums := make([]uint32, 0, len(rt.bufferedPages))
	for n := range rt.bufferedPages {
		nums = append(nums, n)
	}
	return wrapErr("router.finish", ErrUnusedPage, map[string]interface{}{"pages": nums})
}

func (rt *router) emit(ctx tableCtx, values []interface{}) {
	rt.queue = append(rt.queue, rowEvent{table: ctx, row: values})
}

func readU16(buf []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(buf) {
		return 0, wrapErr("readU16", ErrMalformedRecord, map[string]interface{}{"offset": off, "len": len(buf)})
	}
	return binary.BigEndian.Uint16(buf[off : off+2]), nil
}

func readU32(buf []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(buf) {
		return 0, wrapErr("readU32", ErrMalformedRecord, map[string]interface{}{"offset": off, "len": len(buf)})
	}
	return binary.BigEndian.Uint32(buf[off : off+4]), nil
}
