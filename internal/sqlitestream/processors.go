package sqlitestream

import "encoding/binary"

const (
	pageTypeIndexInterior = 0x02
	pageTypeTableInterior = 0x05
	pageTypeIndexLeaf     = 0x0A
	pageTypeTableLeaf     = 0x0D
)

// tableProcessor returns the processor for a B-tree page belonging to
// ctx's table, branching on the page-type byte per spec.md §4.3. The
// same closure is dispatched recursively for every interior child, so a
// whole table's subtree is walked by repeatedly registering this one
// variant under new page numbers.
func (rt *router) tableProcessor(ctx tableCtx) processor {
	return func(rt *router) error {
		pg := rt.current
		if pg.Cursor >= len(pg.Bytes) {
			return wrapErr("tableProcessor", ErrMalformedRecord, map[string]interface{}{"page": pg.Num})
		}
		switch pg.Bytes[pg.Cursor] {
		case pageTypeTableLeaf:
			if ctx.name == schemaName {
				return rt.processSchemaLeaf(pg)
			}
			return rt.processTableLeaf(ctx, pg)
		case pageTypeTableInterior:
			return rt.processTableInterior(ctx, pg)
		default:
			return wrapErr("tableProcessor", ErrMalformedRecord, map[string]interface{}{
				"page": pg.Num, "type_byte": pg.Bytes[pg.Cursor],
			})
		}
	}
}

// leafCellCount reads the cell count from a leaf page header and returns
// it with the offset of the cell-pointer array that follows the 8-byte
// header. The header's other fields (first freeblock, cell-content
// start, fragmented-byte count) are not read.
func leafCellCount(pg page) (int, int, error) {
	n, err := readU16(pg.Bytes, pg.Cursor+3)
	if err != nil {
		return 0, 0, err
	}
	return int(n), pg.Cursor + 8, nil
}

// interiorCellCount mirrors leafCellCount for the 4-byte-longer
// interior header, also returning the right-most child pointer.
func interiorCellCount(pg page) (numCells int, rightmost uint32, pointersOff int, err error) {
	n, err := readU16(pg.Bytes, pg.Cursor+3)
	if err != nil {
		return 0, 0, 0, err
	}
	rm, err := readU32(pg.Bytes, pg.Cursor+8)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(n), rm, pg.Cursor + 12, nil
}

func cellPointer(pg page, pointersOff, i int) (int, error) {
	off, err := readU16(pg.Bytes, pointersOff+2*i)
	if err != nil {
		return 0, err
	}
	return int(off), nil
}

// readTableLeafCell decodes one table-leaf cell's payload_size and
// rowid varints and locates its inline payload bytes, per spec.md
// §4.3's row-decoding steps 1-2, extended with the overflow-page inline
// fraction split from overflow.go.
func readTableLeafCell(buf []byte, ptr, usableSize int) (rowid uint64, inline []byte, layout payloadLayout, overflowPage uint32, err error) {
	payloadSize, w1, err := varint(buf, ptr)
	if err != nil {
		return 0, nil, payloadLayout{}, 0, err
	}
	pos := ptr + w1

	rowid, w2, err := varint(buf, pos)
	if err != nil {
		return 0, nil, payloadLayout{}, 0, err
	}
	pos += w2

	layout = computePayloadLayout(usableSize, int(payloadSize))
	if pos+layout.InlineBytes > len(buf) {
		return 0, nil, payloadLayout{}, 0, wrapErr("readTableLeafCell", ErrMalformedRecord, map[string]interface{}{
			"need": pos + layout.InlineBytes, "have": len(buf),
		})
	}
	inline = buf[pos : pos+layout.InlineBytes]
	pos += layout.InlineBytes

	if layout.NeedsSpill {
		if pos+4 > len(buf) {
			return 0, nil, payloadLayout{}, 0, wrapErr("readTableLeafCell", ErrMalformedRecord, map[string]interface{}{
				"need": pos + 4, "have": len(buf),
			})
		}
		overflowPage = binary.BigEndian.Uint32(buf[pos : pos+4])
	}
	return rowid, inline, layout, overflowPage, nil
}

// registerOverflow walks a.consume across the overflow-page chain
// starting at firstPage, re-dispatching itself for the next page until
// the chain completes or fails.
func (rt *router) registerOverflow(firstPage uint32, a *overflowAssembly) error {
	return rt.dispatch(firstPage, func(rt *router) error {
		next, err := a.consume(rt.usableSize, rt.current.Bytes)
		if err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		return rt.registerOverflow(next, a)
	})
}

// processSchemaLeaf decodes sqlite_schema's own rows (type, name,
// tbl_name, rootpage, sql) and, for table/index entries, dispatches a
// processor for that object's root page — spec.md §4.3's
// schema-table-is-special-cased branch.
func (rt *router) processSchemaLeaf(pg page) error {
	numCells, pointersOff, err := leafCellCount(pg)
	if err != nil {
		return err
	}
	for i := 0; i < numCells; i++ {
		ptr, err := cellPointer(pg, pointersOff, i)
		if err != nil {
			return err
		}
		_, inline, layout, overflowPage, err := readTableLeafCell(pg.Bytes, ptr, rt.usableSize)
		if err != nil {
			return err
		}
		if !layout.NeedsSpill {
			values, err := decodeRecord(inline)
			if err != nil {
				return err
			}
			if err := rt.handleSchemaRow(values); err != nil {
				return err
			}
			continue
		}
		buf := append([]byte(nil), inline...)
		a := &overflowAssembly{
			buf:    buf,
			needed: layout.InlineBytes + layout.SpillNeeded,
			complete: func(payload []byte) error {
				values, err := decodeRecord(payload)
				if err != nil {
					return err
				}
				return rt.handleSchemaRow(values)
			},
		}
		if err := rt.registerOverflow(overflowPage, a); err != nil {
			return err
		}
	}
	return nil
}

// handleSchemaRow interprets one decoded sqlite_schema row and, for
// table and index objects, registers the matching B-tree processor at
// its rootpage. Views and triggers carry no storage of their own and
// are ignored, matching stream_sqlite.py.
func (rt *router) handleSchemaRow(values []interface{}) error {
	if len(values) < 5 {
		return wrapErr("handleSchemaRow", ErrMalformedRecord, map[string]interface{}{"fields": len(values)})
	}
	objType, _ := values[0].(string)
	name, _ := values[1].(string)
	rootPage := asInt64(values[3])
	sqlText, _ := values[4].(string)

	switch objType {
	case "table":
		schema, err := rt.ddl.parse(sqlText)
		if err != nil {
			return err
		}
		return rt.dispatch(uint32(rootPage), rt.tableProcessor(tableCtx{name: name, schema: schema}))
	case "index":
		return rt.dispatch(uint32(rootPage), rt.indexProcessor())
	default:
		return nil
	}
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	default:
		return 0
	}
}

// processTableLeaf decodes every cell of an ordinary table's leaf page
// into a row tuple and emits it, assembling overflow chains as needed.
func (rt *router) processTableLeaf(ctx tableCtx, pg page) error {
	numCells, pointersOff, err := leafCellCount(pg)
	if err != nil {
		return err
	}
	for i := 0; i < numCells; i++ {
		ptr, err := cellPointer(pg, pointersOff, i)
		if err != nil {
			return err
		}
		_, inline, layout, overflowPage, err := readTableLeafCell(pg.Bytes, ptr, rt.usableSize)
		if err != nil {
			return err
		}
		if !layout.NeedsSpill {
			values, err := decodeRecord(inline)
			if err != nil {
				return err
			}
			rt.emit(ctx, values)
			continue
		}
		buf := append([]byte(nil), inline...)
		a := &overflowAssembly{
			buf:    buf,
			needed: layout.InlineBytes + layout.SpillNeeded,
			complete: func(payload []byte) error {
				values, err := decodeRecord(payload)
				if err != nil {
					return err
				}
				rt.emit(ctx, values)
				return nil
			},
		}
		if err := rt.registerOverflow(overflowPage, a); err != nil {
			return err
		}
	}
	return nil
}

// processTableInterior dispatches every child pointer (and the
// right-most pointer) of an interior table page to the same table
// processor, continuing the subtree walk.
func (rt *router) processTableInterior(ctx tableCtx, pg page) error {
	numCells, rightmost, pointersOff, err := interiorCellCount(pg)
	if err != nil {
		return err
	}
	for i := 0; i < numCells; i++ {
		ptr, err := cellPointer(pg, pointersOff, i)
		if err != nil {
			return err
		}
		child, err := readU32(pg.Bytes, ptr)
		if err != nil {
			return err
		}
		if err := rt.dispatch(child, rt.tableProcessor(ctx)); err != nil {
			return err
		}
	}
	return rt.dispatch(rightmost, rt.tableProcessor(ctx))
}

// indexProcessor returns the processor for an index B-tree page. Index
// leaves carry no rows this core needs (query-time index traversal is a
// spec Non-goal) so only interior pages do anything: recurse to find
// every page the index occupies, so each can still be classified and
// none trips ErrUnusedPage.
func (rt *router) indexProcessor() processor {
	return func(rt *router) error {
		pg := rt.current
		if pg.Cursor >= len(pg.Bytes) {
			return wrapErr("indexProcessor", ErrMalformedRecord, map[string]interface{}{"page": pg.Num})
		}
		switch pg.Bytes[pg.Cursor] {
		case pageTypeIndexLeaf:
			return nil
		case pageTypeIndexInterior:
			return rt.processIndexInterior(pg)
		default:
			return wrapErr("indexProcessor", ErrMalformedRecord, map[string]interface{}{
				"page": pg.Num, "type_byte": pg.Bytes[pg.Cursor],
			})
		}
	}
}

func (rt *router) processIndexInterior(pg page) error {
	numCells, rightmost, pointersOff, err := interiorCellCount(pg)
	if err != nil {
		return err
	}
	for i := 0; i < numCells; i++ {
		ptr, err := cellPointer(pg, pointersOff, i)
		if err != nil {
			return err
		}
		child, err := readU32(pg.Bytes, ptr)
		if err != nil {
			return err
		}
		if err := rt.dispatch(child, rt.indexProcessor()); err != nil {
			return err
		}
	}
	return rt.dispatch(rightmost, rt.indexProcessor())
}

// freelistTrunkProcessor reads a freelist trunk page's next-trunk
// pointer and leaf page list, dispatching each leaf and continuing the
// chain. When Config.WalkFreelist is false, an out-of-bounds leaf count
// is clamped instead of rejected, trading strict corruption detection
// for tolerance of the trunk's trailing unused slots some writers leave
// non-zeroed.
func (rt *router) freelistTrunkProcessor() processor {
	return func(rt *router) error {
		pg := rt.current
		off := pg.Cursor
		nextTrunk, err := readU32(pg.Bytes, off)
		if err != nil {
			return err
		}
		numLeaves, err := readU32(pg.Bytes, off+4)
		if err != nil {
			return err
		}
		leavesOff := off + 8
		n := int(numLeaves)
		maxN := (len(pg.Bytes) - leavesOff) / 4
		if n > maxN {
			if rt.cfg.WalkFreelist {
				return wrapErr("freelistTrunkProcessor", ErrMalformedRecord, map[string]interface{}{
					"num_leaves": numLeaves, "page": pg.Num,
				})
			}
			n = maxN
		}
		for i := 0; i < n; i++ {
			leafPage, err := readU32(pg.Bytes, leavesOff+4*i)
			if err != nil {
				return err
			}
			if err := rt.dispatch(leafPage, rt.freelistLeafProcessor()); err != nil {
				return err
			}
		}
		if nextTrunk != 0 {
			return rt.dispatch(nextTrunk, rt.freelistTrunkProcessor())
		}
		return nil
	}
}

// freelistLeafProcessor does nothing but mark the page classified: a
// freelist leaf holds no structure beyond its page number ever pointing
// back here.
func (rt *router) freelistLeafProcessor() processor {
	return func(rt *router) error { return nil }
}
