package sqlitestream

import "testing"

// buildLeafPage constructs a minimal table/index leaf page of the given
// size with cells placed back-to-back starting at offset 100 (chosen
// only to stay clear of the 8-byte leaf header and pointer array; the
// cell-content-start header field itself is never consulted by this
// core's decoding, only the pointer array and cell bytes are).
func buildLeafPage(size int, pageType byte, cells [][]byte) []byte {
	buf := make([]byte, size)
	buf[0] = pageType
	buf[3] = byte(len(cells) >> 8)
	buf[4] = byte(len(cells))

	pointersOff := 8
	cellOff := 100
	for i, cell := range cells {
		buf[pointersOff+2*i] = byte(cellOff >> 8)
		buf[pointersOff+2*i+1] = byte(cellOff)
		copy(buf[cellOff:], cell)
		cellOff += len(cell)
	}
	return buf
}

// buildTableLeafCell assembles a table-leaf cell (payload_size varint,
// rowid varint, inline record bytes) for a payload small enough to
// never need overflow.
func buildTableLeafCell(rowid uint64, record []byte) []byte {
	cell := []byte{byte(len(record))}
	cell = append(cell, byte(rowid))
	cell = append(cell, record...)
	return cell
}

func TestProcessTableLeafEmitsRows(t *testing.T) {
	record := buildRecord([]byte{1}, []byte{99})
	cell := buildTableLeafCell(1, record)
	pageBytes := buildLeafPage(512, pageTypeTableLeaf, [][]byte{cell})

	rt := newTestRouter(Config{})
	ctx := tableCtx{name: "widgets", schema: TableSchema{Columns: []ColumnDef{{CID: 0, Name: "n", Type: "integer"}}}}

	if err := rt.processTableLeaf(ctx, page{Num: 2, Bytes: pageBytes, Cursor: 0}); err != nil {
		t.Fatalf("processTableLeaf() error = %v", err)
	}
	if len(rt.queue) != 1 {
		t.Fatalf("processTableLeaf() queued %d rows, want 1", len(rt.queue))
	}
	if rt.queue[0].table.name != "widgets" {
		t.Errorf("queued row table name = %v, want widgets", rt.queue[0].table.name)
	}
	if rt.queue[0].row[0] != int64(99) {
		t.Errorf("queued row value = %v, want 99", rt.queue[0].row[0])
	}
}

func TestProcessTableInteriorDispatchesChildren(t *testing.T) {
	buf := make([]byte, 512)
	buf[0] = pageTypeTableInterior
	buf[3] = 0
	buf[4] = 1 // one cell
	buf[8] = 0 // right-most at offset Cursor+8, 4 bytes
	buf[9] = 0
	buf[10] = 0
	buf[11] = 42 // right-most child = page 42

	pointersOff := 12
	cellOff := 100
	buf[pointersOff] = byte(cellOff >> 8)
	buf[pointersOff+1] = byte(cellOff)
	// cell: 4-byte child page number followed by a key varint (unused).
	buf[cellOff] = 0
	buf[cellOff+1] = 0
	buf[cellOff+2] = 0
	buf[cellOff+3] = 17
	buf[cellOff+4] = 0x01

	rt := newTestRouter(Config{})
	ctx := tableCtx{name: "t"}
	if err := rt.processTableInterior(ctx, page{Num: 2, Bytes: buf, Cursor: 0}); err != nil {
		t.Fatalf("processTableInterior() error = %v", err)
	}

	if _, ok := rt.processors[17]; !ok {
		t.Error("processTableInterior() should register the left child page")
	}
	if _, ok := rt.processors[42]; !ok {
		t.Error("processTableInterior() should register the right-most child page")
	}
}

func TestFreelistTrunkProcessorDispatchesLeavesAndNextTrunk(t *testing.T) {
	buf := make([]byte, 512)
	buf[3] = 9 // next trunk page = 9
	buf[7] = 2 // num leaves = 2
	buf[8] = 0
	buf[9] = 0
	buf[10] = 0
	buf[11] = 20 // leaf page 20
	buf[12] = 0
	buf[13] = 0
	buf[14] = 0
	buf[15] = 21 // leaf page 21

	rt := newTestRouter(Config{WalkFreelist: true})
	rt.current = page{Num: 3, Bytes: buf, Cursor: 0}
	if err := rt.freelistTrunkProcessor()(rt); err != nil {
		t.Fatalf("freelistTrunkProcessor() error = %v", err)
	}

	for _, pageNum := range []uint32{9, 20, 21} {
		if _, ok := rt.processors[pageNum]; !ok {
			t.Errorf("freelistTrunkProcessor() should register page %d", pageNum)
		}
	}
}

func TestIndexLeafProcessorEmitsNothing(t *testing.T) {
	buf := buildLeafPage(512, pageTypeIndexLeaf, nil)
	rt := newTestRouter(Config{})
	rt.current = page{Num: 2, Bytes: buf, Cursor: 0}

	if err := rt.indexProcessor()(rt); err != nil {
		t.Fatalf("indexProcessor() error = %v", err)
	}
	if len(rt.queue) != 0 {
		t.Errorf("indexProcessor() on a leaf should queue nothing, got %d", len(rt.queue))
	}
}

func TestHandleSchemaRowRegistersTableRoot(t *testing.T) {
	rt := newTestRouter(Config{ColumnCacheSize: 8})
	values := []interface{}{
		"table", "widgets", "widgets", int64(5), "CREATE TABLE widgets (n INTEGER)",
	}
	if err := rt.handleSchemaRow(values); err != nil {
		t.Fatalf("handleSchemaRow() error = %v", err)
	}
	if _, ok := rt.processors[5]; !ok {
		t.Error("handleSchemaRow() for a table entry should register its root page")
	}
}

func TestHandleSchemaRowIgnoresViews(t *testing.T) {
	rt := newTestRouter(Config{ColumnCacheSize: 8})
	values := []interface{}{
		"view", "v", "v", int64(0), "CREATE VIEW v AS SELECT 1",
	}
	if err := rt.handleSchemaRow(values); err != nil {
		t.Fatalf("handleSchemaRow() error = %v", err)
	}
	if len(rt.processors) != 0 {
		t.Error("handleSchemaRow() for a view should register nothing")
	}
}
