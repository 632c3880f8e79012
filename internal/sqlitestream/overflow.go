package sqlitestream

import "encoding/binary"

// payloadLayout describes how much of a table-leaf cell's payload lives
// inline on the page itself versus in an overflow-page chain, per the
// inline-payload-fraction rules in the SQLite file format (not restated
// in spec.md, which only notes in §9 that overflow reassembly is
// required but missing from the original source). usableSize is the
// page size minus reserved space (always 0 for this core, per
// spec.md's BAD_USABLE_SPACE check), so usableSize == page size here.
type payloadLayout struct {
	InlineBytes int
	NeedsSpill  bool
	SpillNeeded int
}

func computePayloadLayout(usableSize int, payloadSize int) payloadLayout {
	maxInline := usableSize - 35
	if payloadSize <= maxInline {
		return payloadLayout{InlineBytes: payloadSize}
	}

	minLocal := ((usableSize-12)*32)/255 - 23
	surplus := minLocal + (payloadSize-minLocal)%(usableSize-4)
	inline := surplus
	if surplus > maxInline {
		inline = minLocal
	}
	return payloadLayout{
		InlineBytes: inline,
		NeedsSpill:  true,
		SpillNeeded: payloadSize - inline,
	}
}

// overflowAssembly accumulates payload bytes spilled across a chain of
// overflow pages for one table-leaf cell. It is registered with the
// router under the first overflow page number and re-registers itself
// under the next page number in the chain until the chain is
// exhausted, at which point complete fires with the fully reassembled
// payload.
type overflowAssembly struct {
	buf      []byte
	needed   int
	complete func(payload []byte) error
}

// consume processes one overflow page's bytes: a 4-byte next-page
// pointer followed by content bytes. It returns the next page number to
// wait for (0 if the chain is done, in which case complete has already
// fired).
func (a *overflowAssembly) consume(usableSize int, pageBytes []byte) (nextPage uint32, err error) {
	if len(pageBytes) < 4 {
		return 0, wrapErr("overflowAssembly.consume", ErrMalformedRecord, map[string]interface{}{"page_len": len(pageBytes)})
	}
	next := binary.BigEndian.Uint32(pageBytes[0:4])

	remaining := a.needed - len(a.buf)
	avail := usableSize - 4
	if avail > remaining {
		avail = remaining
	}
	if 4+avail > len(pageBytes) {
		return 0, wrapErr("overflowAssembly.consume", ErrMalformedRecord, map[string]interface{}{"need": 4 + avail, "have": len(pageBytes)})
	}
	a.buf = append(a.buf, pageBytes[4:4+avail]...)

	if len(a.buf) >= a.needed {
		return 0, a.complete(a.buf)
	}
	if next == 0 {
		return 0, wrapErr("overflowAssembly.consume", ErrMalformedRecord, map[string]interface{}{"reason": "overflow chain ended early"})
	}
	return next, nil
}
