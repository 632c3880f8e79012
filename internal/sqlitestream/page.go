package sqlitestream

// page is one fully-buffered page of the database file: its 1-based
// page number, the raw bytes (always len == header.PageSize, with page
// 1 reconstituted to include its 100-byte header prefix), and the
// cursor offset at which the B-tree page body begins (100 for page 1,
// 0 otherwise — page 1's header occupies the first 100 bytes of the
// file, but every cell-pointer offset inside it is still measured from
// offset 0 of the page).
type page struct {
	Num    uint32
	Bytes  []byte
	Cursor int
}

// pageSegmenter turns the byte stream into a sequence of whole pages,
// per spec.md §4.2. Page 1 is special-cased to splice the header bytes
// that were already consumed back onto the front of its body.
type pageSegmenter struct {
	br         *byteReader
	header     *databaseHeader
	nextPage   uint32
	headerRead []byte
}

// newPageSegmenter reads and validates the 100-byte database header and
// returns a segmenter ready to yield page 1 first.
func newPageSegmenter(br *byteReader) (*pageSegmenter, *databaseHeader, error) {
	raw, err := br.take(databaseHeaderSize)
	if err != nil {
		return nil, nil, err
	}
	hdr, err := parseDatabaseHeader(raw)
	if err != nil {
		return nil, nil, err
	}
	return &pageSegmenter{br: br, header: hdr, nextPage: 1, headerRead: raw}, hdr, nil
}

// next returns the next page in the stream, or ok=false once every page
// in header.TotalPages has been yielded.
func (s *pageSegmenter) next() (p page, ok bool, err error) {
	if s.nextPage > s.header.TotalPages {
		return page{}, false, nil
	}
	num := s.nextPage
	s.nextPage++

	if num == 1 {
		rest, err := s.br.take(s.header.PageSize - databaseHeaderSize)
		if err != nil {
			return page{}, false, err
		}
		body := make([]byte, 0, s.header.PageSize)
		body = append(body, s.headerRead...)
		body = append(body, rest...)
		return page{Num: 1, Bytes: body, Cursor: databaseHeaderSize}, true, nil
	}

	body, err := s.br.take(s.header.PageSize)
	if err != nil {
		return page{}, false, err
	}
	return page{Num: num, Bytes: body, Cursor: 0}, true, nil
}
