package sqlitestream

import "io"

// ChunkSource is the pull-based collaborator that hands the streaming
// engine its raw bytes. Next returns the next chunk (of any nonzero
// length; empty chunks are tolerated) and io.EOF once exhausted. The
// engine never asks for more bytes than the format requires, so a
// well-formed source is read forward exactly once, start to finish.
type ChunkSource interface {
	Next() ([]byte, error)
}

// ChunkSourceFunc adapts a plain function to a ChunkSource.
type ChunkSourceFunc func() ([]byte, error)

// Next implements ChunkSource.
func (f ChunkSourceFunc) Next() ([]byte, error) { return f() }

// SliceSource returns a ChunkSource that yields the given chunks in
// order, then io.EOF. Useful for tests that want to exercise a
// particular chunk-size boundary.
func SliceSource(chunks [][]byte) ChunkSource {
	i := 0
	return ChunkSourceFunc(func() ([]byte, error) {
		for i < len(chunks) {
			c := chunks[i]
			i++
			if len(c) == 0 {
				continue
			}
			return c, nil
		}
		return nil, io.EOF
	})
}

// FixedChunkSource splits a byte slice into chunks of exactly size
// bytes (the final chunk may be shorter). Used by tests and the
// round-trip property checks across the page/chunk-size matrix.
func FixedChunkSource(data []byte, size int) ChunkSource {
	if size <= 0 {
		size = len(data)
		if size == 0 {
			size = 1
		}
	}
	offset := 0
	return ChunkSourceFunc(func() ([]byte, error) {
		if offset >= len(data) {
			return nil, io.EOF
		}
		end := offset + size
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		offset = end
		return chunk, nil
	})
}

// ReaderSource adapts an io.Reader into a ChunkSource, reading up to
// chunkSize bytes at a time. This is how cmd/sqlitestream feeds an
// os.File into the engine without ever holding the whole file in memory.
func ReaderSource(r io.Reader, chunkSize int) ChunkSource {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := make([]byte, chunkSize)
	return ChunkSourceFunc(func() ([]byte, error) {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			return chunk, nil
		}
		if err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// byteReader exposes "give me exactly n bytes" over a ChunkSource,
// preserving leftover bytes across calls and concatenating across
// chunk boundaries. Grounded on stream_sqlite.py's get_byte_reader.
type byteReader struct {
	src    ChunkSource
	chunk  []byte
	offset int
}

func newByteReader(src ChunkSource) *byteReader {
	return &byteReader{src: src}
}

// take returns exactly n bytes, reading further chunks from the source
// as needed. It fails with ErrTruncatedStream if the source is
// exhausted before n bytes have been collected.
func (r *byteReader) take(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, 0, n)
	for n > 0 {
		if r.offset >= len(r.chunk) {
			c, err := r.src.Next()
			if err != nil {
				if err == io.EOF {
					return nil, wrapErr("byteReader.take", ErrTruncatedStream, map[string]interface{}{"remaining": n})
				}
				return nil, wrapErr("byteReader.take", err, nil)
			}
			r.chunk = c
			r.offset = 0
			continue
		}
		avail := len(r.chunk) - r.offset
		k := n
		if avail < k {
			k = avail
		}
		out = append(out, r.chunk[r.offset:r.offset+k]...)
		r.offset += k
		n -= k
	}
	return out, nil
}
