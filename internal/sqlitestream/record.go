package sqlitestream

import (
	"encoding/binary"
	"math"
)

// serialTypeSize returns the number of body bytes a serial type
// occupies, per spec.md §3's table. NULL and the two boolean-ish
// constants (0, 1) occupy zero bytes.
func serialTypeSize(serialType uint64) int {
	switch {
	case serialType <= 4:
		return int(serialType)
	case serialType == 5:
		return 6
	case serialType == 6, serialType == 7:
		return 8
	case serialType == 8, serialType == 9:
		return 0
	case serialType >= 12 && serialType%2 == 0:
		return int((serialType - 12) / 2)
	case serialType >= 13 && serialType%2 == 1:
		return int((serialType - 13) / 2)
	default:
		return 0
	}
}

// decodeValue converts the raw bytes of one record column into its Go
// value, per the serial-type table in spec.md §3. Serial type 7
// (IEEE-754 float64) is implemented here per spec.md §9's open
// question; the teacher's and original source's decoders both omit it.
func decodeValue(serialType uint64, raw []byte) interface{} {
	switch {
	case serialType == 0:
		return nil
	case serialType >= 1 && serialType <= 4:
		return signExtend(raw)
	case serialType == 5:
		return signExtend(raw)
	case serialType == 6:
		return signExtend(raw)
	case serialType == 7:
		bits := binary.BigEndian.Uint64(raw)
		return math.Float64frombits(bits)
	case serialType == 8:
		return int64(0)
	case serialType == 9:
		return int64(1)
	case serialType%2 == 0:
		blob := make([]byte, len(raw))
		copy(blob, raw)
		return blob
	default:
		return string(raw)
	}
}

// signExtend interprets raw as a big-endian two's-complement integer of
// 1, 2, 3, 4, 6 or 8 bytes and sign-extends it to int64.
func signExtend(raw []byte) int64 {
	var v int64
	for _, b := range raw {
		v = (v << 8) | int64(b)
	}
	bits := uint(len(raw)) * 8
	shift := 64 - bits
	return (v << shift) >> shift
}

// decodeRecord decodes a record payload (header + body, per spec.md
// §3/§4.3 step 3-6) into an ordered tuple of values.
func decodeRecord(payload []byte) ([]interface{}, error) {
	headerSize, headerVarintWidth, err := varint(payload, 0)
	if err != nil {
		return nil, err
	}
	remaining := int(headerSize) - headerVarintWidth
	if remaining < 0 {
		return nil, wrapErr("decodeRecord", ErrMalformedRecord, map[string]interface{}{"header_size": headerSize})
	}

	pos := headerVarintWidth
	var serialTypes []uint64
	for remaining > 0 {
		st, width, err := varint(payload, pos)
		if err != nil {
			return nil, err
		}
		serialTypes = append(serialTypes, st)
		pos += width
		remaining -= width
	}

	values := make([]interface{}, len(serialTypes))
	for i, st := range serialTypes {
		size := serialTypeSize(st)
		if size == 0 {
			values[i] = decodeValue(st, nil)
			continue
		}
		if pos+size > len(payload) {
			return nil, wrapErr("decodeRecord", ErrMalformedRecord, map[string]interface{}{
				"need": pos + size, "have": len(payload),
			})
		}
		values[i] = decodeValue(st, payload[pos:pos+size])
		pos += size
	}
	return values, nil
}
