package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

var (
	ErrCorrupt = errors.New("refetch: corrupt entry")
	magic4     = [...]byte{'R', 'F', 'C', 'H'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1=entry) | gen(u64 be) | storedAt(u64 be, unix nanos) | ttl(u64 be, nanos) | vlen(u32 be) | payload(vlen)
//
// gen is the attempt generation observed by the writer; readers reject
// entries whose generation is no longer current, so a write that lands late
// can never be served. Staleness is decided by the reader
// (now - storedAt > ttl), not by the store; providers may expire entries on
// their own schedule as an extra bound.
func EncodeEntry(gen uint64, storedAt time.Time, ttl time.Duration, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 8 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(storedAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(ttl))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeEntry(b []byte) (gen uint64, storedAt time.Time, ttl time.Duration, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 8 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return 0, time.Time{}, 0, nil, ErrCorrupt
	}

	off := 6

	gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	storedAt = time.Unix(0, int64(binary.BigEndian.Uint64(b[off:off+8])))
	off += 8

	ttl = time.Duration(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return 0, time.Time{}, 0, nil, ErrCorrupt
	}

	return gen, storedAt, ttl, b[off : off+vlen], nil
}
