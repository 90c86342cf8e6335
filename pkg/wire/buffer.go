package wire

import (
	"encoding/binary"
	"fmt"
)

// writer accumulates a wire payload. Variable-length counts use
// encoding/binary's AppendUvarint (standard library — justified in
// DESIGN.md: no repo in the retrieval pack ships a standalone varint
// library). Fixed-width fields use LittleEndian, matching the
// teacher's WALHeader encoding.
type writer struct {
	buf []byte
}

func (w *writer) uvarint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

func (w *writer) fixedInt64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) fixedInt32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) bytes(b []byte) {
	w.uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) str(s string) {
	w.bytes([]byte(s))
}

// reader consumes a wire payload produced by writer.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("malformed uvarint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *reader) fixedInt64() (int64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("truncated fixed int64 at offset %d", r.pos)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return int64(v), nil
}

func (r *reader) fixedInt32() (int32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("truncated fixed int32 at offset %d", r.pos)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return int32(v), nil
}

func (r *reader) bool() (bool, error) {
	if r.pos+1 > len(r.buf) {
		return false, fmt.Errorf("truncated bool at offset %d", r.pos)
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, fmt.Errorf("truncated byte blob of length %d at offset %d", n, r.pos)
	}
	out := append([]byte(nil), r.buf[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return out, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
