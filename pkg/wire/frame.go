// Package wire implements the WireCodec for ShardWriteRequest/Item
// described in spec.md §4.6: length-prefixed byte blobs, UTF-8
// strings, variable-length integers for counts, and a version-gated
// mode encoding pivoting on protocol version V_4_2_0.
package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	frameMagic   uint32 = 0x53524954 // "SRIT"
	frameVersion uint8  = 1
	headerSize          = 12 // magic(4) + version(1) + reserved(3) + payloadLen(4)
)

// frameHeader is a fixed 12-byte envelope wrapping the variable-length
// request payload, adapted from the teacher's wal/entry.go WALHeader:
// a magic number plus fixed offsets encoded with binary.LittleEndian
// into a preallocated buffer, rather than a self-describing format.
type frameHeader struct {
	Magic      uint32
	Version    uint8
	PayloadLen uint32
}

func (h *frameHeader) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5], buf[6], buf[7] = 0, 0, 0
	binary.LittleEndian.PutUint32(buf[8:12], h.PayloadLen)
}

func (h *frameHeader) Decode(buf []byte) error {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	if h.Magic != frameMagic {
		return fmt.Errorf("wire frame magic mismatch: got %#x", h.Magic)
	}
	h.Version = buf[4]
	h.PayloadLen = binary.LittleEndian.Uint32(buf[8:12])
	return nil
}

// wrapFrame prepends the fixed header to payload.
func wrapFrame(payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	h := frameHeader{Magic: frameMagic, Version: frameVersion, PayloadLen: uint32(len(payload))}
	h.Encode(out[:headerSize])
	copy(out[headerSize:], payload)
	return out
}

// unwrapFrame validates and strips the fixed header, returning the
// payload bytes.
func unwrapFrame(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("wire frame shorter than header size %d", headerSize)
	}
	var h frameHeader
	if err := h.Decode(data[:headerSize]); err != nil {
		return nil, err
	}
	payload := data[headerSize:]
	if uint32(len(payload)) != h.PayloadLen {
		return nil, fmt.Errorf("wire frame payload length mismatch: header says %d, got %d", h.PayloadLen, len(payload))
	}
	return payload, nil
}
