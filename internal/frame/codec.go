// Package frame implements the length-prefixed, checksummed binary framing
// protocol that wraps every message exchanged between client and server.
//
// Unlike the XDR encoding used elsewhere in this lineage (RFC 4506,
// 4-byte-aligned, length-prefixed variable data), this wire format is
// tightly packed: every payload has a fixed, opcode-declared size and no
// internal padding. The header and checksum algorithm below are this
// package's own, not a reuse of XDR.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/marmos91/cardserver/pkg/bufpool"
)

// HeaderSize is the fixed size of a frame header in bytes:
// length (u32) + opcode (u16) + checksum (u16).
const HeaderSize = 8

// MaxFrameSize is the largest frame (header + payload) this protocol allows.
const MaxFrameSize = 2048

// MaxPayloadSize is the largest payload a single frame may carry.
const MaxPayloadSize = MaxFrameSize - HeaderSize

// Frame is a single decoded protocol message.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// Checksum computes the 16-bit one's-complement-style checksum over buf,
// which must already have its checksum field zeroed.
//
// Algorithm: accumulate every byte into a 32-bit sum,
// fold the high 16 bits back into the low 16 bits until no high bits
// remain, then return the bitwise complement of the low 16 bits.
func Checksum(buf []byte) uint16 {
	var sum uint32
	for _, b := range buf {
		sum += uint32(b)
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// Encode builds a complete frame (header + payload) for opcode and payload.
//
// Sequence: write the header with checksum zeroed, copy the payload,
// compute the checksum over the whole frame, then overwrite the checksum
// field — matching the decode side's reconstruct-and-compare approach.
func Encode(op Opcode, payload []byte) ([]byte, error) {
	total := HeaderSize + len(payload)
	if total > MaxFrameSize {
		return nil, fmt.Errorf("frame: payload too large: %d bytes exceeds max frame size %d", len(payload), MaxFrameSize)
	}

	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	binary.BigEndian.PutUint16(buf[4:6], uint16(op))
	binary.BigEndian.PutUint16(buf[6:8], 0) // checksum field zeroed for the sum
	copy(buf[HeaderSize:], payload)

	cksum := Checksum(buf)
	binary.BigEndian.PutUint16(buf[6:8], cksum)

	return buf, nil
}

// Decode reads one frame from r.
//
// Sequence: read the 8-byte header, validate the declared total length is
// in [HeaderSize, MaxFrameSize], read the payload, rebuild the frame with
// the checksum field zeroed, recompute the checksum and compare. Any
// mismatch or short read is a framing error, fatal to the connection.
func Decode(r io.Reader) (Frame, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, fmt.Errorf("frame: read header: %w", err)
	}

	total := binary.BigEndian.Uint32(hdr[0:4])
	op := Opcode(binary.BigEndian.Uint16(hdr[4:6]))
	wantCksum := binary.BigEndian.Uint16(hdr[6:8])

	if total < HeaderSize || total > MaxFrameSize {
		return Frame{}, fmt.Errorf("frame: length %d out of range [%d, %d]", total, HeaderSize, MaxFrameSize)
	}

	payloadLen := int(total) - HeaderSize
	payload := bufpool.Get(payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("frame: read payload: %w", err)
	}

	full := make([]byte, total)
	copy(full[0:4], hdr[0:4])
	binary.BigEndian.PutUint16(full[4:6], uint16(op))
	binary.BigEndian.PutUint16(full[6:8], 0)
	copy(full[HeaderSize:], payload)
	bufpool.Put(payload)

	gotCksum := Checksum(full)
	if gotCksum != wantCksum {
		return Frame{}, fmt.Errorf("frame: checksum mismatch: got %#04x want %#04x", gotCksum, wantCksum)
	}

	out := make([]byte, payloadLen)
	copy(out, full[HeaderSize:])
	return Frame{Opcode: op, Payload: out}, nil
}

// ValidatePayloadSize reports whether payload's length matches op's
// declared fixed size. A mismatch is a validation error (OP_ERROR, the
// connection survives), distinct from a framing error.
func ValidatePayloadSize(op Opcode, payload []byte) error {
	want, ok := PayloadSize(op)
	if !ok {
		return fmt.Errorf("frame: unknown opcode %#04x", uint16(op))
	}
	if len(payload) != want {
		return fmt.Errorf("frame: opcode %s expects %d-byte payload, got %d", op, want, len(payload))
	}
	return nil
}
