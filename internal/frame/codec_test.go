package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Run("EmptyPayload", func(t *testing.T) {
		buf, err := Encode(OpPing, nil)
		require.NoError(t, err)

		f, err := Decode(bytes.NewReader(buf))
		require.NoError(t, err)
		assert.Equal(t, OpPing, f.Opcode)
		assert.Empty(t, f.Payload)
	})

	t.Run("WithPayload", func(t *testing.T) {
		payload := []byte{0x01, 0x02, 0x03, 0x04}
		buf, err := Encode(OpPlayCard, payload[:1])
		require.NoError(t, err)

		f, err := Decode(bytes.NewReader(buf))
		require.NoError(t, err)
		assert.Equal(t, OpPlayCard, f.Opcode)
		assert.Equal(t, payload[:1], f.Payload)
	})

	t.Run("MaxPayload", func(t *testing.T) {
		payload := make([]byte, MaxPayloadSize)
		for i := range payload {
			payload[i] = byte(i)
		}
		buf, err := Encode(OpError, payload)
		require.NoError(t, err)

		f, err := Decode(bytes.NewReader(buf))
		require.NoError(t, err)
		assert.Equal(t, payload, f.Payload)
	})
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(OpError, make([]byte, MaxPayloadSize+1))
	assert.Error(t, err)
}

func TestDecodeRejectsChecksumTampering(t *testing.T) {
	buf, err := Encode(OpPlayCard, []byte{0x05})
	require.NoError(t, err)

	tampered := append([]byte(nil), buf...)
	tampered[len(tampered)-1] ^= 0xFF // flip a payload byte

	_, err = Decode(bytes.NewReader(tampered))
	assert.Error(t, err)
}

func TestDecodeRejectsOutOfRangeLength(t *testing.T) {
	t.Run("TooShort", func(t *testing.T) {
		hdr := make([]byte, HeaderSize)
		// length field says 3, below HeaderSize
		hdr[3] = 3
		_, err := Decode(bytes.NewReader(hdr))
		assert.Error(t, err)
	})

	t.Run("TooLong", func(t *testing.T) {
		hdr := make([]byte, HeaderSize)
		hdr[0] = 0xFF // length field way above MaxFrameSize
		hdr[1] = 0xFF
		hdr[2] = 0xFF
		hdr[3] = 0xFF
		_, err := Decode(bytes.NewReader(hdr))
		assert.Error(t, err)
	})
}

func TestDecodeRejectsShortRead(t *testing.T) {
	buf, err := Encode(OpPlayCard, []byte{0x05})
	require.NoError(t, err)

	_, err = Decode(bytes.NewReader(buf[:len(buf)-1]))
	assert.Error(t, err)
}

func TestChecksumFold(t *testing.T) {
	// A buffer whose sum overflows 16 bits at least once exercises the fold loop.
	buf := bytes.Repeat([]byte{0xFF}, 300)
	cksum := Checksum(buf)

	// Recomputing must be stable/deterministic.
	assert.Equal(t, cksum, Checksum(buf))
}

func TestValidatePayloadSize(t *testing.T) {
	t.Run("Matches", func(t *testing.T) {
		assert.NoError(t, ValidatePayloadSize(OpPlayCard, []byte{0x00}))
	})

	t.Run("Mismatch", func(t *testing.T) {
		assert.Error(t, ValidatePayloadSize(OpPlayCard, []byte{0x00, 0x01}))
	})

	t.Run("UnknownOpcode", func(t *testing.T) {
		assert.Error(t, ValidatePayloadSize(Opcode(0x1234), nil))
	})
}
