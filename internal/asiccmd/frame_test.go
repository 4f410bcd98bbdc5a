package asiccmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAlignsTo4Bytes(t *testing.T) {
	cases := []struct {
		parmLen, respLen int
	}{
		{0, 0}, {1, 0}, {3, 1}, {140, 0}, {8, 18},
	}
	for _, c := range cases {
		tx, rx := Build(OpWriteParm, 1, make([]byte, c.parmLen), c.respLen)
		assert.Equal(t, 0, len(tx)%4, "tx not 4-aligned for parmLen=%d respLen=%d", c.parmLen, c.respLen)
		assert.Equal(t, len(tx), len(rx))
	}
}

func TestBuildSetsOpcodeAndChipID(t *testing.T) {
	tx, _ := Build(OpReadID, 5, nil, 4)
	require.True(t, len(tx) >= 2)
	assert.Equal(t, byte(OpReadID), tx[0])
	assert.Equal(t, byte(5), tx[1])
}

func TestResponseOffset(t *testing.T) {
	assert.Equal(t, 2, ResponseOffset(0))
	assert.Equal(t, 142, ResponseOffset(140))
}

func TestResponseBytesSlices(t *testing.T) {
	rx := make([]byte, 12)
	for i := range rx {
		rx[i] = byte(i)
	}
	got := ResponseBytes(rx, 2, 4)
	assert.Equal(t, []byte{4, 5, 6, 7}, got)
}

func TestTargetRoundTrip(t *testing.T) {
	var target [32]byte
	target[4] = 0x1B
	target[5] = 0xCD
	target[6] = 0xEF

	encoded := EncodeTarget(target)
	require.Len(t, encoded, 6)

	nbits := nBitsFromTarget(target)
	assert.Equal(t, nbits, DecodeNBits(encoded))

	msb := byte(nbits >> 24)
	assert.Equal(t, (msb/4)-1, encoded[4])
	assert.Equal(t, ((msb%4)+1)<<4, encoded[5])
}

func TestEncodeNonceRange(t *testing.T) {
	buf := EncodeNonceRange(0x00010000, 0x0001FFFF)
	require.Len(t, buf, 8)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x00}, buf[0:4])
	assert.Equal(t, []byte{0x00, 0x01, 0xFF, 0xFF}, buf[4:8])
}

func TestDecodeJobIDStatus(t *testing.T) {
	resp := []byte{0x02, 0x03, 0x01, 0x07}
	st := DecodeJobIDStatus(resp)
	assert.Equal(t, byte(2), st.LastOONJobID)
	assert.Equal(t, byte(3), st.LastGNJobID)
	assert.True(t, st.GNPending)
	assert.Equal(t, byte(7), st.ChipIDEcho)
}

func TestDecodeResult(t *testing.T) {
	resp := make([]byte, 18)
	resp[0], resp[1], resp[2], resp[3] = 0x66, 0xCB, 0x34, 0x26
	resp[4], resp[5], resp[6], resp[7] = 0x11, 0x22, 0x33, 0x44
	resp[17] = 0x01
	r := DecodeResult(resp)
	assert.Equal(t, uint32(0x66CB3426), r.Upper)
	assert.Equal(t, uint32(0x11223344), r.Lower)
	assert.Equal(t, byte(0x01), r.MicroJobIDBitmap)
	assert.Equal(t, r.Lower, r.Nonce(1))
}
