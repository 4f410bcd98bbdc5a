package asiccmd

import "encoding/binary"

// EncodeTarget derives the Bitcoin compact "nBits" encoding from a
// 32-byte big-endian target and emits the 6-byte WRITE_TARGET payload:
// four big-endian nBits bytes followed by two "select" bytes.
func EncodeTarget(target [32]byte) []byte {
	nbits := nBitsFromTarget(target)
	return encodeNBits(nbits)
}

// nBitsFromTarget computes the compact representation of a 256-bit
// target: the first non-zero byte position determines the exponent,
// and the following three bytes (left-padded if needed) form the
// mantissa, matching Bitcoin's standard compact encoding.
func nBitsFromTarget(target [32]byte) uint32 {
	// Find the most-significant non-zero byte.
	idx := -1
	for i := 0; i < len(target); i++ {
		if target[i] != 0 {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0
	}
	size := uint32(len(target) - idx) // number of significant bytes, from MSB
	var mantissa uint32
	switch {
	case size >= 3:
		mantissa = uint32(target[idx])<<16 | uint32(target[idx+1])<<8 | uint32(target[idx+2])
	case size == 2:
		mantissa = uint32(target[idx])<<8 | uint32(target[idx+1])
	case size == 1:
		mantissa = uint32(target[idx])
	}
	// If the mantissa's high bit is set it would be interpreted as
	// negative; shift it down and bump the exponent, per the compact
	// format's sign convention.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		size++
	}
	return size<<24 | mantissa
}

// encodeNBits packs a compact nBits word into the 6-byte WRITE_TARGET
// payload: 4 big-endian nBits bytes, then select0/select1, computed
// from the nBits exponent (most-significant byte).
func encodeNBits(nbits uint32) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint32(buf[0:4], nbits)

	msb := buf[0] // the exponent byte of nBits
	select0 := (msb / 4) - 1
	select1 := ((msb % 4) + 1) << 4
	buf[4] = select0
	buf[5] = select1
	return buf
}

// DecodeNBits extracts the 4-byte big-endian nBits word from an
// encoded 6-byte WRITE_TARGET payload, for the round-trip property in
// §8: DecodeNBits(EncodeTarget(T)) == nBitsFromTarget(T).
func DecodeNBits(payload []byte) uint32 {
	return binary.BigEndian.Uint32(payload[0:4])
}

// EncodeNonceRange packs a chip's [start, end] nonce sub-range as two
// big-endian 32-bit words, the WRITE_NONCE parameter payload.
func EncodeNonceRange(start, end uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], start)
	binary.BigEndian.PutUint32(buf[4:8], end)
	return buf
}
