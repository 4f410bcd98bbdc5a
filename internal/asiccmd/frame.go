package asiccmd

// A command frame is {opcode(1), chip_id(1), params(parmLen),
// response_slot(respLen), dummy(2)}, padded to a multiple of 4 bytes.
// Build returns the transmit buffer and a same-length receive buffer
// ready for spibus.Transfer/TransferFast.

// Build constructs the TX frame for opcode addressed to chipID with
// the given parameter payload, reserving respLen bytes for the
// chip's response before the two dummy bytes, and pads the whole
// frame up to a multiple of 4 bytes.
func Build(op Opcode, chipID byte, params []byte, respLen int) (tx, rx []byte) {
	body := headerLen + len(params) + respLen + dummyLen
	total := align4(body)

	tx = make([]byte, total)
	tx[0] = byte(op)
	tx[1] = chipID
	copy(tx[headerLen:], params)
	// params..params+respLen is left zero (chip fills it in on rx);
	// dummy bytes and any pad bytes are also zero.

	rx = make([]byte, total)
	return tx, rx
}

// ResponseOffset returns the byte offset within a received buffer at
// which the chip's response begins, per §4.C.
func ResponseOffset(parmLen int) int {
	return headerLen + parmLen
}

// ResponseBytes slices resp out of a decoded (already inverted) rx
// buffer that was built with the given parmLen and respLen.
func ResponseBytes(rx []byte, parmLen, respLen int) []byte {
	off := ResponseOffset(parmLen)
	end := off + respLen
	if end > len(rx) {
		end = len(rx)
	}
	return rx[off:end]
}

func align4(n int) int {
	if rem := n % 4; rem != 0 {
		n += 4 - rem
	}
	return n
}
