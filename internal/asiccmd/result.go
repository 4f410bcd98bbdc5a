package asiccmd

import "encoding/binary"

// JobIDStatus is the decoded READ_JOB_ID response: byte[0] =
// last-OON-job-id, byte[1] = last-GN-job-id, byte[2] bit0 =
// GN-pending flag, byte[3] = chip-id echo.
type JobIDStatus struct {
	LastOONJobID byte
	LastGNJobID  byte
	GNPending    bool
	InFlightJobs byte // byte[2] low 3 bits; the supervisor reads its in-flight count from READ_ID instead
	ChipIDEcho   byte
}

// DecodeJobIDStatus parses a 4-byte READ_JOB_ID response.
func DecodeJobIDStatus(resp []byte) JobIDStatus {
	return JobIDStatus{
		LastOONJobID: resp[0],
		LastGNJobID:  resp[1],
		GNPending:    resp[2]&0x01 != 0,
		InFlightJobs: resp[2] & 0x07,
		ChipIDEcho:   resp[3],
	}
}

// Result is a decoded READ_RESULT response: four parallel 32-bit
// nonces (one per AsicBoost core instance) and the 4-bit micro-job-id
// bitmap identifying which produced a candidate.
type Result struct {
	Upper, Lower, Lower2, Lower3 uint32
	MicroJobIDBitmap             byte
}

// DecodeResult parses an 18-byte READ_RESULT response.
func DecodeResult(resp []byte) Result {
	return Result{
		Upper:             binary.BigEndian.Uint32(resp[0:4]),
		Lower:             binary.BigEndian.Uint32(resp[4:8]),
		Lower2:            binary.BigEndian.Uint32(resp[8:12]),
		Lower3:            binary.BigEndian.Uint32(resp[12:16]),
		MicroJobIDBitmap:  resp[17] & 0x0F,
	}
}

// Nonce returns the i-th (0..3) parallel nonce: Upper, Lower, Lower2,
// Lower3 in that order.
func (r Result) Nonce(i int) uint32 {
	switch i {
	case 0:
		return r.Upper
	case 1:
		return r.Lower
	case 2:
		return r.Lower2
	default:
		return r.Lower3
	}
}
