// Package hostwork defines the Work entity the mining host owns and
// lends to the chain driver, and the Host interface the driver calls
// back into. Both sides of this boundary are "external collaborator"
// territory per spec §1 — hostwork only fixes the shape of the
// borrow, not the host's own scheduling or pool logic.
package hostwork

// Pool carries the per-work AsicBoost parameters a pool may supply.
type Pool struct {
	// VMask is the rolling AsicBoost version-bits mask. A nil map
	// means AsicBoost is not enabled for this work.
	VMask map[byte][4]byte // micro-job bit (1,2,4,8) -> 4-byte version-bits overwrite
}

// Enabled reports whether this work carries an AsicBoost vmask table.
func (p *Pool) Enabled() bool {
	return p != nil && p.VMask != nil
}

// Work is one unit of mining work, owned by the host. The driver
// holds a borrowed pointer to it while it is installed in a chain's
// in-flight job-id slot.
type Work struct {
	Midstate0, Midstate1, Midstate2, Midstate3 [32]byte
	Data                                       [12]byte // merkleRoot tail + ntime + nbits
	Target                                     [32]byte
	SDiff                                      float64
	Pool                                       *Pool

	// MicroJobID records which of the four AsicBoost core instances
	// (bit 1/2/4/8) produced the most recent nonce for this work; set
	// by the result extractor before vmask substitution and submission.
	MicroJobID byte
}

// ParmPayload builds the 140-byte WRITE_PARM payload from
// (midstate0, data, midstate1, midstate2, midstate3), per §4.F step 4.
func (w *Work) ParmPayload() []byte {
	buf := make([]byte, 0, 32+12+32+32+32)
	buf = append(buf, w.Midstate0[:]...)
	buf = append(buf, w.Data[:]...)
	buf = append(buf, w.Midstate1[:]...)
	buf = append(buf, w.Midstate2[:]...)
	buf = append(buf, w.Midstate3[:]...)
	return buf
}

// ApplyVMask overwrites the first 4 bytes of Data with the pool's
// version-bits mask for the micro-job bit that produced a result,
// per §4.G's AsicBoost substitution rule.
func (w *Work) ApplyVMask(microJobBit byte) {
	if !w.Pool.Enabled() {
		return
	}
	if bits, ok := w.Pool.VMask[microJobBit]; ok {
		copy(w.Data[0:4], bits[:])
	}
}

// Host is the interface the generic mining host implements; the
// driver only ever calls these three methods.
type Host interface {
	// Dequeue pops the next pending work, or nil if the host has none
	// ready.
	Dequeue() *Work
	// Submit reports a candidate nonce for w to the host's own
	// verifier/pool-submission path. The bool return is whether the
	// host's verifier accepted the nonce (false -> hw_error).
	Submit(w *Work, nonce uint32) bool
	// Release returns an in-flight or queued work to the host
	// unmined: on OON refill's prior-slot occupant, on flush_work, or
	// on shutdown.
	Release(w *Work)
}

// NullHost is a Host that never has work to give and accepts nothing.
// The real mining host (pool protocol, work templating, hashrate
// accounting) is an external collaborator outside this driver's
// scope; NullHost lets the driver shell run standalone — e.g. under
// test_mode on a bench with no pool attached — without a nil Host
// panicking every call site.
type NullHost struct{}

func (NullHost) Dequeue() *Work            { return nil }
func (NullHost) Submit(*Work, uint32) bool { return false }
func (NullHost) Release(*Work)             {}
