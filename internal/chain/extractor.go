package chain

import (
	"fmt"
	"time"

	"github.com/minerhub/btc08ctl/internal/asiccmd"
)

// pollInterval is the cooperative sleep between GN/OON line checks
// when neither is asserted. Per §9, prefer a short timed sleep over a
// hot busy loop, and never release the chain mutex inside the loop.
const pollInterval = 2 * time.Millisecond

// ScanWork is the body of §4.F's initial fill plus §4.G's GN/OON poll
// loop, invoked from the driver shell's scanwork tick. It returns the
// hashes-attempted figure the host accounts against this tick.
func (c *Chain) ScanWork() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return -1, ErrDeviceDisabled
	}

	if !c.isProcessing {
		if err := c.fillInitialLocked(); err != nil {
			return -1, err
		}
	}

	for {
		if c.gpio.GNAsserted() {
			processed, err := c.handleGNLocked()
			if err != nil {
				return -1, err
			}
			return processed, nil
		}
		if c.gpio.OONAsserted() {
			processed, err := c.handleOONLocked()
			if err != nil {
				return -1, err
			}
			return processed, nil
		}
		time.Sleep(pollInterval)
	}
}

// handleGNLocked implements §4.G's GN branch: for each active chip,
// READ_JOB_ID, and for any chip reporting a pending GN, READ_RESULT
// and correlate each set micro-job-id bit to its in-flight work.
func (c *Chain) handleGNLocked() (int64, error) {
	var hwErrors int

	for _, ch := range c.activeChips() {
		resp, err := c.sendCmd(asiccmd.OpReadJobID, ch.ID, nil, 4, false)
		if err != nil {
			return 0, err
		}
		st := asiccmd.DecodeJobIDStatus(resp)
		if !st.GNPending {
			continue
		}

		resultResp, err := c.sendCmd(asiccmd.OpReadResult, ch.ID, nil, 18, false)
		if err != nil {
			return 0, err
		}
		result := asiccmd.DecodeResult(resultResp)

		for bit := 0; bit < 4; bit++ {
			mask := byte(1 << bit)
			if result.MicroJobIDBitmap&mask == 0 {
				continue
			}
			if int(st.LastGNJobID) < 1 || int(st.LastGNJobID) > 8 {
				ch.Stales++
				continue
			}
			slot := int(st.LastGNJobID) - 1
			w := c.work[slot]
			if w == nil {
				ch.Stales++
				continue
			}
			w.MicroJobID = mask
			if w.Pool.Enabled() {
				w.ApplyVMask(mask)
			}
			nonce := result.Nonce(bit)
			if c.host.Submit(w, nonce) {
				ch.NoncesFound++
			} else {
				ch.HwErrors++
				hwErrors++
			}
		}
	}
	processed := int64(0) - int64(hwErrors) // each hw_error subtracts one processed range
	if processed < 0 {
		processed = 0
	}
	return (processed << 32) * AsicBoostCoreCount, nil
}

// handleOONLocked implements §4.G's OON branch: clear the OON
// condition, refill up to two job-id slots, then commit the per-OON
// range count.
func (c *Chain) handleOONLocked() (int64, error) {
	if _, err := c.broadcast(asiccmd.OpClearOON, nil, 0); err != nil {
		return 0, fmt.Errorf("clear_oon: %w", err)
	}

	for i := 0; i < 2; i++ {
		w := c.pending.Dequeue()
		if w == nil {
			break
		}
		if err := c.setWorkLocked(w); err != nil {
			return 0, err
		}
	}

	for _, ch := range c.activeChips() {
		ch.RangesDone += OONRangeCommitment
	}

	return (int64(OONRangeCommitment) << 32) * AsicBoostCoreCount, nil
}
