package chain

import (
	"fmt"

	"github.com/minerhub/btc08ctl/internal/asiccmd"
	"github.com/minerhub/btc08ctl/internal/hostwork"
	"github.com/minerhub/btc08ctl/internal/spibus"
)

// setWorkLocked implements §4.F's set_work protocol: installs w into the
// next job-id slot, releasing that slot's prior occupant to the host
// first. Callers must hold c.mu (scheduler and extractor both call it
// from within ScanWork's single critical section).
func (c *Chain) setWorkLocked(w *hostwork.Work) error {
	jobID := c.lastQueuedID + 1 // 1..8, monotone; §8's {1,...,8,1,...} property

	if prior := c.work[c.lastQueuedID]; prior != nil {
		c.host.Release(prior)
		c.work[c.lastQueuedID] = nil
	}

	parm := w.ParmPayload()
	msgs := make([]spibus.Message, 0, 3)
	msgs = append(msgs, spibus.Message{})
	parmTx, parmRx := asiccmd.Build(asiccmd.OpWriteParm, asiccmd.BroadcastChipID, parm, 0)
	msgs[0] = spibus.Message{Tx: parmTx, Rx: parmRx}

	if w.SDiff != c.sdiff {
		targetParm := asiccmd.EncodeTarget(w.Target)
		tTx, tRx := asiccmd.Build(asiccmd.OpWriteTarget, asiccmd.BroadcastChipID, targetParm, 0)
		msgs = append(msgs, spibus.Message{Tx: tTx, Rx: tRx})
	}

	extra := byte(0)
	if w.Pool.Enabled() {
		extra |= 0x02 // bit 1: AsicBoost enabled
	}
	jobParm := []byte{extra, byte(jobID)}
	jTx, jRx := asiccmd.Build(asiccmd.OpRunJob, asiccmd.BroadcastChipID, jobParm, 0)
	msgs = append(msgs, spibus.Message{Tx: jTx, Rx: jRx})

	if err := c.tx.TransferBatch(msgs); err != nil {
		c.host.Release(w)
		c.disabled = true
		return fmt.Errorf("%w: set_work batch: %v", ErrTransport, err)
	}

	if w.SDiff != c.sdiff {
		c.sdiff = w.SDiff
	}
	c.work[c.lastQueuedID] = w
	c.lastQueuedID = jobID & 7
	return nil
}

// fillInitialLocked performs the first-scan fill of the 4-deep job
// FIFO: dequeue up to MaxJobFIFO works and schedule each. Sets
// isProcessing on success.
func (c *Chain) fillInitialLocked() error {
	for i := 0; i < MaxJobFIFO; i++ {
		w := c.pending.Dequeue()
		if w == nil {
			break
		}
		if err := c.setWorkLocked(w); err != nil {
			return err
		}
	}
	c.isProcessing = true
	return nil
}
