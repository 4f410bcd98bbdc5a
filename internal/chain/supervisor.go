package chain

import (
	"fmt"
	"time"

	"github.com/minerhub/btc08ctl/internal/asiccmd"
	"github.com/minerhub/btc08ctl/internal/chip"
)

// FlushWork implements §4.H's flush_work: abort current hashing via a
// hardware reset pulse, release every in-flight and queued work back
// to the host, clear run-time session state, then re-run the chain
// init through initLocked (§4.D steps 2-11, the reset pulse here
// standing in for step 1). If re-init fails the chain is marked disabled and
// ErrDeviceDisabled is returned.
func (c *Chain) FlushWork() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.gpio.ResetLow(); err != nil {
		c.disabled = true
		return fmt.Errorf("%w: flush reset: %v", ErrTransport, err)
	}
	time.Sleep(1 * time.Millisecond)
	if err := c.gpio.ResetHigh(); err != nil {
		c.disabled = true
		return fmt.Errorf("%w: flush reset: %v", ErrTransport, err)
	}

	for i, w := range c.work {
		if w != nil {
			c.host.Release(w)
			c.work[i] = nil
		}
	}
	c.pending.DrainTo(c.host)

	c.sdiff = 0
	c.isProcessing = false
	c.lastQueuedID = 0
	for _, ch := range c.chips {
		ch.SetCores(0)
		ch.FreqMHz = 0
		ch.Perf = 0
	}
	c.totalCores, c.totalPerf = 0, 0

	if err := c.initLocked(); err != nil {
		c.disabled = true
		return fmt.Errorf("%w: reinit after flush: %v", ErrDeviceDisabled, err)
	}
	return nil
}

// CheckDisabledChips implements §4.H's check_disabled_chips, run
// after an OON watchdog timeout. It walks chips high-to-low looking
// for a chip that no longer responds or that is backed up with too
// many in-flight jobs, per §9's "last_chip" re-expression as an
// explicit physical-id/logical-index pair.
func (c *Chain) CheckDisabledChips() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newLastChip := 0
	for i := len(c.chips) - 1; i >= 0; i-- {
		ch := c.chips[i]
		resp, err := c.sendCmd(asiccmd.OpReadID, ch.ID, nil, 4, false)
		if err != nil {
			c.totalCores -= ch.ActiveCores
			c.totalPerf -= ch.Perf
			ch.MarkFailed()
			newLastChip = i + 1
			break
		}

		if ch.Feature == chip.FeatureASIC {
			inFlight := resp[2] & 0x07
			const oonIntMaxJob = 2
			if int(inFlight) >= oonIntMaxJob {
				if ch.FreqMHz > 50 {
					ch.SetFreq(ch.FreqMHz - 50)
				} else {
					ch.MarkFailed()
					newLastChip = i + 1
				}
			}
		}
		if newLastChip != 0 {
			break
		}
	}

	if newLastChip == 0 {
		c.recomputeTotals()
		return nil
	}

	c.lastChip = newLastChip
	ctrl := uint16(c.cfg.UDiv) | asiccmd.ControlOonIRQEnable | asiccmd.ControlLastChip
	ctrlParm := []byte{byte(ctrl >> 8), byte(ctrl)}
	if _, err := c.sendCmd(asiccmd.OpSetControl, byte(newLastChip), ctrlParm, 0, false); err != nil {
		c.disabled = true
		return fmt.Errorf("%w: set last_chip control: %v", ErrTransport, err)
	}
	if _, err := c.broadcast(asiccmd.OpAutoAddress, make([]byte, 32), 2); err != nil {
		c.disabled = true
		return fmt.Errorf("%w: re-auto-address: %v", ErrTransport, err)
	}
	if err := c.initLocked(); err != nil {
		c.disabled = true
		return fmt.Errorf("%w: reinit after last_chip change: %v", ErrOonWatchdog, err)
	}
	return nil
}
