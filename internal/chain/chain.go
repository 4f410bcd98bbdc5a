// Package chain implements the BTC08 chain driver's core: discovery
// and initialisation, the 4-deep job scheduler, GN/OON result
// extraction, and the failure-recovery supervisor, all guarded by one
// mutex per chain as required by spec §5.
package chain

import (
	"sync"
	"time"

	"github.com/minerhub/btc08ctl/internal/asiccmd"
	"github.com/minerhub/btc08ctl/internal/chip"
	"github.com/minerhub/btc08ctl/internal/hostwork"
	"github.com/minerhub/btc08ctl/internal/spibus"
)

// MaxNonce is the top of the 32-bit nonce space, the upper bound of
// the last active chip's sub-range.
const MaxNonce uint32 = 0xFFFFFFFF

// MaxJobFIFO is the depth of the chips' job FIFO: the number of works
// the initial fill schedules. The in-flight table itself has 8 job-id
// slots.
const MaxJobFIFO = 4

// AsicBoostCoreCount is the number of parallel hashing core instances
// (Upper/Lower/Lower2/Lower3) each chip runs per job.
const AsicBoostCoreCount = 4

// OONRangeCommitment is the number of nonce ranges committed per OON
// event (§4.G: "increment processed range counter by 2").
const OONRangeCommitment = 2

// Transport is the subset of spibus.Bus the chain needs. Satisfied by
// *spibus.Bus; fakeable in tests.
type Transport interface {
	Transfer(tx, rx []byte) error
	TransferFast(tx, rx []byte) error
	TransferBatch(msgs []spibus.Message) error
}

// GPIO is the subset of gpioline.Lines the chain needs.
type GPIO interface {
	ResetLow() error
	ResetHigh() error
	GNAsserted() bool
	OONAsserted() bool
	AssertPwr() error
}

// Config holds the per-chain options consumed from host-parsed CLI
// flags (§6).
type Config struct {
	SPIClockKHz     int
	PLLMHz          int
	UDiv            byte
	OverrideChipNum int // 0 = auto-detect
	MinCores        int
	MinChips        int
	TestMode        bool
	OONWatchdog     time.Duration // 4s ASIC, 120s FPGA
}

// DefaultConfig mirrors §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		SPIClockKHz: 2000,
		PLLMHz:      550,
		UDiv:        17,
		MinCores:    chip.MinCoresDefault,
		MinChips:    chip.MinChipsDefault,
		OONWatchdog: 4 * time.Second,
	}
}

// Chain is one SPI bus's worth of daisy-chained BTC08 chips.
type Chain struct {
	mu sync.Mutex

	ChainID int
	cfg     Config

	tx   Transport
	gpio GPIO

	chips         []*chip.Chip // logical index 0..NumChips-1, chip.ID = index+1
	NumChips      int
	NumActiveChips int
	lastChip      int // §9: 0 means "not shortened"; >0 marks the physical boundary

	totalCores int
	totalPerf  int

	lastQueuedID int // 3-bit monotone counter (0..7)
	work         [8]*hostwork.Work

	sdiff        float64
	isProcessing bool
	disabled     bool

	pending *hostwork.Queue
	host    hostwork.Host

	lastResult [8]asiccmd.Result // not written by any code path in this package; stays zero
}

// New constructs an unstarted chain. Init must be called before
// ScanWork.
func New(chainID int, cfg Config, tx Transport, gpio GPIO, host hostwork.Host) *Chain {
	return &Chain{
		ChainID: chainID,
		cfg:     cfg,
		tx:      tx,
		gpio:    gpio,
		pending: hostwork.NewQueue(),
		host:    host,
	}
}

// Disabled reports whether the chain has hit an unrecoverable fault.
func (c *Chain) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Perf returns the chain's total performance (sum of active chip
// perf).
func (c *Chain) Perf() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPerf
}

// Enqueue pushes a new work item onto the pending queue under the
// chain mutex and reports false for a nil work. QueueFull does not call
// it; it enqueues onto the pending queue directly.
func (c *Chain) Enqueue(w *hostwork.Work) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Enqueue(w)
}

// QueueFull reports whether the pending queue is at FullThreshold; if
// not full, it pulls one work from the host and enqueues it, matching
// the reference driver's combined queue_full/append semantics.
func (c *Chain) QueueFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Full() {
		return true
	}
	c.pending.Enqueue(c.host.Dequeue())
	return c.pending.Full()
}

// recomputeTotals recalculates totalCores/totalPerf from the active
// chip set. Callers must hold mu.
func (c *Chain) recomputeTotals() {
	cores, perf := 0, 0
	for _, ch := range c.activeChips() {
		cores += ch.ActiveCores
		perf += ch.Perf
	}
	c.totalCores, c.totalPerf = cores, perf
}

// activeChips returns the chips at or below the last_chip boundary
// (if set) that are not individually disabled. Callers must hold mu.
func (c *Chain) activeChips() []*chip.Chip {
	limit := len(c.chips)
	if c.lastChip > 0 && c.lastChip < limit {
		limit = c.lastChip
	}
	out := make([]*chip.Chip, 0, limit)
	for i := 0; i < limit; i++ {
		if !c.chips[i].Disabled {
			out = append(out, c.chips[i])
		}
	}
	return out
}
