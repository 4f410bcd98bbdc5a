// Package chip models a single BTC08 ASIC: its identity, BIST-derived
// health, programmed clock, assigned nonce sub-range, and per-chip
// accumulators.
package chip

import "time"

// MinCoresDefault and MinChipsDefault are the spec's default
// 0.9-ratio thresholds (§6), expressed against the reference 206-core
// / 66-chip BTC08 chain.
const (
	MinCoresDefault = 206 * 9 / 10
	MinChipsDefault = 66 * 9 / 10
)

// Feature nibbles returned by READ_FEATURE.
const (
	FeatureFPGA = 0x0
	FeatureASIC = 0x5
)

// Chip is one ASIC on the chain.
type Chip struct {
	ID       byte // 1..N; 0 is reserved for broadcast
	Revision uint32
	Feature  byte // FeatureFPGA or FeatureASIC
	HashDepth byte // cores' internal pipeline depth, low byte of the feature word

	ActiveCores int // post-BIST
	FreqMHz     int // programmed frequency, 0 if PLL never locked
	Perf        int // cores * MHz, recomputed whenever cores or MHz changes

	StartNonce, EndNonce uint32

	Disabled      bool
	CooldownBegin time.Time
	FailCount     int

	NoncesFound uint64
	HwErrors    uint64
	Stales      uint64
	RangesDone  uint64
}

// New constructs a chip in its as-discovered state: no cores, no
// frequency, disabled until BIST and PLL succeed.
func New(id byte) *Chip {
	return &Chip{ID: id, Disabled: true}
}

// SetCores updates the BIST-derived active core count and recomputes
// Perf.
func (c *Chip) SetCores(cores int) {
	c.ActiveCores = cores
	c.Perf = PerfOf(c.ActiveCores, c.FreqMHz)
}

// SetFreq updates the programmed PLL frequency and recomputes Perf.
func (c *Chip) SetFreq(mhz int) {
	c.FreqMHz = mhz
	c.Perf = PerfOf(c.ActiveCores, c.FreqMHz)
}

// PerfOf computes a chip's performance figure as cores * MHz, the
// basis for nonce-range partitioning (§4.D step 11).
func PerfOf(cores, mhz int) int {
	return cores * mhz
}

// MarkFailed disables the chip, zeroes its performance, and begins its
// cooldown window — used for PLL-lock failure, BIST failure, and
// supervisor-detected faults alike.
func (c *Chip) MarkFailed() {
	c.Disabled = true
	c.FreqMHz = 0
	c.Perf = 0
	c.BeginCooldown(time.Now())
}

// BeginCooldown records a recoverable-failure timestamp. Per §4.H and
// §9, the reference design never automatically re-enables a chip
// after cooldown elapses — this is a known, intentional limitation,
// not an oversight.
func (c *Chip) BeginCooldown(now time.Time) {
	c.CooldownBegin = now
	c.Disabled = true
}

// CooldownElapsed reports whether now is past the 30s cooldown
// window. Exposed for stats/diagnostics only; nothing in this package
// acts on it to re-enable the chip.
const CooldownDuration = 30 * time.Second

func (c *Chip) CooldownElapsed(now time.Time) bool {
	return !c.CooldownBegin.IsZero() && now.After(c.CooldownBegin.Add(CooldownDuration))
}
