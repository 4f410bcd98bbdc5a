package chain

import "errors"

// Sentinel errors per spec §7. Per-chip errors (PllLockTimeout,
// BistTimeout/InsufficientCores) are contained by excluding the chip
// and continuing; per-chain errors (Transport, Framing, OonWatchdog
// exhaustion, DeviceDisabled) propagate to the caller and disable the
// chain.
var (
	ErrTransport         = errors.New("chain: transport failure")
	ErrFraming           = errors.New("chain: chip-id framing mismatch")
	ErrPllLockTimeout    = errors.New("chain: pll failed to lock")
	ErrBistTimeout       = errors.New("chain: bist did not complete")
	ErrInsufficientCores = errors.New("chain: bist passed fewer cores than min_cores")
	ErrOonWatchdog       = errors.New("chain: oon watchdog timeout")
	ErrDeviceDisabled    = errors.New("chain: device disabled")
)
