// Package gpioline wraps the sysfs GPIO and IIO ADC lines a BTC08 chain
// depends on: RESET, GN, OON, PWR_EN, and the board-detect/ADC pair.
package gpioline

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Lines is the set of logical GPIO lines a single chain uses.
type Lines struct {
	Reset gpio.PinIO // out, active-low reset
	GN    gpio.PinIO // in, active-low golden-nonce interrupt level
	OON   gpio.PinIO // in, active-low out-of-nonce level
	PwrEn gpio.PinIO // out, fan/LDO enable
	Plug   gpio.PinIO // in, board connected/removed
	BodDet gpio.PinIO // in, board type
}

// Open resolves the named sysfs GPIO lines via periph's gpio registry.
// names maps logical line name -> sysfs pin name (e.g. "GPIOA12").
func Open(names map[string]string) (*Lines, error) {
	l := &Lines{}
	var err error
	if l.Reset, err = resolve(names, "reset"); err != nil {
		return nil, err
	}
	if l.GN, err = resolve(names, "gn"); err != nil {
		return nil, err
	}
	if l.OON, err = resolve(names, "oon"); err != nil {
		return nil, err
	}
	if l.PwrEn, err = resolve(names, "pwr_en"); err != nil {
		return nil, err
	}
	// Plug/BodDet are optional (production board-detect only).
	l.Plug, _ = resolve(names, "plug")
	l.BodDet, _ = resolve(names, "boddet")

	if err := l.Reset.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("gpioline: reset line init: %w", err)
	}
	if err := l.PwrEn.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpioline: pwr_en line init: %w", err)
	}
	if err := l.GN.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("gpioline: gn line init: %w", err)
	}
	if err := l.OON.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("gpioline: oon line init: %w", err)
	}
	return l, nil
}

func resolve(names map[string]string, key string) (gpio.PinIO, error) {
	name, ok := names[key]
	if !ok || name == "" {
		return nil, fmt.Errorf("gpioline: no pin configured for %q", key)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpioline: unknown pin %q for %q", name, key)
	}
	return pin, nil
}

// AssertPwr drives PWR_EN high, enabling the board's fan/LDO supply.
func (l *Lines) AssertPwr() error {
	return l.PwrEn.Out(gpio.High)
}

// ResetLow and ResetHigh drive RESET low and high — the two edges of
// the chain-wide hard reset pulse used during discovery and
// flush_work. The caller is responsible for sleeping the required
// low-time between the two calls; these only perform the edges.
func (l *Lines) ResetLow() error  { return l.Reset.Out(gpio.Low) }
func (l *Lines) ResetHigh() error { return l.Reset.Out(gpio.High) }

// GNAsserted reports whether the golden-nonce line is currently
// active (the line is active-low).
func (l *Lines) GNAsserted() bool { return l.GN.Read() == gpio.Low }

// OONAsserted reports whether the out-of-nonce line is currently
// active (the line is active-low).
func (l *Lines) OONAsserted() bool { return l.OON.Read() == gpio.Low }

// BoardType reads the production-test board-detect lines. Returns
// ("", false) when BodDet isn't wired for this chain.
func (l *Lines) BoardType() (string, bool) {
	if l.BodDet == nil {
		return "", false
	}
	if l.Plug != nil && l.Plug.Read() == gpio.High {
		return "", false // not plugged in
	}
	if l.BodDet.Read() == gpio.High {
		return "present", true
	}
	return "absent", true
}

// ADC reads a raw IIO ADC channel under sysfs and converts it to
// millivolts. The kernel exposes raw counts at
// /sys/bus/iio/devices/iio:device<N>/in_voltage<ch>_raw.
type ADC struct {
	devicePath string // e.g. /sys/bus/iio/devices/iio:device0
}

// NewADC opens an IIO ADC device by its sysfs path.
func NewADC(devicePath string) *ADC {
	return &ADC{devicePath: devicePath}
}

// ReadMilliVolts reads channel ch and converts raw counts to mV using
// the board's fixed 1800 mV / 4096-count reference (§6).
func (a *ADC) ReadMilliVolts(ch int) (int, error) {
	path := fmt.Sprintf("%s/in_voltage%d_raw", a.devicePath, ch)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("gpioline: read adc channel %d: %w", ch, err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("gpioline: parse adc channel %d: %w", ch, err)
	}
	return raw * 1800 / 4096, nil
}

// InWindow reports whether mV falls within the acceptance window
// centered on target with the given tolerance, e.g. 400±40.
func InWindow(mv, target, tolerance int) bool {
	lo, hi := target-tolerance, target+tolerance
	return mv >= lo && mv <= hi
}
