// Package driverapi is the driver shell: it owns the set of chains a
// single host process drives, exposes §4.I's host-facing operations
// (Detect, ScanWork, QueueFull, FlushWork, Stats) through the
// HostDriver interface, and layers an optional read-mostly HTTP
// surface (StatsServer) over the same state for operator tooling.
package driverapi

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/minerhub/btc08ctl/internal/chain"
	"github.com/minerhub/btc08ctl/internal/config"
	"github.com/minerhub/btc08ctl/internal/gpioline"
	"github.com/minerhub/btc08ctl/internal/hostwork"
	"github.com/minerhub/btc08ctl/internal/spibus"
	"periph.io/x/conn/v3/physic"
)

// PortConfig describes one SPI bus/chain the driver may bring up
// during Detect: the device path, the GPIO line names for that port,
// and the ADC channel used for the chain's voltage reading.
type PortConfig struct {
	ChainID       int
	SPIDevicePath string            // e.g. "/dev/spidev1.0"
	GPIONames     map[string]string // logical line -> sysfs pin name, per gpioline.Open
	ADCDevicePath string            // e.g. "/sys/bus/iio/devices/iio:device0"
	ADCChannel    int
}

// chainHandle is everything Detect wires up for one port, kept around
// so Stats can read back through the same GPIO/ADC handles.
type chainHandle struct {
	chain *chain.Chain
	gpio  *gpioline.Lines
	bus   *spibus.Bus
	adc   *gpioline.ADC
	adcCh int
}

// Driver implements HostDriver against a fixed set of ports, known up
// front (hot-plug of chains is an explicit spec non-goal).
type Driver struct {
	mu    sync.Mutex
	host  hostwork.Host
	opts  config.Options
	ports []PortConfig

	chains map[int]*chainHandle
}

// New builds a driver shell. host is the single generic mining host
// every discovered chain submits nonces to and draws work from; opts
// is the parsed chip configuration shared by every port (§6).
func New(host hostwork.Host, opts config.Options, ports []PortConfig) *Driver {
	return &Driver{host: host, opts: opts, ports: ports, chains: make(map[int]*chainHandle)}
}

// Detect implements §4.I's detect(hotplug): on a hotplug rescan this
// driver has nothing further to do (chain hot-plug is out of scope);
// otherwise it brings up every configured port in order. A port whose
// GPIO, power, reset or SPI setup fails is logged and skipped. Every
// other port is registered as a compute device even if its chain's Init
// fails and leaves it disabled (a partially populated chain is still
// registered; the host simply won't get work out of it, per §4.D step 4).
func (d *Driver) Detect(hotplug bool) ([]*chain.Chain, error) {
	if hotplug {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*chain.Chain
	for _, p := range d.ports {
		lines, err := gpioline.Open(p.GPIONames)
		if err != nil {
			log.Printf("driverapi: chain %d: gpio open failed: %v", p.ChainID, err)
			continue
		}
		if err := lines.AssertPwr(); err != nil {
			log.Printf("driverapi: chain %d: assert pwr_en failed: %v", p.ChainID, err)
			continue
		}
		if err := lines.ResetLow(); err != nil {
			log.Printf("driverapi: chain %d: reset pulse failed: %v", p.ChainID, err)
			continue
		}
		time.Sleep(1 * time.Millisecond)
		if err := lines.ResetHigh(); err != nil {
			log.Printf("driverapi: chain %d: reset pulse failed: %v", p.ChainID, err)
			continue
		}

		baseHz := physic.Frequency(d.opts.SPIClockKHz) * physic.KiloHertz
		fastHz := baseHz * 20
		bus, err := spibus.Open(p.SPIDevicePath, baseHz, fastHz)
		if err != nil {
			log.Printf("driverapi: chain %d: spi open failed: %v", p.ChainID, err)
			continue
		}

		c := chain.New(p.ChainID, d.opts.ChainConfig(), bus, lines, d.host)
		if err := c.Init(); err != nil {
			log.Printf("driverapi: chain %d: init failed, registering disabled: %v", p.ChainID, err)
		}

		d.chains[p.ChainID] = &chainHandle{
			chain: c,
			gpio:  lines,
			bus:   bus,
			adc:   gpioline.NewADC(p.ADCDevicePath),
			adcCh: p.ADCChannel,
		}
		out = append(out, c)
	}
	return out, nil
}

// ScanWork implements §4.I's scanwork(thread) by delegating to the
// chain's own ScanWork (§4.F/§4.G).
func (d *Driver) ScanWork(c *chain.Chain) (int64, error) {
	return c.ScanWork()
}

// QueueFull implements §4.I's queue_full(cgpu).
func (d *Driver) QueueFull(c *chain.Chain) bool {
	return c.QueueFull()
}

// FlushWork implements §4.I's flush_work(cgpu).
func (d *Driver) FlushWork(c *chain.Chain) error {
	return c.FlushWork()
}

// ChainStats is §4.I's stats(cgpu) payload, plus chain_id_end
// mirroring the original API's redundant trailing field.
type ChainStats struct {
	ChainID       int
	NumChips      int
	AsicCount     int
	MilliVolts    int
	HiTempCelsius float64
	HotChipID     int
	ChainIDEnd    int
}

// Stats implements §4.I's stats(cgpu): chain_id, num_chips, hottest
// chip temperature, voltage (from ADC), hot chip id. Per-chip
// temperature sensing is not wired in this hardware revision (the
// original driver's hi_temp/hot_chip fields are likewise never
// updated past their zero value); MilliVolts is the one live reading.
func (d *Driver) Stats(c *chain.Chain) ChainStats {
	d.mu.Lock()
	h, ok := d.chains[c.ChainID]
	d.mu.Unlock()

	st := ChainStats{
		ChainID:    c.ChainID,
		NumChips:   c.NumChips,
		AsicCount:  c.NumChips,
		ChainIDEnd: c.ChainID,
	}
	if !ok {
		return st
	}
	mv, err := h.adc.ReadMilliVolts(h.adcCh)
	if err != nil {
		log.Printf("driverapi: chain %d: adc read failed: %v", c.ChainID, err)
		return st
	}
	st.MilliVolts = mv
	return st
}

// Chain looks up a previously detected chain by id.
func (d *Driver) Chain(id int) (*chain.Chain, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.chains[id]
	if !ok {
		return nil, false
	}
	return h.chain, true
}

// Chains returns every detected chain, in port order.
func (d *Driver) Chains() []*chain.Chain {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*chain.Chain, 0, len(d.chains))
	for _, p := range d.ports {
		if h, ok := d.chains[p.ChainID]; ok {
			out = append(out, h.chain)
		}
	}
	return out
}

// HostDriver is the interface the driver shell exposes outward to the
// mining host, matching §4.I exactly.
type HostDriver interface {
	Detect(hotplug bool) ([]*chain.Chain, error)
	ScanWork(c *chain.Chain) (int64, error)
	QueueFull(c *chain.Chain) bool
	FlushWork(c *chain.Chain) error
	Stats(c *chain.Chain) ChainStats
}

var _ HostDriver = (*Driver)(nil)

func (d *Driver) String() string {
	return fmt.Sprintf("driverapi.Driver{ports=%d}", len(d.ports))
}
