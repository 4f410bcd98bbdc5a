// btc08-driver is the driver shell binary: it brings up every
// configured SPI chain, runs each chain's scanwork tick on its own
// goroutine, and serves the operator stats/flush HTTP surface,
// following the flag-parsing and graceful-shutdown shape of
// hasher-host's cmd/driver/hasher-host/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minerhub/btc08ctl/internal/chain"
	"github.com/minerhub/btc08ctl/internal/config"
	"github.com/minerhub/btc08ctl/internal/driverapi"
	"github.com/minerhub/btc08ctl/internal/hostwork"
)

var (
	spiDevices = flag.String("spi-devices", "/dev/spidev1.0", "comma-separated list of spidev paths, one per chain")
	adcDevice  = flag.String("adc-device", "/sys/bus/iio/devices/iio:device0", "IIO ADC device path shared across chains")
	httpAddr   = flag.String("http-addr", ":8080", "operator stats/flush HTTP listen address")
	scanPeriod = flag.Duration("scan-period", 5*time.Millisecond, "interval between scanwork ticks per chain")
)

func main() {
	chipFlags := config.Register(flag.CommandLine)
	flag.Parse()

	opts, err := chipFlags.Parse()
	if err != nil {
		log.Fatalf("btc08-driver: chip options: %v", err)
	}

	devices := splitNonEmpty(*spiDevices, ',')
	if len(devices) == 0 {
		log.Fatalf("btc08-driver: no spi devices configured")
	}
	ports := buildPorts(devices, *adcDevice)

	drv := driverapi.New(hostwork.NullHost{}, opts, ports)
	chains, err := drv.Detect(false)
	if err != nil {
		log.Fatalf("btc08-driver: detect: %v", err)
	}
	log.Printf("btc08-driver: detected %d chain(s)", len(chains))
	for _, c := range chains {
		log.Printf("btc08-driver: chain %d: %d chips (%d active), disabled=%v",
			c.ChainID, c.NumChips, c.NumActiveChips, c.Disabled())
	}

	stop := make(chan struct{})
	for _, c := range chains {
		go runScanLoop(drv, c, *scanPeriod, stop)
	}

	stats := driverapi.NewStatsServer(drv)
	httpSrv := &http.Server{Addr: *httpAddr, Handler: stats.Handler()}
	go func() {
		log.Printf("btc08-driver: stats server listening on %s", *httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("btc08-driver: stats server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("btc08-driver: shutting down, flushing %d chain(s)...", len(chains))
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("btc08-driver: stats server shutdown error: %v", err)
	}

	for _, c := range chains {
		if err := drv.FlushWork(c); err != nil {
			log.Printf("btc08-driver: chain %d: flush on shutdown failed: %v", c.ChainID, err)
		}
	}
}

// runScanLoop drives one chain's scanwork tick until stop is closed.
// A disabled chain still ticks (ScanWork returns ErrDeviceDisabled
// immediately) so supervisory tooling watching the stats surface sees
// it rather than the goroutine silently exiting.
func runScanLoop(drv *driverapi.Driver, c *chain.Chain, period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := drv.ScanWork(c); err != nil {
				log.Printf("btc08-driver: chain %d: scanwork: %v", c.ChainID, err)
			}
		}
	}
}

func buildPorts(devices []string, adcDevice string) []driverapi.PortConfig {
	ports := make([]driverapi.PortConfig, len(devices))
	for i, dev := range devices {
		chainID := i + 1
		ports[i] = driverapi.PortConfig{
			ChainID:       chainID,
			SPIDevicePath: dev,
			GPIONames: map[string]string{
				"reset":  fmt.Sprintf("GPIO_CHAIN%d_RESET", chainID),
				"gn":     fmt.Sprintf("GPIO_CHAIN%d_GN", chainID),
				"oon":    fmt.Sprintf("GPIO_CHAIN%d_OON", chainID),
				"pwr_en": fmt.Sprintf("GPIO_CHAIN%d_PWREN", chainID),
				"plug":   fmt.Sprintf("GPIO_CHAIN%d_PLUG", chainID),
				"boddet": fmt.Sprintf("GPIO_CHAIN%d_BODDET", chainID),
			},
			ADCDevicePath: adcDevice,
			ADCChannel:    i,
		}
	}
	return ports
}

func splitNonEmpty(s string, sep rune) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == sep {
			if field := s[start:i]; field != "" {
				out = append(out, field)
			}
			start = i + 1
		}
	}
	if field := s[start:]; field != "" {
		out = append(out, field)
	}
	return out
}
