// Package config parses the chip configuration options a driver
// instance is started with: a colon-joined option string carried on
// one CLI flag (spi_clk:pll:udiv), plus the handful of discrete flags
// that don't fit that shorthand. The split-on-":" parsing follows the
// split-on-"=" .env parsing in hasher's internal/config/config.go.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/minerhub/btc08ctl/internal/chain"
)

// Defaults per §6's chip configuration options.
const (
	DefaultSPIClockKHz = 2000
	DefaultPLLMHz      = 550
	DefaultUDiv        = 17
)

// Options is the parsed form of a driver instance's chip configuration
// options, before it is turned into one chain.Config per discovered
// chain (override_chip_num and test_mode apply uniformly; the others
// are per-chain defaults a board-specific override may replace).
type Options struct {
	SPIClockKHz     int
	PLLMHz          int
	UDiv            int
	OverrideChipNum int
	MinCores        int
	MinChips        int
	TestMode        bool
}

// ParseOptionString parses the colon-joined "spi_clk:pll:udiv" flag
// value. A missing or empty string yields the defaults; a present
// field must parse as a non-negative integer.
func ParseOptionString(s string) (spiClockKHz, pllMHz, udiv int, err error) {
	spiClockKHz, pllMHz, udiv = DefaultSPIClockKHz, DefaultPLLMHz, DefaultUDiv
	if strings.TrimSpace(s) == "" {
		return spiClockKHz, pllMHz, udiv, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("option string %q: too many fields (want spi_clk:pll:udiv)", s)
	}

	fields := []*int{&spiClockKHz, &pllMHz, &udiv}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, convErr := strconv.Atoi(p)
		if convErr == nil && n < 0 {
			convErr = fmt.Errorf("negative value %d", n)
		}
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("option string %q: field %d: %w", s, i, convErr)
		}
		*fields[i] = n
	}
	return spiClockKHz, pllMHz, udiv, nil
}

// flagSet mirrors the package-level flag.Int/flag.Bool pattern the
// driver shell's main() uses; Register binds this Options to a
// *flag.FlagSet so the shell can call flag.Parse() once for
// everything, including the stats-server and gin-related flags it
// defines alongside these.
type flagSet struct {
	optionString    *string
	minCores        *int
	minChips        *int
	testMode        *bool
	overrideChipNum *int
}

// Register binds the chip configuration flags onto fs. Call Parse
// after fs.Parse(os.Args[1:]) to materialize an Options.
func Register(fs *flag.FlagSet) *flagSet {
	return &flagSet{
		optionString:    fs.String("chip-opts", "", "colon-joined spi_clk_khz:pll_mhz:udiv (defaults 2000:550:17)"),
		minCores:        fs.Int("min-cores", 206*9/10, "minimum passing cores per chip (ASIC)"),
		minChips:        fs.Int("min-chips", 66*9/10, "minimum responding chips per chain (ASIC)"),
		testMode:        fs.Bool("test-mode", false, "production hash-board test harness: skip nonce-range partitioning"),
		overrideChipNum: fs.Int("override-chip-num", 0, "cap the AUTO_ADDRESS-discovered chip count to this value (0 = no override, test benches only)"),
	}
}

// Parse materializes the bound flags into an Options. Call only after
// the owning flag.FlagSet has been parsed.
func (f *flagSet) Parse() (Options, error) {
	spiClockKHz, pllMHz, udiv, err := ParseOptionString(*f.optionString)
	if err != nil {
		return Options{}, err
	}
	return Options{
		SPIClockKHz:     spiClockKHz,
		PLLMHz:          pllMHz,
		UDiv:            udiv,
		OverrideChipNum: *f.overrideChipNum,
		MinCores:        *f.minCores,
		MinChips:        *f.minChips,
		TestMode:        *f.testMode,
	}, nil
}

// ChainConfig builds a chain.Config from these options, for a single
// discovered chain. override_chip_num, when non-zero, caps
// AUTO_ADDRESS's discovered count (used on test benches where only a
// subset of a chain is populated); it never raises that count.
func (o Options) ChainConfig() chain.Config {
	return chain.Config{
		SPIClockKHz:     o.SPIClockKHz,
		PLLMHz:          o.PLLMHz,
		UDiv:            byte(o.UDiv),
		OverrideChipNum: o.OverrideChipNum,
		MinCores:        o.MinCores,
		MinChips:        o.MinChips,
		TestMode:        o.TestMode,
	}
}
