package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionStringDefaults(t *testing.T) {
	spiClockKHz, pllMHz, udiv, err := ParseOptionString("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSPIClockKHz, spiClockKHz)
	assert.Equal(t, DefaultPLLMHz, pllMHz)
	assert.Equal(t, DefaultUDiv, udiv)
}

func TestParseOptionStringFull(t *testing.T) {
	spiClockKHz, pllMHz, udiv, err := ParseOptionString("1000:600:9")
	require.NoError(t, err)
	assert.Equal(t, 1000, spiClockKHz)
	assert.Equal(t, 600, pllMHz)
	assert.Equal(t, 9, udiv)
}

func TestParseOptionStringPartialKeepsDefaults(t *testing.T) {
	spiClockKHz, pllMHz, udiv, err := ParseOptionString("1000")
	require.NoError(t, err)
	assert.Equal(t, 1000, spiClockKHz)
	assert.Equal(t, DefaultPLLMHz, pllMHz)
	assert.Equal(t, DefaultUDiv, udiv)
}

func TestParseOptionStringTooManyFields(t *testing.T) {
	_, _, _, err := ParseOptionString("1:2:3:4")
	assert.Error(t, err)
}

func TestParseOptionStringNonInteger(t *testing.T) {
	_, _, _, err := ParseOptionString("abc:2:3")
	assert.Error(t, err)
}

func TestRegisterDefaultsOverrideChipNumToZero(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	chipFlags := Register(fs)
	require.NoError(t, fs.Parse(nil))

	opts, err := chipFlags.Parse()
	require.NoError(t, err)
	assert.Equal(t, 0, opts.OverrideChipNum)
}

func TestRegisterBindsOverrideChipNumFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	chipFlags := Register(fs)
	require.NoError(t, fs.Parse([]string{"-override-chip-num=4"}))

	opts, err := chipFlags.Parse()
	require.NoError(t, err)
	assert.Equal(t, 4, opts.OverrideChipNum)
}

func TestChainConfigCarriesOptions(t *testing.T) {
	o := Options{SPIClockKHz: 1000, PLLMHz: 600, UDiv: 9, OverrideChipNum: 4, MinCores: 100, MinChips: 50, TestMode: true}
	cc := o.ChainConfig()
	assert.Equal(t, 1000, cc.SPIClockKHz)
	assert.Equal(t, 600, cc.PLLMHz)
	assert.Equal(t, byte(9), cc.UDiv)
	assert.Equal(t, 4, cc.OverrideChipNum)
	assert.Equal(t, 100, cc.MinCores)
	assert.Equal(t, 50, cc.MinChips)
	assert.True(t, cc.TestMode)
}
