package chip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPerfRecomputedOnCoresAndFreq(t *testing.T) {
	c := New(1)
	c.SetCores(180)
	c.SetFreq(550)
	assert.Equal(t, 180*550, c.Perf)

	c.SetFreq(600)
	assert.Equal(t, 180*600, c.Perf)
}

func TestMarkFailedZeroesPerf(t *testing.T) {
	c := New(2)
	c.SetCores(200)
	c.SetFreq(550)
	c.MarkFailed()
	assert.True(t, c.Disabled)
	assert.Equal(t, 0, c.FreqMHz)
	assert.Equal(t, 0, c.Perf)
}

func TestMarkFailedBeginsCooldown(t *testing.T) {
	c := New(2)
	c.SetCores(200)
	c.SetFreq(550)
	before := time.Now()
	c.MarkFailed()
	assert.False(t, c.CooldownBegin.IsZero())
	assert.False(t, c.CooldownBegin.Before(before))
}

func TestCooldownNeverAutoClearsDisabled(t *testing.T) {
	c := New(3)
	now := time.Now()
	c.BeginCooldown(now)
	later := now.Add(CooldownDuration + time.Second)
	assert.True(t, c.CooldownElapsed(later))
	// Elapsed cooldown is observable, but nothing re-enables the chip —
	// this package has no method that flips Disabled back to false.
	assert.True(t, c.Disabled)
}
