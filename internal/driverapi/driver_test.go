package driverapi

import (
	"testing"

	"github.com/minerhub/btc08ctl/internal/chain"
	"github.com/minerhub/btc08ctl/internal/hostwork"
	"github.com/minerhub/btc08ctl/internal/spibus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers every command with an all-zero response and
// never fails — enough to drive a chain through Init() for these
// shell-level tests, which only care about registration/dispatch, not
// chain internals (those are covered in internal/chain's own tests).
type fakeTransport struct{}

func (fakeTransport) Transfer(tx, rx []byte) error     { return fakeDo(tx, rx) }
func (fakeTransport) TransferFast(tx, rx []byte) error { return fakeDo(tx, rx) }
func (fakeTransport) TransferBatch(msgs []spibus.Message) error {
	for _, m := range msgs {
		if err := fakeDo(m.Tx, m.Rx); err != nil {
			return err
		}
	}
	return nil
}

// fakeDo leaves rx all-zero. AUTO_ADDRESS's response byte[1] (chip
// count) then reads 0, so Init fails fast at step 3 — enough to check
// that a chain whose Init failed can still be held and looked up by
// the driver, without needing a full healthy-chain fixture (that's
// covered by internal/chain's own tests).
func fakeDo(tx, rx []byte) error {
	return nil
}

type fakeGPIO struct{}

func (fakeGPIO) ResetLow() error   { return nil }
func (fakeGPIO) ResetHigh() error  { return nil }
func (fakeGPIO) GNAsserted() bool  { return false }
func (fakeGPIO) OONAsserted() bool { return false }
func (fakeGPIO) AssertPwr() error  { return nil }

type fakeHost struct{}

func (fakeHost) Dequeue() *hostwork.Work            { return nil }
func (fakeHost) Submit(*hostwork.Work, uint32) bool { return true }
func (fakeHost) Release(*hostwork.Work)              {}

func TestChainLookupFindsChainWhoseInitFailed(t *testing.T) {
	d := &Driver{host: fakeHost{}, chains: map[int]*chainHandle{}}
	c := chain.New(1, chain.DefaultConfig(), fakeTransport{}, fakeGPIO{}, fakeHost{})
	_ = c.Init() // expected to fail against the all-zero fake responses

	d.chains[1] = &chainHandle{chain: c}

	got, ok := d.Chain(1)
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Len(t, d.Chains(), 0) // Chains() walks d.ports, which is empty here
}

func TestStatsWithoutHandleReturnsZeroVolt(t *testing.T) {
	d := &Driver{host: fakeHost{}, chains: map[int]*chainHandle{}}
	c := chain.New(7, chain.DefaultConfig(), fakeTransport{}, fakeGPIO{}, fakeHost{})

	st := d.Stats(c)
	assert.Equal(t, 7, st.ChainID)
	assert.Equal(t, 0, st.MilliVolts)
	assert.Equal(t, 7, st.ChainIDEnd)
}

func TestHostDriverInterfaceSatisfied(t *testing.T) {
	var _ HostDriver = (*Driver)(nil)
}
