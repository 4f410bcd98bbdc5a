package chain

import (
	"errors"

	"github.com/minerhub/btc08ctl/internal/asiccmd"
	"github.com/minerhub/btc08ctl/internal/hostwork"
	"github.com/minerhub/btc08ctl/internal/spibus"
)

// frameShape records the (parmLen, respLen) chain/init.go and
// chain/scheduler.go use for each opcode, so the fake transport can
// locate the response slot inside an otherwise-opaque padded frame
// without re-implementing Build's padding logic.
var frameShape = map[asiccmd.Opcode][2]int{
	asiccmd.OpReset:         {0, 0},
	asiccmd.OpAutoAddress:   {32, 2},
	asiccmd.OpReadID:        {0, 4},
	asiccmd.OpReadFeature:   {0, 4},
	asiccmd.OpReadRevision:  {0, 4},
	asiccmd.OpSetPllFoutEn:  {1, 0},
	asiccmd.OpSetPllResetB:  {1, 0},
	asiccmd.OpSetPllConfig:  {4, 0},
	asiccmd.OpReadPll:       {0, 1},
	asiccmd.OpWriteParm:     {140, 0},
	asiccmd.OpWriteTarget:   {6, 0},
	asiccmd.OpWriteNonce:    {8, 0},
	asiccmd.OpSetDisable:    {1, 0},
	asiccmd.OpRunBist:       {128, 0},
	asiccmd.OpReadBist:      {0, 2},
	asiccmd.OpSetControl:    {2, 0},
	asiccmd.OpClearOON:      {0, 0},
	asiccmd.OpReadJobID:     {0, 4},
	asiccmd.OpReadResult:    {0, 18},
	asiccmd.OpRunJob:        {2, 0},
}

// respondFunc computes the response bytes for a given opcode/chipID;
// nil means "all zero".
type respondFunc func(op asiccmd.Opcode, chipID byte) []byte

// fakeTransport is an in-memory stand-in for spibus.Bus.
type fakeTransport struct {
	respond   respondFunc
	failOn    map[asiccmd.Opcode]bool
	sentCount map[asiccmd.Opcode]int
}

func newFakeTransport(respond respondFunc) *fakeTransport {
	return &fakeTransport{respond: respond, failOn: map[asiccmd.Opcode]bool{}, sentCount: map[asiccmd.Opcode]int{}}
}

func (f *fakeTransport) Transfer(tx, rx []byte) error     { return f.do(tx, rx) }
func (f *fakeTransport) TransferFast(tx, rx []byte) error { return f.do(tx, rx) }

func (f *fakeTransport) TransferBatch(msgs []spibus.Message) error {
	for _, m := range msgs {
		if err := f.do(m.Tx, m.Rx); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTransport) do(tx, rx []byte) error {
	op := asiccmd.Opcode(tx[0])
	chipID := tx[1]
	f.sentCount[op]++
	if f.failOn[op] {
		return errors.New("simulated ioctl failure")
	}
	shape, ok := frameShape[op]
	if !ok {
		return nil
	}
	parmLen, respLen := shape[0], shape[1]
	if respLen == 0 {
		return nil
	}
	resp := f.respond(op, chipID)
	off := asiccmd.ResponseOffset(parmLen)
	copy(rx[off:off+respLen], resp)
	return nil
}

// fakeGPIO is an in-memory stand-in for gpioline.Lines.
type fakeGPIO struct {
	gn, oon    bool
	resetLows  int
	resetHighs int
}

func (g *fakeGPIO) ResetLow() error   { g.resetLows++; return nil }
func (g *fakeGPIO) ResetHigh() error  { g.resetHighs++; return nil }
func (g *fakeGPIO) GNAsserted() bool  { return g.gn }
func (g *fakeGPIO) OONAsserted() bool { return g.oon }
func (g *fakeGPIO) AssertPwr() error  { return nil }

// fakeHost is an in-memory stand-in for hostwork.Host.
type fakeHost struct {
	queue     []*hostwork.Work
	submitted []uint32
	accept    bool
	released  []*hostwork.Work
}

func (h *fakeHost) Dequeue() *hostwork.Work {
	if len(h.queue) == 0 {
		return nil
	}
	w := h.queue[0]
	h.queue = h.queue[1:]
	return w
}

func (h *fakeHost) Submit(w *hostwork.Work, nonce uint32) bool {
	h.submitted = append(h.submitted, nonce)
	return h.accept
}

func (h *fakeHost) Release(w *hostwork.Work) {
	h.released = append(h.released, w)
}
