package hostwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueNilReturnsFalse(t *testing.T) {
	q := NewQueue()
	assert.False(t, q.Enqueue(nil))
	assert.Equal(t, 0, q.Len())
}

func TestFIFOOrder(t *testing.T) {
	q := NewQueue()
	w1, w2, w3 := &Work{}, &Work{}, &Work{}
	require.True(t, q.Enqueue(w1))
	require.True(t, q.Enqueue(w2))
	require.True(t, q.Enqueue(w3))

	assert.Same(t, w1, q.Dequeue())
	assert.Same(t, w2, q.Dequeue())
	assert.Same(t, w3, q.Dequeue())
	assert.Nil(t, q.Dequeue())
}

func TestFullThreshold(t *testing.T) {
	q := NewQueue()
	for i := 0; i < FullThreshold-1; i++ {
		q.Enqueue(&Work{})
	}
	assert.False(t, q.Full())
	q.Enqueue(&Work{})
	assert.True(t, q.Full())
}

type fakeHost struct {
	released []*Work
}

func (f *fakeHost) Dequeue() *Work                 { return nil }
func (f *fakeHost) Submit(w *Work, n uint32) bool  { return true }
func (f *fakeHost) Release(w *Work)                { f.released = append(f.released, w) }

func TestDrainToReleasesEverything(t *testing.T) {
	q := NewQueue()
	w1, w2 := &Work{}, &Work{}
	q.Enqueue(w1)
	q.Enqueue(w2)

	h := &fakeHost{}
	q.DrainTo(h)
	assert.Equal(t, 0, q.Len())
	assert.ElementsMatch(t, []*Work{w1, w2}, h.released)
}

func TestApplyVMaskOverwritesDataPrefix(t *testing.T) {
	w := &Work{Pool: &Pool{VMask: map[byte][4]byte{
		1: {0xAA, 0xBB, 0xCC, 0xDD},
	}}}
	w.ApplyVMask(1)
	assert.Equal(t, [4]byte{0xAA, 0xBB, 0xCC, 0xDD}, [4]byte(w.Data[0:4]))
}

func TestApplyVMaskNoopWithoutPool(t *testing.T) {
	w := &Work{}
	w.ApplyVMask(1) // must not panic
	assert.Equal(t, [12]byte{}, w.Data)
}

func TestParmPayloadLength(t *testing.T) {
	w := &Work{}
	assert.Len(t, w.ParmPayload(), 140)
}
