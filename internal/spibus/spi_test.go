package spibus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvertXORsEveryByte(t *testing.T) {
	buf := []byte{0x00, 0xFF, 0x0F, 0xAA}
	invert(buf)
	assert.Equal(t, []byte{0xFF, 0x00, 0xF0, 0x55}, buf)
}

func TestInvertIsItsOwnInverse(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56, 0x78}
	want := append([]byte(nil), buf...)
	invert(buf)
	invert(buf)
	assert.Equal(t, want, buf)
}

func TestAlignedLen(t *testing.T) {
	assert.NoError(t, alignedLen(0))
	assert.NoError(t, alignedLen(4))
	assert.NoError(t, alignedLen(140))
	assert.ErrorIs(t, alignedLen(1), ErrLengthAlignment)
	assert.ErrorIs(t, alignedLen(5), ErrLengthAlignment)
}

// transfer and TransferBatch both check framing before ever touching the
// underlying spi.Conn, so a zero-value Bus exercises the error paths
// without needing a live SPI device or a fake periph connection.
func TestTransferRejectsMisalignedLength(t *testing.T) {
	b := &Bus{}
	err := b.Transfer(make([]byte, 3), make([]byte, 3))
	assert.True(t, errors.Is(err, ErrLengthAlignment))
}

func TestTransferRejectsMismatchedRxLength(t *testing.T) {
	b := &Bus{}
	err := b.Transfer(make([]byte, 4), make([]byte, 8))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrLengthAlignment))
}

func TestTransferBatchRejectsMisalignedMessage(t *testing.T) {
	b := &Bus{}
	err := b.TransferBatch([]Message{
		{Tx: make([]byte, 4), Rx: make([]byte, 4)},
		{Tx: make([]byte, 3), Rx: make([]byte, 3)},
	})
	assert.True(t, errors.Is(err, ErrLengthAlignment))
}

func TestCloseOnZeroValueBusIsNoop(t *testing.T) {
	b := &Bus{}
	assert.NoError(t, b.Close())
}
