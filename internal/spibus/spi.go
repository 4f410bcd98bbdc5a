// Package spibus implements the framed, full-duplex SPI transport the
// BTC08 chain codec rides on: 4-byte aligned transfers, two clock
// tiers (base and fast), batched multi-message submission, and the
// mandatory bit-inversion of every received byte.
package spibus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// Sentinel errors, matched with errors.Is by callers (component C/D/F
// translate IoctlFailed into a chain-level DeviceDisabled).
var (
	ErrIoctlFailed      = errors.New("spibus: ioctl transfer failed")
	ErrLengthAlignment  = errors.New("spibus: transfer length not 4-byte aligned")
	ErrDeviceUnavailable = errors.New("spibus: spi device unavailable")
)

// Message is one leg of a batched transfer: its own length (implicit
// in len(Tx)), its own speed, and whether CS should be re-asserted
// between this message and the next.
type Message struct {
	Tx, Rx      []byte
	Speed       physic.Frequency
	AssertCSGap bool // not read by TransferBatch, which issues every message as its own Tx
}

// Bus is an open SPI chain transport.
type Bus struct {
	port     spi.PortCloser
	baseFreq physic.Frequency
	fastFreq physic.Frequency
	mode     spi.Mode
	bits     int

	conn     spi.Conn // cached connection at baseFreq
	connFast spi.Conn // cached connection at fastFreq
}

// Open opens the named spidev device (e.g. "/dev/spidev1.0") and
// prepares both the base and fast-clock connections.
func Open(devicePath string, baseHz, fastHz physic.Frequency) (*Bus, error) {
	port, err := spireg.Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	b := &Bus{port: port, baseFreq: baseHz, fastFreq: fastHz, mode: spi.Mode0, bits: 8}
	if b.conn, err = port.Connect(baseHz, b.mode, b.bits); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: connect base clock: %v", ErrDeviceUnavailable, err)
	}
	if b.connFast, err = port.Connect(fastHz, b.mode, b.bits); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: connect fast clock: %v", ErrDeviceUnavailable, err)
	}
	return b, nil
}

// Close releases the underlying spidev descriptor.
func (b *Bus) Close() error {
	if b.port == nil {
		return nil
	}
	return b.port.Close()
}

func alignedLen(n int) error {
	if n%4 != 0 {
		return ErrLengthAlignment
	}
	return nil
}

// Transfer performs a full-duplex exchange at the base clock. len(tx)
// must equal len(rx) and be a multiple of 4.
func (b *Bus) Transfer(tx, rx []byte) error {
	return b.transfer(b.conn, tx, rx)
}

// TransferFast performs the same exchange at the fast clock Open was
// given (the driver shell passes 20x the base clock). The chain
// package's set_work batch (WRITE_PARM, WRITE_TARGET, RUN_JOB) does not
// use the fast clock: it goes through TransferBatch with Speed unset,
// so it runs at the base clock.
func (b *Bus) TransferFast(tx, rx []byte) error {
	return b.transfer(b.connFast, tx, rx)
}

func (b *Bus) transfer(conn spi.Conn, tx, rx []byte) error {
	if err := alignedLen(len(tx)); err != nil {
		return err
	}
	if len(rx) != len(tx) {
		return fmt.Errorf("spibus: rx buffer length %d does not match tx length %d", len(rx), len(tx))
	}
	if err := conn.Tx(tx, rx); err != nil {
		return fmt.Errorf("%w: %v", ErrIoctlFailed, err)
	}
	invert(rx)
	return nil
}

// TransferBatch submits an ordered list of sub-transfers as a single
// logical unit. Each message may run at its own speed; when two
// adjacent messages share Speed and neither requests a CS gap they
// could in principle be coalesced into one ioctl, but periph's SPI
// abstraction only exposes one speed per Conn, so each message is
// issued as its own Tx against the connection matching its requested
// speed (a Speed matching neither clock runs at the base clock). Every
// message's length is checked before any is sent. The whole batch
// completes before the next is issued, and a failure partway through
// aborts the remainder.
func (b *Bus) TransferBatch(messages []Message) error {
	for i, m := range messages {
		if err := alignedLen(len(m.Tx)); err != nil {
			return fmt.Errorf("spibus: batch message %d: %w", i, err)
		}
	}
	for i, m := range messages {
		conn := b.connFor(m.Speed)
		if err := conn.Tx(m.Tx, m.Rx); err != nil {
			return fmt.Errorf("spibus: batch message %d: %w: %v", i, ErrIoctlFailed, err)
		}
		invert(m.Rx)
	}
	return nil
}

func (b *Bus) connFor(speed physic.Frequency) spi.Conn {
	if speed == 0 || speed == b.baseFreq {
		return b.conn
	}
	if speed == b.fastFreq {
		return b.connFast
	}
	return b.conn
}

// invert XORs every byte of buf with 0xFF, undoing the BTC08 board's
// idle-high MISO line. This is part of the wire protocol, not an
// error-recovery step.
func invert(buf []byte) {
	for i, v := range buf {
		buf[i] = v ^ 0xFF
	}
}
