// Package asiccmd builds and decodes the BTC08 command frames that
// traverse the daisy-chained SPI bus.
package asiccmd

// Opcode identifies a BTC08 command.
type Opcode byte

// Command opcodes. Values are BTC08-reference-compatible; the exact
// numeric assignment only needs to be internally consistent since the
// driver is both encoder and decoder.
const (
	OpReadID         Opcode = 0x00
	OpAutoAddress    Opcode = 0x01
	OpRunBist        Opcode = 0x02
	OpReadBist       Opcode = 0x03
	OpReset          Opcode = 0x04
	OpSetPllConfig   Opcode = 0x05
	OpReadPll        Opcode = 0x06
	OpWriteParm      Opcode = 0x07
	OpReadParm       Opcode = 0x08
	OpWriteTarget    Opcode = 0x09
	OpReadTarget     Opcode = 0x0A
	OpRunJob         Opcode = 0x0B
	OpReadJobID      Opcode = 0x0C
	OpReadResult     Opcode = 0x0D
	OpClearOON       Opcode = 0x0E
	OpSetDisable     Opcode = 0x0F
	OpReadDisable    Opcode = 0x10
	OpSetControl     Opcode = 0x11
	OpWriteNonce     Opcode = 0x12
	OpReadHash       Opcode = 0x13
	OpReadFeature    Opcode = 0x14
	OpReadRevision   Opcode = 0x15
	OpSetPllFoutEn   Opcode = 0x16
	OpSetPllResetB   Opcode = 0x17
	OpWriteCoreDepth Opcode = 0x18
	OpSetTMode       Opcode = 0x19

	// Debug opcodes, not used by the core init/run path.
	OpDebugReadTemp Opcode = 0xF0
	OpDebugReadVolt Opcode = 0xF1
)

// BroadcastChipID addresses every chip on the chain; the reply in the
// received buffer carries the last physical chip's response.
const BroadcastChipID = 0x00

// Frame field lengths, common to every command.
const (
	opcodeLen  = 1
	chipIDLen  = 1
	dummyLen   = 2
	headerLen  = opcodeLen + chipIDLen // bytes before params
)

// Control-word bits for SET_CONTROL / udiv.
const (
	ControlOonIRQEnable = 1 << 4
	ControlLastChip     = 1 << 15
)
