package cpu

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/kestrelcore/gbcore/internal/bus"
	"github.com/kestrelcore/gbcore/internal/irq"
)

// DecodeError reports an opcode the executor has no dispatch entry for.
// It is fatal: the frame loop stops stepping once this is set.
type DecodeError struct {
	Opcode byte
	PC     uint16
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("illegal opcode %#02x at PC=%#04x", e.Opcode, e.PC)
}

// CPU implements the SM83 register file and fetch/decode/execute loop.
// Decoding goes through opcodeTable (see opcodes.go): each byte maps to an
// Instruction describing its operation and operand shapes, which execute
// (exec.go) interprets generically rather than through a hand-written case
// per opcode.
type CPU struct {
	// 8-bit registers
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME     bool
	halted  bool
	stopped bool
	// EI enables IME after the following instruction
	eiPending bool

	// Err holds the first decode error encountered; once set, Step keeps
	// returning 0 cycles without advancing PC.
	Err error

	// extraCycles accumulates bus-side costs (OAM DMA) incurred by writes
	// during the instruction currently executing; Step folds it into the
	// cycle count it hands to Bus.Tick.
	extraCycles int

	bus *bus.Bus
}

// New creates a CPU with default post-boot-like state (simplified).
func New(b *bus.Bus) *CPU {
	return &CPU{bus: b, SP: 0xFFFE, PC: 0x0000}
}

// SetPC allows tests or a boot stub to set the program counter.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the underlying bus for tests/tools.
func (c *CPU) Bus() *bus.Bus { return c.bus }

// ResetNoBoot sets registers to typical DMG post-boot state.
// Useful when running without a boot ROM.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.IME = false
	c.halted = false
	c.stopped = false
	c.eiPending = false
	c.Err = nil
}

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = int16(a) < int16(b)
	return
}

func (c *CPU) sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < ((b & 0x0F) + ci)
	cy = int16(a) < int16(b)+int16(ci)
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z = res == 0
	h = true
	return
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	return
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	return
}

func (c *CPU) cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = c.sub8(a, b)
	return
}

func (c *CPU) read8(addr uint16) byte { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) {
	c.extraCycles += c.bus.Write(addr, v)
}

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | (hi << 8)
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v&0x00FF))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

// Step executes one instruction and returns the cycle count consumed,
// including any extra bus-side cost (OAM DMA) incurred along the way. If a
// prior Step already hit an illegal opcode, Step is a no-op returning 0.
func (c *CPU) Step() (cycles int) {
	if c.Err != nil {
		return 0
	}
	c.extraCycles = 0
	// Only an EI executed by an earlier Step takes effect at the end of this one.
	eiArmed := c.eiPending

	defer func() {
		cycles += c.extraCycles
		if c.bus != nil && cycles > 0 {
			c.bus.Tick(cycles)
		}
		if eiArmed && c.eiPending {
			c.IME = true
			c.eiPending = false
		}
	}()

	serviceInterrupt := func() int {
		bit, ok := c.bus.IRQ().Pending()
		if !ok {
			return 0
		}
		c.bus.IRQ().Ack(bit)
		c.halted = false
		c.stopped = false
		c.IME = false
		c.push16(c.PC)
		c.PC = 0x40 + uint16(bit)*8
		return 20
	}

	// STOP only resumes on a pending joypad interrupt.
	if c.stopped {
		if c.bus.IRQ().ReadIF()&(1<<uint(irq.Joypad)) != 0 {
			c.stopped = false
		} else {
			return 4
		}
	}

	// HALT behavior: if IME and an interrupt is pending, service it; else sleep
	if c.halted {
		if c.IME {
			if cyc := serviceInterrupt(); cyc != 0 {
				return cyc
			}
			return 4
		} else if c.bus.IRQ().AnyPending() {
			// Clean exit: HALT ends and the following opcode is fetched once,
			// with no repeated or skipped byte.
			c.halted = false
		} else {
			return 4
		}
	}

	if c.IME {
		if cyc := serviceInterrupt(); cyc != 0 {
			return cyc
		}
	}

	opPC := c.PC
	op := c.fetch8()
	inst := opcodeTable[op]
	if inst.Kind == kIllegal {
		c.Err = &DecodeError{Opcode: op, PC: opPC}
		return 0
	}
	return c.execute(inst)
}

type cpuState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME, Halted, Stopped   bool
	EIPending              bool
	HasErr                 bool
	ErrOpcode              byte
	ErrPC                  uint16
}

// SaveState serializes the register file and execution-control flags.
func (c *CPU) SaveState() []byte {
	var buf bytes.Buffer
	s := cpuState{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC,
		IME: c.IME, Halted: c.halted, Stopped: c.stopped, EIPending: c.eiPending,
	}
	if de, ok := c.Err.(*DecodeError); ok {
		s.HasErr = true
		s.ErrOpcode = de.Opcode
		s.ErrPC = de.PC
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// LoadState restores a register file previously captured by SaveState.
func (c *CPU) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	var s cpuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L
	c.SP, c.PC = s.SP, s.PC
	c.IME, c.halted, c.stopped, c.eiPending = s.IME, s.Halted, s.Stopped, s.EIPending
	if s.HasErr {
		c.Err = &DecodeError{Opcode: s.ErrOpcode, PC: s.ErrPC}
	} else {
		c.Err = nil
	}
}
