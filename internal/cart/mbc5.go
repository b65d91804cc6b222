package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC5 banks up to 8MB of ROM (9-bit bank number) and up to 128KB of RAM.
// It is the simplest of the three MBCs here: no mode register, no RTC, and
// (unlike MBC1/MBC3) bank 0 is a legal switchable-area selection rather than
// an alias for bank 1.
type MBC5 struct {
	rom []byte
	ram []byte

	romBank    uint16 // 0..511
	ramBank    byte   // 0..15
	ramEnabled bool
}

func NewMBC5(rom []byte, ramSize int) *MBC5 {
	m := &MBC5{rom: rom, romBank: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

// romWindow maps a CPU address in 0x0000-0x7FFF to a flat offset into rom.
func (m *MBC5) romWindow(addr uint16) int {
	if addr < 0x4000 {
		return int(addr)
	}
	return int(m.romBank)*0x4000 + int(addr-0x4000)
}

// ramWindow maps a CPU address in 0xA000-0xBFFF to a flat offset into ram.
func (m *MBC5) ramWindow(addr uint16) int {
	return int(m.ramBank&0x0F)*0x2000 + int(addr-0xA000)
}

func (m *MBC5) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if off := m.romWindow(addr); off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		if off := m.ramWindow(addr); off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC5) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x3000:
		// ROM bank number, low 8 bits. No 0->1 remap: 0 is addressable here.
		m.romBank = m.romBank&0x100 | uint16(value)
	case addr < 0x4000:
		// ROM bank number, bit 8.
		if value&0x01 != 0 {
			m.romBank |= 0x100
		} else {
			m.romBank &^= 0x100
		}
	case addr < 0x6000:
		m.ramBank = value & 0x0F
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		if off := m.ramWindow(addr); off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC5) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC5) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

type mbc5State struct {
	RAM        []byte
	RomBank    uint16
	RamBank    byte
	RamEnabled bool
}

func (m *MBC5) SaveState() []byte {
	var buf bytes.Buffer
	s := mbc5State{RAM: m.ram, RomBank: m.romBank, RamBank: m.ramBank, RamEnabled: m.ramEnabled}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (m *MBC5) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	var s mbc5State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.romBank, m.ramBank, m.ramEnabled = s.RomBank, s.RamBank, s.RamEnabled
}
