package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// MBC3 implements ROM/RAM banking plus the MBC3 real-time clock.
// Banking behavior:
// - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank low 7 bits (0 maps to 1)
// - 4000-5FFF: RAM bank (0-3) or RTC register select (08-0C)
// - 6000-7FFF: Latch clock data; a 0->1 write latches the live RTC registers
// - A000-BFFF: selected external RAM bank, or the latched RTC register
// ROM: bank 0 fixed at 0000-3FFF; switchable 4000-7FFF uses bank (1..127)

// nowUnix is overridable so tests can drive the RTC deterministically.
var nowUnix = func() int64 { return time.Now().Unix() }

const (
	rtcRegSec = 0x08
	rtcRegMin = 0x09
	rtcRegHr  = 0x0A
	rtcRegDL  = 0x0B
	rtcRegDH  = 0x0C
)

type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	ramBank    byte // 0..3 (RAM access uses the low 2 bits)

	rtcSel byte // 0 when a RAM bank is selected, else rtcReg* above

	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9-bit day counter
	rtcHalt                 bool
	rtcCarry                bool
	lastRTCWallSec          int64

	latchSec, latchMin, latchHour byte
	latchDay                      uint16
	latchHalt                     bool
	latchCarry                    bool
	lastLatchWrite                byte
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

// updateRTC advances the live registers by the wall-clock time elapsed since
// the last update, no-op while halted.
func (m *MBC3) updateRTC() {
	now := nowUnix()
	if m.rtcHalt {
		m.lastRTCWallSec = now
		return
	}
	elapsed := now - m.lastRTCWallSec
	if elapsed <= 0 {
		return
	}
	m.lastRTCWallSec = now
	total := int64(m.rtcSec) + int64(m.rtcMin)*60 + int64(m.rtcHour)*3600 + int64(m.rtcDay&0x1FF)*86400 + elapsed
	days := total / 86400
	rem := total % 86400
	if days > 0x1FF {
		m.rtcCarry = true
		days %= 0x200
	}
	m.rtcDay = uint16(days)
	m.rtcHour = byte(rem / 3600)
	rem %= 3600
	m.rtcMin = byte(rem / 60)
	m.rtcSec = byte(rem % 60)
}

func (m *MBC3) Read(addr uint16) byte {
	m.updateRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.rtcSel != 0 {
			switch m.rtcSel {
			case rtcRegSec:
				return m.latchSec
			case rtcRegMin:
				return m.latchMin
			case rtcRegHr:
				return m.latchHour
			case rtcRegDL:
				return byte(m.latchDay & 0xFF)
			case rtcRegDH:
				v := byte((m.latchDay >> 8) & 0x01)
				if m.latchHalt {
					v |= 0x40
				}
				if m.latchCarry {
					v |= 0x80
				}
				return v
			}
			return 0xFF
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.updateRTC()
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		// 0x08..0x0C select an RTC register instead of a RAM bank.
		if value >= rtcRegSec && value <= rtcRegDH {
			m.rtcSel = value
		} else {
			m.rtcSel = 0
			m.ramBank = value & 0x03
		}
	case addr < 0x8000:
		// Latch clock: a 0->1 transition copies live registers into the
		// latched set used for reads.
		if m.lastLatchWrite == 0x00 && value == 0x01 {
			m.latchSec, m.latchMin, m.latchHour = m.rtcSec, m.rtcMin, m.rtcHour
			m.latchDay, m.latchHalt, m.latchCarry = m.rtcDay, m.rtcHalt, m.rtcCarry
		}
		m.lastLatchWrite = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.rtcSel != 0 {
			switch m.rtcSel {
			case rtcRegSec:
				m.rtcSec = value % 60
			case rtcRegMin:
				m.rtcMin = value % 60
			case rtcRegHr:
				m.rtcHour = value % 24
			case rtcRegDL:
				m.rtcDay = (m.rtcDay &^ 0xFF) | uint16(value)
			case rtcRegDH:
				m.rtcDay = (m.rtcDay & 0xFF) | (uint16(value&0x01) << 8)
				m.rtcHalt = value&0x40 != 0
				if value&0x80 == 0 {
					m.rtcCarry = false
				}
			}
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

// rtcPersist is the gob-encoded battery image written by SaveRAM and read by
// LoadRAM: the RAM bytes and the clock state together, so battery files also
// carry the clock across reloads.
type rtcPersist struct {
	RAM                           []byte
	RtcSec, RtcMin, RtcHour       byte
	RtcDay                        uint16
	RtcHalt, RtcCarry             bool
	LastRTCWallSec                int64
	LatchSec, LatchMin, LatchHour byte
	LatchDay                      uint16
	LatchHalt, LatchCarry         bool
}

// BatteryBacked implementation; the RTC state rides along with the RAM image.
func (m *MBC3) SaveRAM() []byte {
	m.updateRTC()
	var buf bytes.Buffer
	s := rtcPersist{
		RAM: m.ram,
		RtcSec: m.rtcSec, RtcMin: m.rtcMin, RtcHour: m.rtcHour, RtcDay: m.rtcDay,
		RtcHalt: m.rtcHalt, RtcCarry: m.rtcCarry, LastRTCWallSec: m.lastRTCWallSec,
		LatchSec: m.latchSec, LatchMin: m.latchMin, LatchHour: m.latchHour, LatchDay: m.latchDay,
		LatchHalt: m.latchHalt, LatchCarry: m.latchCarry,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(data) == 0 {
		return
	}
	var s rtcPersist
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.RtcSec, s.RtcMin, s.RtcHour, s.RtcDay
	m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = s.RtcHalt, s.RtcCarry, s.LastRTCWallSec
	m.latchSec, m.latchMin, m.latchHour, m.latchDay = s.LatchSec, s.LatchMin, s.LatchHour, s.LatchDay
	m.latchHalt, m.latchCarry = s.LatchHalt, s.LatchCarry
}

type mbc3State struct {
	RAM            []byte
	RamEnabled     bool
	RomBank        byte
	RamBank        byte
	RtcSel         byte
	RtcSec         byte
	RtcMin         byte
	RtcHour        byte
	RtcDay         uint16
	RtcHalt        bool
	RtcCarry       bool
	LastRTCWallSec int64
	LatchSec       byte
	LatchMin       byte
	LatchHour      byte
	LatchDay       uint16
	LatchHalt      bool
	LatchCarry     bool
	LastLatchWrite byte
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	s := mbc3State{
		RAM: m.ram, RamEnabled: m.ramEnabled, RomBank: m.romBank, RamBank: m.ramBank,
		RtcSel: m.rtcSel, RtcSec: m.rtcSec, RtcMin: m.rtcMin, RtcHour: m.rtcHour, RtcDay: m.rtcDay,
		RtcHalt: m.rtcHalt, RtcCarry: m.rtcCarry, LastRTCWallSec: m.lastRTCWallSec,
		LatchSec: m.latchSec, LatchMin: m.latchMin, LatchHour: m.latchHour, LatchDay: m.latchDay,
		LatchHalt: m.latchHalt, LatchCarry: m.latchCarry, LastLatchWrite: m.lastLatchWrite,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.ramEnabled, m.romBank, m.ramBank = s.RamEnabled, s.RomBank, s.RamBank
	m.rtcSel = s.RtcSel
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.RtcSec, s.RtcMin, s.RtcHour, s.RtcDay
	m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = s.RtcHalt, s.RtcCarry, s.LastRTCWallSec
	m.latchSec, m.latchMin, m.latchHour, m.latchDay = s.LatchSec, s.LatchMin, s.LatchHour, s.LatchDay
	m.latchHalt, m.latchCarry, m.lastLatchWrite = s.LatchHalt, s.LatchCarry, s.LastLatchWrite
}
