package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrelcore/gbcore/internal/bus"
	"github.com/kestrelcore/gbcore/internal/cart"
	"github.com/kestrelcore/gbcore/internal/cpu"
)

// Buttons is a snapshot of the 8 joypad inputs, polled once per frame step.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// cyclesPerFrame is the DMG cycle budget for one 154-scanline frame at the
// nominal 4.194304 MHz clock (70224 cycles = 59.7 Hz).
const cyclesPerFrame = 70224

// Machine owns the CPU, bus, and cartridge for one emulated session and
// drives the frame loop. It has no knowledge of any windowing or audio
// library; host code drives it through StepFrame/Framebuffer/SetButtons.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	fb []byte // RGBA 160x144*4, refreshed each StepFrame

	romPath string
	romTitle string

	bootROM []byte
}

// New constructs a Machine with no cartridge loaded. Call LoadCartridge or
// LoadROMFromFile before stepping.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg, fb: make([]byte, 160*144*4)}
	m.bus = bus.New(make([]byte, 0x8000))
	m.cpu = cpu.New(m.bus)
	m.cpu.ResetNoBoot()
	m.initPostBootIO()
	return m
}

// SetBootROM stages a boot ROM to be mapped at reset until the guest writes
// to 0xFF50. Must be called before LoadCartridge/LoadROMFromFile to take effect.
func (m *Machine) SetBootROM(data []byte) { m.bootROM = data }

// LoadCartridge replaces the current cartridge and resets the CPU. An
// unrecognized cartridge type is returned as a *cart.ConfigError, matching
// the configuration-error taxonomy used during initialization.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if len(boot) > 0 {
		m.bootROM = boot
	}
	b, err := bus.NewWithError(rom)
	if err != nil {
		return err
	}
	m.bus = b
	m.cpu = cpu.New(m.bus)
	if len(m.bootROM) >= 0x100 {
		m.bus.SetBootROM(m.bootROM)
		m.cpu.SetPC(0x0000)
	} else {
		m.cpu.ResetNoBoot()
		m.cpu.SetPC(0x0100)
		m.initPostBootIO()
	}
	if h, herr := cart.ParseHeader(rom); herr == nil {
		m.romTitle = h.Title
	}
	return nil
}

// LoadROMFromFile reads a ROM image from disk and loads it, recording the
// path so battery RAM and save states can default to sibling files.
func (m *Machine) LoadROMFromFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rom: %w", err)
	}
	if err := m.LoadCartridge(rom, m.bootROM); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path last loaded via LoadROMFromFile, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title of the loaded ROM, or "".
func (m *Machine) ROMTitle() string { return m.romTitle }

// initPostBootIO mirrors the IO register state a real DMG boot ROM leaves
// behind, for the no-boot-ROM fast path.
func (m *Machine) initPostBootIO() {
	b := m.bus
	b.Write(0xFF00, 0xCF)
	b.Write(0xFF05, 0x00)
	b.Write(0xFF06, 0x00)
	b.Write(0xFF07, 0x00)
	b.Write(0xFF40, 0x91)
	b.Write(0xFF42, 0x00)
	b.Write(0xFF43, 0x00)
	b.Write(0xFF45, 0x00)
	b.Write(0xFF47, 0xFC)
	b.Write(0xFF48, 0xFF)
	b.Write(0xFF49, 0xFF)
	b.Write(0xFF4A, 0x00)
	b.Write(0xFF4B, 0x00)
	b.Write(0xFFFF, 0x00)
}

// SetSerialWriter attaches a sink for bytes written to the serial port
// (SB/SC), used by test-ROM harnesses and the headless debug launcher.
func (m *Machine) SetSerialWriter(w io.Writer) { m.bus.SetSerialWriter(w) }

// SetButtons updates the joypad state observed by the guest on its next poll.
func (m *Machine) SetButtons(b Buttons) { m.bus.SetJoypadState(b.mask()) }

// Err returns the fatal decode error encountered, if any. Once set, StepFrame
// and StepFrameNoRender stop advancing the CPU.
func (m *Machine) Err() error { return m.cpu.Err }

// runFrame executes cyclesPerFrame worth of CPU cycles, or fewer if a fatal
// decode error halts the core mid-frame.
func (m *Machine) runFrame() {
	budget := cyclesPerFrame
	for budget > 0 {
		if m.cpu.Err != nil {
			return
		}
		c := m.cpu.Step()
		if c == 0 {
			// Err was just set, or a pathological zero-cycle step; bail to
			// avoid spinning.
			if m.cpu.Err != nil {
				return
			}
			c = 4
		}
		budget -= c
	}
}

// StepFrame runs one frame's worth of cycles and refreshes the RGBA
// framebuffer from the PPU's 2-bit index buffer.
func (m *Machine) StepFrame() {
	m.runFrame()
	m.renderRGBA()
}

// StepFrameNoRender runs one frame's worth of cycles without touching the
// RGBA framebuffer, for headless test-ROM harnesses that only care about
// serial output.
func (m *Machine) StepFrameNoRender() {
	m.runFrame()
}

// dmgPalette maps 2-bit PPU shade indices to the classic four-shade green-grey DMG palette.
var dmgPalette = [4][3]byte{
	{0xE0, 0xF8, 0xD0},
	{0x88, 0xC0, 0x70},
	{0x34, 0x68, 0x56},
	{0x08, 0x18, 0x20},
}

func (m *Machine) renderRGBA() {
	idx := m.bus.PPU().Framebuffer()
	for i, shade := range idx {
		rgb := dmgPalette[shade&0x03]
		o := i * 4
		m.fb[o+0] = rgb[0]
		m.fb[o+1] = rgb[1]
		m.fb[o+2] = rgb[2]
		m.fb[o+3] = 0xFF
	}
}

// Framebuffer returns the most recently rendered RGBA frame (160x144*4 bytes).
func (m *Machine) Framebuffer() []byte { return m.fb }

// LoadBattery restores external RAM (and, for MBC3, RTC state) from a
// battery-save image. Returns false if the cartridge has no battery-backed
// RAM to restore.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns the cartridge's battery-backed RAM image, if any.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

type machineState struct {
	CPU  []byte
	Bus  []byte
	RomPath, RomTitle string
}

// SaveStateToFile serializes the full machine state (registers, memory, PPU,
// timer, interrupt controller, cartridge banking) to a gob-encoded file.
func (m *Machine) SaveStateToFile(path string) error {
	var buf bytes.Buffer
	s := machineState{
		CPU: m.cpu.SaveState(), Bus: m.bus.SaveState(),
		RomPath: m.romPath, RomTitle: m.romTitle,
	}
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// LoadStateFromFile restores a machine state previously written by
// SaveStateToFile. The currently loaded cartridge's banking registers are
// overwritten; the ROM bytes themselves are not touched.
func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	var s machineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	m.bus.LoadState(s.Bus)
	m.cpu.LoadState(s.CPU)
	if s.RomPath != "" {
		m.romPath = s.RomPath
	}
	if s.RomTitle != "" {
		m.romTitle = s.RomTitle
	}
	return nil
}

// DefaultSavePath derives the sibling .sav path for a ROM path.
func DefaultSavePath(romPath string) string {
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".sav"
}
