package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester requests an IF bit (0:VBlank, 1:STAT, ...) be raised.
type InterruptRequester func(bit int)

// LineRegisters snapshots the register values that were in effect when a
// given scanline entered pixel-transfer (mode 3), for debugging/tooling and
// for tests that need to observe the internal window-line counter without
// reaching into PPU internals.
type LineRegisters struct {
	WinLine byte // internal window-line counter value used for this scanline
}

// PPU models VRAM/OAM, the LCDC/STAT register block, LY/LYC, and the dot
// clock that drives mode switching. CPU-facing register access goes through
// CPURead/CPUWrite; the renderer consumes VRAM/OAM directly via a private
// bypass so it can compose a line while mode 3 is still blocking CPU access.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41: mode (bits 0-1), LYC coincidence (bit 2), enables (bits 3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot      int  // dot position within the current scanline [0, 456)
	rendered bool // whether the current line has already been composed

	winLineCount int // internal window-line counter, -1 before the window has ever drawn this frame
	lineRegs     [144]LineRegisters

	framebuffer [160 * 144]byte // one 2-bit shade index per pixel, row-major

	req InterruptRequester
}

func New(req InterruptRequester) *PPU {
	return &PPU{req: req, winLineCount: -1}
}

// Framebuffer returns the most recently composed 160x144 shade-index buffer.
func (p *PPU) Framebuffer() *[160 * 144]byte { return &p.framebuffer }

// LineRegs returns the register snapshot captured when scanline ly entered
// pixel transfer. Out-of-range ly returns a zero value.
func (p *PPU) LineRegs(ly int) LineRegisters {
	if ly < 0 || ly >= len(p.lineRegs) {
		return LineRegisters{}
	}
	return p.lineRegs[ly]
}

// vramBypass reads VRAM directly, ignoring the mode-3 CPU lockout so the
// internal renderer can fetch tile data while CPURead would return 0xFF.
type vramBypass struct{ p *PPU }

func (d vramBypass) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return d.p.vram[addr-0x8000]
	}
	return 0xFF
}

func (p *PPU) currentMode() byte { return p.stat & 0x03 }

// CPURead serves VRAM, OAM, and the PPU IO register block; any other address
// reads as 0xFF.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.currentMode() == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.currentMode(); m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F) // bit7 reads fixed 1 on DMG
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and the PPU IO register block; other
// addresses are ignored.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.currentMode() != 3 {
			p.vram[addr-0x8000] = value
		}
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.currentMode(); m != 2 && m != 3 {
			p.oam[addr-0xFE00] = value
		}
	case addr == 0xFF40:
		p.writeLCDC(value)
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.resetToLine0()
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

func (p *PPU) writeLCDC(value byte) {
	prevOn := p.lcdc&0x80 != 0
	p.lcdc = value
	nowOn := p.lcdc&0x80 != 0
	switch {
	case prevOn && !nowOn:
		p.ly, p.dot = 0, 0
		p.setMode(1)
		p.updateLYC()
	case !prevOn && nowOn:
		p.ly, p.dot = 0, 0
		p.winLineCount = -1
		p.setMode(2)
		p.updateLYC()
	}
}

func (p *PPU) resetToLine0() {
	p.ly, p.dot = 0, 0
	p.updateLYC()
	if p.lcdc&0x80 != 0 {
		p.setMode(2)
	}
}

// Tick advances PPU state by the given number of dots (one dot per CPU
// T-cycle at the machine's native clock).
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		p.tickOne()
	}
}

func (p *PPU) tickOne() {
	if p.lcdc&0x80 == 0 {
		return
	}
	p.dot++
	p.setMode(p.modeForDot())
	if p.dot >= 456 {
		p.advanceLine()
	}
}

// modeForDot derives the mode implied by the current dot/LY position,
// independent of the mode actually latched in STAT.
func (p *PPU) modeForDot() byte {
	if p.ly >= 144 {
		return 1
	}
	switch {
	case p.dot < 80:
		return 2
	case p.dot < 80+172:
		return 3
	default:
		return 0
	}
}

func (p *PPU) advanceLine() {
	p.dot = 0
	p.rendered = false
	p.ly++
	switch {
	case p.ly == 144:
		p.enterVBlank()
	case p.ly > 153:
		p.ly = 0
		p.winLineCount = -1
	}
	p.updateLYC()
	if p.ly >= 144 {
		p.setMode(1)
	} else {
		p.setMode(2)
	}
}

func (p *PPU) enterVBlank() {
	if p.req != nil {
		p.req(0) // VBlank IF
	}
	if p.stat&(1<<4) != 0 && p.req != nil {
		p.req(1) // STAT VBlank source
	}
}

func (p *PPU) setMode(mode byte) {
	if p.currentMode() == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0: // HBlank: compose the line once, then fire the HBlank STAT source
		if !p.rendered && p.ly < 144 {
			p.renderScanline()
			p.rendered = true
		}
		if p.stat&(1<<3) != 0 && p.req != nil {
			p.req(1)
		}
	case 2: // OAM scan
		if p.stat&(1<<5) != 0 && p.req != nil {
			p.req(1)
		}
	case 3: // Pixel transfer: latch the window-line state for this scanline.
		p.captureLineWindowState(p.ly)
	}
}

// captureLineWindowState advances the internal window-line counter (if the
// window contributes to this scanline) and snapshots it into lineRegs, the
// way real hardware latches its window-line counter at pixel transfer.
func (p *PPU) captureLineWindowState(ly byte) {
	if visible, _ := p.windowVisibleOnLine(ly); visible {
		p.winLineCount++
	}
	wl := p.winLineCount
	if wl < 0 {
		wl = 0
	}
	p.lineRegs[ly] = LineRegisters{WinLine: byte(wl)}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if p.stat&(1<<6) != 0 && p.req != nil {
			p.req(1)
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// windowVisibleOnLine reports whether the window contributes pixels to
// scanline ly, and the screen-space x at which it starts.
func (p *PPU) windowVisibleOnLine(ly byte) (visible bool, xStart int) {
	if p.lcdc&0x20 == 0 || p.wy > ly {
		return false, 0
	}
	xStart = int(p.wx) - 7
	return xStart < 160, xStart
}

// renderScanline composes background, window, and sprites for the current LY
// into the framebuffer, mapping each pixel's 2-bit color index through
// BGP/OBP0/OBP1 to a shade.
func (p *PPU) renderScanline() {
	mem := vramBypass{p}
	ly := p.ly

	row := p.backgroundRow(mem, ly)
	p.overlayWindowRow(mem, ly, row[:])
	sprIdx, sprPal := p.spriteRow(mem, ly, row[:])

	base := int(ly) * 160
	for x := 0; x < 160; x++ {
		ci, pal := row[x], p.bgp
		if sprIdx[x] != 0 {
			ci = sprIdx[x]
			pal = p.obp0
			if sprPal[x] == 1 {
				pal = p.obp1
			}
		}
		p.framebuffer[base+x] = (pal >> (ci * 2)) & 0x03
	}
}

func (p *PPU) backgroundRow(mem tileSource, ly byte) [160]byte {
	if p.lcdc&0x01 == 0 {
		return [160]byte{}
	}
	mapBase := uint16(0x9800)
	if p.lcdc&0x08 != 0 {
		mapBase = 0x9C00
	}
	return RenderBackgroundScanline(mem, mapBase, p.lcdc&0x10 != 0, p.scx, p.scy, ly)
}

func (p *PPU) overlayWindowRow(mem tileSource, ly byte, row []byte) {
	visible, xStart := p.windowVisibleOnLine(ly)
	if !visible || p.lcdc&0x01 == 0 {
		return
	}
	mapBase := uint16(0x9800)
	if p.lcdc&0x40 != 0 {
		mapBase = 0x9C00
	}
	win := RenderWindowScanline(mem, mapBase, p.lcdc&0x10 != 0, xStart, p.lineRegs[ly].WinLine)
	start := xStart
	if start < 0 {
		start = 0
	}
	for x := start; x < 160; x++ {
		row[x] = win[x]
	}
}

func (p *PPU) spriteRow(mem tileSource, ly byte, bg []byte) (idx, pal [160]byte) {
	if p.lcdc&0x02 == 0 {
		return idx, pal
	}
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	var bgArr [160]byte
	copy(bgArr[:], bg)
	sprites := p.scanOAM(ly, height)
	return composeSpritesCore(mem, sprites, ly, bgArr, height)
}

type ppuState struct {
	VRAM         [0x2000]byte
	OAM          [0xA0]byte
	LCDC         byte
	STAT         byte
	SCY, SCX     byte
	LY, LYC      byte
	BGP          byte
	OBP0, OBP1   byte
	WY, WX       byte
	Dot          int
	Rendered     bool
	WinLineCount int
	Framebuffer  [160 * 144]byte
}

// SaveState encodes the full PPU state (VRAM/OAM, registers, dot-clock
// position, window-line counter, and the last composed framebuffer).
func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	s := ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, Rendered: p.rendered, WinLineCount: p.winLineCount,
		Framebuffer: p.framebuffer,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// LoadState restores state previously produced by SaveState. A short or
// corrupt buffer leaves the PPU unchanged.
func (p *PPU) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.rendered, p.winLineCount, p.framebuffer = s.Dot, s.Rendered, s.WinLineCount, s.Framebuffer
}

func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
