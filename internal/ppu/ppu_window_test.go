package ppu

import "testing"

// tickLines advances the PPU by n full scanlines (456 dots each).
func tickLines(p *PPU, n int) { p.Tick(456 * n) }

func TestWindowLineCounterStartsAtWYAndIncrements(t *testing.T) {
	p := New(nil)
	p.CPUWrite(0xFF40, 0x80)           // LCD on
	p.CPUWrite(0xFF40, 0x80|0x01)      // BG on
	p.CPUWrite(0xFF40, 0x80|0x01|0x20) // window on
	p.CPUWrite(0xFF4A, 10)             // WY=10
	p.CPUWrite(0xFF4B, 7)              // WX=7 -> window starts at x=0

	tickLines(p, 10)
	if ly := p.CPURead(0xFF44); ly != 10 {
		t.Fatalf("expected LY=10, got %d", ly)
	}
	p.Tick(80) // enter mode 3 so the line's regs are captured
	lr := p.LineRegs(10)
	if lr.WinLine != 0 {
		t.Fatalf("expected WinLine=0 at WY, got %d", lr.WinLine)
	}

	tickLines(p, 1)
	p.Tick(80)
	lr2 := p.LineRegs(11)
	if lr2.WinLine != 1 {
		t.Fatalf("expected WinLine=1 at WY+1, got %d", lr2.WinLine)
	}
}

func TestWindowHiddenWhenWXBeyondVisibleRange(t *testing.T) {
	p := New(nil)
	p.CPUWrite(0xFF40, 0x80|0x01|0x20)
	p.CPUWrite(0xFF4A, 5)   // WY=5
	p.CPUWrite(0xFF4B, 200) // WX far past the visible 160px line
	tickLines(p, 8)
	for y := 5; y <= 12; y++ {
		if p.LineRegs(y).WinLine != 0 {
			t.Fatalf("expected WinLine=0 at y=%d when WX>=167", y)
		}
	}
}
