package ppu

import "testing"

func TestSpriteCompositingRespectsBGPriorityFlag(t *testing.T) {
	mem := mockVRAM{}
	// Single opaque leftmost pixel: lo bit7 set, hi clear -> color index 1.
	base := uint16(0x8000)
	mem[base+0] = 0x80
	mem[base+1] = 0x00
	// OAM coordinates: screen x = X-8, top line = Y-16, so this sprite's
	// first row lands on ly=5 starting at x=10.
	sprites := []Sprite{{X: 18, Y: 21, Tile: 0, Attr: 0, OAMIndex: 0}}
	var bgci [160]byte
	out := ComposeSpriteLine(mem, sprites, 5, bgci, false)
	if out[10] == 0 {
		t.Fatalf("expected sprite pixel at x=10")
	}

	sprites[0].Attr = 1 << 7 // behind-BG priority
	bgci[10] = 1
	out = ComposeSpriteLine(mem, sprites, 5, bgci, false)
	if out[10] != 0 {
		t.Fatalf("expected sprite pixel to be hidden behind BG")
	}
}

func TestSpriteCompositingBreaksOverlapTiesByX(t *testing.T) {
	mem := mockVRAM{}
	// Two sprites overlapping at x=20, both fully opaque: tile 0 draws color
	// 1, tile 1 draws color 2. OAM X=27/28 puts them at screen x 19 and 20.
	base := uint16(0x8000)
	mem[base+0] = 0xFF
	mem[base+1] = 0x00
	mem[base+16] = 0x00
	mem[base+17] = 0xFF
	left := Sprite{X: 27, Y: 16, Tile: 0, Attr: 0, OAMIndex: 5}
	right := Sprite{X: 28, Y: 16, Tile: 1, Attr: 0, OAMIndex: 3}
	var bgci [160]byte
	out := ComposeSpriteLine(mem, []Sprite{left, right}, 0, bgci, false)
	if out[20] == 0 {
		t.Fatalf("expected a sprite pixel at x=20")
	}
	if out[20] != 1 {
		t.Fatalf("x=20 got color %d, want 1 from the lower-X sprite", out[20])
	}
}
