package ppu

// tileRowCursor walks tilemap entries left to right within one map row,
// advancing the fetcher and refilling the queue whenever it runs dry. Both
// background and window scanline rendering share this walk; they differ
// only in their starting tile column and how much of the 160-pixel line
// they populate.
type tileRowCursor struct {
	fetcher   *tileRowFetcher
	queue     *pixelQueue
	mapBase   uint16
	mapRow    uint16
	tileCol   uint16
	unsigned  bool
	rowInTile byte
}

func newTileRowCursor(mem tileSource, q *pixelQueue, mapBase, mapRow uint16, unsigned bool, rowInTile byte, startCol uint16) *tileRowCursor {
	cur := &tileRowCursor{
		fetcher: newTileRowFetcher(mem, q), queue: q,
		mapBase: mapBase, mapRow: mapRow, unsigned: unsigned, rowInTile: rowInTile,
		tileCol: startCol,
	}
	cur.loadTile()
	return cur
}

func (cur *tileRowCursor) entryAddr() uint16 {
	return cur.mapBase + cur.mapRow*32 + cur.tileCol
}

func (cur *tileRowCursor) loadTile() {
	cur.fetcher.Configure(cur.mapBase, cur.unsigned, cur.entryAddr(), cur.rowInTile)
	cur.fetcher.Fetch()
}

// next returns the next pixel, fetching the following tilemap column (with
// 32-tile wraparound) once the queue empties.
func (cur *tileRowCursor) next() byte {
	if cur.queue.Len() == 0 {
		cur.tileCol = (cur.tileCol + 1) & 31
		cur.loadTile()
	}
	px, _ := cur.queue.Pop()
	return px
}

// RenderBackgroundScanline renders 160 background pixels for scanline ly,
// applying SCX/SCY scroll and wrapping at the 32x32 tile map's edges.
func RenderBackgroundScanline(mem tileSource, mapBase uint16, unsignedAddr bool, scx, scy, ly byte) [160]byte {
	var out [160]byte

	bgY := uint16(ly) + uint16(scy)
	rowInTile := byte(bgY & 7)
	mapRow := (bgY >> 3) & 31

	scrolledX := uint16(scx)
	startCol := (scrolledX >> 3) & 31
	discard := int(scrolledX & 7)

	var q pixelQueue
	cur := newTileRowCursor(mem, &q, mapBase, mapRow, unsignedAddr, rowInTile, startCol)
	for i := 0; i < discard; i++ {
		cur.next()
	}
	for x := 0; x < 160; x++ {
		out[x] = cur.next()
	}
	return out
}

// RenderWindowScanline renders the window layer for a scanline, filling
// pixels from wxStart (WX-7) onward; winLine is the vertical line within
// the window itself. Pixels before wxStart are left 0 for the caller to
// blend with the background layer.
func RenderWindowScanline(mem tileSource, mapBase uint16, unsignedAddr bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= 160 {
		return out
	}
	if wxStart < 0 {
		wxStart = 0
	}

	mapRow := (uint16(winLine) >> 3) & 31
	rowInTile := winLine & 7

	var q pixelQueue
	cur := newTileRowCursor(mem, &q, mapBase, mapRow, unsignedAddr, rowInTile, 0)
	for x := wxStart; x < 160; x++ {
		out[x] = cur.next()
	}
	return out
}
