package cart

// ROMOnly is the no-MBC cartridge: a single fixed 32KiB ROM image and no
// external RAM. Bank-control writes and RAM accesses are simply ignored.
type ROMOnly struct {
	rom []byte
}

func NewROMOnly(rom []byte) *ROMOnly {
	return &ROMOnly{rom: rom}
}

func (c *ROMOnly) Read(addr uint16) byte {
	if addr < 0x8000 {
		if int(addr) < len(c.rom) {
			return c.rom[addr]
		}
	}
	return 0xFF
}

// Write is a no-op: ROM-only cartridges expose no banking registers and no
// external RAM to write through.
func (c *ROMOnly) Write(addr uint16, value byte) {}

func (c *ROMOnly) SaveState() []byte     { return nil }
func (c *ROMOnly) LoadState(data []byte) {}
