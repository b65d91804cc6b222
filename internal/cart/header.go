package cart

import (
	"encoding/binary"
	"errors"
	"strings"
)

const (
	headerStart = 0x0100
	headerEnd   = 0x014F
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// Header is the decoded cartridge header at ROM offset 0x0100-0x014F.
type Header struct {
	Title          string
	CGBFlag        byte   // 0x0143
	NewLicensee    string // 0x0144-0x0145, meaningful when OldLicensee==0x33
	SGBFlag        byte   // 0x0146
	CartType       byte   // 0x0147
	ROMSizeCode    byte   // 0x0148
	RAMSizeCode    byte   // 0x0149
	Destination    byte   // 0x014A
	OldLicensee    byte   // 0x014B
	ROMVersion     byte   // 0x014C
	HeaderChecksum byte   // 0x014D
	GlobalChecksum uint16 // 0x014E-0x014F

	ROMSizeBytes int
	ROMBanks     int
	RAMSizeBytes int
	CartTypeStr  string
}

// romSizeEntry pairs a header code with its decoded byte count and bank
// count; romSizeTable covers both the regular and the three oversize codes
// some flash-cart tools emit.
type romSizeEntry struct {
	bytes int
	banks int
}

var romSizeTable = map[byte]romSizeEntry{
	0x00: {32 * 1024, 2},
	0x01: {64 * 1024, 4},
	0x02: {128 * 1024, 8},
	0x03: {256 * 1024, 16},
	0x04: {512 * 1024, 32},
	0x05: {1 * 1024 * 1024, 64},
	0x06: {2 * 1024 * 1024, 128},
	0x07: {4 * 1024 * 1024, 256},
	0x08: {8 * 1024 * 1024, 512},
	0x52: {1152 * 1024, 72},
	0x53: {1280 * 1024, 80},
	0x54: {1536 * 1024, 96},
}

var ramSizeTable = map[byte]int{
	0x00: 0,
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// cartFamilies groups cartridge-type codes into the MBC family name used in
// logs; NewCartridge switches on the raw code independently.
var cartFamilies = []struct {
	name  string
	codes []byte
}{
	{"ROM ONLY", []byte{0x00}},
	{"MBC1 (variants)", []byte{0x01, 0x02, 0x03}},
	{"MBC2 (variants)", []byte{0x05, 0x06}},
	{"MBC3 (variants)", []byte{0x0F, 0x10, 0x11, 0x12, 0x13}},
	{"MBC5 (variants)", []byte{0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E}},
}

func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, errors.New("ROM too small to contain header")
	}
	logoMatches(rom) // informational only; malformed logos don't block parsing

	h := &Header{
		Title:          strings.TrimRight(string(rom[0x0134:0x0144]), "\x00"),
		CGBFlag:        rom[0x0143],
		NewLicensee:    string(rom[0x0144:0x0146]),
		SGBFlag:        rom[0x0146],
		CartType:       rom[0x0147],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		Destination:    rom[0x014A],
		OldLicensee:    rom[0x014B],
		ROMVersion:     rom[0x014C],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
	}
	h.ROMSizeBytes, h.ROMBanks = decodeROMSize(h.ROMSizeCode)
	h.RAMSizeBytes = ramSizeTable[h.RAMSizeCode]
	h.CartTypeStr = cartTypeString(h.CartType)
	return h, nil
}

// logoMatches reports whether the Nintendo boot logo at 0x0104 is intact.
// Real hardware halts the boot ROM on mismatch; this emulator neither halts
// nor logs on a mismatch.
func logoMatches(rom []byte) bool {
	for i, want := range nintendoLogo {
		if rom[0x0104+i] != want {
			return false
		}
	}
	return true
}

// HeaderChecksumOK recomputes the Pan Docs header checksum over 0x0134-0x014C
// and compares it against the stored value at 0x014D.
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for _, b := range rom[0x0134 : 0x014D] {
		sum = sum - b - 1
	}
	return sum == rom[0x014D]
}

func decodeROMSize(code byte) (size, banks int) {
	entry, ok := romSizeTable[code]
	if !ok {
		return 0, 0
	}
	return entry.bytes, entry.banks
}

func cartTypeString(code byte) string {
	for _, fam := range cartFamilies {
		for _, c := range fam.codes {
			if c == code {
				return fam.name
			}
		}
	}
	return "Other/unknown"
}
