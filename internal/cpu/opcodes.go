package cpu

// opcodeTable maps every unprefixed opcode byte to its decoded Instruction.
// It is built once in init() from the SM83's regular bit-field structure
// (the reg8 encoding shared by the LD and ALU groups, the RST vector
// spacing, the cc/JR/CALL/RET families) rather than spelled out opcode by
// opcode, so the regular structure of the encoding is visible in the code
// that builds the table instead of being re-derived by a reader scanning
// 256 case labels.
var opcodeTable [256]Instruction

// regByIndex is the SM83's 3-bit register field ordering, shared by the
// LD r,r' block, the INC/DEC r block and the ALU-with-register block.
var regByIndex = [8]reg8{rB, rC, rD, rE, rH, rL, rHL, rA}

func init() {
	for i := range opcodeTable {
		opcodeTable[i] = Instruction{Kind: kIllegal}
	}

	opcodeTable[0x00] = Instruction{Kind: kNop}
	opcodeTable[0x10] = Instruction{Kind: kStop}
	opcodeTable[0x76] = Instruction{Kind: kHalt}

	// LD r,d8 / LD (HL),d8
	ldImm8 := [8]byte{0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E}
	for i, op := range ldImm8 {
		opcodeTable[op] = Instruction{Kind: kLD8, Dst: regOperand(regByIndex[i]), Src: imm8Operand}
	}

	// LD r,r' / LD (HL),r / LD r,(HL), 0x40-0x7F excluding the HALT slot.
	for op := 0x40; op <= 0x7F; op++ {
		if op == 0x76 {
			continue
		}
		dst := regByIndex[(op>>3)&7]
		src := regByIndex[op&7]
		opcodeTable[op] = Instruction{Kind: kLD8, Dst: regOperand(dst), Src: regOperand(src)}
	}

	// ALU, register sources: 0x80-0xBF in 8 groups of 8.
	aluKinds := [8]kind{kAdd, kAdc, kSub, kSbc, kAnd, kXor, kOr, kCp}
	for group, k := range aluKinds {
		base := 0x80 + group*8
		for i := 0; i < 8; i++ {
			opcodeTable[base+i] = Instruction{Kind: k, Src: regOperand(regByIndex[i])}
		}
	}
	// ALU, immediate operand.
	aluImm := [8]byte{0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE}
	for i, op := range aluImm {
		opcodeTable[op] = Instruction{Kind: aluKinds[i], Src: imm8Operand}
	}

	// INC r / DEC r / INC (HL) / DEC (HL), stepping by 8 across the 0x04 row.
	incOps := [8]byte{0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x34, 0x3C}
	decOps := [8]byte{0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x35, 0x3D}
	for i := 0; i < 8; i++ {
		opcodeTable[incOps[i]] = Instruction{Kind: kInc8, Dst: regOperand(regByIndex[i])}
		opcodeTable[decOps[i]] = Instruction{Kind: kDec8, Dst: regOperand(regByIndex[i])}
	}

	// 16-bit register pairs used by LD rr,d16 / INC rr / DEC rr / ADD HL,rr / PUSH,POP.
	pairsSP := [4]reg16{rBC, rDE, rHLReg, rSPReg}
	ld16Ops := [4]byte{0x01, 0x11, 0x21, 0x31}
	inc16Ops := [4]byte{0x03, 0x13, 0x23, 0x33}
	dec16Ops := [4]byte{0x0B, 0x1B, 0x2B, 0x3B}
	addHL16Ops := [4]byte{0x09, 0x19, 0x29, 0x39}
	for i, r := range pairsSP {
		opcodeTable[ld16Ops[i]] = Instruction{Kind: kLD16Imm, Reg16: r}
		opcodeTable[inc16Ops[i]] = Instruction{Kind: kInc16, Reg16: r}
		opcodeTable[dec16Ops[i]] = Instruction{Kind: kDec16, Reg16: r}
		opcodeTable[addHL16Ops[i]] = Instruction{Kind: kAddHL16, Reg16: r}
	}

	pairsAF := [4]reg16{rBC, rDE, rHLReg, rAFReg}
	pushOps := [4]byte{0xC5, 0xD5, 0xE5, 0xF5}
	popOps := [4]byte{0xC1, 0xD1, 0xE1, 0xF1}
	for i, r := range pairsAF {
		opcodeTable[pushOps[i]] = Instruction{Kind: kPush, Reg16: r}
		opcodeTable[popOps[i]] = Instruction{Kind: kPop, Reg16: r}
	}

	opcodeTable[0x08] = Instruction{Kind: kLDAddrSP}

	// Accumulator <-> memory, in matched load/store pairs.
	accModes := []struct {
		mode     addrMode
		loadOp   byte
		storeOp  byte
		hasStore bool
	}{
		{addrBC, 0x0A, 0x02, true},
		{addrDE, 0x1A, 0x12, true},
		{addrHLInc, 0x2A, 0x22, true},
		{addrHLDec, 0x3A, 0x32, true},
		{addrHighImm8, 0xF0, 0xE0, true},
		{addrHighC, 0xF2, 0xE2, true},
		{addrImm16, 0xFA, 0xEA, true},
	}
	for _, e := range accModes {
		opcodeTable[e.loadOp] = Instruction{Kind: kLDAcc, AddrMode: e.mode, Store: false}
		if e.hasStore {
			opcodeTable[e.storeOp] = Instruction{Kind: kLDAcc, AddrMode: e.mode, Store: true}
		}
	}

	opcodeTable[0x07] = Instruction{Kind: kRLCA}
	opcodeTable[0x0F] = Instruction{Kind: kRRCA}
	opcodeTable[0x17] = Instruction{Kind: kRLA}
	opcodeTable[0x1F] = Instruction{Kind: kRRA}
	opcodeTable[0x27] = Instruction{Kind: kDAA}
	opcodeTable[0x2F] = Instruction{Kind: kCPL}
	opcodeTable[0x37] = Instruction{Kind: kSCF}
	opcodeTable[0x3F] = Instruction{Kind: kCCF}

	opcodeTable[0xC3] = Instruction{Kind: kJP, Cond: condNone}
	opcodeTable[0xE9] = Instruction{Kind: kJPHL}
	opcodeTable[0x18] = Instruction{Kind: kJR, Cond: condNone}

	conds := [4]condition{condNZ, condZ, condNC, condC}
	jrCondOps := [4]byte{0x20, 0x28, 0x30, 0x38}
	jpCondOps := [4]byte{0xC2, 0xCA, 0xD2, 0xDA}
	callCondOps := [4]byte{0xC4, 0xCC, 0xD4, 0xDC}
	retCondOps := [4]byte{0xC0, 0xC8, 0xD0, 0xD8}
	for i, cond := range conds {
		opcodeTable[jrCondOps[i]] = Instruction{Kind: kJR, Cond: cond}
		opcodeTable[jpCondOps[i]] = Instruction{Kind: kJP, Cond: cond}
		opcodeTable[callCondOps[i]] = Instruction{Kind: kCall, Cond: cond}
		opcodeTable[retCondOps[i]] = Instruction{Kind: kRet, Cond: cond}
	}

	opcodeTable[0xCD] = Instruction{Kind: kCall, Cond: condNone}
	opcodeTable[0xC9] = Instruction{Kind: kRet, Cond: condNone}
	opcodeTable[0xD9] = Instruction{Kind: kRetI}

	rstOps := [8]byte{0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF}
	for i, op := range rstOps {
		opcodeTable[op] = Instruction{Kind: kRst, Vector: byte(i * 8)}
	}

	opcodeTable[0xF8] = Instruction{Kind: kLDHLSPOff}
	opcodeTable[0xF9] = Instruction{Kind: kLDSPHL}
	opcodeTable[0xE8] = Instruction{Kind: kAddSPOff}

	opcodeTable[0xF3] = Instruction{Kind: kDI}
	opcodeTable[0xFB] = Instruction{Kind: kEI}

	opcodeTable[0xCB] = Instruction{Kind: kCB}
}
