package cpu

// reg8 names an 8-bit operand location using the SM83's own 3-bit register
// encoding (0..5 = B,C,D,E,H,L; 6 = (HL) indirect; 7 = A). Re-using this
// encoding lets the table builder in opcodes.go derive dst/src directly from
// opcode bit fields instead of hand-listing every combination.
type reg8 byte

const (
	rB reg8 = iota
	rC
	rD
	rE
	rH
	rL
	rHL // (HL) indirect
	rA
)

// reg16 names a 16-bit register pair operand.
type reg16 byte

const (
	rBC reg16 = iota
	rDE
	rHLReg
	rSPReg
	rAFReg
)

// operandKind distinguishes a register/indirect operand from an immediate
// fetched from the instruction stream.
type operandKind byte

const (
	operandReg operandKind = iota
	operandImm8
)

// operand is the payload half of the tagged-variant dispatch: it names an
// 8-bit value's shape (RegByte/HLMemByte vs Imm8) without saying what
// instruction uses it.
type operand struct {
	kind operandKind
	reg  reg8
}

func regOperand(r reg8) operand { return operand{kind: operandReg, reg: r} }

var imm8Operand = operand{kind: operandImm8}

// condition names a flag test gating a branch instruction, or condNone for
// an unconditional branch.
type condition byte

const (
	condNone condition = iota
	condNZ
	condZ
	condNC
	condC
)

// addrMode names an addressing form used by the accumulator load/store
// group (LD A,(...) and LD (...),A in all their 8080-inherited shapes).
type addrMode byte

const (
	addrBC addrMode = iota
	addrDE
	addrHLInc
	addrHLDec
	addrHighImm8 // LDH (a8),A / A,(a8)
	addrHighC    // LD (C),A / A,(C)
	addrImm16    // LD (a16),A / A,(a16)
)

// kind tags which family of semantics an Instruction executes; execute
// (exec.go) switches on it and reads the operand/condition/vector payload
// generically instead of hard-coding one branch per opcode.
type kind byte

const (
	kIllegal kind = iota
	kNop
	kStop
	kHalt
	kLD8
	kLD16Imm
	kLDAddrSP
	kLDAcc // accumulator <-> memory, direction given by Instruction.Store
	kLDHLSPOff
	kLDSPHL
	kAddSPOff
	kAdd
	kAdc
	kSub
	kSbc
	kAnd
	kXor
	kOr
	kCp
	kInc8
	kDec8
	kInc16
	kDec16
	kAddHL16
	kRLCA
	kRRCA
	kRLA
	kRRA
	kDAA
	kCPL
	kSCF
	kCCF
	kJP
	kJPHL
	kJR
	kCall
	kRet
	kRetI
	kRst
	kPush
	kPop
	kDI
	kEI
	kCB
)

// Instruction is the decoded payload for one opcode: a kind tag plus the
// operand shapes (RegByte/Imm8/HLMemByte collapse into operand; Condition
// and Vector are named fields) that execute() interprets.
type Instruction struct {
	Kind     kind
	Dst      operand
	Src      operand
	Reg16    reg16
	Cond     condition
	Vector   byte
	AddrMode addrMode
	Store    bool // true: write A to AddrMode's address; false: load A from it
}

func (c *CPU) getReg8(r reg8) byte {
	switch r {
	case rB:
		return c.B
	case rC:
		return c.C
	case rD:
		return c.D
	case rE:
		return c.E
	case rH:
		return c.H
	case rL:
		return c.L
	case rHL:
		return c.read8(c.getHL())
	case rA:
		return c.A
	}
	return 0
}

func (c *CPU) setReg8(r reg8, v byte) {
	switch r {
	case rB:
		c.B = v
	case rC:
		c.C = v
	case rD:
		c.D = v
	case rE:
		c.E = v
	case rH:
		c.H = v
	case rL:
		c.L = v
	case rHL:
		c.write8(c.getHL(), v)
	case rA:
		c.A = v
	}
}

func (c *CPU) getReg16(r reg16) uint16 {
	switch r {
	case rBC:
		return c.getBC()
	case rDE:
		return c.getDE()
	case rHLReg:
		return c.getHL()
	case rSPReg:
		return c.SP
	case rAFReg:
		return c.getAF()
	}
	return 0
}

func (c *CPU) setReg16(r reg16, v uint16) {
	switch r {
	case rBC:
		c.setBC(v)
	case rDE:
		c.setDE(v)
	case rHLReg:
		c.setHL(v)
	case rSPReg:
		c.SP = v
	case rAFReg:
		c.setAF(v)
	}
}

// getOperand8 reads an 8-bit operand, fetching from the instruction stream
// for an immediate operand.
func (c *CPU) getOperand8(o operand) byte {
	if o.kind == operandImm8 {
		return c.fetch8()
	}
	return c.getReg8(o.reg)
}

func (c *CPU) setOperand8(o operand, v byte) { c.setReg8(o.reg, v) }

// ld8Cycles derives an LD r,r'/LD r,d8/LD (HL),d8 instruction's cycle cost
// from its operand shapes: a base 4, +4 for an immediate source, +4 for
// either side touching (HL).
func ld8Cycles(dst, src operand) int {
	cycles := 4
	if src.kind == operandImm8 {
		cycles += 4
	}
	if (dst.kind == operandReg && dst.reg == rHL) || (src.kind == operandReg && src.reg == rHL) {
		cycles += 4
	}
	return cycles
}

func (c *CPU) condTrue(cond condition) bool {
	switch cond {
	case condNone:
		return true
	case condNZ:
		return (c.F & flagZ) == 0
	case condZ:
		return (c.F & flagZ) != 0
	case condNC:
		return (c.F & flagC) == 0
	case condC:
		return (c.F & flagC) != 0
	}
	return false
}

// resolveAddr computes the memory address for an accumulator load/store,
// applying HL+/HL- post-increment/decrement and consuming any immediate
// bytes the mode requires.
func (c *CPU) resolveAddr(mode addrMode) uint16 {
	switch mode {
	case addrBC:
		return c.getBC()
	case addrDE:
		return c.getDE()
	case addrHLInc:
		hl := c.getHL()
		c.setHL(hl + 1)
		return hl
	case addrHLDec:
		hl := c.getHL()
		c.setHL(hl - 1)
		return hl
	case addrHighImm8:
		return 0xFF00 + uint16(c.fetch8())
	case addrHighC:
		return 0xFF00 + uint16(c.C)
	case addrImm16:
		return c.fetch16()
	}
	return 0
}

func addrModeCycles(mode addrMode) int {
	switch mode {
	case addrHighImm8:
		return 12
	case addrImm16:
		return 16
	default:
		return 8
	}
}
