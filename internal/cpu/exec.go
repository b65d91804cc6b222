package cpu

// execute interprets a decoded Instruction and returns the cycle count it
// consumed. Each kind reads its operands generically through the operand/
// reg16/condition/addrMode accessors in operand.go rather than through a
// dedicated code path per opcode.
func (c *CPU) execute(inst Instruction) int {
	switch inst.Kind {
	case kNop:
		return 4
	case kStop:
		c.fetch8() // mandatory (ignored) operand byte
		c.stopped = true
		return 4
	case kHalt:
		c.halted = true
		return 4

	case kLD8:
		v := c.getOperand8(inst.Src)
		c.setOperand8(inst.Dst, v)
		return ld8Cycles(inst.Dst, inst.Src)

	case kLD16Imm:
		c.setReg16(inst.Reg16, c.fetch16())
		return 12
	case kLDAddrSP:
		addr := c.fetch16()
		c.write16(addr, c.SP)
		return 20
	case kLDAcc:
		addr := c.resolveAddr(inst.AddrMode)
		if inst.Store {
			c.write8(addr, c.A)
		} else {
			c.A = c.read8(addr)
		}
		return addrModeCycles(inst.AddrMode)
	case kLDHLSPOff:
		return c.execLDHLSPOff()
	case kLDSPHL:
		c.SP = c.getHL()
		return 8
	case kAddSPOff:
		return c.execAddSPOff()

	case kAdd, kAdc, kSub, kSbc, kAnd, kXor, kOr, kCp:
		return c.execALU(inst)

	case kInc8:
		return c.execIncDec8(inst.Dst, true)
	case kDec8:
		return c.execIncDec8(inst.Dst, false)
	case kInc16:
		c.setReg16(inst.Reg16, c.getReg16(inst.Reg16)+1)
		return 8
	case kDec16:
		c.setReg16(inst.Reg16, c.getReg16(inst.Reg16)-1)
		return 8
	case kAddHL16:
		return c.execAddHL16(inst.Reg16)

	case kRLCA, kRRCA, kRLA, kRRA:
		c.execRotateA(inst.Kind)
		return 4
	case kDAA:
		c.execDAA()
		return 4
	case kCPL:
		c.A = ^c.A
		c.F = (c.F & (flagZ | flagC)) | flagN | flagH
		return 4
	case kSCF:
		c.F = (c.F & flagZ) | flagC
		return 4
	case kCCF:
		if (c.F & flagC) != 0 {
			c.F &^= flagC
		} else {
			c.F |= flagC
		}
		c.F &= (flagZ | flagC)
		return 4

	case kJP:
		return c.execJP(inst.Cond)
	case kJPHL:
		c.PC = c.getHL()
		return 4
	case kJR:
		return c.execJR(inst.Cond)
	case kCall:
		return c.execCall(inst.Cond)
	case kRet:
		return c.execRet(inst.Cond)
	case kRetI:
		c.PC = c.pop16()
		c.IME = true
		return 16
	case kRst:
		c.push16(c.PC)
		c.PC = uint16(inst.Vector)
		return 16

	case kPush:
		c.push16(c.getReg16(inst.Reg16))
		return 16
	case kPop:
		c.setReg16(inst.Reg16, c.pop16())
		return 12

	case kDI:
		c.IME = false
		c.eiPending = false
		return 4
	case kEI:
		c.eiPending = true
		return 4

	case kCB:
		return c.execCB()
	}
	return 0
}

func (c *CPU) execALU(inst Instruction) int {
	v := c.getOperand8(inst.Src)
	var r byte
	var z, n, h, cy bool
	switch inst.Kind {
	case kAdd:
		r, z, n, h, cy = c.add8(c.A, v)
		c.A = r
	case kAdc:
		r, z, n, h, cy = c.adc8(c.A, v, (c.F&flagC) != 0)
		c.A = r
	case kSub:
		r, z, n, h, cy = c.sub8(c.A, v)
		c.A = r
	case kSbc:
		r, z, n, h, cy = c.sbc8(c.A, v, (c.F&flagC) != 0)
		c.A = r
	case kAnd:
		r, z, n, h, cy = c.and8(c.A, v)
		c.A = r
	case kXor:
		r, z, n, h, cy = c.xor8(c.A, v)
		c.A = r
	case kOr:
		r, z, n, h, cy = c.or8(c.A, v)
		c.A = r
	case kCp:
		z, n, h, cy = c.cp8(c.A, v)
	}
	c.setZNHC(z, n, h, cy)

	if inst.Src.kind == operandImm8 {
		return 8
	}
	if inst.Src.reg == rHL {
		return 8
	}
	return 4
}

func (c *CPU) execIncDec8(dst operand, isInc bool) int {
	old := c.getOperand8(dst)
	var v byte
	var halfCarry bool
	if isInc {
		v = old + 1
		halfCarry = (old & 0x0F) == 0x0F
	} else {
		v = old - 1
		halfCarry = (old & 0x0F) == 0x00
	}
	c.setOperand8(dst, v)
	c.setZNHC(v == 0, !isInc, halfCarry, (c.F&flagC) != 0)
	if dst.reg == rHL {
		return 12
	}
	return 4
}

func (c *CPU) execAddHL16(r reg16) int {
	hl := c.getHL()
	val := c.getReg16(r)
	res := uint32(hl) + uint32(val)
	h := ((hl & 0x0FFF) + (val & 0x0FFF)) > 0x0FFF
	c.setHL(uint16(res))
	c.setZNHC((c.F&flagZ) != 0, false, h, res > 0xFFFF)
	return 8
}

func (c *CPU) execRotateA(k kind) {
	switch k {
	case kRLCA:
		cval := (c.A >> 7) & 1
		c.A = (c.A << 1) | cval
		c.setZNHC(false, false, false, cval == 1)
	case kRRCA:
		cval := c.A & 1
		c.A = (c.A >> 1) | (cval << 7)
		c.setZNHC(false, false, false, cval == 1)
	case kRLA:
		cval := (c.A >> 7) & 1
		cin := byte(0)
		if (c.F & flagC) != 0 {
			cin = 1
		}
		c.A = (c.A << 1) | cin
		c.setZNHC(false, false, false, cval == 1)
	case kRRA:
		cval := c.A & 1
		cin := byte(0)
		if (c.F & flagC) != 0 {
			cin = 1
		}
		c.A = (c.A >> 1) | (cin << 7)
		c.setZNHC(false, false, false, cval == 1)
	}
}

func (c *CPU) execDAA() {
	a := c.A
	cf := (c.F & flagC) != 0
	if (c.F & flagN) == 0 { // after addition
		if cf || a > 0x99 {
			a += 0x60
			cf = true
		}
		if (c.F&flagH) != 0 || (a&0x0F) > 9 {
			a += 0x06
		}
	} else { // after subtraction
		if cf {
			a -= 0x60
		}
		if (c.F & flagH) != 0 {
			a -= 0x06
		}
	}
	c.A = a
	c.setZNHC(c.A == 0, (c.F&flagN) != 0, false, cf)
}

func (c *CPU) execJP(cond condition) int {
	addr := c.fetch16()
	if c.condTrue(cond) {
		c.PC = addr
		return 16
	}
	return 12
}

func (c *CPU) execJR(cond condition) int {
	off := int8(c.fetch8())
	if c.condTrue(cond) {
		c.PC = uint16(int32(c.PC) + int32(off))
		return 12
	}
	return 8
}

func (c *CPU) execCall(cond condition) int {
	addr := c.fetch16()
	if c.condTrue(cond) {
		c.push16(c.PC)
		c.PC = addr
		return 24
	}
	return 12
}

func (c *CPU) execRet(cond condition) int {
	if cond == condNone {
		c.PC = c.pop16()
		return 16
	}
	if c.condTrue(cond) {
		c.PC = c.pop16()
		return 20
	}
	return 8
}

func (c *CPU) execLDHLSPOff() int {
	off := int8(c.fetch8())
	res := uint16(int32(int16(c.SP)) + int32(off))
	low := byte(c.SP & 0xFF)
	_, _, _, h, cy := c.add8(low, byte(off))
	c.setHL(res)
	c.setZNHC(false, false, h, cy)
	return 12
}

func (c *CPU) execAddSPOff() int {
	off := int8(c.fetch8())
	low := byte(c.SP & 0xFF)
	_, _, _, h, cy := c.add8(low, byte(off))
	res := uint16(int32(int16(c.SP)) + int32(off))
	c.SP = res
	c.setZNHC(false, false, h, cy)
	return 16
}
