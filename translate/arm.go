package translate

import (
	"github.com/sarchlab/citrine/insts"
	"github.com/sarchlab/citrine/ir"
)

// visit lowers one decoded instruction. Exactly one case runs per guest
// instruction: it either emits microinstructions and lets the cursor
// advance, or sets a terminal and stops compilation. Anything without an
// IR lowering is handed to the interpreter.
func (t *translator) visit(i *insts.Instruction) {
	switch i.Op {
	// Branch instructions
	case insts.OpB:
		t.branch(i)
	case insts.OpBL:
		t.branchLink(i)
	case insts.OpBLXImm:
		t.branchLinkExchangeImm(i)
	case insts.OpBLXReg:
		t.branchLinkExchangeReg(i)
	case insts.OpBX:
		t.branchExchange(i)

	// Data processing instructions
	case insts.OpADCImm, insts.OpADDImm, insts.OpANDImm, insts.OpBICImm,
		insts.OpCMNImm, insts.OpCMPImm, insts.OpEORImm, insts.OpMOVImm,
		insts.OpMVNImm, insts.OpORRImm, insts.OpRSBImm, insts.OpRSCImm,
		insts.OpSBCImm, insts.OpSUBImm, insts.OpTEQImm, insts.OpTSTImm:
		t.dataProcessingImm(i)
	case insts.OpADCReg, insts.OpADDReg, insts.OpANDReg, insts.OpBICReg,
		insts.OpCMNReg, insts.OpCMPReg, insts.OpEORReg, insts.OpMOVReg,
		insts.OpMVNReg, insts.OpORRReg, insts.OpRSBReg, insts.OpRSCReg,
		insts.OpSBCReg, insts.OpSUBReg, insts.OpTEQReg, insts.OpTSTReg:
		t.dataProcessingReg(i)

	// Load instructions
	case insts.OpLDRImm:
		t.loadWordImm(i)
	case insts.OpLDRReg:
		t.loadWordReg(i)

	// Miscellaneous instructions
	case insts.OpCLZ:
		t.countLeadingZeros(i)
	case insts.OpNOP, insts.OpPLD:
		// Nothing to emit.
	case insts.OpCLREX:
		if t.unconditionalContext() {
			t.ir.Inst0(ir.ClearExclusive)
		}
	case insts.OpSETEND:
		t.setEndianness(i)

	default:
		t.fallbackToInterpreter()
	}
}

// Branch instructions

func (t *translator) branch(i *insts.Instruction) {
	// Decode
	imm32 := signExtend26(i.Imm << 2)

	// Execute
	if !t.conditionPassed(i.Cond) {
		return
	}

	t.branchWritePCConst(t.pc() + imm32)
}

func (t *translator) branchLink(i *insts.Instruction) {
	imm32 := signExtend26(i.Imm << 2)

	if !t.conditionPassed(i.Cond) {
		return
	}

	t.setReg(insts.RegLR, t.ir.ConstU32(t.current.PC+4))
	t.branchWritePCConst(t.pc() + imm32)
}

func (t *translator) branchLinkExchangeImm(i *insts.Instruction) {
	if !t.unconditionalContext() {
		return
	}

	// Always enters Thumb state.
	imm32 := signExtend26(i.Imm << 2)
	if i.H {
		imm32 += 2
	}

	t.setReg(insts.RegLR, t.ir.ConstU32(t.current.PC+4))

	next := t.current
	next.TFlag = true
	next.PC = t.pc() + imm32
	t.ir.SetTerm(ir.LinkBlock{Next: next})
	t.stopCompilation = true
}

func (t *translator) branchLinkExchangeReg(i *insts.Instruction) {
	if !t.conditionPassed(i.Cond) {
		return
	}

	target := t.getReg(i.Rm)
	t.setReg(insts.RegLR, t.ir.ConstU32(t.current.PC+4))
	t.bxWritePC(target)
}

func (t *translator) branchExchange(i *insts.Instruction) {
	if !t.conditionPassed(i.Cond) {
		return
	}

	t.bxWritePC(t.getReg(i.Rm))
}

// Data processing instructions

type dpKind uint8

const (
	dpAND dpKind = iota
	dpEOR
	dpSUB
	dpRSB
	dpADD
	dpADC
	dpSBC
	dpRSC
	dpTST
	dpTEQ
	dpCMP
	dpCMN
	dpORR
	dpMOV
	dpBIC
	dpMVN
)

func dpClassify(op insts.Op) dpKind {
	switch op {
	case insts.OpANDImm, insts.OpANDReg:
		return dpAND
	case insts.OpEORImm, insts.OpEORReg:
		return dpEOR
	case insts.OpSUBImm, insts.OpSUBReg:
		return dpSUB
	case insts.OpRSBImm, insts.OpRSBReg:
		return dpRSB
	case insts.OpADDImm, insts.OpADDReg:
		return dpADD
	case insts.OpADCImm, insts.OpADCReg:
		return dpADC
	case insts.OpSBCImm, insts.OpSBCReg:
		return dpSBC
	case insts.OpRSCImm, insts.OpRSCReg:
		return dpRSC
	case insts.OpTSTImm, insts.OpTSTReg:
		return dpTST
	case insts.OpTEQImm, insts.OpTEQReg:
		return dpTEQ
	case insts.OpCMPImm, insts.OpCMPReg:
		return dpCMP
	case insts.OpCMNImm, insts.OpCMNReg:
		return dpCMN
	case insts.OpORRImm, insts.OpORRReg:
		return dpORR
	case insts.OpMOVImm, insts.OpMOVReg:
		return dpMOV
	case insts.OpMVNImm, insts.OpMVNReg:
		return dpMVN
	case insts.OpBICImm, insts.OpBICReg:
		return dpBIC
	}
	panic("translate: not a data-processing op")
}

func (k dpKind) isCompare() bool {
	return k == dpTST || k == dpTEQ || k == dpCMP || k == dpCMN
}

// isLogical reports whether the carry flag comes from the operand shifter
// rather than from the operation itself.
func (k dpKind) isLogical() bool {
	switch k {
	case dpAND, dpEOR, dpTST, dpTEQ, dpORR, dpMOV, dpBIC, dpMVN:
		return true
	}
	return false
}

func (t *translator) dataProcessingImm(i *insts.Instruction) {
	kind := dpClassify(i.Op)
	setFlags := i.S || kind.isCompare()

	if !t.conditionPassed(i.Cond) {
		return
	}
	if i.S && i.Rd == insts.RegPC && !kind.isCompare() {
		// Flag-setting write to PC restores SPSR; leave it to the
		// interpreter.
		t.fallbackToInterpreter()
		return
	}

	rn := ir.NoValue
	if kind != dpMOV && kind != dpMVN {
		rn = t.getReg(i.Rn) // first operand reads before the shifter operand
	}

	// The rotated immediate supplies the shifter carry for flag-setting
	// logical operations.
	needCarry := setFlags && kind.isLogical() && i.Rotate != 0
	var op2 ir.ValueRef
	if needCarry {
		op2 = t.ir.Inst2(ir.ROR,
			t.ir.ConstU32(i.Imm), t.ir.ConstU32(uint32(i.Rotate)*2), ir.FlagC)
	} else {
		op2 = t.ir.ConstU32(armExpandImm(i.Imm, i.Rotate))
	}

	t.dataProcessing(kind, setFlags, rn, i.Rd, op2)
}

func (t *translator) dataProcessingReg(i *insts.Instruction) {
	kind := dpClassify(i.Op)
	setFlags := i.S || kind.isCompare()

	if !t.conditionPassed(i.Cond) {
		return
	}
	if i.S && i.Rd == insts.RegPC && !kind.isCompare() {
		t.fallbackToInterpreter()
		return
	}

	rn := ir.NoValue
	if kind != dpMOV && kind != dpMVN {
		rn = t.getReg(i.Rn) // first operand reads before the shifter operand
	}

	op2 := t.shiftedRegister(i.Rm, i.Shift, i.ShiftAmount,
		setFlags && kind.isLogical())
	t.dataProcessing(kind, setFlags, rn, i.Rd, op2)
}

// shiftedRegister emits the shifter operand for an immediate-shifted
// register. When needCarry is set, the shift instruction also produces the
// shifter carry-out; an unshifted operand (LSL #0) leaves the carry alone,
// which matches the ARM shifter.
func (t *translator) shiftedRegister(m insts.ArmReg, shift insts.ShiftType, imm5 uint8, needCarry bool) ir.ValueRef {
	rm := t.getReg(m)
	carry := flagsIf(needCarry, ir.FlagC)

	switch shift {
	case insts.ShiftLSL:
		if imm5 == 0 {
			return rm
		}
		return t.ir.Inst2(ir.LSL, rm, t.ir.ConstU32(uint32(imm5)), carry)
	case insts.ShiftLSR:
		amount := uint32(imm5)
		if amount == 0 {
			amount = 32
		}
		return t.ir.Inst2(ir.LSR, rm, t.ir.ConstU32(amount), carry)
	case insts.ShiftASR:
		amount := uint32(imm5)
		if amount == 0 {
			amount = 32
		}
		return t.ir.Inst2(ir.ASR, rm, t.ir.ConstU32(amount), carry)
	default: // ROR, or RRX when the amount is zero
		if imm5 == 0 {
			return t.ir.Inst1(ir.RRX, rm, carry)
		}
		return t.ir.Inst2(ir.ROR, rm, t.ir.ConstU32(uint32(imm5)), carry)
	}
}

func (t *translator) dataProcessing(kind dpKind, setFlags bool, rn ir.ValueRef, d insts.ArmReg, op2 ir.ValueRef) {
	b := t.ir
	nzcv := flagsIf(setFlags, ir.FlagsNZCV)
	nz := flagsIf(setFlags, ir.FlagsNZ)

	var result ir.ValueRef
	switch kind {
	case dpAND:
		result = b.Inst2(ir.And, rn, op2, nz)
	case dpEOR:
		result = b.Inst2(ir.Eor, rn, op2, nz)
	case dpSUB:
		result = b.Inst2(ir.Sub, rn, op2, nzcv)
	case dpRSB:
		result = b.Inst2(ir.Sub, op2, rn, nzcv)
	case dpADD:
		result = b.Inst2(ir.Add, rn, op2, nzcv)
	case dpADC:
		result = b.Inst2(ir.AddWithCarry, rn, op2, nzcv)
	case dpSBC:
		result = b.Inst2(ir.AddWithCarry,
			rn, b.Inst1(ir.Not, op2, ir.FlagsNone), nzcv)
	case dpRSC:
		result = b.Inst2(ir.AddWithCarry,
			op2, b.Inst1(ir.Not, rn, ir.FlagsNone), nzcv)
	case dpTST:
		b.Inst2(ir.And, rn, op2, ir.FlagsNZ)
		return
	case dpTEQ:
		b.Inst2(ir.Eor, rn, op2, ir.FlagsNZ)
		return
	case dpCMP:
		b.Inst2(ir.Sub, rn, op2, ir.FlagsNZCV)
		return
	case dpCMN:
		b.Inst2(ir.Add, rn, op2, ir.FlagsNZCV)
		return
	case dpORR:
		// No Or microoperation; build it from And and Not.
		notN := b.Inst1(ir.Not, rn, ir.FlagsNone)
		notOp2 := b.Inst1(ir.Not, op2, ir.FlagsNone)
		result = b.Inst1(ir.Not,
			b.Inst2(ir.And, notN, notOp2, ir.FlagsNone), ir.FlagsNone)
		if setFlags {
			t.emitNZ(result)
		}
	case dpMOV:
		result = op2
		if setFlags {
			t.emitNZ(result)
		}
	case dpBIC:
		result = b.Inst2(ir.And,
			rn, b.Inst1(ir.Not, op2, ir.FlagsNone), nz)
	case dpMVN:
		result = b.Inst1(ir.Not, op2, ir.FlagsNone)
		if setFlags {
			t.emitNZ(result)
		}
	}

	if d == insts.RegPC {
		t.aluWritePC(result)
	} else {
		t.setReg(d, result)
	}
}

// emitNZ sets N and Z from a value that was produced without flags, by
// adding zero with the write set restricted to NZ.
func (t *translator) emitNZ(v ir.ValueRef) {
	t.ir.Inst2(ir.Add, v, t.ir.ConstU32(0), ir.FlagsNZ)
}

// Load instructions

func (t *translator) loadWordImm(i *insts.Instruction) {
	if !t.conditionPassed(i.Cond) {
		return
	}

	writeback := !i.P || i.W
	if writeback && (i.Rn == insts.RegPC || i.Rn == i.Rd) {
		t.fallbackToInterpreter()
		return
	}

	base := t.getReg(i.Rn)
	offsetAddr := t.addOffset(base, i.Imm, i.U)

	addr := offsetAddr
	if !i.P {
		addr = base
	}

	data := t.ir.Inst1(ir.Read32, addr, ir.FlagsNone)

	if writeback {
		t.setReg(i.Rn, offsetAddr)
	}
	if i.Rd == insts.RegPC {
		t.loadWritePC(data)
	} else {
		t.setReg(i.Rd, data)
	}
}

func (t *translator) loadWordReg(i *insts.Instruction) {
	if !t.conditionPassed(i.Cond) {
		return
	}

	writeback := !i.P || i.W
	if i.Rm == insts.RegPC || (writeback && (i.Rn == insts.RegPC || i.Rn == i.Rd)) {
		t.fallbackToInterpreter()
		return
	}

	base := t.getReg(i.Rn)
	offset := t.shiftedRegister(i.Rm, i.Shift, i.ShiftAmount, false)

	op := ir.Add
	if !i.U {
		op = ir.Sub
	}
	offsetAddr := t.ir.Inst2(op, base, offset, ir.FlagsNone)

	addr := offsetAddr
	if !i.P {
		addr = base
	}

	data := t.ir.Inst1(ir.Read32, addr, ir.FlagsNone)

	if writeback {
		t.setReg(i.Rn, offsetAddr)
	}
	if i.Rd == insts.RegPC {
		t.loadWritePC(data)
	} else {
		t.setReg(i.Rd, data)
	}
}

// addOffset emits base plus-or-minus an immediate, folding the addition
// when the base is already a constant (PC-relative literal loads).
func (t *translator) addOffset(base ir.ValueRef, imm uint32, up bool) ir.ValueRef {
	if imm == 0 {
		return base
	}
	if t.ir.Block.OpOf(base) == ir.ConstU32 {
		v := t.ir.Block.Imm(base)
		if up {
			return t.ir.ConstU32(v + imm)
		}
		return t.ir.ConstU32(v - imm)
	}
	op := ir.Add
	if !up {
		op = ir.Sub
	}
	return t.ir.Inst2(op, base, t.ir.ConstU32(imm), ir.FlagsNone)
}

// Miscellaneous instructions

func (t *translator) countLeadingZeros(i *insts.Instruction) {
	if !t.conditionPassed(i.Cond) {
		return
	}
	if i.Rd == insts.RegPC || i.Rm == insts.RegPC {
		t.fallbackToInterpreter()
		return
	}

	t.setReg(i.Rd,
		t.ir.Inst1(ir.CountLeadingZeros, t.getReg(i.Rm), ir.FlagsNone))
}

func (t *translator) setEndianness(i *insts.Instruction) {
	if !t.unconditionalContext() {
		return
	}

	// Re-dispatch the rest of the page with the new data endianness folded
	// into the location.
	next := t.current
	next.PC += 4
	next.EFlag = i.BigEndian
	t.ir.SetTerm(ir.LinkBlock{Next: next})
	t.stopCompilation = true
}
