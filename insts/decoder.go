// Package insts provides ARMv6 instruction definitions and decoding.
package insts

import "fmt"

// matcher matches a 32-bit instruction word against a bit pattern and
// extracts its operand fields.
//
// Patterns are 32-character strings, most significant bit first. '0' and
// '1' are fixed bits, '-' is a don't-care bit, and each contiguous run of
// any other character is one operand field. Fields are numbered left to
// right; assign functions consume them positionally.
type matcher struct {
	mask     uint32
	expected uint32

	fieldMasks  []uint32
	fieldShifts []uint
}

func newMatcher(format string) matcher {
	if len(format) != 32 {
		panic(fmt.Sprintf("insts: pattern %q is not 32 bits", format))
	}

	var m matcher
	var ch byte

	for i := 0; i < 32; i++ {
		bit := uint32(1) << (31 - i)

		switch format[i] {
		case '0':
			m.mask |= bit
			ch = 0
			continue
		case '1':
			m.mask |= bit
			m.expected |= bit
			ch = 0
			continue
		case '-':
			ch = 0
			continue
		}

		if format[i] != ch {
			ch = format[i]
			m.fieldMasks = append(m.fieldMasks, 0)
			m.fieldShifts = append(m.fieldShifts, 0)
		}

		last := len(m.fieldMasks) - 1
		m.fieldMasks[last] |= bit
		m.fieldShifts[last] = uint(31 - i)
	}

	return m
}

func (m *matcher) match(word uint32) bool {
	return word&m.mask == m.expected
}

func (m *matcher) fields(word uint32) []uint32 {
	f := make([]uint32, len(m.fieldMasks))
	for i := range m.fieldMasks {
		f[i] = (word & m.fieldMasks[i]) >> m.fieldShifts[i]
	}
	return f
}

// assignFunc copies extracted operand fields into the instruction bundle.
type assignFunc func(inst *Instruction, f []uint32)

type pattern struct {
	name   string
	op     Op
	m      matcher
	assign assignFunc
}

func pat(name string, op Op, format string, assign assignFunc) pattern {
	return pattern{name: name, op: op, m: newMatcher(format), assign: assign}
}

// Assign functions. The comment on each lists the field order of the
// patterns it serves.

// asNone: no operand extraction. Forms the translator always hands to the
// interpreter keep their original don't-care patterns.
func asNone(inst *Instruction, f []uint32) {}

// asDPImm: cond, S, Rn, Rd, rotate, imm8
func asDPImm(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rn = ArmReg(f[2])
	inst.Rd = ArmReg(f[3])
	inst.Rotate = uint8(f[4])
	inst.Imm = f[5]
}

// asDPMovImm: cond, S, Rd, rotate, imm8
func asDPMovImm(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rd = ArmReg(f[2])
	inst.Rotate = uint8(f[3])
	inst.Imm = f[4]
}

// asDPCmpImm: cond, Rn, rotate, imm8
func asDPCmpImm(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rn = ArmReg(f[1])
	inst.Rotate = uint8(f[2])
	inst.Imm = f[3]
}

// asDPReg: cond, S, Rn, Rd, imm5, shift type, Rm
func asDPReg(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rn = ArmReg(f[2])
	inst.Rd = ArmReg(f[3])
	inst.ShiftAmount = uint8(f[4])
	inst.Shift = ShiftType(f[5])
	inst.Rm = ArmReg(f[6])
}

// asDPMovReg: cond, S, Rd, imm5, shift type, Rm
func asDPMovReg(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rd = ArmReg(f[2])
	inst.ShiftAmount = uint8(f[3])
	inst.Shift = ShiftType(f[4])
	inst.Rm = ArmReg(f[5])
}

// asDPCmpReg: cond, Rn, imm5, shift type, Rm
func asDPCmpReg(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rn = ArmReg(f[1])
	inst.ShiftAmount = uint8(f[2])
	inst.Shift = ShiftType(f[3])
	inst.Rm = ArmReg(f[4])
}

// asDPRSR: cond, S, Rn, Rd, Rs, shift type, Rm
func asDPRSR(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rn = ArmReg(f[2])
	inst.Rd = ArmReg(f[3])
	inst.Rs = ArmReg(f[4])
	inst.Shift = ShiftType(f[5])
	inst.Rm = ArmReg(f[6])
}

// asDPMovRSR: cond, S, Rd, Rs, shift type, Rm
func asDPMovRSR(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rd = ArmReg(f[2])
	inst.Rs = ArmReg(f[3])
	inst.Shift = ShiftType(f[4])
	inst.Rm = ArmReg(f[5])
}

// asDPCmpRSR: cond, Rn, Rs, shift type, Rm
func asDPCmpRSR(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rn = ArmReg(f[1])
	inst.Rs = ArmReg(f[2])
	inst.Shift = ShiftType(f[3])
	inst.Rm = ArmReg(f[4])
}

// asBranch: cond, imm24
func asBranch(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Imm = f[1]
}

// asBLXImm: H, imm24
func asBLXImm(inst *Instruction, f []uint32) {
	inst.H = f[0] == 1
	inst.Imm = f[1]
	inst.Cond = CondAL
}

// asBXReg: cond, Rm
func asBXReg(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rm = ArmReg(f[1])
}

// asLdStImm: cond, P, U, W, Rn, Rd, imm12
func asLdStImm(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.P = f[1] == 1
	inst.U = f[2] == 1
	inst.W = f[3] == 1
	inst.Rn = ArmReg(f[4])
	inst.Rd = ArmReg(f[5])
	inst.Imm = f[6]
}

// asLdStReg: cond, P, U, W, Rn, Rd, imm5, shift type, Rm
func asLdStReg(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.P = f[1] == 1
	inst.U = f[2] == 1
	inst.W = f[3] == 1
	inst.Rn = ArmReg(f[4])
	inst.Rd = ArmReg(f[5])
	inst.ShiftAmount = uint8(f[6])
	inst.Shift = ShiftType(f[7])
	inst.Rm = ArmReg(f[8])
}

// asLdStDual: cond, P, U, W, Rn, Rd, imm4 high, imm4 low
func asLdStDual(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.P = f[1] == 1
	inst.U = f[2] == 1
	inst.W = f[3] == 1
	inst.Rn = ArmReg(f[4])
	inst.Rd = ArmReg(f[5])
	inst.Imm = f[6]<<4 | f[7]
}

// asLdStDualReg: cond, P, U, W, Rn, Rd, Rm
func asLdStDualReg(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.P = f[1] == 1
	inst.U = f[2] == 1
	inst.W = f[3] == 1
	inst.Rn = ArmReg(f[4])
	inst.Rd = ArmReg(f[5])
	inst.Rm = ArmReg(f[6])
}

// asLdStMulti: cond, P, U, W, Rn, register list
func asLdStMulti(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.P = f[1] == 1
	inst.U = f[2] == 1
	inst.W = f[3] == 1
	inst.Rn = ArmReg(f[4])
	inst.RegList = RegList(f[5])
}

// asExt: cond, Rd, rotate2, Rm
func asExt(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rd = ArmReg(f[1])
	inst.SignRot = uint8(f[2]) * 8
	inst.Rm = ArmReg(f[3])
}

// asExtAcc: cond, Rn, Rd, rotate2, Rm
func asExtAcc(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rn = ArmReg(f[1])
	inst.Rd = ArmReg(f[2])
	inst.SignRot = uint8(f[3]) * 8
	inst.Rm = ArmReg(f[4])
}

// asReg3: cond, Rn, Rd, Rm
func asReg3(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rn = ArmReg(f[1])
	inst.Rd = ArmReg(f[2])
	inst.Rm = ArmReg(f[3])
}

// asReg2: cond, Rd, Rm
func asReg2(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rd = ArmReg(f[1])
	inst.Rm = ArmReg(f[2])
}

// asLdrex: cond, Rn, Rd
func asLdrex(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rn = ArmReg(f[1])
	inst.Rd = ArmReg(f[2])
}

// asMul: cond, S, Rd, Rs, Rm
func asMul(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rd = ArmReg(f[2])
	inst.Rs = ArmReg(f[3])
	inst.Rm = ArmReg(f[4])
}

// asMulAcc: cond, S, Rd, Ra, Rs, Rm
func asMulAcc(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rd = ArmReg(f[2])
	inst.Ra = ArmReg(f[3])
	inst.Rs = ArmReg(f[4])
	inst.Rm = ArmReg(f[5])
}

// asMulLong: cond, S, RdHi, RdLo, Rs, Rm
func asMulLong(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.S = f[1] == 1
	inst.Rd = ArmReg(f[2])
	inst.Ra = ArmReg(f[3])
	inst.Rs = ArmReg(f[4])
	inst.Rm = ArmReg(f[5])
}

// asMulLongNoS: cond, RdHi, RdLo, Rs, Rm
func asMulLongNoS(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rd = ArmReg(f[1])
	inst.Ra = ArmReg(f[2])
	inst.Rs = ArmReg(f[3])
	inst.Rm = ArmReg(f[4])
}

// asPKH: cond, Rn, Rd, imm5, Rm
func asPKH(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rn = ArmReg(f[1])
	inst.Rd = ArmReg(f[2])
	inst.ShiftAmount = uint8(f[3])
	inst.Rm = ArmReg(f[4])
}

// asSat: cond, sat_imm5, Rd, imm5, sh, Rn
func asSat(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Imm = f[1]
	inst.Rd = ArmReg(f[2])
	inst.ShiftAmount = uint8(f[3])
	inst.H = f[4] == 1
	inst.Rn = ArmReg(f[5])
}

// asSat16: cond, sat_imm4, Rd, Rn
func asSat16(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Imm = f[1]
	inst.Rd = ArmReg(f[2])
	inst.Rn = ArmReg(f[3])
}

// asUSAD8: cond, Rd, Rs, Rn
func asUSAD8(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rd = ArmReg(f[1])
	inst.Rs = ArmReg(f[2])
	inst.Rn = ArmReg(f[3])
}

// asUSADA8: cond, Rd, Ra, Rs, Rn
func asUSADA8(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Rd = ArmReg(f[1])
	inst.Ra = ArmReg(f[2])
	inst.Rs = ArmReg(f[3])
	inst.Rn = ArmReg(f[4])
}

// asBKPT: cond, imm12, imm4
func asBKPT(inst *Instruction, f []uint32) {
	inst.Cond = Cond(f[0])
	inst.Imm = f[1]<<4 | f[2]
}

// asSETEND: E
func asSETEND(inst *Instruction, f []uint32) {
	inst.BigEndian = f[0] == 1
	inst.Cond = CondAL
}

// armPatterns is the ARMv6 decode table. The first matching row wins, so
// row order resolves encoding conflicts: specific forms (BLX, extension,
// saturating and parallel arithmetic, multiplies) are listed before the
// generic forms whose operand space they overlap.
var armPatterns = []pattern{
	// Branch instructions
	pat("BLX (imm)", OpBLXImm, "1111101hvvvvvvvvvvvvvvvvvvvvvvvv", asBLXImm), // ARMv5
	pat("BLX (reg)", OpBLXReg, "cccc000100101111111111110011mmmm", asBXReg),  // ARMv5
	pat("B", OpB, "cccc1010vvvvvvvvvvvvvvvvvvvvvvvv", asBranch),              // all
	pat("BL", OpBL, "cccc1011vvvvvvvvvvvvvvvvvvvvvvvv", asBranch),            // all
	pat("BX", OpBX, "cccc000100101111111111110001mmmm", asBXReg),             // ARMv4T
	pat("BXJ", OpBXJ, "cccc000100101111111111110010mmmm", asBXReg),           // ARMv5J

	// Coprocessor instructions
	pat("CDP2", OpCDP, "11111110-------------------0----", asNone),
	pat("CDP", OpCDP, "----1110-------------------0----", asNone),
	pat("LDC2", OpLDC, "1111110----1--------------------", asNone),
	pat("LDC", OpLDC, "----110----1--------------------", asNone),
	pat("MCR2", OpMCR, "11111110---0---------------1----", asNone),
	pat("MCR", OpMCR, "----1110---0---------------1----", asNone),
	pat("MCRR2", OpMCRR, "111111000100--------------------", asNone),
	pat("MCRR", OpMCRR, "----11000100--------------------", asNone),
	pat("MRC2", OpMRC, "11111110---1---------------1----", asNone),
	pat("MRC", OpMRC, "----1110---1---------------1----", asNone),
	pat("MRRC2", OpMRRC, "111111000101--------------------", asNone),
	pat("MRRC", OpMRRC, "----11000101--------------------", asNone),
	pat("STC2", OpSTC, "1111110----0--------------------", asNone),
	pat("STC", OpSTC, "----110----0--------------------", asNone),

	// Data processing instructions
	pat("ADC (imm)", OpADCImm, "cccc0010101Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("ADC (reg)", OpADCReg, "cccc0000101Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("ADC (rsr)", OpADCRSR, "cccc0000101Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("ADD (imm)", OpADDImm, "cccc0010100Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("ADD (reg)", OpADDReg, "cccc0000100Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("ADD (rsr)", OpADDRSR, "cccc0000100Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("AND (imm)", OpANDImm, "cccc0010000Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("AND (reg)", OpANDReg, "cccc0000000Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("AND (rsr)", OpANDRSR, "cccc0000000Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("BIC (imm)", OpBICImm, "cccc0011110Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("BIC (reg)", OpBICReg, "cccc0001110Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("BIC (rsr)", OpBICRSR, "cccc0001110Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("CMN (imm)", OpCMNImm, "cccc00110111nnnn0000rrrrvvvvvvvv", asDPCmpImm),
	pat("CMN (reg)", OpCMNReg, "cccc00010111nnnn0000vvvvvrr0mmmm", asDPCmpReg),
	pat("CMN (rsr)", OpCMNRSR, "cccc00010111nnnn0000ssss0rr1mmmm", asDPCmpRSR),
	pat("CMP (imm)", OpCMPImm, "cccc00110101nnnn0000rrrrvvvvvvvv", asDPCmpImm),
	pat("CMP (reg)", OpCMPReg, "cccc00010101nnnn0000vvvvvrr0mmmm", asDPCmpReg),
	pat("CMP (rsr)", OpCMPRSR, "cccc00010101nnnn0000ssss0rr1mmmm", asDPCmpRSR),
	pat("EOR (imm)", OpEORImm, "cccc0010001Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("EOR (reg)", OpEORReg, "cccc0000001Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("EOR (rsr)", OpEORRSR, "cccc0000001Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("MOV (imm)", OpMOVImm, "cccc0011101S0000ddddrrrrvvvvvvvv", asDPMovImm),
	pat("MOV (reg)", OpMOVReg, "cccc0001101S0000ddddvvvvvrr0mmmm", asDPMovReg),
	pat("MOV (rsr)", OpMOVRSR, "cccc0001101S0000ddddssss0rr1mmmm", asDPMovRSR),
	pat("MVN (imm)", OpMVNImm, "cccc0011111S0000ddddrrrrvvvvvvvv", asDPMovImm),
	pat("MVN (reg)", OpMVNReg, "cccc0001111S0000ddddvvvvvrr0mmmm", asDPMovReg),
	pat("MVN (rsr)", OpMVNRSR, "cccc0001111S0000ddddssss0rr1mmmm", asDPMovRSR),
	pat("ORR (imm)", OpORRImm, "cccc0011100Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("ORR (reg)", OpORRReg, "cccc0001100Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("ORR (rsr)", OpORRRSR, "cccc0001100Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("RSB (imm)", OpRSBImm, "cccc0010011Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("RSB (reg)", OpRSBReg, "cccc0000011Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("RSB (rsr)", OpRSBRSR, "cccc0000011Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("RSC (imm)", OpRSCImm, "cccc0010111Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("RSC (reg)", OpRSCReg, "cccc0000111Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("RSC (rsr)", OpRSCRSR, "cccc0000111Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("SBC (imm)", OpSBCImm, "cccc0010110Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("SBC (reg)", OpSBCReg, "cccc0000110Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("SBC (rsr)", OpSBCRSR, "cccc0000110Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("SUB (imm)", OpSUBImm, "cccc0010010Snnnnddddrrrrvvvvvvvv", asDPImm),
	pat("SUB (reg)", OpSUBReg, "cccc0000010Snnnnddddvvvvvrr0mmmm", asDPReg),
	pat("SUB (rsr)", OpSUBRSR, "cccc0000010Snnnnddddssss0rr1mmmm", asDPRSR),
	pat("TEQ (imm)", OpTEQImm, "cccc00110011nnnn0000rrrrvvvvvvvv", asDPCmpImm),
	pat("TEQ (reg)", OpTEQReg, "cccc00010011nnnn0000vvvvvrr0mmmm", asDPCmpReg),
	pat("TEQ (rsr)", OpTEQRSR, "cccc00010011nnnn0000ssss0rr1mmmm", asDPCmpRSR),
	pat("TST (imm)", OpTSTImm, "cccc00110001nnnn0000rrrrvvvvvvvv", asDPCmpImm),
	pat("TST (reg)", OpTSTReg, "cccc00010001nnnn0000vvvvvrr0mmmm", asDPCmpReg),
	pat("TST (rsr)", OpTSTRSR, "cccc00010001nnnn0000ssss0rr1mmmm", asDPCmpRSR),

	// Exception generating instructions
	pat("BKPT", OpBKPT, "cccc00010010vvvvvvvvvvvv0111wwww", asBKPT), // ARMv5
	pat("SVC", OpSVC, "cccc1111vvvvvvvvvvvvvvvvvvvvvvvv", asBranch), // all
	pat("UDF", OpUDF, "111001111111------------1111----", asNone),   // all

	// Extension instructions
	pat("SXTB", OpSXTB, "cccc011010101111ddddrr000111mmmm", asExt),        // ARMv6
	pat("SXTB16", OpSXTB16, "cccc011010001111ddddrr000111mmmm", asExt),    // ARMv6
	pat("SXTH", OpSXTH, "cccc011010111111ddddrr000111mmmm", asExt),        // ARMv6
	pat("SXTAB", OpSXTAB, "cccc01101010nnnnddddrr000111mmmm", asExtAcc),   // ARMv6
	pat("SXTAB16", OpSXTAB16, "cccc01101000nnnnddddrr000111mmmm", asExtAcc), // ARMv6
	pat("SXTAH", OpSXTAH, "cccc01101011nnnnddddrr000111mmmm", asExtAcc),   // ARMv6
	pat("UXTB", OpUXTB, "cccc011011101111ddddrr000111mmmm", asExt),        // ARMv6
	pat("UXTB16", OpUXTB16, "cccc011011001111ddddrr000111mmmm", asExt),    // ARMv6
	pat("UXTH", OpUXTH, "cccc011011111111ddddrr000111mmmm", asExt),        // ARMv6
	pat("UXTAB", OpUXTAB, "cccc01101110nnnnddddrr000111mmmm", asExtAcc),   // ARMv6
	pat("UXTAB16", OpUXTAB16, "cccc01101100nnnnddddrr000111mmmm", asExtAcc), // ARMv6
	pat("UXTAH", OpUXTAH, "cccc01101111nnnnddddrr000111mmmm", asExtAcc),   // ARMv6

	// Hint instructions
	pat("PLD", OpPLD, "111101---101----1111------------", asNone),     // ARMv5E
	pat("SEV", OpSEV, "----0011001000001111000000000100", asNone),     // ARMv6K
	pat("WFE", OpWFE, "----0011001000001111000000000010", asNone),     // ARMv6K
	pat("WFI", OpWFI, "----0011001000001111000000000011", asNone),     // ARMv6K
	pat("YIELD", OpYIELD, "----0011001000001111000000000001", asNone), // ARMv6K

	// Synchronization primitive instructions
	pat("CLREX", OpCLREX, "11110101011111111111000000011111", asNone),     // ARMv6K
	pat("LDREX", OpLDREX, "cccc00011001nnnndddd111110011111", asLdrex),    // ARMv6
	pat("LDREXB", OpLDREXB, "cccc00011101nnnndddd111110011111", asLdrex),  // ARMv6K
	pat("LDREXD", OpLDREXD, "cccc00011011nnnndddd111110011111", asLdrex),  // ARMv6K
	pat("LDREXH", OpLDREXH, "cccc00011111nnnndddd111110011111", asLdrex),  // ARMv6K
	pat("STREX", OpSTREX, "cccc00011000nnnndddd11111001mmmm", asReg3),     // ARMv6
	pat("STREXB", OpSTREXB, "cccc00011100nnnndddd11111001mmmm", asReg3),   // ARMv6K
	pat("STREXD", OpSTREXD, "cccc00011010nnnndddd11111001mmmm", asReg3),   // ARMv6K
	pat("STREXH", OpSTREXH, "cccc00011110nnnndddd11111001mmmm", asReg3),   // ARMv6K
	pat("SWP", OpSWP, "cccc00010000nnnndddd00001001mmmm", asReg3),         // ARMv2S
	pat("SWPB", OpSWPB, "cccc00010100nnnndddd00001001mmmm", asReg3),       // ARMv2S

	// Load/store instructions
	pat("LDR (imm)", OpLDRImm, "cccc010pu0w1nnnnddddvvvvvvvvvvvv", asLdStImm),
	pat("LDR (reg)", OpLDRReg, "cccc011pu0w1nnnnddddvvvvvrr0mmmm", asLdStReg),
	pat("LDRB (imm)", OpLDRBImm, "cccc010pu1w1nnnnddddvvvvvvvvvvvv", asLdStImm),
	pat("LDRB (reg)", OpLDRBReg, "cccc011pu1w1nnnnddddvvvvvrr0mmmm", asLdStReg),
	pat("LDRBT (A1)", OpLDRBT, "----0100-111--------------------", asNone),
	pat("LDRBT (A2)", OpLDRBT, "----0110-111---------------0----", asNone),
	pat("LDRD (imm)", OpLDRDImm, "cccc000pu1w0nnnnddddvvvv1101wwww", asLdStDual), // ARMv5E
	pat("LDRD (reg)", OpLDRDReg, "cccc000pu0w0nnnndddd00001101mmmm", asLdStDualReg), // ARMv5E
	pat("LDRH (imm)", OpLDRHImm, "cccc000pu1w1nnnnddddvvvv1011wwww", asLdStDual),
	pat("LDRH (reg)", OpLDRHReg, "cccc000pu0w1nnnndddd00001011mmmm", asLdStDualReg),
	pat("LDRHT (A1)", OpLDRHT, "----0000-111------------1011----", asNone),
	pat("LDRHT (A2)", OpLDRHT, "----0000-011--------00001011----", asNone),
	pat("LDRSB (imm)", OpLDRSBImm, "cccc000pu1w1nnnnddddvvvv1101wwww", asLdStDual),
	pat("LDRSB (reg)", OpLDRSBReg, "cccc000pu0w1nnnndddd00001101mmmm", asLdStDualReg),
	pat("LDRSBT (A1)", OpLDRSBT, "----0000-111------------1101----", asNone),
	pat("LDRSBT (A2)", OpLDRSBT, "----0000-011--------00001101----", asNone),
	pat("LDRSH (imm)", OpLDRSHImm, "cccc000pu1w1nnnnddddvvvv1111wwww", asLdStDual),
	pat("LDRSH (reg)", OpLDRSHReg, "cccc000pu0w1nnnndddd00001111mmmm", asLdStDualReg),
	pat("LDRSHT (A1)", OpLDRSHT, "----0000-111------------1111----", asNone),
	pat("LDRSHT (A2)", OpLDRSHT, "----0000-011--------00001111----", asNone),
	pat("LDRT (A1)", OpLDRT, "----0100-011--------------------", asNone),
	pat("LDRT (A2)", OpLDRT, "----0110-011---------------0----", asNone),
	pat("STR (imm)", OpSTRImm, "cccc010pu0w0nnnnddddvvvvvvvvvvvv", asLdStImm),
	pat("STR (reg)", OpSTRReg, "cccc011pu0w0nnnnddddvvvvvrr0mmmm", asLdStReg),
	pat("STRB (imm)", OpSTRBImm, "cccc010pu1w0nnnnddddvvvvvvvvvvvv", asLdStImm),
	pat("STRB (reg)", OpSTRBReg, "cccc011pu1w0nnnnddddvvvvvrr0mmmm", asLdStReg),
	pat("STRBT (A1)", OpSTRBT, "----0100-110--------------------", asNone),
	pat("STRBT (A2)", OpSTRBT, "----0110-110---------------0----", asNone),
	pat("STRD (imm)", OpSTRDImm, "cccc000pu1w0nnnnddddvvvv1111wwww", asLdStDual), // ARMv5E
	pat("STRD (reg)", OpSTRDReg, "cccc000pu0w0nnnndddd00001111mmmm", asLdStDualReg), // ARMv5E
	pat("STRH (imm)", OpSTRHImm, "cccc000pu1w0nnnnddddvvvv1011wwww", asLdStDual),
	pat("STRH (reg)", OpSTRHReg, "cccc000pu0w0nnnndddd00001011mmmm", asLdStDualReg),
	pat("STRHT (A1)", OpSTRHT, "----0000-110------------1011----", asNone),
	pat("STRHT (A2)", OpSTRHT, "----0000-010--------00001011----", asNone),
	pat("STRT (A1)", OpSTRT, "----0100-010--------------------", asNone),
	pat("STRT (A2)", OpSTRT, "----0110-010---------------0----", asNone),

	// Load/store multiple instructions
	pat("LDM", OpLDM, "cccc100pu0w1nnnnxxxxxxxxxxxxxxxx", asLdStMulti),    // all
	pat("LDM (usr reg)", OpLDMUser, "----100--101--------------------", asNone), // all
	pat("LDM (exce ret)", OpLDMExcRet, "----100--1-1----1---------------", asNone), // all
	pat("STM", OpSTM, "cccc100pu0w0nnnnxxxxxxxxxxxxxxxx", asLdStMulti),    // all
	pat("STM (usr reg)", OpSTMUser, "----100--100--------------------", asNone), // all

	// Miscellaneous instructions
	pat("CLZ", OpCLZ, "cccc000101101111dddd11110001mmmm", asReg2), // ARMv5
	pat("NOP", OpNOP, "----001100100000111100000000----", asNone), // ARMv6K
	pat("SEL", OpSEL, "cccc01101000nnnndddd11111011mmmm", asReg3), // ARMv6

	// Unsigned sum of absolute differences instructions
	pat("USAD8", OpUSAD8, "cccc01111000dddd1111ssss0001nnnn", asUSAD8),    // ARMv6
	pat("USADA8", OpUSADA8, "cccc01111000ddddaaaassss0001nnnn", asUSADA8), // ARMv6

	// Packing instructions
	pat("PKHBT", OpPKHBT, "cccc01101000nnnnddddvvvvv001mmmm", asPKH), // ARMv6K
	pat("PKHTB", OpPKHTB, "cccc01101000nnnnddddvvvvv101mmmm", asPKH), // ARMv6K

	// Reversal instructions
	pat("REV", OpREV, "cccc011010111111dddd11110011mmmm", asReg2),     // ARMv6
	pat("REV16", OpREV16, "cccc011010111111dddd11111011mmmm", asReg2), // ARMv6
	pat("REVSH", OpREVSH, "cccc011011111111dddd11111011mmmm", asReg2), // ARMv6

	// Saturation instructions
	pat("SSAT", OpSSAT, "cccc0110101sssssddddvvvvvh01nnnn", asSat),      // ARMv6
	pat("SSAT16", OpSSAT16, "cccc01101010ssssdddd11110011nnnn", asSat16), // ARMv6
	pat("USAT", OpUSAT, "cccc0110111sssssddddvvvvvh01nnnn", asSat),      // ARMv6
	pat("USAT16", OpUSAT16, "cccc01101110ssssdddd11110011nnnn", asSat16), // ARMv6

	// Multiply (normal) instructions
	pat("MLA", OpMLA, "cccc0000001Sddddaaaassss1001mmmm", asMulAcc), // ARMv2
	pat("MUL", OpMUL, "cccc0000000Sdddd0000ssss1001mmmm", asMul),    // ARMv2

	// Multiply (long) instructions
	pat("SMLAL", OpSMLAL, "cccc0000111Shhhhllllssss1001mmmm", asMulLong),   // ARMv3M
	pat("SMULL", OpSMULL, "cccc0000110Shhhhllllssss1001mmmm", asMulLong),   // ARMv3M
	pat("UMAAL", OpUMAAL, "cccc00000100hhhhllllssss1001mmmm", asMulLongNoS), // ARMv6
	pat("UMLAL", OpUMLAL, "cccc0000101Shhhhllllssss1001mmmm", asMulLong),   // ARMv3M
	pat("UMULL", OpUMULL, "cccc0000100Shhhhllllssss1001mmmm", asMulLong),   // ARMv3M

	// Multiply (halfword) instructions
	pat("SMLALXY", OpSMLALXY, "----00010100------------1--0----", asNone), // ARMv5xP
	pat("SMLAXY", OpSMLAXY, "----00010000------------1--0----", asNone),   // ARMv5xP
	pat("SMULXY", OpSMULXY, "----00010110----0000----1--0----", asNone),   // ARMv5xP

	// Multiply (word by halfword) instructions
	pat("SMLAWY", OpSMLAWY, "----00010010------------1-00----", asNone), // ARMv5xP
	pat("SMULWY", OpSMULWY, "----00010010----0000----1-10----", asNone), // ARMv5xP

	// Multiply (most significant word) instructions
	pat("SMMUL", OpSMMUL, "----01110101----1111----00-1----", asNone), // ARMv6
	pat("SMMLA", OpSMMLA, "----01110101------------00-1----", asNone), // ARMv6
	pat("SMMLS", OpSMMLS, "----01110101------------11-1----", asNone), // ARMv6

	// Multiply (dual) instructions
	pat("SMLAD", OpSMLAD, "----01110000------------00-1----", asNone),   // ARMv6
	pat("SMLALD", OpSMLALD, "----01110100------------00-1----", asNone), // ARMv6
	pat("SMLSD", OpSMLSD, "----01110000------------01-1----", asNone),   // ARMv6
	pat("SMLSLD", OpSMLSLD, "----01110100------------01-1----", asNone), // ARMv6
	pat("SMUAD", OpSMUAD, "----01110000----1111----00-1----", asNone),   // ARMv6
	pat("SMUSD", OpSMUSD, "----01110000----1111----01-1----", asNone),   // ARMv6

	// Parallel add/subtract (modulo) instructions
	pat("SADD8", OpSADD8, "cccc01100001nnnndddd11111001mmmm", asReg3),   // ARMv6
	pat("SADD16", OpSADD16, "cccc01100001nnnndddd11110001mmmm", asReg3), // ARMv6
	pat("SASX", OpSASX, "cccc01100001nnnndddd11110011mmmm", asReg3),     // ARMv6
	pat("SSAX", OpSSAX, "cccc01100001nnnndddd11110101mmmm", asReg3),     // ARMv6
	pat("SSUB8", OpSSUB8, "cccc01100001nnnndddd11111111mmmm", asReg3),   // ARMv6
	pat("SSUB16", OpSSUB16, "cccc01100001nnnndddd11110111mmmm", asReg3), // ARMv6
	pat("UADD8", OpUADD8, "cccc01100101nnnndddd11111001mmmm", asReg3),   // ARMv6
	pat("UADD16", OpUADD16, "cccc01100101nnnndddd11110001mmmm", asReg3), // ARMv6
	pat("UASX", OpUASX, "cccc01100101nnnndddd11110011mmmm", asReg3),     // ARMv6
	pat("USAX", OpUSAX, "cccc01100101nnnndddd11110101mmmm", asReg3),     // ARMv6
	pat("USUB8", OpUSUB8, "cccc01100101nnnndddd11111111mmmm", asReg3),   // ARMv6
	pat("USUB16", OpUSUB16, "cccc01100101nnnndddd11110111mmmm", asReg3), // ARMv6

	// Parallel add/subtract (saturating) instructions
	pat("QADD8", OpQADD8, "cccc01100010nnnndddd11111001mmmm", asReg3),     // ARMv6
	pat("QADD16", OpQADD16, "cccc01100010nnnndddd11110001mmmm", asReg3),   // ARMv6
	pat("QASX", OpQASX, "cccc01100010nnnndddd11110011mmmm", asReg3),       // ARMv6
	pat("QSAX", OpQSAX, "cccc01100010nnnndddd11110101mmmm", asReg3),       // ARMv6
	pat("QSUB8", OpQSUB8, "cccc01100010nnnndddd11111111mmmm", asReg3),     // ARMv6
	pat("QSUB16", OpQSUB16, "cccc01100010nnnndddd11110111mmmm", asReg3),   // ARMv6
	pat("UQADD8", OpUQADD8, "cccc01100110nnnndddd11111001mmmm", asReg3),   // ARMv6
	pat("UQADD16", OpUQADD16, "cccc01100110nnnndddd11110001mmmm", asReg3), // ARMv6
	pat("UQASX", OpUQASX, "cccc01100110nnnndddd11110011mmmm", asReg3),     // ARMv6
	pat("UQSAX", OpUQSAX, "cccc01100110nnnndddd11110101mmmm", asReg3),     // ARMv6
	pat("UQSUB8", OpUQSUB8, "cccc01100110nnnndddd11111111mmmm", asReg3),   // ARMv6
	pat("UQSUB16", OpUQSUB16, "cccc01100110nnnndddd11110111mmmm", asReg3), // ARMv6

	// Parallel add/subtract (halving) instructions
	pat("SHADD8", OpSHADD8, "cccc01100011nnnndddd11111001mmmm", asReg3),   // ARMv6
	pat("SHADD16", OpSHADD16, "cccc01100011nnnndddd11110001mmmm", asReg3), // ARMv6
	pat("SHASX", OpSHASX, "cccc01100011nnnndddd11110011mmmm", asReg3),     // ARMv6
	pat("SHSAX", OpSHSAX, "cccc01100011nnnndddd11110101mmmm", asReg3),     // ARMv6
	pat("SHSUB8", OpSHSUB8, "cccc01100011nnnndddd11111111mmmm", asReg3),   // ARMv6
	pat("SHSUB16", OpSHSUB16, "cccc01100011nnnndddd11110111mmmm", asReg3), // ARMv6
	pat("UHADD8", OpUHADD8, "cccc01100111nnnndddd11111001mmmm", asReg3),   // ARMv6
	pat("UHADD16", OpUHADD16, "cccc01100111nnnndddd11110001mmmm", asReg3), // ARMv6
	pat("UHASX", OpUHASX, "cccc01100111nnnndddd11110011mmmm", asReg3),     // ARMv6
	pat("UHSAX", OpUHSAX, "cccc01100111nnnndddd11110101mmmm", asReg3),     // ARMv6
	pat("UHSUB8", OpUHSUB8, "cccc01100111nnnndddd11111111mmmm", asReg3),   // ARMv6
	pat("UHSUB16", OpUHSUB16, "cccc01100111nnnndddd11110111mmmm", asReg3), // ARMv6

	// Saturated add/subtract instructions
	pat("QADD", OpQADD, "cccc00010000nnnndddd00000101mmmm", asReg3),   // ARMv5xP
	pat("QSUB", OpQSUB, "cccc00010010nnnndddd00000101mmmm", asReg3),   // ARMv5xP
	pat("QDADD", OpQDADD, "cccc00010100nnnndddd00000101mmmm", asReg3), // ARMv5xP
	pat("QDSUB", OpQDSUB, "cccc00010110nnnndddd00000101mmmm", asReg3), // ARMv5xP

	// Status register access instructions
	pat("CPS", OpCPS, "111100010000---00000000---0-----", asNone),          // ARMv6
	pat("SETEND", OpSETEND, "1111000100000001000000e000000000", asSETEND),  // ARMv6
	pat("MRS", OpMRS, "----00010-00--------00--00000000", asNone),          // ARMv3
	pat("MSR", OpMSR, "----00-10-10----1111------------", asNone),          // ARMv3
	pat("RFE", OpRFE, "----0001101-0000---------110----", asNone),          // ARMv6
	pat("SRS", OpSRS, "0000011--0-00000000000000001----", asNone),          // ARMv6
}

// Decoder decodes ARMv6 machine code into instruction bundles.
type Decoder struct {
	// Decodes counts successful decode calls. It exists so cache
	// invalidation is observable in tests: a retranslation shows up as an
	// extra decode.
	Decodes uint64
}

// NewDecoder creates a new ARMv6 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode classifies a 32-bit ARM instruction word. It returns nil when
// the word matches no defined encoding; the caller is expected to fall
// back to an interpreter.
func (d *Decoder) Decode(word uint32) *Instruction {
	for i := range armPatterns {
		p := &armPatterns[i]
		if !p.m.match(word) {
			continue
		}

		d.Decodes++
		inst := &Instruction{Op: p.op, Name: p.name, Cond: CondAL}
		p.assign(inst, p.m.fields(word))
		return inst
	}
	return nil
}
