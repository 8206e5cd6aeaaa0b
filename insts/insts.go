// Package insts provides ARMv6 instruction definitions and decoding.
package insts

// ArmReg identifies one of the sixteen ARM general-purpose registers.
type ArmReg uint8

// Named ARM registers.
const (
	RegSP ArmReg = 13
	RegLR ArmReg = 14
	RegPC ArmReg = 15

	// NumRegs is the number of guest general-purpose registers.
	NumRegs = 16
)

// Cond represents an ARM condition code.
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always
	CondNV Cond = 0b1111 // Never (unconditional space on ARMv6)
)

// Passed evaluates the condition against the given NZCV flags.
func (c Cond) Passed(n, z, cf, v bool) bool {
	switch c {
	case CondEQ:
		return z
	case CondNE:
		return !z
	case CondCS:
		return cf
	case CondCC:
		return !cf
	case CondMI:
		return n
	case CondPL:
		return !n
	case CondVS:
		return v
	case CondVC:
		return !v
	case CondHI:
		return cf && !z
	case CondLS:
		return !cf || z
	case CondGE:
		return n == v
	case CondLT:
		return n != v
	case CondGT:
		return !z && (n == v)
	case CondLE:
		return z || (n != v)
	case CondAL, CondNV:
		return true
	default:
		return false
	}
}

// ShiftType represents a shift type for register operands.
type ShiftType uint8

// Shift types.
const (
	ShiftLSL ShiftType = 0b00 // Logical shift left
	ShiftLSR ShiftType = 0b01 // Logical shift right
	ShiftASR ShiftType = 0b10 // Arithmetic shift right
	ShiftROR ShiftType = 0b11 // Rotate right
)

// RegList is a 16-bit register list for load/store multiple.
type RegList uint16

// Contains reports whether reg is in the list.
func (l RegList) Contains(reg ArmReg) bool {
	return l&(1<<reg) != 0
}

// Count returns the number of registers in the list.
func (l RegList) Count() int {
	n := 0
	for v := uint16(l); v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Op identifies a decoded ARMv6 instruction form. Each value other than
// OpUnknown is produced by one or more rows of the decode table; the
// translator dispatches on it with an exhaustive switch.
type Op uint16

// ARMv6 instruction forms.
const (
	OpUnknown Op = iota

	// Branch instructions
	OpB
	OpBL
	OpBLXImm
	OpBLXReg
	OpBX
	OpBXJ

	// Coprocessor instructions
	OpCDP
	OpLDC
	OpMCR
	OpMCRR
	OpMRC
	OpMRRC
	OpSTC

	// Data processing instructions (immediate / register / register-shifted
	// register forms)
	OpADCImm
	OpADCReg
	OpADCRSR
	OpADDImm
	OpADDReg
	OpADDRSR
	OpANDImm
	OpANDReg
	OpANDRSR
	OpBICImm
	OpBICReg
	OpBICRSR
	OpCMNImm
	OpCMNReg
	OpCMNRSR
	OpCMPImm
	OpCMPReg
	OpCMPRSR
	OpEORImm
	OpEORReg
	OpEORRSR
	OpMOVImm
	OpMOVReg
	OpMOVRSR
	OpMVNImm
	OpMVNReg
	OpMVNRSR
	OpORRImm
	OpORRReg
	OpORRRSR
	OpRSBImm
	OpRSBReg
	OpRSBRSR
	OpRSCImm
	OpRSCReg
	OpRSCRSR
	OpSBCImm
	OpSBCReg
	OpSBCRSR
	OpSUBImm
	OpSUBReg
	OpSUBRSR
	OpTEQImm
	OpTEQReg
	OpTEQRSR
	OpTSTImm
	OpTSTReg
	OpTSTRSR

	// Exception generation instructions
	OpBKPT
	OpSVC
	OpUDF

	// Extension instructions
	OpSXTAB
	OpSXTAB16
	OpSXTAH
	OpSXTB
	OpSXTB16
	OpSXTH
	OpUXTAB
	OpUXTAB16
	OpUXTAH
	OpUXTB
	OpUXTB16
	OpUXTH

	// Hint instructions
	OpPLD
	OpSEV
	OpWFE
	OpWFI
	OpYIELD

	// Synchronization primitive instructions
	OpCLREX
	OpLDREX
	OpLDREXB
	OpLDREXD
	OpLDREXH
	OpSTREX
	OpSTREXB
	OpSTREXD
	OpSTREXH
	OpSWP
	OpSWPB

	// Load/store instructions
	OpLDRImm
	OpLDRReg
	OpLDRBImm
	OpLDRBReg
	OpLDRBT
	OpLDRDImm
	OpLDRDReg
	OpLDRHImm
	OpLDRHReg
	OpLDRHT
	OpLDRSBImm
	OpLDRSBReg
	OpLDRSBT
	OpLDRSHImm
	OpLDRSHReg
	OpLDRSHT
	OpLDRT
	OpSTRImm
	OpSTRReg
	OpSTRBImm
	OpSTRBReg
	OpSTRBT
	OpSTRDImm
	OpSTRDReg
	OpSTRHImm
	OpSTRHReg
	OpSTRHT
	OpSTRT

	// Load/store multiple instructions
	OpLDM
	OpLDMUser
	OpLDMExcRet
	OpSTM
	OpSTMUser

	// Miscellaneous instructions
	OpCLZ
	OpNOP
	OpSEL

	// Unsigned sum of absolute differences instructions
	OpUSAD8
	OpUSADA8

	// Packing instructions
	OpPKHBT
	OpPKHTB

	// Reversal instructions
	OpREV
	OpREV16
	OpREVSH

	// Saturation instructions
	OpSSAT
	OpSSAT16
	OpUSAT
	OpUSAT16

	// Multiply (normal) instructions
	OpMLA
	OpMUL

	// Multiply (long) instructions
	OpSMLAL
	OpSMULL
	OpUMAAL
	OpUMLAL
	OpUMULL

	// Multiply (halfword) instructions
	OpSMLALXY
	OpSMLAXY
	OpSMULXY

	// Multiply (word by halfword) instructions
	OpSMLAWY
	OpSMULWY

	// Multiply (most significant word) instructions
	OpSMMLA
	OpSMMLS
	OpSMMUL

	// Multiply (dual) instructions
	OpSMLAD
	OpSMLALD
	OpSMLSD
	OpSMLSLD
	OpSMUAD
	OpSMUSD

	// Parallel add/subtract (modulo arithmetic) instructions
	OpSADD8
	OpSADD16
	OpSASX
	OpSSAX
	OpSSUB8
	OpSSUB16
	OpUADD8
	OpUADD16
	OpUASX
	OpUSAX
	OpUSUB8
	OpUSUB16

	// Parallel add/subtract (saturating) instructions
	OpQADD8
	OpQADD16
	OpQASX
	OpQSAX
	OpQSUB8
	OpQSUB16
	OpUQADD8
	OpUQADD16
	OpUQASX
	OpUQSAX
	OpUQSUB8
	OpUQSUB16

	// Parallel add/subtract (halving) instructions
	OpSHADD8
	OpSHADD16
	OpSHASX
	OpSHSAX
	OpSHSUB8
	OpSHSUB16
	OpUHADD8
	OpUHADD16
	OpUHASX
	OpUHSAX
	OpUHSUB8
	OpUHSUB16

	// Saturated add/subtract instructions
	OpQADD
	OpQSUB
	OpQDADD
	OpQDSUB

	// Status register access instructions
	OpCPS
	OpMRS
	OpMSR
	OpRFE
	OpSETEND
	OpSRS
)

// Instruction represents a decoded ARMv6 instruction. The decoder only
// classifies and extracts operand fields; it never executes semantics.
type Instruction struct {
	Op   Op
	Name string // decode-table row name, e.g. "ADD (imm)"

	Cond Cond
	S    bool // set-flags bit

	Rd ArmReg // destination (RdHi for long multiplies)
	Rn ArmReg // first operand / base
	Rm ArmReg // second operand
	Rs ArmReg // shift register / multiply operand
	Ra ArmReg // accumulator (RdLo for long multiplies)

	// Imm holds the instruction's primary immediate: imm8 for
	// data-processing, imm12 for load/store, imm24 for branches, the
	// combined imm4:imm4 offset for halfword/dual load/store, imm16 for
	// BKPT, and the saturation bound for SSAT/USAT.
	Imm uint32

	Rotate      uint8 // data-processing immediate rotate (imm4)
	ShiftAmount uint8 // immediate shift amount (imm5)
	Shift       ShiftType
	SignRot     uint8 // sign-extension rotation in bits: 0, 8, 16 or 24

	RegList RegList

	P, U, W   bool // load/store addressing control bits
	H         bool // BLX halfword offset bit; sh bit for SSAT/USAT
	BigEndian bool // SETEND endianness bit
}
