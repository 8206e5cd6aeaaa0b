// Package ir provides the SSA microinstruction intermediate representation
// for the ARM11 translator.
//
// Each IR node is a microinstruction of an idealised ARM CPU; the set of
// microoperations is chosen for ease of implementation and later
// optimization work, not after any real microarchitecture. A basic block is
// represented as a Block: a linear list of microinstructions followed by
// exactly one terminal. The IR is linear, not tree-shaped: instruction
// order carries the ordering of flag reads/writes and memory accesses.
package ir

import "fmt"

// Op is the operation tag of a microinstruction. These are suboperations
// of an ARM instruction.
type Op uint8

// Microoperations.
const (
	// Basic load/stores
	ConstU32 Op = iota // value := const
	GetGPR             // value := R[reg]
	SetGPR             // R[reg] := $0

	// Optimization hints
	PushRSBHint // R[14] := $0, pushing return info onto the return stack buffer

	// ARM PC
	AluWritePC  // R[15] := $0 & (APSR.T ? 0xFFFFFFFE : 0xFFFFFFFC)
	LoadWritePC // APSR.T := $0 & 1, R[15] := $0 masked per new T
	BranchWritePC
	BXWritePC

	// ARM ALU
	Add          // value := $0 + $1, writes APSR.NZCV
	AddWithCarry // value := $0 + $1 + APSR.C, writes APSR.NZCV
	Sub          // value := $0 - $1, writes APSR.NZCV

	And // value := $0 & $1, writes APSR.NZC
	Eor // value := $0 ^ $1, writes APSR.NZC
	Not // value := ^$0

	LSL // value := $0 LSL $1, writes APSR.C
	LSR // value := $0 LSR $1, writes APSR.C
	ASR // value := $0 ASR $1, writes APSR.C
	ROR // value := $0 ROR $1, writes APSR.C
	RRX // value := $0 RRX

	CountLeadingZeros // value := CLZ $0

	// ARM synchronisation
	ClearExclusive // clears the exclusive access record

	// Memory
	Read32 // value := mem[$0]

	numOps
)

var opNames = [numOps]string{
	"ConstU32", "GetGPR", "SetGPR", "PushRSBHint",
	"AluWritePC", "LoadWritePC", "BranchWritePC", "BXWritePC",
	"Add", "AddWithCarry", "Sub", "And", "Eor", "Not",
	"LSL", "LSR", "ASR", "ROR", "RRX",
	"CountLeadingZeros", "ClearExclusive", "Read32",
}

func (op Op) String() string {
	if op >= numOps {
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
	return opNames[op]
}

// Flags is a bitmap of the ARM status flags a microinstruction reads or
// writes.
type Flags uint8

// ARM flag bits.
const (
	FlagN Flags = 1 << iota
	FlagZ
	FlagC
	FlagV
	FlagQ
	FlagGE

	FlagsNone Flags = 0
	FlagsNZ         = FlagN | FlagZ
	FlagsNZC        = FlagN | FlagZ | FlagC
	FlagsNZCV       = FlagN | FlagZ | FlagC | FlagV
	FlagsAny        = FlagN | FlagZ | FlagC | FlagV | FlagQ | FlagGE
)

// Type is the value type of a microinstruction.
type Type uint8

// Value types.
const (
	Void Type = iota
	U32
)

func (t Type) String() string {
	if t == Void {
		return "Void"
	}
	return "U32"
}

// OpInfo describes an opcode: its result type, the flags it reads, the
// flags it may write, and its argument types in order. A translator may
// restrict the written flags of an individual instruction to any subset of
// DefaultWrite.
type OpInfo struct {
	Ret          Type
	Read         Flags
	DefaultWrite Flags
	Args         []Type
}

// NumArgs returns the number of arguments the opcode takes.
func (i OpInfo) NumArgs() int { return len(i.Args) }

var opInfoTable = [numOps]OpInfo{
	ConstU32:    {Ret: U32},
	GetGPR:      {Ret: U32},
	SetGPR:      {Ret: Void, Args: []Type{U32}},
	PushRSBHint: {Ret: Void, Args: []Type{U32}},

	AluWritePC:    {Ret: Void, Args: []Type{U32}},
	LoadWritePC:   {Ret: Void, Args: []Type{U32}},
	BranchWritePC: {Ret: Void, Args: []Type{U32}},
	BXWritePC:     {Ret: Void, Args: []Type{U32}},

	Add:          {Ret: U32, DefaultWrite: FlagsNZCV, Args: []Type{U32, U32}},
	AddWithCarry: {Ret: U32, Read: FlagC, DefaultWrite: FlagsNZCV, Args: []Type{U32, U32}},
	Sub:          {Ret: U32, DefaultWrite: FlagsNZCV, Args: []Type{U32, U32}},

	And: {Ret: U32, DefaultWrite: FlagsNZC, Args: []Type{U32, U32}},
	Eor: {Ret: U32, DefaultWrite: FlagsNZC, Args: []Type{U32, U32}},
	Not: {Ret: U32, Args: []Type{U32}},

	LSL: {Ret: U32, DefaultWrite: FlagC, Args: []Type{U32, U32}},
	LSR: {Ret: U32, DefaultWrite: FlagC, Args: []Type{U32, U32}},
	ASR: {Ret: U32, DefaultWrite: FlagC, Args: []Type{U32, U32}},
	ROR: {Ret: U32, DefaultWrite: FlagC, Args: []Type{U32, U32}},
	RRX: {Ret: U32, Read: FlagC, DefaultWrite: FlagC, Args: []Type{U32}},

	CountLeadingZeros: {Ret: U32, Args: []Type{U32}},

	ClearExclusive: {Ret: Void},

	Read32: {Ret: U32, Args: []Type{U32}},
}

// Info returns information about an opcode.
func Info(op Op) OpInfo {
	if op >= numOps {
		panic(fmt.Sprintf("ir: unknown op %d", uint8(op)))
	}
	return opInfoTable[op]
}
