package ir

import (
	"fmt"

	"github.com/sarchlab/citrine/insts"
)

// Builder constructs a Block one microinstruction at a time. It also
// accumulates FlagsWritten, the running union of every flag written so
// far, which lets the translator answer "has any flag changed since block
// entry" in constant time.
type Builder struct {
	Block        *Block
	FlagsWritten Flags
}

// NewBuilder creates a builder for an empty block at the given location.
func NewBuilder(location LocationDescriptor) *Builder {
	return &Builder{Block: NewBlock(location)}
}

// ConstU32 emits a constant load.
func (b *Builder) ConstU32(v uint32) ValueRef {
	return b.Block.append(value{op: ConstU32, imm: v})
}

// GetGPR emits a guest register read.
func (b *Builder) GetGPR(reg insts.ArmReg) ValueRef {
	return b.Block.append(value{op: GetGPR, reg: reg})
}

// SetGPR emits a guest register write of a.
func (b *Builder) SetGPR(reg insts.ArmReg, a ValueRef) ValueRef {
	v := b.Block.append(value{op: SetGPR, reg: reg})
	b.Block.SetArg(v, 0, a)
	return v
}

// Inst0 emits a microinstruction with no arguments.
func (b *Builder) Inst0(op Op) ValueRef {
	return b.emit(op, FlagsNone)
}

// Inst1 emits a one-argument microinstruction writing the given flags.
func (b *Builder) Inst1(op Op, a ValueRef, writeFlags Flags) ValueRef {
	v := b.emit(op, writeFlags)
	b.Block.SetArg(v, 0, a)
	return v
}

// Inst2 emits a two-argument microinstruction writing the given flags.
func (b *Builder) Inst2(op Op, a, a2 ValueRef, writeFlags Flags) ValueRef {
	v := b.emit(op, writeFlags)
	b.Block.SetArg(v, 0, a)
	b.Block.SetArg(v, 1, a2)
	return v
}

func (b *Builder) emit(op Op, writeFlags Flags) ValueRef {
	// A write set may only restrict the opcode's default writes.
	if writeFlags&^Info(op).DefaultWrite != 0 {
		panic(fmt.Sprintf("ir: %v cannot write flags %b (default %b)",
			op, writeFlags, Info(op).DefaultWrite))
	}

	v := b.Block.append(value{op: op, writeFlags: writeFlags})
	b.FlagsWritten |= writeFlags
	return v
}

// SetTerm sets the block's terminal.
func (b *Builder) SetTerm(t Terminal) {
	b.Block.Terminal = t
}
