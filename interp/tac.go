// Package interp lowers translated micro-IR blocks into a compact
// three-address form, caches them by location, and executes them against
// the guest CPU state.
package interp

import (
	"fmt"

	"github.com/sarchlab/citrine/ir"
)

// A lowered instruction is one 64-bit word:
//
//	opcode:16 | dest:16 | a:16 | b:16
//	opcode:16 | dest:16 | imm32:32        (ConstU32)
//
// The low byte of opcode is the ir.Op. Bit 15 signals that the
// instruction writes flags; bits 8..13 carry the restricted write-flag
// mask so the lowered form keeps the IR's flag-restriction semantics.
const (
	opcodeWritesFlags = 0x8000
	opcodeMaskShift   = 8
)

func packOpcode(op ir.Op, writeFlags ir.Flags) uint16 {
	opcode := uint16(op)
	if writeFlags != ir.FlagsNone {
		opcode |= opcodeWritesFlags | uint16(writeFlags)<<opcodeMaskShift
	}
	return opcode
}

func packABC(opcode, dest, a, b uint16) uint64 {
	return uint64(opcode)<<48 | uint64(dest)<<32 | uint64(a)<<16 | uint64(b)
}

func packImm(opcode, dest uint16, imm uint32) uint64 {
	return uint64(opcode)<<48 | uint64(dest)<<32 | uint64(imm)
}

func unpack(w uint64) (opcode, dest, a, b uint16, imm uint32) {
	return uint16(w >> 48), uint16(w >> 32), uint16(w >> 16), uint16(w), uint32(w)
}

// Block is the lowered, executable form of a translated basic block. It is
// owned 1:1 by its cache entry and immutable after lowering.
type Block struct {
	code           []uint64
	terminal       ir.Terminal
	cyclesConsumed int
	location       ir.LocationDescriptor
}

// Location returns the descriptor the block was translated from.
func (b *Block) Location() ir.LocationDescriptor { return b.location }

// CyclesConsumed returns the guest instruction count of the block.
func (b *Block) CyclesConsumed() int { return b.cyclesConsumed }

// regFileSize bounds the run-state register file: slots 0..15 shadow the
// guest GPRs and every IR value gets one fresh slot above them. In
// practice a block uses well under a thousand.
const regFileSize = 65536

// lowerBlock assigns every IR value a virtual register starting at 16 and
// rewrites the block into three-address words.
func lowerBlock(mb *ir.Block) *Block {
	out := &Block{
		terminal:       mb.Terminal,
		cyclesConsumed: mb.CyclesConsumed,
		location:       mb.Location,
	}

	freePos := uint16(16)
	pos := make([]uint16, mb.NumValues())

	alloc := func(v ir.ValueRef) uint16 {
		if int(freePos) >= regFileSize-1 {
			panic(fmt.Sprintf("interp: block at %v exceeds the register file", mb.Location))
		}
		pos[v] = freePos
		freePos++
		return pos[v]
	}

	for i := 0; i < mb.NumValues(); i++ {
		v := ir.ValueRef(i)
		op := mb.OpOf(v)

		switch op {
		case ir.GetGPR:
			dest := alloc(v)
			out.code = append(out.code,
				packABC(packOpcode(op, ir.FlagsNone), dest, uint16(mb.Reg(v)), 0))
		case ir.SetGPR:
			src := pos[mb.Arg(v, 0)]
			out.code = append(out.code,
				packABC(packOpcode(op, ir.FlagsNone), 0, uint16(mb.Reg(v)), src))
		case ir.ConstU32:
			dest := alloc(v)
			out.code = append(out.code,
				packImm(packOpcode(op, ir.FlagsNone), dest, mb.Imm(v)))
		default:
			var dest, a, b uint16
			if mb.TypeOf(v) != ir.Void {
				dest = alloc(v)
			}
			if n := mb.NumArgs(v); n >= 1 {
				a = pos[mb.Arg(v, 0)]
				if n >= 2 {
					b = pos[mb.Arg(v, 1)]
				}
				if n > 2 {
					panic("interp: microinstructions take at most two arguments")
				}
			}
			out.code = append(out.code,
				packABC(packOpcode(op, mb.WriteFlags(v)), dest, a, b))
		}
	}

	return out
}
