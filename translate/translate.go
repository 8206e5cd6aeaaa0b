// Package translate walks guest ARM code one basic block at a time and
// emits the SSA microinstruction IR for it.
package translate

import (
	"math/bits"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/citrine/disasm"
	"github.com/sarchlab/citrine/insts"
	"github.com/sarchlab/citrine/ir"
)

var log = logrus.WithField("component", "translate")

// Memory is the guest-memory view the translator fetches instructions
// through.
type Memory interface {
	Read32(vaddr uint32) uint32
}

// translator holds the per-block translation state. It is scope-local to
// one Translate call; partial blocks never escape.
type translator struct {
	mem Memory
	dec *insts.Decoder

	ir      *ir.Builder
	current ir.LocationDescriptor

	instructionsTranslated int
	stopCompilation        bool

	// regValues caches the last value bound to each guest register in this
	// block. R15 reads resolve to constants instead.
	regValues [15]ir.ValueRef

	word uint32 // instruction word currently being visited
}

// Translate builds the basic block starting at location. Translation runs
// until an instruction ends the block or the cursor crosses a 4 KiB page
// boundary; in the latter case the block chains to the next page with a
// LinkBlock terminal.
func Translate(mem Memory, dec *insts.Decoder, location ir.LocationDescriptor) *ir.Block {
	t := &translator{
		mem:     mem,
		dec:     dec,
		ir:      ir.NewBuilder(location),
		current: location,
	}
	for i := range t.regValues {
		t.regValues[i] = ir.NoValue
	}
	return t.translate()
}

func (t *translator) translate() *ir.Block {
	if t.current.TFlag {
		// Thumb blocks are left to the interpreter.
		t.ir.SetTerm(ir.Interpret{Next: t.current})
		return t.ir.Block
	}

	for {
		t.instructionsTranslated++
		t.translateSingle()
		if t.stopCompilation || t.current.PC&0xFFF == 0 {
			break
		}
	}

	if !t.stopCompilation {
		// Translation ended purely because the cursor hit a page boundary.
		t.ir.SetTerm(ir.LinkBlock{Next: t.current})
	}

	// The guest registers were pulled into values at first read; write the
	// final bindings back. A slot still holding its own initial GetGPR
	// needs no store.
	for i, v := range t.regValues {
		if v == ir.NoValue {
			continue
		}
		reg := insts.ArmReg(i)
		if t.ir.Block.OpOf(v) == ir.GetGPR && t.ir.Block.Reg(v) == reg {
			continue
		}
		t.ir.SetGPR(reg, v)
	}

	t.ir.Block.CyclesConsumed = t.instructionsTranslated
	t.stopCompilation = true
	return t.ir.Block
}

func (t *translator) translateSingle() {
	t.word = t.mem.Read32(t.current.PC &^ 3)

	inst := t.dec.Decode(t.word)
	if inst == nil {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			log.WithField("pc", t.current.PC).
				Debugf("undefined word %08x", t.word)
		}
		t.fallbackToInterpreter()
		return
	}

	t.visit(inst)
	t.current.PC += 4
}

// getReg returns the current value of a guest register. R15 reads resolve
// to the constant PC+8 per the ARM pipeline-visible PC rule; other
// registers are read once and cached for the rest of the block.
func (t *translator) getReg(reg insts.ArmReg) ir.ValueRef {
	if reg == insts.RegPC {
		return t.ir.ConstU32(t.current.PC + 8)
	}
	if t.regValues[reg] == ir.NoValue {
		t.regValues[reg] = t.ir.GetGPR(reg)
	}
	return t.regValues[reg]
}

// setReg rebinds a guest register. The store itself is deferred to the
// end-of-block flush.
func (t *translator) setReg(reg insts.ArmReg, v ir.ValueRef) {
	t.regValues[reg] = v
}

// pc returns the ARM-visible PC of the instruction being translated.
func (t *translator) pc() uint32 {
	return t.current.PC + 8
}

func (t *translator) fallbackToInterpreter() {
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		log.WithField("pc", t.current.PC).
			Debugf("interpreter fallback: %s", disasm.GNU(t.word))
	}
	t.ir.SetTerm(ir.Interpret{Next: t.current})
	t.stopCompilation = true
}

// conditionPassed reports whether the instruction's condition is known to
// hold in this block. The check is free when the condition matches the
// block's residual condition and no flag has been written since block
// entry. Otherwise the block is cut short and re-dispatched with the
// condition folded into the location descriptor.
func (t *translator) conditionPassed(cond insts.Cond) bool {
	if cond == t.current.Cond && t.ir.FlagsWritten == ir.FlagsNone {
		// Finer-grained checks on FlagsWritten (e.g. GE only needs N and V
		// intact) are possible but not required.
		return true
	}

	// This instruction was not actually translated.
	t.instructionsTranslated--

	next := t.current
	next.Cond = cond
	t.ir.SetTerm(ir.LinkBlock{Next: next})
	t.stopCompilation = true
	return false
}

// unconditionalContext guards instructions from the 1111 encoding space,
// which execute regardless of the block's residual condition. Inside a
// condition-assuming block they are cut off into their own block so a
// failed condition cannot skip them.
func (t *translator) unconditionalContext() bool {
	if t.current.Cond == insts.CondAL {
		return true
	}

	t.instructionsTranslated--

	next := t.current
	next.Cond = insts.CondAL
	t.ir.SetTerm(ir.LinkBlock{Next: next})
	t.stopCompilation = true
	return false
}

// aluWritePC implements the ARMv6 behaviour of data-processing writes to
// R15, which is branchWritePC.
func (t *translator) aluWritePC(v ir.ValueRef) {
	t.branchWritePC(v)
}

// loadWritePC implements the ARMv6 behaviour of load writes to R15, which
// is bxWritePC.
func (t *translator) loadWritePC(v ir.ValueRef) {
	t.bxWritePC(v)
}

func (t *translator) branchWritePC(v ir.ValueRef) {
	if t.ir.Block.OpOf(v) == ir.ConstU32 {
		t.branchWritePCConst(t.ir.Block.Imm(v))
		return
	}
	t.ir.Inst1(ir.BranchWritePC, v, ir.FlagsNone)
	t.ir.SetTerm(ir.ReturnToDispatch{})
	t.stopCompilation = true
}

func (t *translator) branchWritePCConst(newPC uint32) {
	next := t.current
	next.PC = newPC
	t.ir.SetTerm(ir.LinkBlock{Next: next})
	t.stopCompilation = true
}

func (t *translator) bxWritePC(v ir.ValueRef) {
	if t.ir.Block.OpOf(v) == ir.ConstU32 {
		t.bxWritePCConst(t.ir.Block.Imm(v))
		return
	}
	t.ir.Inst1(ir.BXWritePC, v, ir.FlagsNone)
	t.ir.SetTerm(ir.ReturnToDispatch{})
	t.stopCompilation = true
}

func (t *translator) bxWritePCConst(newPC uint32) {
	next := t.current
	next.TFlag = newPC&1 != 0
	if next.TFlag {
		next.PC = newPC &^ 1
	} else {
		next.PC = newPC &^ 3
	}
	t.ir.SetTerm(ir.LinkBlock{Next: next})
	t.stopCompilation = true
}

// armExpandImm rotates the data-processing immediate into its 32-bit form.
func armExpandImm(imm8 uint32, rotate uint8) uint32 {
	return bits.RotateLeft32(imm8, -2*int(rotate))
}

// signExtend26 sign-extends a branch offset already shifted left by two.
func signExtend26(v uint32) uint32 {
	if v&0x02000000 != 0 {
		v |= 0xFC000000
	}
	return v
}

func flagsIf(cond bool, f ir.Flags) ir.Flags {
	if cond {
		return f
	}
	return ir.FlagsNone
}
