package ir

import "github.com/sarchlab/citrine/insts"

// Terminal is the control-flow clause that ends a Block. Terminals are
// plain values outside the SSA use-list graph; control flow expressed
// through a value (BranchWritePC, BXWritePC) is an instruction, not a
// terminal.
type Terminal interface {
	isTerminal()
}

// Interpret calls out to the guest interpreter, starting at Next. The
// interpreter must interpret at least one instruction but may choose to
// interpret more.
type Interpret struct {
	Next LocationDescriptor
}

// ReturnToDispatch returns control to the dispatcher, which uses the value
// in R15 and the CPSR to determine what comes next.
type ReturnToDispatch struct{}

// LinkBlock jumps to the basic block described by Next if enough cycles
// remain; otherwise control returns to the dispatcher.
type LinkBlock struct {
	Next LocationDescriptor
}

// LinkBlockFast jumps to the basic block described by Next unconditionally.
// It must only be emitted when this provably cannot hang, even in the face
// of other optimizations; in practice that means short forward jumps. A
// backend without the optimization may treat it exactly as LinkBlock.
type LinkBlockFast struct {
	Next LocationDescriptor
}

// PopRSBHint checks the top of the return stack buffer against R15. On a
// miss, control returns to the dispatcher. A backend without an RSB may
// treat it exactly as ReturnToDispatch.
type PopRSBHint struct{}

// If conditionally executes one terminal or another depending on the
// run-time state of the ARM flags.
type If struct {
	Cond insts.Cond
	Then Terminal
	Else Terminal
}

func (Interpret) isTerminal()        {}
func (ReturnToDispatch) isTerminal() {}
func (LinkBlock) isTerminal()        {}
func (LinkBlockFast) isTerminal()    {}
func (PopRSBHint) isTerminal()       {}
func (If) isTerminal()               {}
