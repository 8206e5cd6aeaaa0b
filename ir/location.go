package ir

import (
	"fmt"

	"github.com/sarchlab/citrine/insts"
)

// LocationDescriptor identifies a basic block: the guest program counter
// plus the CPSR bits that change how code at that address translates. It
// is the sole key of the block cache.
//
// Cond is the residual condition carried across block boundaries: when a
// conditional instruction does not match the condition the block was
// translated under, the translator ends the block and re-dispatches to the
// same PC with Cond overridden instead of emitting a branch.
type LocationDescriptor struct {
	PC    uint32
	TFlag bool // Thumb / ARM
	EFlag bool // big / little endian
	Cond  insts.Cond
}

func (l LocationDescriptor) String() string {
	t, e := 'a', 'l'
	if l.TFlag {
		t = 't'
	}
	if l.EFlag {
		e = 'b'
	}
	return fmt.Sprintf("{%08x %c%c cond=%d}", l.PC, t, e, l.Cond)
}
