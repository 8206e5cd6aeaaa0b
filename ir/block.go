package ir

import (
	"fmt"

	"github.com/sarchlab/citrine/insts"
)

// ValueRef names a microinstruction within its owning Block. All values
// live in a single arena owned by the block, so references are plain
// indices and use lists are (user, slot) pairs; there are no shared
// pointers to form cycles.
type ValueRef int32

// NoValue is the null ValueRef.
const NoValue ValueRef = -1

// Use records that instruction User references a value through argument
// slot Slot.
type Use struct {
	User ValueRef
	Slot int
}

type value struct {
	op         Op
	imm        uint32      // ConstU32 literal
	reg        insts.ArmReg // GetGPR / SetGPR register
	args       []ValueRef
	writeFlags Flags
	uses       []Use
}

// Block is a basic block: zero or more microinstructions, in execution
// order, followed by exactly one terminal.
type Block struct {
	Location       LocationDescriptor
	Terminal       Terminal
	CyclesConsumed int

	values []value
}

// NewBlock creates an empty block for the given location.
func NewBlock(location LocationDescriptor) *Block {
	return &Block{Location: location}
}

// NumValues returns the number of microinstructions in the block.
func (b *Block) NumValues() int { return len(b.values) }

func (b *Block) at(v ValueRef) *value {
	if v < 0 || int(v) >= len(b.values) {
		panic(fmt.Sprintf("ir: value %d out of range", v))
	}
	return &b.values[v]
}

// OpOf returns the microoperation of v.
func (b *Block) OpOf(v ValueRef) Op { return b.at(v).op }

// TypeOf returns the result type of v.
func (b *Block) TypeOf(v ValueRef) Type { return Info(b.at(v).op).Ret }

// Imm returns the literal of a ConstU32 value.
func (b *Block) Imm(v ValueRef) uint32 {
	if b.at(v).op != ConstU32 {
		panic("ir: Imm on non-constant value")
	}
	return b.at(v).imm
}

// Reg returns the guest register of a GetGPR, SetGPR or PushRSBHint value.
func (b *Block) Reg(v ValueRef) insts.ArmReg {
	switch b.at(v).op {
	case GetGPR, SetGPR:
		return b.at(v).reg
	case PushRSBHint:
		return insts.RegLR
	}
	panic("ir: Reg on non-register value")
}

// NumArgs returns the number of arguments of v.
func (b *Block) NumArgs(v ValueRef) int { return len(b.at(v).args) }

// Arg returns argument slot i of v.
func (b *Block) Arg(v ValueRef, i int) ValueRef {
	a := b.at(v).args[i]
	if a == NoValue {
		panic(fmt.Sprintf("ir: argument %d of value %d never set", i, v))
	}
	return a
}

// ReadFlags returns the flags v reads.
func (b *Block) ReadFlags(v ValueRef) Flags { return Info(b.at(v).op).Read }

// WriteFlags returns the flags v writes.
func (b *Block) WriteFlags(v ValueRef) Flags { return b.at(v).writeFlags }

// HasUses reports whether any instruction references v.
func (b *Block) HasUses(v ValueRef) bool { return len(b.at(v).uses) > 0 }

// HasOneUse reports whether exactly one argument slot references v.
func (b *Block) HasOneUse(v ValueRef) bool { return len(b.at(v).uses) == 1 }

// HasManyUses reports whether more than one argument slot references v.
func (b *Block) HasManyUses(v ValueRef) bool { return len(b.at(v).uses) > 1 }

// Uses returns a copy of v's use list.
func (b *Block) Uses(v ValueRef) []Use {
	return append([]Use(nil), b.at(v).uses...)
}

// append adds a value to the arena and returns its reference. Argument
// slots start unset; callers must fill them through SetArg so use lists
// stay consistent.
func (b *Block) append(val value) ValueRef {
	info := Info(val.op)
	val.args = make([]ValueRef, info.NumArgs())
	for i := range val.args {
		val.args[i] = NoValue
	}
	b.values = append(b.values, val)
	return ValueRef(len(b.values) - 1)
}

// SetArg points argument slot i of user at v, maintaining both use lists.
func (b *Block) SetArg(user ValueRef, i int, v ValueRef) {
	info := Info(b.at(user).op)
	if i >= info.NumArgs() {
		panic(fmt.Sprintf("ir: %v has no argument %d", b.at(user).op, i))
	}
	if b.TypeOf(v) != info.Args[i] {
		panic(fmt.Sprintf("ir: argument %d of %v must be %v, got %v",
			i, b.at(user).op, info.Args[i], b.TypeOf(v)))
	}

	if old := b.at(user).args[i]; old != NoValue {
		b.removeUse(old, user, i)
	}
	b.at(user).args[i] = v
	b.addUse(v, user, i)
}

// ReplaceUsesWith rewrites every user of old to reference repl instead.
// Afterwards old has no uses. The types of old and repl must match.
func (b *Block) ReplaceUsesWith(old, repl ValueRef) {
	if b.TypeOf(old) != b.TypeOf(repl) {
		panic(fmt.Sprintf("ir: ReplaceUsesWith type mismatch: %v vs %v",
			b.TypeOf(old), b.TypeOf(repl)))
	}
	if old == repl {
		return
	}

	// A user referencing old through several slots is rewritten once, for
	// all of its slots.
	for len(b.at(old).uses) > 0 {
		b.replaceUseOfXWithY(b.at(old).uses[0].User, old, repl)
	}
	if len(b.at(old).uses) != 0 {
		panic("ir: use list not empty after ReplaceUsesWith")
	}
}

// replaceUseOfXWithY rewrites every argument slot of user holding x to
// hold y. There may be multiple such slots.
func (b *Block) replaceUseOfXWithY(user, x, y ValueRef) {
	found := false
	for slot, a := range b.at(user).args {
		if a != x {
			continue
		}
		b.at(user).args[slot] = y
		b.removeUse(x, user, slot)
		b.addUse(y, user, slot)
		found = true
	}
	if !found {
		panic("ir: replaceUseOfXWithY: user does not reference x; use management bug")
	}
}

func (b *Block) addUse(v, user ValueRef, slot int) {
	b.at(v).uses = append(b.at(v).uses, Use{User: user, Slot: slot})
}

func (b *Block) removeUse(v, user ValueRef, slot int) {
	uses := b.at(v).uses
	for i, u := range uses {
		if u.User == user && u.Slot == slot {
			b.at(v).uses = append(uses[:i], uses[i+1:]...)
			return
		}
	}
	panic("ir: removeUse without matching addUse; use management bug")
}

// Validate checks use-list consistency and op-info conformance for every
// value in the block. It returns the first inconsistency found.
func (b *Block) Validate() error {
	for v := range b.values {
		val := &b.values[v]
		info := Info(val.op)

		if len(val.args) != info.NumArgs() {
			return fmt.Errorf("value %d: %v has %d args, want %d",
				v, val.op, len(val.args), info.NumArgs())
		}
		if val.writeFlags&^info.DefaultWrite != 0 {
			return fmt.Errorf("value %d: %v writes %b outside default %b",
				v, val.op, val.writeFlags, info.DefaultWrite)
		}

		for slot, a := range val.args {
			if a == NoValue {
				return fmt.Errorf("value %d: %v argument %d never set", v, val.op, slot)
			}
			if b.TypeOf(a) != info.Args[slot] {
				return fmt.Errorf("value %d: argument %d is %v, want %v",
					v, slot, b.TypeOf(a), info.Args[slot])
			}
			n := 0
			for _, u := range b.values[a].uses {
				if u.User == ValueRef(v) && u.Slot == slot {
					n++
				}
			}
			if n != 1 {
				return fmt.Errorf("value %d: argument %d has %d use entries, want 1",
					v, slot, n)
			}
		}

		for _, u := range val.uses {
			if u.User < 0 || int(u.User) >= len(b.values) {
				return fmt.Errorf("value %d: use by out-of-range value %d", v, u.User)
			}
			args := b.values[u.User].args
			if u.Slot >= len(args) || args[u.Slot] != ValueRef(v) {
				return fmt.Errorf("value %d: stale use entry (%d, %d)", v, u.User, u.Slot)
			}
		}
	}
	return nil
}
