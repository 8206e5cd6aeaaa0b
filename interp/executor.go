package interp

import (
	"math/bits"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/citrine/insts"
	"github.com/sarchlab/citrine/ir"
	"github.com/sarchlab/citrine/translate"
)

var log = logrus.WithField("component", "interp")

// Memory is the guest-memory view used for instruction fetch and the
// Read32 microoperation.
type Memory interface {
	Read32(vaddr uint32) uint32
}

// Interpreter steps the guest by at least one instruction. The executor
// calls out to it when a block ends in an Interpret terminal. It returns
// the number of instructions actually interpreted.
type Interpreter interface {
	Step(state *State, mem Memory) int
}

// FetchModel estimates instruction-fetch timing. The dispatch loop probes
// it once per block; the returned penalty is extra ticks charged to the
// core timer, never architectural state.
type FetchModel interface {
	Access(addr uint32) (penalty uint64)
}

// CPSR bits of interest.
const (
	CPSRT = 1 << 5
	CPSRE = 1 << 9
	CPSRV = 1 << 28
	CPSRC = 1 << 29
	CPSRZ = 1 << 30
	CPSRN = 1 << 31
)

// State is the guest-visible CPU state the executor runs blocks against.
// R15 is the architectural PC.
type State struct {
	Regs [insts.NumRegs]uint32
	CPSR uint32
}

// Executor owns the block cache and the dispatch loop for one guest core.
// It runs on a single dedicated emulation thread; none of its state is
// synchronized.
type Executor struct {
	mem Memory
	dec *insts.Decoder

	state State

	// regs is the run-state register file: slots 0..15 shadow the guest
	// GPRs, the rest hold IR values.
	regs []uint32

	// cond is the residual condition carried between blocks.
	cond insts.Cond

	cache *blockCache

	// reschedule may be set from outside the emulation thread; it is
	// checked at every block boundary and cleared when the dispatcher
	// starts a run.
	reschedule atomic.Bool

	fallback Interpreter
	fetch    FetchModel

	fetchPenalty uint64

	// Exclusive monitor record for the LDREX/STREX family.
	exclusiveValid bool
	exclusiveAddr  uint32
	exclusiveSize  uint32
}

// Option configures an Executor.
type Option func(*Executor)

// WithCacheCapacity sets the block-cache capacity.
func WithCacheCapacity(capacity int) Option {
	return func(e *Executor) {
		e.cache = newBlockCache(capacity)
	}
}

// WithInterpreter sets the external guest interpreter used for blocks the
// translator could not lower.
func WithInterpreter(i Interpreter) Option {
	return func(e *Executor) {
		e.fallback = i
	}
}

// WithFetchModel attaches an instruction-fetch timing model.
func WithFetchModel(m FetchModel) Option {
	return func(e *Executor) {
		e.fetch = m
	}
}

// NewExecutor creates an executor over the given guest memory.
func NewExecutor(mem Memory, opts ...Option) *Executor {
	e := &Executor{
		mem:  mem,
		dec:  insts.NewDecoder(),
		regs: make([]uint32, regFileSize),
		cond: insts.CondAL,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = newBlockCache(DefaultCacheCapacity)
	}
	return e
}

// State returns the executor's guest CPU state.
func (e *Executor) State() *State { return &e.state }

// Decoder returns the decoder shared by all translations of this executor.
func (e *Executor) Decoder() *insts.Decoder { return e.dec }

// PrepareReschedule asks the dispatch loop to exit at the next block
// boundary. The currently executing block always runs to completion.
func (e *Executor) PrepareReschedule() {
	e.reschedule.Store(true)
}

// ClearCache drops every translated block.
func (e *Executor) ClearCache() {
	e.cache.clear()
	log.Debug("instruction cache cleared")
}

// InvalidateRange drops every translated block whose source PC lies within
// [start, start+length).
func (e *Executor) InvalidateRange(start, length uint32) {
	removed := e.cache.invalidateRange(start, length)
	if removed > 0 {
		log.WithFields(logrus.Fields{
			"start": start, "length": length, "removed": removed,
		}).Debug("cache range invalidated")
	}
}

// CachedBlocks returns the number of blocks currently cached.
func (e *Executor) CachedBlocks() int { return e.cache.len() }

// ClearExclusive invalidates the exclusive monitor record.
func (e *Executor) ClearExclusive() {
	e.exclusiveValid = false
}

// ResetRunState clears the residual condition and the exclusive monitor.
// Called when a different thread context is loaded.
func (e *Executor) ResetRunState() {
	e.cond = insts.CondAL
	e.exclusiveValid = false
}

// TakeFetchPenalty returns and clears the accumulated fetch-model penalty
// ticks.
func (e *Executor) TakeFetchPenalty() uint64 {
	p := e.fetchPenalty
	e.fetchPenalty = 0
	return p
}

// currentLocation derives the dispatch key from the architectural state:
// R15, the CPSR T and E bits, and the residual condition.
func (e *Executor) currentLocation() ir.LocationDescriptor {
	return ir.LocationDescriptor{
		PC:    e.state.Regs[15],
		TFlag: e.state.CPSR&CPSRT != 0,
		EFlag: e.state.CPSR&CPSRE != 0,
		Cond:  e.cond,
	}
}

// Execute runs the dispatch loop: look up or translate the block for the
// current location, run it, apply its terminal, and repeat until the
// instruction budget is spent or a reschedule is requested. It returns the
// number of guest instructions accounted.
func (e *Executor) Execute(budget int) int {
	e.reschedule.Store(false)
	executed := 0

	for {
		loc := e.currentLocation()

		block := e.cache.lookup(loc)
		if block == nil {
			block = lowerBlock(translate.Translate(e.mem, e.dec, loc))
			e.cache.insert(loc, block)
		}
		if e.fetch != nil {
			e.fetchPenalty += e.fetch.Access(loc.PC)
		}

		// A block translated under a residual condition is a run of
		// instructions that all carry that condition. When the condition
		// does not hold, every one of them is a NOP: step straight over
		// the block.
		if loc.Cond != insts.CondAL && loc.Cond != insts.CondNV && !e.condHolds(loc.Cond) {
			e.state.Regs[15] = loc.PC + uint32(4*block.cyclesConsumed)
			e.cond = insts.CondAL
			budget -= block.cyclesConsumed
			executed += block.cyclesConsumed
			if e.reschedule.Load() || budget <= 0 {
				break
			}
			continue
		}

		interpret, next := e.runBlock(block)
		budget -= block.cyclesConsumed
		executed += block.cyclesConsumed

		if interpret {
			n := e.interpretFrom(next)
			if n == 0 {
				// No interpreter to delegate to; yield so the host can
				// decide what to do with the unrunnable block.
				break
			}
			budget -= n
			executed += n
		}

		if e.reschedule.Load() || budget <= 0 {
			break
		}
	}

	return executed
}

// Step executes one dispatch iteration: at least one guest instruction,
// possibly a whole block.
func (e *Executor) Step() int {
	return e.Execute(1)
}

// condHolds evaluates a condition against the current CPSR flags.
func (e *Executor) condHolds(cond insts.Cond) bool {
	cpsr := e.state.CPSR
	return cond.Passed(
		cpsr&CPSRN != 0, cpsr&CPSRZ != 0, cpsr&CPSRC != 0, cpsr&CPSRV != 0)
}

// interpretFrom hands control to the external interpreter for at least one
// instruction.
func (e *Executor) interpretFrom(next ir.LocationDescriptor) int {
	if e.fallback == nil {
		log.WithField("pc", next.PC).
			Warn("interpret terminal with no interpreter attached")
		return 0
	}
	return e.fallback.Step(&e.state, e.mem)
}

// runBlock executes a lowered block against the guest state, then applies
// its terminal. It reports whether the terminal requested interpretation
// and from where.
func (e *Executor) runBlock(block *Block) (interpret bool, next ir.LocationDescriptor) {
	regs := e.regs
	copy(regs[:16], e.state.Regs[:])

	cpsr := e.state.CPSR
	tf := cpsr&CPSRT != 0
	ef := cpsr&CPSRE != 0
	nf := cpsr&CPSRN != 0
	zf := cpsr&CPSRZ != 0
	cf := cpsr&CPSRC != 0
	vf := cpsr&CPSRV != 0

	for _, w := range block.code {
		opcode, dest, a, b, imm := unpack(w)
		op := ir.Op(opcode & 0xFF)
		mask := ir.FlagsNone
		if opcode&opcodeWritesFlags != 0 {
			mask = ir.Flags(opcode>>opcodeMaskShift) & ir.FlagsAny
		}

		switch op {
		case ir.GetGPR:
			regs[dest] = regs[a]
		case ir.SetGPR:
			regs[a] = regs[b]
		case ir.ConstU32:
			regs[dest] = imm
		case ir.PushRSBHint:
			regs[14] = regs[a]
		case ir.AluWritePC:
			if tf {
				regs[15] = regs[a] &^ 1
			} else {
				regs[15] = regs[a] &^ 3
			}
		case ir.BranchWritePC:
			regs[15] = regs[a] &^ 3
		case ir.LoadWritePC, ir.BXWritePC:
			v := regs[a]
			tf = v&1 != 0
			if tf {
				regs[15] = v &^ 1
			} else {
				regs[15] = v &^ 3
			}
		case ir.Add:
			x, y := regs[a], regs[b]
			r := x + y
			regs[dest] = r
			if mask != 0 {
				nf, zf = applyNZ(mask, nf, zf, r)
				if mask&ir.FlagC != 0 {
					cf = r < x
				}
				if mask&ir.FlagV != 0 {
					vf = (x^y)&0x80000000 == 0 && (x^r)&0x80000000 != 0
				}
			}
		case ir.AddWithCarry:
			x, y := regs[a], regs[b]
			carry := uint64(0)
			if cf {
				carry = 1
			}
			sum := uint64(x) + uint64(y) + carry
			r := uint32(sum)
			regs[dest] = r
			if mask != 0 {
				nf, zf = applyNZ(mask, nf, zf, r)
				if mask&ir.FlagC != 0 {
					cf = sum > 0xFFFFFFFF
				}
				if mask&ir.FlagV != 0 {
					vf = (x^y)&0x80000000 == 0 && (x^r)&0x80000000 != 0
				}
			}
		case ir.Sub:
			x, y := regs[a], regs[b]
			r := x - y
			regs[dest] = r
			if mask != 0 {
				nf, zf = applyNZ(mask, nf, zf, r)
				if mask&ir.FlagC != 0 {
					cf = x >= y // carry is NOT borrow
				}
				if mask&ir.FlagV != 0 {
					vf = (x^y)&0x80000000 != 0 && (x^r)&0x80000000 != 0
				}
			}
		case ir.And:
			r := regs[a] & regs[b]
			regs[dest] = r
			nf, zf = applyNZ(mask, nf, zf, r)
			// The carry of a logical operation comes from the operand
			// shifter, which is a separate instruction; C stays put here.
		case ir.Eor:
			r := regs[a] ^ regs[b]
			regs[dest] = r
			nf, zf = applyNZ(mask, nf, zf, r)
		case ir.Not:
			regs[dest] = ^regs[a]
		case ir.LSL:
			r, c := lslCarry(regs[a], regs[b], cf)
			regs[dest] = r
			if mask&ir.FlagC != 0 {
				cf = c
			}
		case ir.LSR:
			r, c := lsrCarry(regs[a], regs[b], cf)
			regs[dest] = r
			if mask&ir.FlagC != 0 {
				cf = c
			}
		case ir.ASR:
			r, c := asrCarry(regs[a], regs[b], cf)
			regs[dest] = r
			if mask&ir.FlagC != 0 {
				cf = c
			}
		case ir.ROR:
			r, c := rorCarry(regs[a], regs[b], cf)
			regs[dest] = r
			if mask&ir.FlagC != 0 {
				cf = c
			}
		case ir.RRX:
			v := regs[a]
			r := v >> 1
			if cf {
				r |= 0x80000000
			}
			regs[dest] = r
			if mask&ir.FlagC != 0 {
				cf = v&1 != 0
			}
		case ir.CountLeadingZeros:
			regs[dest] = uint32(bits.LeadingZeros32(regs[a]))
		case ir.ClearExclusive:
			e.exclusiveValid = false
		case ir.Read32:
			regs[dest] = e.mem.Read32(regs[a])
		default:
			panic("interp: unhandled microoperation " + op.String())
		}
	}

	// Apply the terminal, resolving nested If terminals against the
	// just-computed flags.
	term := block.terminal
	for {
		switch tt := term.(type) {
		case ir.ReturnToDispatch, ir.PopRSBHint:
			// No RSB in this backend; both yield to dispatch.
			e.cond = insts.CondAL
		case ir.LinkBlock:
			regs[15] = tt.Next.PC
			tf = tt.Next.TFlag
			ef = tt.Next.EFlag
			e.cond = tt.Next.Cond
		case ir.LinkBlockFast:
			// Treated exactly as LinkBlock pending a native backend.
			regs[15] = tt.Next.PC
			tf = tt.Next.TFlag
			ef = tt.Next.EFlag
			e.cond = tt.Next.Cond
		case ir.Interpret:
			interpret = true
			next = tt.Next
			regs[15] = tt.Next.PC
			tf = tt.Next.TFlag
			ef = tt.Next.EFlag
			e.cond = tt.Next.Cond
		case ir.If:
			if tt.Cond.Passed(nf, zf, cf, vf) {
				term = tt.Then
			} else {
				term = tt.Else
			}
			continue
		case nil:
			panic("interp: block without terminal")
		}
		break
	}

	cpsr &^= CPSRT | CPSRE | CPSRN | CPSRZ | CPSRC | CPSRV
	if tf {
		cpsr |= CPSRT
	}
	if ef {
		cpsr |= CPSRE
	}
	if nf {
		cpsr |= CPSRN
	}
	if zf {
		cpsr |= CPSRZ
	}
	if cf {
		cpsr |= CPSRC
	}
	if vf {
		cpsr |= CPSRV
	}
	e.state.CPSR = cpsr
	copy(e.state.Regs[:], regs[:16])

	return interpret, next
}

func applyNZ(mask ir.Flags, nf, zf bool, r uint32) (bool, bool) {
	if mask&ir.FlagN != 0 {
		nf = r&0x80000000 != 0
	}
	if mask&ir.FlagZ != 0 {
		zf = r == 0
	}
	return nf, zf
}

// The shift helpers implement ARM scalar shift semantics: the carry out is
// the last bit shifted out, and a zero amount leaves both value and carry
// untouched. Amounts come from the translator and never exceed 32.

func lslCarry(v, amount uint32, cin bool) (uint32, bool) {
	switch {
	case amount == 0:
		return v, cin
	case amount < 32:
		return v << amount, v&(1<<(32-amount)) != 0
	case amount == 32:
		return 0, v&1 != 0
	default:
		return 0, false
	}
}

func lsrCarry(v, amount uint32, cin bool) (uint32, bool) {
	switch {
	case amount == 0:
		return v, cin
	case amount < 32:
		return v >> amount, v&(1<<(amount-1)) != 0
	case amount == 32:
		return 0, v&0x80000000 != 0
	default:
		return 0, false
	}
}

func asrCarry(v, amount uint32, cin bool) (uint32, bool) {
	if amount == 0 {
		return v, cin
	}
	if amount >= 32 {
		if v&0x80000000 != 0 {
			return 0xFFFFFFFF, true
		}
		return 0, false
	}
	return uint32(int32(v) >> amount), v&(1<<(amount-1)) != 0
}

func rorCarry(v, amount uint32, cin bool) (uint32, bool) {
	if amount == 0 {
		return v, cin
	}
	r := bits.RotateLeft32(v, -int(amount&31))
	if amount&31 == 0 {
		return v, v&0x80000000 != 0
	}
	return r, r&0x80000000 != 0
}
