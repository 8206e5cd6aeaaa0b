package interp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/citrine/insts"
	"github.com/sarchlab/citrine/ir"
	"github.com/sarchlab/citrine/mem"
)

// The suite bootstrap lives in executor_test.go; these specs join the same
// suite from inside the package.

var _ = Describe("lowerBlock", func() {
	It("should allocate virtual registers from 16 upwards", func() {
		b := ir.NewBuilder(ir.LocationDescriptor{Cond: insts.CondAL})
		x := b.GetGPR(3)
		y := b.ConstU32(9)
		b.SetGPR(4, b.Inst2(ir.Add, x, y, ir.FlagsNone))
		b.SetTerm(ir.ReturnToDispatch{})

		lowered := lowerBlock(b.Block)

		Expect(lowered.code).To(HaveLen(4))

		// GetGPR r3 -> slot 16
		opcode, dest, a, _, _ := unpack(lowered.code[0])
		Expect(ir.Op(opcode & 0xFF)).To(Equal(ir.GetGPR))
		Expect(dest).To(Equal(uint16(16)))
		Expect(a).To(Equal(uint16(3)))

		// ConstU32 -> slot 17
		opcode, dest, _, _, imm := unpack(lowered.code[1])
		Expect(ir.Op(opcode & 0xFF)).To(Equal(ir.ConstU32))
		Expect(dest).To(Equal(uint16(17)))
		Expect(imm).To(Equal(uint32(9)))

		// Add(16, 17) -> slot 18, no flag bit
		opcode, dest, a, bb, _ := unpack(lowered.code[2])
		Expect(ir.Op(opcode & 0xFF)).To(Equal(ir.Add))
		Expect(opcode & opcodeWritesFlags).To(BeZero())
		Expect(dest).To(Equal(uint16(18)))
		Expect(a).To(Equal(uint16(16)))
		Expect(bb).To(Equal(uint16(17)))

		// SetGPR r4 <- slot 18
		opcode, _, a, bb, _ = unpack(lowered.code[3])
		Expect(ir.Op(opcode & 0xFF)).To(Equal(ir.SetGPR))
		Expect(a).To(Equal(uint16(4)))
		Expect(bb).To(Equal(uint16(18)))
	})

	It("should carry the restricted write mask in the opcode", func() {
		b := ir.NewBuilder(ir.LocationDescriptor{Cond: insts.CondAL})
		x := b.GetGPR(0)
		b.Inst2(ir.Add, x, b.ConstU32(0), ir.FlagsNZ)
		b.SetTerm(ir.ReturnToDispatch{})

		lowered := lowerBlock(b.Block)

		opcode, _, _, _, _ := unpack(lowered.code[2])
		Expect(opcode & opcodeWritesFlags).NotTo(BeZero())
		Expect(ir.Flags(opcode>>opcodeMaskShift) & ir.FlagsAny).To(Equal(ir.FlagsNZ))
	})
})

var _ = Describe("runBlock", func() {
	var e *Executor

	BeforeEach(func() {
		e = NewExecutor(mem.New())
	})

	It("should leave C and V alone under an NZ-restricted add", func() {
		b := ir.NewBuilder(ir.LocationDescriptor{Cond: insts.CondAL})
		x := b.GetGPR(0)
		// 0xFFFFFFFF + 1 overflows, but only N and Z may change.
		sum := b.Inst2(ir.Add, x, b.ConstU32(1), ir.FlagsNZ)
		b.SetGPR(0, sum)
		b.SetTerm(ir.ReturnToDispatch{})

		e.state.Regs[0] = 0xFFFFFFFF

		e.runBlock(lowerBlock(b.Block))

		Expect(e.state.Regs[0]).To(BeZero())
		Expect(e.state.CPSR & CPSRZ).NotTo(BeZero())
		Expect(e.state.CPSR & CPSRC).To(BeZero())
		Expect(e.state.CPSR & CPSRV).To(BeZero())
	})

	It("should resolve If terminals against the just-computed flags", func() {
		thenLoc := ir.LocationDescriptor{PC: 0x100, Cond: insts.CondAL}
		elseLoc := ir.LocationDescriptor{PC: 0x200, Cond: insts.CondAL}

		build := func(v uint32) *Block {
			b := ir.NewBuilder(ir.LocationDescriptor{Cond: insts.CondAL})
			x := b.ConstU32(v)
			b.Inst2(ir.Sub, x, b.ConstU32(1), ir.FlagsNZCV)
			b.SetTerm(ir.If{
				Cond: insts.CondEQ,
				Then: ir.LinkBlock{Next: thenLoc},
				Else: ir.LinkBlock{Next: elseLoc},
			})
			return lowerBlock(b.Block)
		}

		e.runBlock(build(1)) // 1-1 == 0: EQ
		Expect(e.state.Regs[15]).To(Equal(uint32(0x100)))

		e.runBlock(build(5)) // 5-1 != 0: NE
		Expect(e.state.Regs[15]).To(Equal(uint32(0x200)))
	})

	It("should treat LinkBlockFast exactly as LinkBlock", func() {
		next := ir.LocationDescriptor{PC: 0x300, EFlag: true, Cond: insts.CondAL}
		b := ir.NewBuilder(ir.LocationDescriptor{Cond: insts.CondAL})
		b.SetTerm(ir.LinkBlockFast{Next: next})

		e.runBlock(lowerBlock(b.Block))

		Expect(e.state.Regs[15]).To(Equal(uint32(0x300)))
		Expect(e.state.CPSR & CPSRE).NotTo(BeZero())
	})

	It("should write the link register through PushRSBHint", func() {
		b := ir.NewBuilder(ir.LocationDescriptor{Cond: insts.CondAL})
		ret := b.ConstU32(0x1234)
		b.Inst1(ir.PushRSBHint, ret, ir.FlagsNone)
		b.SetTerm(ir.PopRSBHint{})

		e.runBlock(lowerBlock(b.Block))

		Expect(e.state.Regs[14]).To(Equal(uint32(0x1234)))
	})
})
