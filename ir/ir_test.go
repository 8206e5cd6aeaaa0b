package ir_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/citrine/insts"
	"github.com/sarchlab/citrine/ir"
)

func TestIR(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "IR Suite")
}

func newBuilder() *ir.Builder {
	return ir.NewBuilder(ir.LocationDescriptor{PC: 0, Cond: insts.CondAL})
}

var _ = Describe("Builder", func() {
	var b *ir.Builder

	BeforeEach(func() {
		b = newBuilder()
	})

	It("should build a valid block with consistent use lists", func() {
		rn := b.GetGPR(2)
		imm := b.ConstU32(3)
		sum := b.Inst2(ir.Add, rn, imm, ir.FlagsNZCV)
		b.SetGPR(1, sum)
		b.SetTerm(ir.LinkBlock{Next: ir.LocationDescriptor{PC: 4, Cond: insts.CondAL}})

		Expect(b.Block.NumValues()).To(Equal(4))
		Expect(b.Block.Validate()).To(Succeed())

		Expect(b.Block.HasOneUse(rn)).To(BeTrue())
		Expect(b.Block.HasOneUse(imm)).To(BeTrue())
		Expect(b.Block.HasOneUse(sum)).To(BeTrue())
		Expect(b.Block.Uses(rn)).To(Equal([]ir.Use{{User: sum, Slot: 0}}))
	})

	It("should track the running union of written flags", func() {
		Expect(b.FlagsWritten).To(Equal(ir.FlagsNone))

		x := b.GetGPR(0)
		y := b.ConstU32(1)
		b.Inst2(ir.Add, x, y, ir.FlagsNZ)
		Expect(b.FlagsWritten).To(Equal(ir.FlagsNZ))

		b.Inst2(ir.Sub, x, y, ir.FlagsNZCV)
		Expect(b.FlagsWritten).To(Equal(ir.FlagsNZCV))
	})

	It("should record two use entries for a doubly-used value", func() {
		x := b.GetGPR(0)
		double := b.Inst2(ir.Add, x, x, ir.FlagsNone)

		Expect(b.Block.HasManyUses(x)).To(BeTrue())
		Expect(b.Block.Uses(x)).To(ConsistOf(
			ir.Use{User: double, Slot: 0},
			ir.Use{User: double, Slot: 1},
		))
		Expect(b.Block.Validate()).To(Succeed())
	})

	It("should panic when a write set is not a subset of the default", func() {
		x := b.GetGPR(0)
		Expect(func() {
			// Not never writes flags.
			b.Inst1(ir.Not, x, ir.FlagC)
		}).To(Panic())
	})

	It("should panic on argument type mismatches", func() {
		x := b.GetGPR(0)
		store := b.SetGPR(1, x)
		Expect(func() {
			// SetGPR produces Void; it cannot feed an Add.
			b.Inst2(ir.Add, store, x, ir.FlagsNone)
		}).To(Panic())
	})
})

var _ = Describe("ReplaceUsesWith", func() {
	It("should rewrite every user and empty the old use list", func() {
		b := newBuilder()
		old := b.GetGPR(0)
		user1 := b.Inst1(ir.Not, old, ir.FlagsNone)
		user2 := b.Inst2(ir.Add, old, old, ir.FlagsNone)
		repl := b.ConstU32(7)

		b.Block.ReplaceUsesWith(old, repl)

		Expect(b.Block.HasUses(old)).To(BeFalse())
		Expect(b.Block.Arg(user1, 0)).To(Equal(repl))
		Expect(b.Block.Arg(user2, 0)).To(Equal(repl))
		Expect(b.Block.Arg(user2, 1)).To(Equal(repl))
		Expect(b.Block.Validate()).To(Succeed())
	})

	It("should chain replacements through an intermediate value", func() {
		b := newBuilder()
		old := b.GetGPR(0)
		user := b.Inst1(ir.Not, old, ir.FlagsNone)
		mid := b.ConstU32(1)
		final := b.ConstU32(2)

		b.Block.ReplaceUsesWith(old, mid)
		b.Block.ReplaceUsesWith(mid, final)

		Expect(b.Block.Arg(user, 0)).To(Equal(final))
		Expect(b.Block.HasUses(mid)).To(BeFalse())
		Expect(b.Block.Validate()).To(Succeed())
	})

	It("should panic on a type mismatch", func() {
		b := newBuilder()
		old := b.GetGPR(0)
		b.Inst1(ir.Not, old, ir.FlagsNone)
		void := b.SetGPR(1, b.ConstU32(0))

		Expect(func() {
			b.Block.ReplaceUsesWith(old, void)
		}).To(Panic())
	})
})

var _ = Describe("SetArg", func() {
	It("should move the use entry from the old argument to the new one", func() {
		b := newBuilder()
		x := b.GetGPR(0)
		y := b.GetGPR(1)
		not := b.Inst1(ir.Not, x, ir.FlagsNone)

		b.Block.SetArg(not, 0, y)

		Expect(b.Block.HasUses(x)).To(BeFalse())
		Expect(b.Block.HasOneUse(y)).To(BeTrue())
		Expect(b.Block.Arg(not, 0)).To(Equal(y))
		Expect(b.Block.Validate()).To(Succeed())
	})
})

var _ = Describe("OpInfo", func() {
	It("should fix the arity and defaults of the ALU ops", func() {
		Expect(ir.Info(ir.Add).NumArgs()).To(Equal(2))
		Expect(ir.Info(ir.Add).DefaultWrite).To(Equal(ir.FlagsNZCV))
		Expect(ir.Info(ir.AddWithCarry).Read).To(Equal(ir.FlagC))
		Expect(ir.Info(ir.And).DefaultWrite).To(Equal(ir.FlagsNZC))
		Expect(ir.Info(ir.RRX).Read).To(Equal(ir.FlagC))
		Expect(ir.Info(ir.RRX).NumArgs()).To(Equal(1))
		Expect(ir.Info(ir.ClearExclusive).NumArgs()).To(Equal(0))
		Expect(ir.Info(ir.Read32).Ret).To(Equal(ir.U32))
		Expect(ir.Info(ir.SetGPR).Ret).To(Equal(ir.Void))
	})
})

var _ = Describe("LocationDescriptor", func() {
	It("should be usable as a map key over all four fields", func() {
		m := map[ir.LocationDescriptor]int{}
		base := ir.LocationDescriptor{PC: 0x100, Cond: insts.CondAL}
		m[base] = 1
		m[ir.LocationDescriptor{PC: 0x100, TFlag: true, Cond: insts.CondAL}] = 2
		m[ir.LocationDescriptor{PC: 0x100, EFlag: true, Cond: insts.CondAL}] = 3
		m[ir.LocationDescriptor{PC: 0x100, Cond: insts.CondEQ}] = 4

		Expect(m).To(HaveLen(4))
		Expect(m[base]).To(Equal(1))
	})
})
