package core_test

import (
	"bytes"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/citrine/core"
	"github.com/sarchlab/citrine/mem"
	"github.com/sarchlab/citrine/timing"
)

func TestCore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Core Suite")
}

// tableRegistry is a toy host-side page-table indexer.
type tableRegistry struct {
	tables []any
}

func (r *tableRegistry) Index(handle any) (uint64, error) {
	for i, t := range r.tables {
		if t == handle {
			return uint64(i), nil
		}
	}
	r.tables = append(r.tables, handle)
	return uint64(len(r.tables) - 1), nil
}

func (r *tableRegistry) Lookup(index uint64) (any, error) {
	if index >= uint64(len(r.tables)) {
		return nil, fmt.Errorf("no table %d", index)
	}
	return r.tables[index], nil
}

var _ = Describe("Core", func() {
	var (
		memory *mem.Memory
		timer  *timing.Timer
		c      *core.Core
	)

	BeforeEach(func() {
		memory = mem.New()
		timer = timing.NewTimer()
		c = core.New(7, timer, memory)
	})

	Describe("register access", func() {
		It("should expose GPRs, PC and CPSR", func() {
			c.SetReg(3, 0x1234)
			c.SetPC(0x100)
			c.SetCPSR(0x600000DF)

			Expect(c.GetReg(3)).To(Equal(uint32(0x1234)))
			Expect(c.GetPC()).To(Equal(uint32(0x100)))
			Expect(c.GetReg(15)).To(Equal(uint32(0x100)))
			Expect(c.GetCPSR()).To(Equal(uint32(0x600000DF)))
			Expect(c.ID()).To(Equal(uint32(7)))
			Expect(c.Timer()).To(BeIdenticalTo(timer))
		})

		It("should expose the VFP and CP15 files", func() {
			c.SetVFPReg(63, 0xDEAD)
			c.SetVFPSystemReg(core.VFPFPSCR, 0x03C00000)
			c.SetCP15Register(core.CP15ThreadUPRW, 0x5555)

			Expect(c.GetVFPReg(63)).To(Equal(uint32(0xDEAD)))
			Expect(c.GetVFPSystemReg(core.VFPFPSCR)).To(Equal(uint32(0x03C00000)))
			Expect(c.GetCP15Register(core.CP15ThreadUPRW)).To(Equal(uint32(0x5555)))
			Expect(c.GetCP15Register(core.CP15ThreadURO)).To(BeZero())
		})
	})

	Describe("running", func() {
		// 0x00000000: E2811001  add r1, r1, #1
		// 0x00000004: EAFFFFFE  b .
		It("should run guest code and retire ticks", func() {
			memory.LoadWords(0, []uint32{0xE2811001, 0xEAFFFFFE})

			c.Run()

			Expect(c.GetReg(1)).To(Equal(uint32(1)))
			Expect(timer.Ticks()).To(BeNumerically(">", 0))
		})

		It("should step at least one instruction", func() {
			memory.LoadWords(0, []uint32{0xE2811001, 0xEAFFFFFE})

			c.Step()

			Expect(c.GetReg(1)).To(Equal(uint32(1)))
		})

		It("should charge fetch penalties when the icache model is on", func() {
			config := timing.DefaultConfig()
			config.ICacheEnabled = true
			c = core.New(0, timer, memory, core.WithConfig(config))
			memory.LoadWords(0, []uint32{0xE2811001, 0xEAFFFFFE})

			before := timer.Downcount()
			c.Step()

			// The two-instruction block plus at least one cold miss.
			Expect(before - timer.Downcount()).To(BeNumerically(">", 1))
		})
	})

	Describe("thread contexts", func() {
		It("should reset a context for a fresh user-mode thread", func() {
			ctx := c.NewContext()
			core.ResetContext(ctx, 0x0FFFFF00, 0x00100000, 42)

			Expect(ctx.Regs[0]).To(Equal(uint32(42)))
			Expect(ctx.Regs[13]).To(Equal(uint32(0x0FFFFF00)))
			Expect(ctx.Regs[15]).To(Equal(uint32(0x00100000)))
			Expect(ctx.CPSR).To(Equal(uint32(0x1F)))
		})

		It("should round-trip state through save and load", func() {
			for i := 0; i < 16; i++ {
				c.SetReg(i, uint32(0x100+i))
			}
			c.SetCPSR(0x2000001F)
			c.SetVFPReg(0, 1)
			c.SetVFPReg(63, 2)
			c.SetVFPSystemReg(core.VFPFPSCR, 3)
			c.SetVFPSystemReg(core.VFPFPEXC, 4)
			c.SetCP15Register(core.CP15ThreadUPRW, 5)
			c.SetCP15Register(core.CP15ThreadURO, 6)

			ctx := c.NewContext()
			Expect(c.SaveContext(ctx)).To(Succeed())

			// Trash everything, then restore.
			other := c.NewContext()
			core.ResetContext(other, 0, 0, 0)
			Expect(c.LoadContext(other)).To(Succeed())
			Expect(c.GetReg(5)).To(BeZero())

			Expect(c.LoadContext(ctx)).To(Succeed())
			Expect(c.GetReg(5)).To(Equal(uint32(0x105)))
			Expect(c.GetPC()).To(Equal(uint32(0x10F)))
			Expect(c.GetCPSR()).To(Equal(uint32(0x2000001F)))
			Expect(c.GetVFPReg(63)).To(Equal(uint32(2)))
			Expect(c.GetVFPSystemReg(core.VFPFPEXC)).To(Equal(uint32(4)))
			Expect(c.GetCP15Register(core.CP15ThreadURO)).To(Equal(uint32(6)))
		})

		It("should make repeated save-load a no-op", func() {
			c.SetReg(2, 99)
			ctx := c.NewContext()
			Expect(c.SaveContext(ctx)).To(Succeed())
			Expect(c.LoadContext(ctx)).To(Succeed())

			again := c.NewContext()
			Expect(c.SaveContext(again)).To(Succeed())

			Expect(again.Regs).To(Equal(ctx.Regs))
			Expect(again.CPSR).To(Equal(ctx.CPSR))
		})

		It("should refuse a context from another core", func() {
			otherCore := core.New(8, timing.NewTimer(), memory)
			ctx := otherCore.NewContext()

			Expect(c.SaveContext(ctx)).NotTo(Succeed())
			Expect(c.LoadContext(ctx)).NotTo(Succeed())
		})

		It("should round-trip a context through its binary form", func() {
			ctx := c.NewContext()
			core.ResetContext(ctx, 0x1000, 0x2000, 7)
			ctx.VFP[40] = 0xABCD
			ctx.FPSCR = 0x11
			ctx.URO = 0x22

			data, err := ctx.MarshalBinary()
			Expect(err).NotTo(HaveOccurred())

			decoded := c.NewContext()
			Expect(decoded.UnmarshalBinary(data)).To(Succeed())

			Expect(decoded.Regs).To(Equal(ctx.Regs))
			Expect(decoded.CPSR).To(Equal(ctx.CPSR))
			Expect(decoded.VFP).To(Equal(ctx.VFP))
			Expect(decoded.FPSCR).To(Equal(ctx.FPSCR))
			Expect(decoded.URO).To(Equal(ctx.URO))
		})
	})

	Describe("serialization", func() {
		It("should round-trip core state with a page-table index", func() {
			registry := &tableRegistry{}
			handle := "table-a"
			c.SetPageTable(handle)
			c.SetReg(4, 0x44)
			c.SetVFPReg(10, 0xAA)

			var buf bytes.Buffer
			Expect(c.Serialize(&buf, registry)).To(Succeed())

			restored := core.New(7, timer, memory)
			Expect(restored.Deserialize(&buf, registry)).To(Succeed())

			Expect(restored.GetPageTable()).To(Equal(handle))
			Expect(restored.GetReg(4)).To(Equal(uint32(0x44)))
			Expect(restored.GetVFPReg(10)).To(Equal(uint32(0xAA)))
		})

		It("should reject a stream from a different core", func() {
			var buf bytes.Buffer
			Expect(c.Serialize(&buf, nil)).To(Succeed())

			other := core.New(9, timer, memory)
			Expect(other.Deserialize(&buf, nil)).NotTo(Succeed())
		})
	})

	Describe("cache control surface", func() {
		It("should retranslate after invalidation through the core API", func() {
			memory.LoadWords(0x100, []uint32{0xE2811001, 0xEAFFFFFE})
			c.SetPC(0x100)
			c.Step()

			decodes := c.Executor().Decoder().Decodes
			c.SetPC(0x100)
			c.Step()
			Expect(c.Executor().Decoder().Decodes).To(Equal(decodes))

			c.InvalidateCacheRange(0x100, 4)
			c.SetPC(0x100)
			c.Step()
			Expect(c.Executor().Decoder().Decodes).To(BeNumerically(">", decodes))
		})

		It("should purge all derived state", func() {
			memory.LoadWords(0, []uint32{0xE2811001, 0xEAFFFFFE})
			c.Step()
			Expect(c.Executor().CachedBlocks()).NotTo(BeZero())

			c.PurgeState()
			Expect(c.Executor().CachedBlocks()).To(BeZero())
		})
	})
})
