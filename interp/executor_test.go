package interp_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/citrine/interp"
	"github.com/sarchlab/citrine/mem"
)

func TestInterp(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Interp Suite")
}

// countingInterpreter is a stub guest interpreter that advances the PC by
// one instruction per call without executing anything.
type countingInterpreter struct {
	calls int
}

func (c *countingInterpreter) Step(state *interp.State, memory interp.Memory) int {
	c.calls++
	state.Regs[15] += 4
	return 1
}

// hookMemory observes reads, standing in for an MMIO region that pokes the
// executor.
type hookMemory struct {
	*mem.Memory
	onRead func(addr uint32)
}

func (h *hookMemory) Read32(addr uint32) uint32 {
	if h.onRead != nil {
		h.onRead(addr)
	}
	return h.Memory.Read32(addr)
}

var _ = Describe("Executor", func() {
	var (
		memory *mem.Memory
		e      *interp.Executor
	)

	BeforeEach(func() {
		memory = mem.New()
		e = interp.NewExecutor(memory)
		// r[i] = i makes register movement visible.
		for i := 0; i < 16; i++ {
			e.State().Regs[i] = uint32(i)
		}
		e.State().Regs[15] = 0
	})

	Describe("end-to-end blocks", func() {
		// 0x00000000: E2921003  adds r1, r2, #3
		// 0x00000004: EAFFFFFE  b .
		It("should run adds-then-branch and leave the expected state", func() {
			memory.LoadWords(0, []uint32{0xE2921003, 0xEAFFFFFE})

			executed := e.Execute(2)

			Expect(executed).To(Equal(2))
			Expect(e.State().Regs[0]).To(Equal(uint32(0)))
			Expect(e.State().Regs[1]).To(Equal(uint32(5)))
			Expect(e.State().Regs[2]).To(Equal(uint32(2)))
			Expect(e.State().Regs[3]).To(Equal(uint32(3)))
			Expect(e.State().Regs[15]).To(Equal(uint32(4)))

			// 2 + 3 sets no flags.
			Expect(e.State().CPSR & (interp.CPSRN | interp.CPSRZ | interp.CPSRC | interp.CPSRV)).
				To(BeZero())
		})

		// 0x00000000: E3E01000  mvn r1, #0        (r1 = 0xFFFFFFFF)
		// 0x00000004: E2911001  adds r1, r1, #1   (carry out, zero)
		// 0x00000008: EAFFFFFE  b .
		It("should compute carry and zero on unsigned overflow", func() {
			memory.LoadWords(0, []uint32{0xE3E01000, 0xE2911001, 0xEAFFFFFE})

			e.Execute(3)

			Expect(e.State().Regs[1]).To(Equal(uint32(0)))
			Expect(e.State().CPSR & interp.CPSRC).NotTo(BeZero())
			Expect(e.State().CPSR & interp.CPSRZ).NotTo(BeZero())
			Expect(e.State().CPSR & interp.CPSRN).To(BeZero())
			Expect(e.State().CPSR & interp.CPSRV).To(BeZero())
		})

		// 0x00000000: E3A01102  mov r1, #0x80000000
		// 0x00000004: E2511001  subs r1, r1, #1   (signed overflow)
		// 0x00000008: EAFFFFFE  b .
		It("should compute signed overflow on subtraction", func() {
			memory.LoadWords(0, []uint32{0xE3A01102, 0xE2511001, 0xEAFFFFFE})

			e.Execute(3)

			Expect(e.State().Regs[1]).To(Equal(uint32(0x7FFFFFFF)))
			Expect(e.State().CPSR & interp.CPSRV).NotTo(BeZero())
			Expect(e.State().CPSR & interp.CPSRC).NotTo(BeZero()) // no borrow
			Expect(e.State().CPSR & interp.CPSRN).To(BeZero())
		})

		// 0x00000000: E1812002  orr r2, r1, r2
		// 0x00000004: E1C23001  bic r3, r2, r1
		// 0x00000008: E1E04003  mvn r4, r3
		// 0x0000000C: EAFFFFFE  b .
		It("should run the synthesized logical operations", func() {
			memory.LoadWords(0, []uint32{0xE1812002, 0xE1C23001, 0xE1E04003, 0xEAFFFFFE})

			e.State().Regs[1] = 0xF0F0F0F0
			e.State().Regs[2] = 0x0F0F00FF

			e.Execute(4)

			Expect(e.State().Regs[2]).To(Equal(uint32(0xFFFFF0FF)))
			Expect(e.State().Regs[3]).To(Equal(uint32(0x0F0F000F)))
			Expect(e.State().Regs[4]).To(Equal(uint32(0xF0F0FFF0)))
		})

		// 0x00000000: E1A01102  lsl r1, r2, #2
		// 0x00000004: E1B02122  lsrs r2, r2, #2
		// 0x00000008: EAFFFFFE  b .
		It("should shift and expose the shifter carry through MOVS", func() {
			memory.LoadWords(0, []uint32{0xE1A01102, 0xE1B02122, 0xEAFFFFFE})

			e.State().Regs[2] = 0x00000006

			e.Execute(3)

			Expect(e.State().Regs[1]).To(Equal(uint32(0x18)))
			Expect(e.State().Regs[2]).To(Equal(uint32(1)))
			// 6 >> 2 shifts out a 1 last.
			Expect(e.State().CPSR & interp.CPSRC).NotTo(BeZero())
			Expect(e.State().CPSR & interp.CPSRZ).To(BeZero())
		})

		// 0x00000000: E16F1F12  clz r1, r2
		// 0x00000004: EAFFFFFE  b .
		It("should count leading zeros", func() {
			memory.LoadWords(0, []uint32{0xE16F1F12, 0xEAFFFFFE})

			e.State().Regs[2] = 0x00010000

			e.Execute(2)

			Expect(e.State().Regs[1]).To(Equal(uint32(15)))
		})

		// 0x00000000: E59F1000  ldr r1, [pc]  (literal at 0x8)
		// 0x00000004: EAFFFFFE  b .
		// 0x00000008: CAFEBABE  .word
		It("should load a PC-relative literal", func() {
			memory.LoadWords(0, []uint32{0xE59F1000, 0xEAFFFFFE, 0xCAFEBABE})

			e.Execute(2)

			Expect(e.State().Regs[1]).To(Equal(uint32(0xCAFEBABE)))
		})

		// 0x00000000: E5B21004  ldr r1, [r2, #4]!
		// 0x00000004: EAFFFFFE  b .
		It("should write back a pre-indexed load address", func() {
			memory.LoadWords(0, []uint32{0xE5B21004, 0xEAFFFFFE})
			memory.Write32(0x104, 0x12345678)

			e.State().Regs[2] = 0x100

			e.Execute(2)

			Expect(e.State().Regs[1]).To(Equal(uint32(0x12345678)))
			Expect(e.State().Regs[2]).To(Equal(uint32(0x104)))
		})
	})

	Describe("conditions at runtime", func() {
		// 0x00000000: 03A00007  moveq r0, #7
		// 0x00000004: EAFFFFFE  b .
		It("should execute a matching residual-condition block", func() {
			memory.LoadWords(0, []uint32{0x03A00007, 0xEAFFFFFE})

			e.State().CPSR |= interp.CPSRZ // EQ holds

			e.Execute(8)

			Expect(e.State().Regs[0]).To(Equal(uint32(7)))
			Expect(e.State().Regs[15]).To(Equal(uint32(4)))
		})

		It("should skip a failing residual-condition block as NOPs", func() {
			memory.LoadWords(0, []uint32{0x03A00007, 0xEAFFFFFE})

			// Z clear: EQ fails, the mov must not execute.
			e.Execute(8)

			Expect(e.State().Regs[0]).To(Equal(uint32(0)))
			Expect(e.State().Regs[15]).To(Equal(uint32(4)))
		})

		// 0x00000000: E2515001  subs r5, r5, #1
		// 0x00000004: 1AFFFFFD  bne -12 (loops back to 0)
		// 0x00000008: EAFFFFFE  b .
		It("should run a countdown loop to completion", func() {
			memory.LoadWords(0, []uint32{0xE2515001, 0x1AFFFFFD, 0xEAFFFFFE})

			e.State().Regs[5] = 5

			e.Execute(64)

			Expect(e.State().Regs[5]).To(Equal(uint32(0)))
			Expect(e.State().Regs[15]).To(Equal(uint32(8)))
			Expect(e.State().CPSR & interp.CPSRZ).NotTo(BeZero())
		})
	})

	Describe("dispatch control", func() {
		It("should stop when the budget runs out", func() {
			// 0x00000000: EAFFFFFE  b .  (spins forever, one instruction per block)
			memory.LoadWords(0, []uint32{0xEAFFFFFE})

			executed := e.Execute(10)

			Expect(executed).To(Equal(10))
		})

		It("should step at least one instruction", func() {
			memory.LoadWords(0, []uint32{0xE2811001, 0xE2811001, 0xEAFFFFFE})

			executed := e.Step()

			Expect(executed).To(BeNumerically(">=", 1))
			Expect(e.State().Regs[1]).To(Equal(uint32(3)))
		})

		It("should delegate interpret terminals to the attached interpreter", func() {
			stub := &countingInterpreter{}
			e = interp.NewExecutor(memory, interp.WithInterpreter(stub))

			// 0x00000000: F7FFFFFF  (undefined -> Interpret)
			memory.LoadWords(0, []uint32{0xF7FFFFFF})

			e.Execute(1)

			Expect(stub.calls).To(Equal(1))
			Expect(e.State().Regs[15]).To(Equal(uint32(4)))
		})

		It("should yield when no interpreter is attached", func() {
			memory.LoadWords(0, []uint32{0xF7FFFFFF})

			executed := e.Execute(100)

			// The undecodable instruction is charged but nothing runs.
			Expect(executed).To(Equal(1))
			Expect(e.State().Regs[15]).To(Equal(uint32(0)))
		})
	})

	Describe("cache maintenance", func() {
		// 0x00000100: E2811001  add r1, r1, #1
		// 0x00000104: EAFFFFFE  b .
		It("should retranslate after a range invalidation", func() {
			memory.LoadWords(0x100, []uint32{0xE2811001, 0xEAFFFFFE})
			e.State().Regs[15] = 0x100

			e.Execute(2)
			decodesAfterFirst := e.Decoder().Decodes

			// Cached: a second pass decodes nothing new.
			e.State().Regs[15] = 0x100
			e.Execute(2)
			Expect(e.Decoder().Decodes).To(Equal(decodesAfterFirst))

			e.InvalidateRange(0x100, 4)

			e.State().Regs[15] = 0x100
			e.Execute(2)
			Expect(e.Decoder().Decodes).To(BeNumerically(">", decodesAfterFirst))
		})

		It("should leave unrelated blocks alone on range invalidation", func() {
			memory.LoadWords(0x100, []uint32{0xE2811001, 0xEAFFFFFE})
			memory.LoadWords(0x200, []uint32{0xE2822002, 0xEAFFFFFE})

			e.State().Regs[15] = 0x100
			e.Execute(2)
			e.State().Regs[15] = 0x200
			e.Execute(2)
			Expect(e.CachedBlocks()).To(Equal(2))

			e.InvalidateRange(0x100, 4)
			Expect(e.CachedBlocks()).To(Equal(1))

			e.ClearCache()
			Expect(e.CachedBlocks()).To(BeZero())
		})
	})

	Describe("reschedule", func() {
		It("should finish the current block and then yield", func() {
			// 0x00000000: E2811001  add r1, r1, #1
			// 0x00000004: E5910000  ldr r0, [r1]      (MMIO poke requests reschedule)
			// 0x00000008: E2811001  add r1, r1, #1
			// 0x0000000C: EAFFFFFE  b .
			memory.LoadWords(0, []uint32{0xE2811001, 0xE5910000, 0xE2811001, 0xEAFFFFFE})

			hooked := &hookMemory{Memory: memory}
			e = interp.NewExecutor(hooked)
			hooked.onRead = func(addr uint32) {
				if addr == 2 {
					e.PrepareReschedule()
				}
			}
			e.State().Regs[1] = 1

			executed := e.Execute(1000)

			// The reschedule fires mid-block; the block still runs to
			// completion and the loop yields at its boundary.
			Expect(executed).To(Equal(4))
			Expect(e.State().Regs[1]).To(Equal(uint32(3)))
			Expect(e.State().Regs[15]).To(Equal(uint32(0xC)))
		})
	})

	Describe("residual condition bookkeeping", func() {
		It("should continue at the BX target after a dispatch-style terminal", func() {
			// 0x00000000: E12FFF11  bx r1 (ReturnToDispatch)
			memory.LoadWords(0, []uint32{0xE12FFF11})

			e.State().Regs[1] = 0x200
			memory.LoadWords(0x200, []uint32{0xEAFFFFFE})

			e.Execute(2)

			Expect(e.State().Regs[15]).To(Equal(uint32(0x200)))
			Expect(e.State().CPSR & interp.CPSRT).To(BeZero())
		})

		It("should set the Thumb bit through BX", func() {
			memory.LoadWords(0, []uint32{0xE12FFF11})
			e.State().Regs[1] = 0x201 // Thumb target

			e.Execute(1)

			Expect(e.State().Regs[15]).To(Equal(uint32(0x200)))
			Expect(e.State().CPSR & interp.CPSRT).NotTo(BeZero())
		})
	})
})
