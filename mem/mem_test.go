package mem_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/citrine/mem"
)

func TestMem(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Mem Suite")
}

var _ = Describe("Memory", func() {
	var m *mem.Memory

	BeforeEach(func() {
		m = mem.New()
	})

	It("should read zero from unmapped pages", func() {
		Expect(m.Read32(0x12345678)).To(BeZero())
		Expect(m.Read8(0)).To(BeZero())
	})

	It("should round-trip words little-endian", func() {
		m.Write32(0x1000, 0xCAFEBABE)

		Expect(m.Read32(0x1000)).To(Equal(uint32(0xCAFEBABE)))
		Expect(m.Read8(0x1000)).To(Equal(uint8(0xBE)))
		Expect(m.Read8(0x1003)).To(Equal(uint8(0xCA)))
		Expect(m.Read16(0x1002)).To(Equal(uint16(0xCAFE)))
	})

	It("should handle accesses straddling a page boundary", func() {
		m.Write32(0xFFE, 0x11223344)

		Expect(m.Read32(0xFFE)).To(Equal(uint32(0x11223344)))
		Expect(m.Read16(0xFFE)).To(Equal(uint16(0x3344)))
		Expect(m.Read16(0x1000)).To(Equal(uint16(0x1122)))
	})

	It("should load word and byte images", func() {
		m.LoadWords(0x100, []uint32{1, 2, 3})
		Expect(m.Read32(0x108)).To(Equal(uint32(3)))

		m.LoadBytes(0x200, []byte{0xAA, 0xBB})
		Expect(m.Read16(0x200)).To(Equal(uint16(0xBBAA)))
	})
})
