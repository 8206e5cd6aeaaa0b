package disasm_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/citrine/disasm"
)

func TestDisasm(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Disasm Suite")
}

var _ = Describe("GNU", func() {
	It("should render a data-processing instruction", func() {
		// 0xE2921003: adds r1, r2, #3
		text := disasm.GNU(0xE2921003)

		Expect(text).To(ContainSubstring("add"))
		Expect(text).To(ContainSubstring("r1"))
		Expect(text).To(ContainSubstring("r2"))
	})

	It("should render a branch", func() {
		// 0xEAFFFFFE: b .
		Expect(disasm.GNU(0xEAFFFFFE)).To(ContainSubstring("b"))
	})

	It("should never return an empty string", func() {
		Expect(disasm.GNU(0xF7FFFFFF)).NotTo(BeEmpty())
		Expect(disasm.GNU(0x00000000)).NotTo(BeEmpty())
	})
})
