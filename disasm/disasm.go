// Package disasm renders guest ARM instruction words as GNU assembler
// syntax, for logs and tests.
package disasm

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/arm/armasm"
)

// GNU disassembles a single ARM-state instruction word. Words that do not
// decode render as raw data.
func GNU(word uint32) string {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)

	inst, err := armasm.Decode(buf[:], armasm.ModeARM)
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", word)
	}
	return armasm.GNUSyntax(inst)
}
