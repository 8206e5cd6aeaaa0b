package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Context schema versions. Version 0 carried only 32 VFP registers;
// version 1 carries the full 64.
const (
	contextVersion0 = 0
	contextVersion1 = 1

	currentContextVersion = contextVersion1
)

// Context is a saved guest thread state. A context may only be used with
// the core that created it.
type Context struct {
	owner *Core

	Regs  [16]uint32 // r0..r14 and pc
	CPSR  uint32
	VFP   [NumVFPRegs]uint32
	FPSCR uint32
	FPEXC uint32
	UPRW  uint32 // CP15 user read-write thread register
	URO   uint32 // CP15 user read-only thread register
}

// NewContext creates an empty thread context bound to this core.
func (c *Core) NewContext() *Context {
	return &Context{owner: c}
}

// SaveContext copies the core's current thread state into ctx.
func (c *Core) SaveContext(ctx *Context) error {
	if ctx.owner != c {
		return fmt.Errorf("core %d: context belongs to another core", c.id)
	}

	ctx.Regs = c.exec.State().Regs
	ctx.CPSR = c.exec.State().CPSR
	ctx.VFP = c.vfp
	ctx.FPSCR = c.vfpSys[VFPFPSCR]
	ctx.FPEXC = c.vfpSys[VFPFPEXC]
	ctx.UPRW = c.cp15[CP15ThreadUPRW]
	ctx.URO = c.cp15[CP15ThreadURO]
	return nil
}

// LoadContext installs ctx as the core's current thread state. The T and E
// bits inside the loaded CPSR are authoritative; the run state's residual
// condition and exclusive monitor are reset.
func (c *Core) LoadContext(ctx *Context) error {
	if ctx.owner != c {
		return fmt.Errorf("core %d: context belongs to another core", c.id)
	}

	c.exec.State().Regs = ctx.Regs
	c.exec.State().CPSR = ctx.CPSR
	c.vfp = ctx.VFP
	c.vfpSys[VFPFPSCR] = ctx.FPSCR
	c.vfpSys[VFPFPEXC] = ctx.FPEXC
	c.cp15[CP15ThreadUPRW] = ctx.UPRW
	c.cp15[CP15ThreadURO] = ctx.URO

	c.exec.ResetRunState()
	return nil
}

// ResetContext zeroes a context and prepares it for a fresh user-mode
// thread: r0 carries the argument, sp the stack top, pc the entry point.
func ResetContext(ctx *Context, stackTop, entryPoint, arg uint32) {
	owner := ctx.owner
	*ctx = Context{owner: owner}

	ctx.Regs[0] = arg
	ctx.Regs[13] = stackTop
	ctx.Regs[15] = entryPoint
	ctx.CPSR = 0x1F // user mode
}

// vfpCount returns how many VFP registers a schema version carries.
func vfpCount(version uint32) (int, error) {
	switch version {
	case contextVersion0:
		return 32, nil
	case contextVersion1:
		return NumVFPRegs, nil
	default:
		return 0, fmt.Errorf("unknown context version %d", version)
	}
}

// MarshalBinary encodes the context as a version-tagged little-endian
// stream: version, r0..r14, pc, cpsr, the VFP file, fpscr, fpexc, and the
// CP15 thread registers.
func (ctx *Context) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	fields := []any{
		uint32(currentContextVersion),
		ctx.Regs,
		ctx.CPSR,
		ctx.VFP,
		ctx.FPSCR,
		ctx.FPEXC,
		ctx.UPRW,
		ctx.URO,
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a context produced by MarshalBinary. Version 0
// streams carry only the first 32 VFP registers; the rest are zeroed.
func (ctx *Context) UnmarshalBinary(data []byte) error {
	return ctx.readFrom(bytes.NewReader(data))
}

func (ctx *Context) readFrom(r io.Reader) error {
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	n, err := vfpCount(version)
	if err != nil {
		return err
	}

	if err := binary.Read(r, binary.LittleEndian, &ctx.Regs); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &ctx.CPSR); err != nil {
		return err
	}
	ctx.VFP = [NumVFPRegs]uint32{}
	if err := binary.Read(r, binary.LittleEndian, ctx.VFP[:n]); err != nil {
		return err
	}
	tail := []any{&ctx.FPSCR, &ctx.FPEXC, &ctx.UPRW, &ctx.URO}
	for _, f := range tail {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}
