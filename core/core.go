// Package core exposes the guest-visible ARM11 CPU: registers, CPSR, VFP
// and CP15 state, thread contexts, cache control, and the run loop that
// drives the translator and executor.
package core

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/citrine/interp"
	"github.com/sarchlab/citrine/timing"
)

// Memory is the guest-memory interface the core fetches and loads through.
type Memory interface {
	Read32(vaddr uint32) uint32
}

// VFPSystemRegister keys the VFP system register file.
type VFPSystemRegister uint8

// VFP system registers.
const (
	VFPFPSID VFPSystemRegister = iota
	VFPFPSCR
	VFPFPEXC

	numVFPSystemRegs
)

// CP15Register keys the user-visible CP15 register subset.
type CP15Register uint8

// CP15 registers.
const (
	// CP15ThreadUPRW is the user read-write thread ID register.
	CP15ThreadUPRW CP15Register = iota
	// CP15ThreadURO is the user read-only thread ID register.
	CP15ThreadURO

	numCP15Regs
)

// NumVFPRegs is the size of the VFP single-precision register file.
const NumVFPRegs = 64

// Core is one guest CPU. All methods must be called from the single
// emulation thread that owns the core, except PrepareReschedule, which the
// host may call from anywhere through its own signalling.
type Core struct {
	id    uint32
	timer *timing.Timer
	mem   Memory

	exec   *interp.Executor
	icache *timing.ICache

	vfp    [NumVFPRegs]uint32
	vfpSys [numVFPSystemRegs]uint32
	cp15   [numCP15Regs]uint32

	pageTable any

	config *timing.Config
	log    *logrus.Entry
}

// Option configures a Core.
type Option func(*coreSetup)

type coreSetup struct {
	config      *timing.Config
	interpreter interp.Interpreter
}

// WithConfig applies a timing configuration.
func WithConfig(config *timing.Config) Option {
	return func(s *coreSetup) {
		s.config = config
	}
}

// WithInterpreter attaches the external guest interpreter used for blocks
// the translator cannot lower.
func WithInterpreter(i interp.Interpreter) Option {
	return func(s *coreSetup) {
		s.interpreter = i
	}
}

// New creates a core with the given ID, shared timer, and guest memory.
func New(id uint32, timer *timing.Timer, mem Memory, opts ...Option) *Core {
	setup := &coreSetup{config: timing.DefaultConfig()}
	for _, opt := range opts {
		opt(setup)
	}

	c := &Core{
		id:     id,
		timer:  timer,
		mem:    mem,
		config: setup.config,
		log:    logrus.WithFields(logrus.Fields{"component": "core", "core": id}),
	}

	execOpts := []interp.Option{
		interp.WithCacheCapacity(setup.config.BlockCacheCapacity),
	}
	if setup.interpreter != nil {
		execOpts = append(execOpts, interp.WithInterpreter(setup.interpreter))
	}
	if setup.config.ICacheEnabled {
		c.icache = timing.NewICache(setup.config.ICache)
		execOpts = append(execOpts, interp.WithFetchModel(c.icache))
	}
	c.exec = interp.NewExecutor(mem, execOpts...)

	c.log.Debug("core created")
	return c
}

// ID returns the core's identifier.
func (c *Core) ID() uint32 { return c.id }

// Timer returns the core's shared timer handle.
func (c *Core) Timer() *timing.Timer { return c.timer }

// Executor exposes the core's executor, mainly for tests and tooling.
func (c *Core) Executor() *interp.Executor { return c.exec }

// Run executes guest code until the timer slice is spent or a reschedule
// is requested, then retires the consumed ticks.
func (c *Core) Run() {
	budget := c.timer.Downcount()
	if budget <= 0 {
		budget = c.config.DispatchSlice
	}

	executed := c.exec.Execute(int(budget))
	c.timer.AddTicks(int64(executed) + int64(c.exec.TakeFetchPenalty()))
}

// Step executes at least one guest instruction (possibly a whole block).
func (c *Core) Step() {
	executed := c.exec.Step()
	c.timer.AddTicks(int64(executed) + int64(c.exec.TakeFetchPenalty()))
}

// PrepareReschedule makes the dispatch loop exit at the next block
// boundary.
func (c *Core) PrepareReschedule() {
	c.exec.PrepareReschedule()
}

// ClearInstructionCache drops every translated block and resets the fetch
// model.
func (c *Core) ClearInstructionCache() {
	c.exec.ClearCache()
	if c.icache != nil {
		c.icache.Reset()
	}
}

// InvalidateCacheRange drops translated blocks in [start, start+length).
func (c *Core) InvalidateCacheRange(start, length uint32) {
	c.exec.InvalidateRange(start, length)
	if c.icache != nil {
		c.icache.InvalidateRange(start, length)
	}
}

// SetPageTable installs a new opaque page-table handle.
func (c *Core) SetPageTable(handle any) {
	c.pageTable = handle
}

// GetPageTable returns the installed page-table handle.
func (c *Core) GetPageTable() any { return c.pageTable }

// SetPC sets the program counter.
func (c *Core) SetPC(addr uint32) {
	c.exec.State().Regs[15] = addr
}

// GetPC returns the program counter.
func (c *Core) GetPC() uint32 {
	return c.exec.State().Regs[15]
}

// GetReg returns general-purpose register index (0..15).
func (c *Core) GetReg(index int) uint32 {
	return c.exec.State().Regs[index]
}

// SetReg sets general-purpose register index (0..15).
func (c *Core) SetReg(index int, value uint32) {
	c.exec.State().Regs[index] = value
}

// GetVFPReg returns VFP single-precision register index (0..63).
func (c *Core) GetVFPReg(index int) uint32 {
	return c.vfp[index]
}

// SetVFPReg sets VFP single-precision register index (0..63).
func (c *Core) SetVFPReg(index int, value uint32) {
	c.vfp[index] = value
}

// GetVFPSystemReg returns a VFP system register.
func (c *Core) GetVFPSystemReg(reg VFPSystemRegister) uint32 {
	return c.vfpSys[reg]
}

// SetVFPSystemReg sets a VFP system register.
func (c *Core) SetVFPSystemReg(reg VFPSystemRegister, value uint32) {
	c.vfpSys[reg] = value
}

// GetCP15Register returns a CP15 register.
func (c *Core) GetCP15Register(reg CP15Register) uint32 {
	return c.cp15[reg]
}

// SetCP15Register sets a CP15 register.
func (c *Core) SetCP15Register(reg CP15Register, value uint32) {
	c.cp15[reg] = value
}

// GetCPSR returns the CPSR.
func (c *Core) GetCPSR() uint32 {
	return c.exec.State().CPSR
}

// SetCPSR sets the CPSR.
func (c *Core) SetCPSR(cpsr uint32) {
	c.exec.State().CPSR = cpsr
}

// PurgeState drops all derived state: translated blocks, the residual
// condition, the exclusive monitor, and fetch-model contents. Called
// before loading serialized state.
func (c *Core) PurgeState() {
	c.ClearInstructionCache()
	c.exec.ResetRunState()
}
