// Package main provides the Citrine command-line runner: it loads a guest
// ARM program, runs it through the dynamic translator core for a bounded
// number of instructions, and dumps the resulting register state.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/citrine/core"
	"github.com/sarchlab/citrine/disasm"
	"github.com/sarchlab/citrine/loader"
	"github.com/sarchlab/citrine/mem"
	"github.com/sarchlab/citrine/timing"
)

var (
	budget     = flag.Int64("n", 1_000_000, "Instruction budget to execute")
	configPath = flag.String("config", "", "Path to core configuration JSON file")
	rawImage   = flag.Bool("image", false, "Treat the input as a flat binary loaded at address 0")
	trace      = flag.Bool("trace", false, "Disassemble the first 16 words at the entry point before running")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: citrine [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	config := timing.DefaultConfig()
	if *configPath != "" {
		loaded, err := timing.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config = loaded
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	memory := mem.New()
	entry, stackTop := loadGuest(memory, flag.Arg(0))

	timer := timing.NewTimer()
	c := core.New(0, timer, memory, core.WithConfig(config))

	ctx := c.NewContext()
	core.ResetContext(ctx, stackTop, entry, 0)
	if err := c.LoadContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading context: %v\n", err)
		os.Exit(1)
	}

	if *trace {
		for addr := entry &^ 3; addr < (entry&^3)+64; addr += 4 {
			fmt.Printf("%08x:  %08x  %s\n", addr, memory.Read32(addr), disasm.GNU(memory.Read32(addr)))
		}
	}

	remaining := *budget
	for remaining > 0 {
		before := timer.Ticks()
		c.Run()
		consumed := timer.Ticks() - before
		if consumed <= 0 {
			consumed = 1
		}
		remaining -= consumed
	}

	fmt.Printf("Executed ~%d instructions (%d ticks)\n", *budget-remaining, timer.Ticks())
	for i := 0; i < 16; i++ {
		fmt.Printf("r%-2d = %08x", i, c.GetReg(i))
		if i%4 == 3 {
			fmt.Println()
		} else {
			fmt.Print("   ")
		}
	}
	fmt.Printf("cpsr = %08x\n", c.GetCPSR())
}

// loadGuest populates guest memory from the input file and returns the
// entry point and initial stack pointer.
func loadGuest(memory *mem.Memory, path string) (entry, stackTop uint32) {
	if *rawImage {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading image: %v\n", err)
			os.Exit(1)
		}
		memory.LoadBytes(0, data)
		return 0, loader.DefaultStackTop
	}

	prog, err := loader.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", path)
		fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	for _, seg := range prog.Segments {
		memory.LoadBytes(seg.VirtAddr, seg.Data)
		for i := uint32(len(seg.Data)); i < seg.MemSize; i++ {
			memory.Write8(seg.VirtAddr+i, 0)
		}
	}

	return prog.EntryPoint, prog.InitialSP
}
