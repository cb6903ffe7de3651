package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/insts"
	"github.com/sarchlab/axpsim/loader"
)

// commandNames feeds the line completer, one entry per verb.
var commandNames = []string{
	"step", "go", "regs", "fregs", "mem", "deposit", "dis",
	"stats", "pc", "load", "reset", "help", "quit", "exit",
}

func completeCommand(prefix string) []string {
	var matches []string
	for _, name := range commandNames {
		if strings.HasPrefix(name, strings.ToLower(prefix)) {
			matches = append(matches, name)
		}
	}
	return matches
}

// monitor wraps one engine plus the pieces the commands touch.
type monitor struct {
	family  emu.EVFamily
	engine  *emu.Engine
	memory  *emu.Memory
	handler *emu.OSFSyscallHandler
	decoder *insts.Decoder
}

func newMonitor(family emu.EVFamily) *monitor {
	mon := &monitor{family: family, decoder: insts.NewDecoder()}
	mon.build()
	return mon
}

// build constructs a fresh engine. reset goes through here so the
// syscall handler never points at a stale memory.
func (m *monitor) build() {
	m.memory = emu.NewMemory()
	m.handler = emu.NewOSFSyscallHandler(m.memory)
	m.engine = emu.NewEngine(
		emu.WithMemory(m.memory),
		emu.WithEVFamily(m.family),
		emu.WithSyscallHandler(m.handler),
	)
}

func (m *monitor) loadImage(path string, base uint64) error {
	prog, err := loader.LoadImage(path, base)
	if err != nil {
		return err
	}
	prog.LoadInto(m.memory)
	cpu := m.engine.CPU(0)
	cpu.PC = prog.EntryPoint
	cpu.WriteReg(30, prog.InitialSP)
	return nil
}

// execute runs one command line. It returns true when the monitor
// should quit.
func (m *monitor) execute(command string) (bool, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false, nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		m.help()
		return false, nil
	case "step", "s":
		return false, m.step(args)
	case "go", "g":
		return false, m.run(args)
	case "regs", "r":
		m.regs()
		return false, nil
	case "fregs", "f":
		m.fregs()
		return false, nil
	case "mem", "m":
		return false, m.mem(args)
	case "deposit":
		return false, m.deposit(args)
	case "dis", "d":
		return false, m.dis(args)
	case "stats":
		fmt.Print(m.engine.StatsString())
		return false, nil
	case "pc":
		return false, m.pc(args)
	case "load":
		return false, m.load(args)
	case "reset":
		m.build()
		fmt.Println("engine reset")
		return false, nil
	}
	return false, fmt.Errorf("unknown command %q, try help", verb)
}

func (m *monitor) help() {
	fmt.Print(`commands:
  step [n]              execute n instructions (default 1), tracing each
  go [n]                run until halt, fault, or n instructions
  regs                  print integer registers, PC, and processor status
  fregs                 print floating-point registers and the FPCR
  mem <addr> [n]        dump n quadwords (default 8)
  deposit <addr> <val>  write a quadword
  dis <addr> [n]        disassemble n words (default 8)
  pc [addr]             print or set the program counter
  load <path> [base]    load a raw word image (default base 0x1000)
  stats                 print dispatch statistics
  reset                 rebuild the engine from power-up state
  quit                  leave the monitor
`)
}

func (m *monitor) step(args []string) error {
	count := uint64(1)
	if len(args) > 0 {
		n, err := parseNumber(args[0])
		if err != nil {
			return err
		}
		count = n
	}

	cpu := m.engine.CPU(0)
	for i := uint64(0); i < count; i++ {
		pc := cpu.PC
		word := m.memory.Read32(pc)
		inst := m.decoder.Decode(word)
		out := m.engine.Step(0, word, pc)

		fmt.Printf("%016x  %08x  %s\n", pc, word, inst.String())
		if out.Exception != emu.ExcNone {
			fmt.Printf("  exception: %s\n", out.Exception)
			return nil
		}
		if out.Halt {
			fmt.Println("  halted")
			return nil
		}
	}
	return nil
}

func (m *monitor) run(args []string) error {
	limit := uint64(0)
	if len(args) > 0 {
		n, err := parseNumber(args[0])
		if err != nil {
			return err
		}
		limit = n
	}

	cpu := m.engine.CPU(0)
	var executed uint64
	for {
		if limit > 0 && executed >= limit {
			fmt.Printf("stopped after %d instructions at %#x\n", executed, cpu.PC)
			return nil
		}
		out := m.engine.StepPC(0)
		executed++
		if out.Halt {
			fmt.Printf("halted after %d instructions, R0=%d\n", executed, cpu.ReadReg(0))
			return nil
		}
		if out.Exception != emu.ExcNone {
			fmt.Printf("%s at %#x after %d instructions\n", out.Exception, cpu.PC, executed)
			return nil
		}
	}
}

func (m *monitor) regs() {
	cpu := m.engine.CPU(0)
	for i := uint8(0); i < 32; i += 4 {
		fmt.Printf("R%-2d %016x  R%-2d %016x  R%-2d %016x  R%-2d %016x\n",
			i, cpu.ReadReg(i), i+1, cpu.ReadReg(i+1),
			i+2, cpu.ReadReg(i+2), i+3, cpu.ReadReg(i+3))
	}
	fmt.Printf("PC  %016x  mode %s  ipl %d  cycles %d\n",
		cpu.PC, cpu.PS.Mode, cpu.PS.IPL, cpu.Cycles)
}

func (m *monitor) fregs() {
	cpu := m.engine.CPU(0)
	for i := uint8(0); i < 32; i += 4 {
		fmt.Printf("F%-2d %016x  F%-2d %016x  F%-2d %016x  F%-2d %016x\n",
			i, cpu.ReadFReg(i), i+1, cpu.ReadFReg(i+1),
			i+2, cpu.ReadFReg(i+2), i+3, cpu.ReadFReg(i+3))
	}
	fmt.Printf("FPCR %016x\n", cpu.FPCR)
}

func (m *monitor) mem(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: mem <addr> [n]")
	}
	addr, err := parseNumber(args[0])
	if err != nil {
		return err
	}
	count := uint64(8)
	if len(args) > 1 {
		if count, err = parseNumber(args[1]); err != nil {
			return err
		}
	}
	for i := uint64(0); i < count; i++ {
		a := addr + i*8
		fmt.Printf("%016x  %016x\n", a, m.memory.Read64(a))
	}
	return nil
}

func (m *monitor) deposit(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: deposit <addr> <value>")
	}
	addr, err := parseNumber(args[0])
	if err != nil {
		return err
	}
	value, err := parseNumber(args[1])
	if err != nil {
		return err
	}
	m.memory.Write64(addr, value)
	return nil
}

func (m *monitor) dis(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: dis <addr> [n]")
	}
	addr, err := parseNumber(args[0])
	if err != nil {
		return err
	}
	count := uint64(8)
	if len(args) > 1 {
		if count, err = parseNumber(args[1]); err != nil {
			return err
		}
	}
	for i := uint64(0); i < count; i++ {
		a := addr + i*4
		word := m.memory.Read32(a)
		inst := m.decoder.Decode(word)
		fmt.Printf("%016x  %08x  %s\n", a, word, inst.String())
	}
	return nil
}

func (m *monitor) pc(args []string) error {
	cpu := m.engine.CPU(0)
	if len(args) == 0 {
		fmt.Printf("PC %016x\n", cpu.PC)
		return nil
	}
	addr, err := parseNumber(args[0])
	if err != nil {
		return err
	}
	cpu.PC = addr
	return nil
}

func (m *monitor) load(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: load <path> [base]")
	}
	base := uint64(0x1000)
	if len(args) > 1 {
		var err error
		if base, err = parseNumber(args[1]); err != nil {
			return err
		}
	}
	if err := m.loadImage(args[0], base); err != nil {
		return err
	}
	fmt.Printf("loaded %s at %#x\n", args[0], base)
	return nil
}

// parseNumber accepts decimal, 0x-prefixed hex, and octal forms.
func parseNumber(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}
