package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wnxd/ndbg/debugger"
)

const (
	defaultDumpSize    = 64
	defaultDisasmCount = 8
	dumpWidth          = 16
)

func (c *Console) registerDefaults() {
	// general
	c.Register("help", "Display help information", (*Console).help)
	c.Register("clear", "Clear display", (*Console).clear)
	c.Register("ext", "Extension library", nil)
	c.Register("version", "Version information", (*Console).version)

	// session
	c.Register("attach", "Attach session to process", nil)
	c.Register("detach", "Detach session from process", nil)
	c.Register("q", "Quit", nil)
	c.Register("restart", "Restart session", nil)

	// execution
	c.Register("c", "Continue", (*Console).cont)
	c.Register("s", "Single step", (*Console).step)
	c.Register("break", "Break into the target", (*Console).brk)

	// breakpoints
	c.Register("b", "Set breakpoint", (*Console).setBreakpoint)
	c.Register("be", "Breakpoint enable", nil)
	c.Register("bd", "Breakpoint disable", nil)
	c.Register("bc", "Breakpoint clear", (*Console).clearBreakpoint)
	c.Register("bl", "Breakpoint list", (*Console).listBreakpoints)

	c.Register("t", "Trace", nil)

	// inspection
	c.Register("r", "Display registers", (*Console).registers)
	c.Register("u", "Disassemble", (*Console).disassemble)
	c.Register("db", "Display memory bytes", (*Console).dump)
}

func (c *Console) help(args []string) error {
	c.display.Raw("%s %s\n\n", Product, Version)
	c.display.Raw("Command\t| Description\n")
	c.display.Raw("------------------------------\n")
	for _, cmd := range c.commands {
		descr := cmd.Descr
		if descr == "" {
			descr = "<invalid>"
		}
		c.display.Raw("%s\t| %s\n", cmd.Name, descr)
	}
	c.display.Raw("\nType \"q\" to close the debugger.\n")
	return nil
}

func (c *Console) clear(args []string) error {
	c.display.Raw("\x1b[H\x1b[2J")
	return nil
}

func (c *Console) version(args []string) error {
	c.display.Raw("%s %s\n", Product, Version)
	return nil
}

func (c *Console) cont(args []string) error {
	return c.dbg.Continue()
}

func (c *Console) step(args []string) error {
	return c.dbg.SingleStep()
}

func (c *Console) brk(args []string) error {
	return c.dbg.Break()
}

// parseAddress accepts a number with an optional base prefix, a bare hex
// number, or a symbol name.
func (c *Console) parseAddress(s string) (uint64, error) {
	if addr, err := strconv.ParseUint(s, 0, 64); err == nil {
		return addr, nil
	}
	if addr, err := strconv.ParseUint(s, 16, 64); err == nil {
		return addr, nil
	}
	return c.dbg.Resolve(s)
}

func (c *Console) setBreakpoint(args []string) error {
	once := len(args) == 3 && args[2] == "once"
	if len(args) != 2 && !once {
		c.display.Error("Syntax : b [address|symbol] [once]")
		return debugger.ErrArgumentInvalid
	}
	addr, err := c.parseAddress(args[1])
	if err != nil {
		return err
	}
	bp, err := c.dbg.SetBreakpoint(addr, once)
	if err != nil {
		return err
	}
	c.display.Message("Breakpoint %d set at 0x%x", bp.ID, bp.Address)
	return nil
}

func (c *Console) clearBreakpoint(args []string) error {
	switch len(args) {
	case 1:
		return c.dbg.ClearBreakpoints()
	case 2:
		addr, err := c.parseAddress(args[1])
		if err != nil {
			return err
		}
		return c.dbg.RemoveBreakpoint(addr)
	}
	c.display.Error("Syntax : bc [address|symbol]")
	return debugger.ErrArgumentInvalid
}

func (c *Console) listBreakpoints(args []string) error {
	list, err := c.dbg.Breakpoints()
	if err != nil {
		return err
	}
	for _, bp := range list {
		var flags []string
		if !bp.Active {
			flags = append(flags, "disabled")
		}
		if bp.Once {
			flags = append(flags, "once")
		}
		c.display.Raw("%3d  0x%016x  hits %d  %s\n", bp.ID, bp.Address, bp.Hits, strings.Join(flags, ","))
	}
	return nil
}

func (c *Console) registers(args []string) error {
	ctx, err := c.dbg.GetRegisters()
	if err != nil {
		c.display.Error("Unable to obtain context")
		return err
	}
	g := &ctx.General
	for _, reg := range []struct {
		name  string
		value uint64
	}{
		{"RAX", g.AX}, {"RBX", g.BX}, {"RCX", g.CX}, {"RDX", g.DX},
		{"RSI", g.SI}, {"RDI", g.DI}, {"RBP", g.BP}, {"RSP", g.SP},
		{"R8", g.R8}, {"R9", g.R9}, {"R10", g.R10}, {"R11", g.R11},
		{"R12", g.R12}, {"R13", g.R13}, {"R14", g.R14}, {"R15", g.R15},
		{"CS", ctx.Segment.CS}, {"DS", ctx.Segment.DS}, {"ES", ctx.Segment.ES},
		{"SS", ctx.Segment.SS}, {"FS", ctx.Segment.FS}, {"GS", ctx.Segment.GS},
		{"IP", ctx.IP}, {"FLAGS", ctx.Flags},
	} {
		c.display.Raw("%s : 0x%x\n", reg.name, reg.value)
	}
	return nil
}

func (c *Console) disassemble(args []string) error {
	if len(args) > 3 {
		c.display.Error("Syntax : u [address|symbol] [count]")
		return debugger.ErrArgumentInvalid
	}
	var addr uint64
	if len(args) >= 2 {
		var err error
		if addr, err = c.parseAddress(args[1]); err != nil {
			return err
		}
	} else {
		ctx, err := c.dbg.GetRegisters()
		if err != nil {
			return err
		}
		addr = ctx.IP
	}
	count := defaultDisasmCount
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			return debugger.ErrArgumentInvalid
		}
		count = n
	}
	insts, err := c.dbg.Disassemble(addr, count)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		c.display.Raw("0x%016x  %-30x %s\n", inst.Addr, inst.Bytes, inst.Text)
	}
	return nil
}

func (c *Console) dump(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		c.display.Error("Syntax : db [address|symbol] [length]")
		return debugger.ErrArgumentInvalid
	}
	addr, err := c.parseAddress(args[1])
	if err != nil {
		return err
	}
	size := defaultDumpSize
	if len(args) == 3 {
		n, err := strconv.ParseUint(args[2], 0, 32)
		if err != nil || n == 0 {
			return debugger.ErrArgumentInvalid
		}
		size = int(n)
	}
	data, err := c.dbg.ReadMemory(addr, size)
	if err != nil {
		return err
	}
	for off := 0; off < len(data); off += dumpWidth {
		row := data[off:min(off+dumpWidth, len(data))]
		var hex, text strings.Builder
		for i := 0; i < dumpWidth; i++ {
			if i < len(row) {
				fmt.Fprintf(&hex, "%02x ", row[i])
				if row[i] >= 0x20 && row[i] < 0x7f {
					text.WriteByte(row[i])
				} else {
					text.WriteByte('.')
				}
			} else {
				hex.WriteString("   ")
			}
		}
		c.display.Raw("0x%016x  %s %s\n", addr+uint64(off), hex.String(), text.String())
	}
	return nil
}
