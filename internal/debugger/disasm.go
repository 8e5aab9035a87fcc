package debugger

import (
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/native"
	"golang.org/x/arch/x86/x86asm"
)

const (
	maxInstructionLen = 15
	// MaxDisassembleCount bounds the instructions decoded by one call.
	MaxDisassembleCount = 4096
)

type Instruction struct {
	Addr  uint64
	Bytes []byte
	Text  string
}

// Disassemble decodes up to count instructions starting at addr, at most
// MaxDisassembleCount.
func (dbg *Debugger) Disassemble(addr uint64, count int) ([]Instruction, error) {
	s, err := dbg.Current()
	if err != nil {
		return nil, err
	} else if count <= 0 {
		return nil, debugger.ErrArgumentInvalid
	}
	count = min(count, MaxDisassembleCount)
	mode := 64
	if s.dsp.Arch() == native.ARCH_X86 {
		mode = 32
	}
	code, err := dbg.ReadMemory(addr, count*maxInstructionLen)
	if err != nil {
		return nil, err
	}
	symname := func(target uint64) (string, uint64) {
		if s.symbols == nil {
			return "", 0
		}
		sym, err := s.symbols.ResolveByAddress(target)
		if err != nil {
			return "", 0
		}
		return sym.Name, sym.Addr
	}
	insts := make([]Instruction, 0, count)
	pc := addr
	for len(insts) < count && len(code) > 0 {
		inst, err := x86asm.Decode(code, mode)
		if err != nil {
			insts = append(insts, Instruction{Addr: pc, Bytes: code[:1], Text: "(bad)"})
			code = code[1:]
			pc++
			continue
		}
		insts = append(insts, Instruction{
			Addr:  pc,
			Bytes: code[:inst.Len],
			Text:  x86asm.IntelSyntax(inst, pc, symname),
		})
		code = code[inst.Len:]
		pc += uint64(inst.Len)
	}
	return insts, nil
}
