package native

// GeneralRegs holds the integer register file. Fields named after the
// 64-bit registers also carry the 32-bit values on x86.
type GeneralRegs struct {
	AX, BX, CX, DX uint64
	SI, DI, BP, SP uint64
	R8, R9, R10    uint64
	R11, R12, R13  uint64
	R14, R15       uint64
}

type SegmentRegs struct {
	CS, DS, ES, FS, GS, SS uint64
	FSBase, GSBase         uint64
}

// DebugRegs mirrors DR0-DR7. DR4 and DR5 are aliases and not kept.
type DebugRegs struct {
	DR0, DR1, DR2, DR3 uint64
	DR6, DR7           uint64
}

// Context is a snapshot of a stopped thread's register state.
type Context struct {
	IP      uint64
	Flags   uint64
	OrigAX  uint64
	General GeneralRegs
	Segment SegmentRegs
	Debug   DebugRegs
}

const FLAG_TRAP = 1 << 8

func (ctx *Context) SetIP(ip uint64) {
	ctx.IP = ip
}

func (ctx *Context) Reg(name string) (uint64, bool) {
	p := ctx.regPtr(name)
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (ctx *Context) SetReg(name string, value uint64) bool {
	p := ctx.regPtr(name)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (ctx *Context) regPtr(name string) *uint64 {
	switch name {
	case "rip", "eip", "ip":
		return &ctx.IP
	case "rflags", "eflags", "flags":
		return &ctx.Flags
	case "rax", "eax":
		return &ctx.General.AX
	case "rbx", "ebx":
		return &ctx.General.BX
	case "rcx", "ecx":
		return &ctx.General.CX
	case "rdx", "edx":
		return &ctx.General.DX
	case "rsi", "esi":
		return &ctx.General.SI
	case "rdi", "edi":
		return &ctx.General.DI
	case "rbp", "ebp":
		return &ctx.General.BP
	case "rsp", "esp":
		return &ctx.General.SP
	case "r8":
		return &ctx.General.R8
	case "r9":
		return &ctx.General.R9
	case "r10":
		return &ctx.General.R10
	case "r11":
		return &ctx.General.R11
	case "r12":
		return &ctx.General.R12
	case "r13":
		return &ctx.General.R13
	case "r14":
		return &ctx.General.R14
	case "r15":
		return &ctx.General.R15
	case "cs":
		return &ctx.Segment.CS
	case "ds":
		return &ctx.Segment.DS
	case "es":
		return &ctx.Segment.ES
	case "fs":
		return &ctx.Segment.FS
	case "gs":
		return &ctx.Segment.GS
	case "ss":
		return &ctx.Segment.SS
	case "fs_base":
		return &ctx.Segment.FSBase
	case "gs_base":
		return &ctx.Segment.GSBase
	case "dr0":
		return &ctx.Debug.DR0
	case "dr1":
		return &ctx.Debug.DR1
	case "dr2":
		return &ctx.Debug.DR2
	case "dr3":
		return &ctx.Debug.DR3
	case "dr6":
		return &ctx.Debug.DR6
	case "dr7":
		return &ctx.Debug.DR7
	}
	return nil
}
