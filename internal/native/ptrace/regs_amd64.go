//go:build linux && amd64

package ptrace

import (
	"encoding/binary"

	"github.com/wnxd/ndbg/native"
	"golang.org/x/sys/unix"
)

const hostArch = native.ARCH_X86_64

// offsetof(struct user, u_debugreg)
const debugRegOffset = 848

func getContext(tid int, ctx *native.Context) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &regs); err != nil {
		return err
	}
	*ctx = native.Context{
		IP:     regs.Rip,
		Flags:  regs.Eflags,
		OrigAX: regs.Orig_rax,
		General: native.GeneralRegs{
			AX: regs.Rax, BX: regs.Rbx, CX: regs.Rcx, DX: regs.Rdx,
			SI: regs.Rsi, DI: regs.Rdi, BP: regs.Rbp, SP: regs.Rsp,
			R8: regs.R8, R9: regs.R9, R10: regs.R10, R11: regs.R11,
			R12: regs.R12, R13: regs.R13, R14: regs.R14, R15: regs.R15,
		},
		Segment: native.SegmentRegs{
			CS: regs.Cs, DS: regs.Ds, ES: regs.Es, FS: regs.Fs, GS: regs.Gs, SS: regs.Ss,
			FSBase: regs.Fs_base, GSBase: regs.Gs_base,
		},
	}
	dr := []*uint64{&ctx.Debug.DR0, &ctx.Debug.DR1, &ctx.Debug.DR2, &ctx.Debug.DR3, nil, nil, &ctx.Debug.DR6, &ctx.Debug.DR7}
	var word [8]byte
	for i, p := range dr {
		if p == nil {
			continue
		}
		if _, err := unix.PtracePeekUser(tid, uintptr(debugRegOffset+i*8), word[:]); err != nil {
			return err
		}
		*p = binary.LittleEndian.Uint64(word[:])
	}
	return nil
}

func setContext(tid int, ctx *native.Context) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &regs); err != nil {
		return err
	}
	regs.Rip = ctx.IP
	regs.Eflags = ctx.Flags
	regs.Orig_rax = ctx.OrigAX
	regs.Rax, regs.Rbx, regs.Rcx, regs.Rdx = ctx.General.AX, ctx.General.BX, ctx.General.CX, ctx.General.DX
	regs.Rsi, regs.Rdi, regs.Rbp, regs.Rsp = ctx.General.SI, ctx.General.DI, ctx.General.BP, ctx.General.SP
	regs.R8, regs.R9, regs.R10, regs.R11 = ctx.General.R8, ctx.General.R9, ctx.General.R10, ctx.General.R11
	regs.R12, regs.R13, regs.R14, regs.R15 = ctx.General.R12, ctx.General.R13, ctx.General.R14, ctx.General.R15
	regs.Cs, regs.Ds, regs.Es = ctx.Segment.CS, ctx.Segment.DS, ctx.Segment.ES
	regs.Fs, regs.Gs, regs.Ss = ctx.Segment.FS, ctx.Segment.GS, ctx.Segment.SS
	regs.Fs_base, regs.Gs_base = ctx.Segment.FSBase, ctx.Segment.GSBase
	if err := unix.PtraceSetRegs(tid, &regs); err != nil {
		return err
	}
	var cur native.Context
	if err := getContext(tid, &cur); err != nil {
		return err
	}
	dr := []struct {
		index     int
		cur, want uint64
	}{
		{0, cur.Debug.DR0, ctx.Debug.DR0},
		{1, cur.Debug.DR1, ctx.Debug.DR1},
		{2, cur.Debug.DR2, ctx.Debug.DR2},
		{3, cur.Debug.DR3, ctx.Debug.DR3},
		{7, cur.Debug.DR7, ctx.Debug.DR7},
	}
	var word [8]byte
	for _, r := range dr {
		if r.cur == r.want {
			continue
		}
		binary.LittleEndian.PutUint64(word[:], r.want)
		if _, err := unix.PtracePokeUser(tid, uintptr(debugRegOffset+r.index*8), word[:]); err != nil {
			return err
		}
	}
	return nil
}
