package debugger

import (
	"github.com/wnxd/ndbg/debugger"
)

// HandleEvent is the handler every new session starts with. Exceptions
// halt the session so the operator gets the console back.
func (dbg *Debugger) HandleEvent(s debugger.Session, ev debugger.Event) debugger.SessionState {
	switch ev := ev.(type) {
	case debugger.QuitEvent:
		dbg.display.Error("QUIT Command received; quitting...")
		return debugger.STATE_QUIT
	case debugger.ExitThreadEvent:
		dbg.display.Message("Thread (%d) terminated with exit code %d (0x%x)", ev.TID, ev.ExitCode, uint32(ev.ExitCode))
	case debugger.ExitProcessEvent:
		info := s.Process()
		dbg.display.Message("Process '%s' (%d) terminated with exit code %d (0x%x)", info.Name, info.PID, ev.ExitCode, uint32(ev.ExitCode))
	case debugger.ExceptionEvent:
		dbg.processException(s, ev)
		return debugger.STATE_SUSPEND
	case debugger.PrintEvent:
		dbg.display.DebugOut("%s", ev.Text)
	}
	return debugger.STATE_CONTINUE
}

func (dbg *Debugger) processException(s debugger.Session, ev debugger.ExceptionEvent) {
	if ev.FirstChance {
		dbg.display.Error("First chance exception (%s) at (0x%x)", ev.Code, ev.Address)
	} else {
		dbg.display.Error("Second chance exception (%s) at (0x%x)", ev.Code, ev.Address)
	}
	s.SendEvent(debugger.SESSION_BREAK, debugger.SOURCE_COMMAND)
}
