package debugger

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/native"
)

// dispatcher is the only path from the engine to backend memory, context
// and execution primitives.
type dispatcher struct {
	backend native.Backend
}

func newDispatcher(backend native.Backend) *dispatcher {
	return &dispatcher{backend: backend}
}

// ProcessRequest executes req against the target. data is a []byte for
// memory requests, a *debugger.Context for context requests and a []byte
// of at least eight bytes receiving the physical address for translate.
func (d *dispatcher) ProcessRequest(req debugger.Request, addr uint64, data any) (int, error) {
	glog.V(2).Infof("request %s addr: %016X", req, addr)
	switch req {
	case debugger.REQ_READ, debugger.REQ_WRITE, debugger.REQ_READ_PHYS, debugger.REQ_WRITE_PHYS:
		buf, ok := data.([]byte)
		if !ok {
			return 0, debugger.ErrArgumentInvalid
		}
		return d.transfer(req, addr, buf)
	case debugger.REQ_GET_CONTEXT, debugger.REQ_SET_CONTEXT:
		ctx, ok := data.(*debugger.Context)
		if !ok || ctx == nil {
			return 0, debugger.ErrContextInvalid
		}
		var err error
		if req == debugger.REQ_GET_CONTEXT {
			err = d.backend.GetContext(ctx)
		} else {
			err = d.backend.SetContext(ctx)
		}
		if err != nil {
			return 0, &debugger.NativeError{Op: req, Err: err}
		}
		return 1, nil
	case debugger.REQ_CONTINUE:
		return 0, d.backend.Resume()
	case debugger.REQ_BREAK:
		return 0, d.backend.Break()
	case debugger.REQ_STOP:
		if s, ok := d.backend.(native.Stopper); ok {
			return 0, s.Stop()
		}
	case debugger.REQ_ATTACH, debugger.REQ_DETACH:
		if a, ok := d.backend.(native.Attacher); ok {
			if req == debugger.REQ_ATTACH {
				return 0, a.Attach()
			}
			return 0, a.Detach()
		}
	case debugger.REQ_TRANSLATE:
		pm, ok := d.backend.(native.PhysicalMemory)
		if !ok {
			break
		}
		buf, ok := data.([]byte)
		if !ok || len(buf) < 8 {
			return 0, debugger.ErrArgumentInvalid
		}
		phys, err := pm.Translate(addr)
		if err != nil {
			return 0, &debugger.NativeError{Op: req, Addr: addr, Err: err}
		}
		binary.LittleEndian.PutUint64(buf, phys)
		return 8, nil
	}
	return 0, debugger.ErrUnsupported
}

func (d *dispatcher) transfer(req debugger.Request, addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var n int
	var err error
	switch req {
	case debugger.REQ_READ:
		n, err = d.backend.ReadMemory(addr, buf)
	case debugger.REQ_WRITE:
		n, err = d.backend.WriteMemory(addr, buf)
	default:
		pm, ok := d.backend.(native.PhysicalMemory)
		if !ok {
			return 0, debugger.ErrUnsupported
		}
		if req == debugger.REQ_READ_PHYS {
			n, err = pm.ReadPhysical(addr, buf)
		} else {
			n, err = pm.WritePhysical(addr, buf)
		}
	}
	if err == nil && n < len(buf) {
		if req == debugger.REQ_WRITE || req == debugger.REQ_WRITE_PHYS {
			err = io.ErrShortWrite
		} else {
			err = io.ErrUnexpectedEOF
		}
	}
	if err != nil {
		glog.V(1).Infof("%s %016X failed after %d of %d bytes: %v", req, addr, n, len(buf), err)
		return n, &debugger.NativeError{Op: req, Addr: addr, Size: len(buf), Transferred: n, Err: err}
	}
	return n, nil
}

func (d *dispatcher) Arch() native.Arch {
	return d.backend.Arch()
}

func (d *dispatcher) ReadMemory(addr uint64, data []byte) (int, error) {
	return d.ProcessRequest(debugger.REQ_READ, addr, data)
}

func (d *dispatcher) WriteMemory(addr uint64, data []byte) (int, error) {
	return d.ProcessRequest(debugger.REQ_WRITE, addr, data)
}

func (d *dispatcher) GetContext(ctx *debugger.Context) error {
	_, err := d.ProcessRequest(debugger.REQ_GET_CONTEXT, 0, ctx)
	return err
}

func (d *dispatcher) SetContext(ctx *debugger.Context) error {
	_, err := d.ProcessRequest(debugger.REQ_SET_CONTEXT, 0, ctx)
	return err
}

func (d *dispatcher) Resume() error {
	_, err := d.ProcessRequest(debugger.REQ_CONTINUE, 0, nil)
	return err
}

func (d *dispatcher) Break() error {
	_, err := d.ProcessRequest(debugger.REQ_BREAK, 0, nil)
	return err
}

func (d *dispatcher) WaitEvent(timeout time.Duration) (*native.Event, error) {
	return d.backend.WaitEvent(timeout)
}

// ContinueEvent lets the target run past ev.
func (d *dispatcher) ContinueEvent(ev *native.Event) error {
	glog.V(2).Infof("continue %s", ev.Code)
	return d.backend.ContinueEvent(ev)
}

// Quiesce stops every target thread. Backends without the capability
// report ErrUnsupported.
func (d *dispatcher) Quiesce() error {
	q, ok := d.backend.(native.Quiescer)
	if !ok {
		return debugger.ErrUnsupported
	}
	glog.V(1).Info("quiesce target")
	return q.Quiesce()
}

func (d *dispatcher) Close() error {
	return d.backend.Close()
}

func (d *dispatcher) FlushInstructionCache(addr, size uint64) error {
	return d.backend.FlushInstructionCache(addr, size)
}

func (d *dispatcher) ToPointer(addr uint64) native.Pointer {
	return native.ToPointer(d, addr)
}
