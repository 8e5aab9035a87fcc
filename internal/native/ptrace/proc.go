//go:build linux

package ptrace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/encoding"
	"github.com/wnxd/ndbg/native"
)

const (
	pageSize = 0x1000

	_AT_NULL  = 0
	_AT_PHDR  = 3
	_AT_ENTRY = 9
)

type auxvEntry struct {
	Type  uint64
	Value uint64
}

// parseMaps reads /proc/<pid>/maps formatted lines.
func parseMaps(r io.Reader) ([]native.MemRegion, error) {
	var regions []native.MemRegion
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("maps: bad range %q", fields[0])
		}
		start, err := strconv.ParseUint(bounds[0], 16, 64)
		if err != nil {
			return nil, err
		}
		end, err := strconv.ParseUint(bounds[1], 16, 64)
		if err != nil {
			return nil, err
		}
		var prot native.MemProt
		perms := fields[1]
		if strings.IndexByte(perms, 'r') >= 0 {
			prot |= native.MEM_PROT_READ
		}
		if strings.IndexByte(perms, 'w') >= 0 {
			prot |= native.MEM_PROT_WRITE
		}
		if strings.IndexByte(perms, 'x') >= 0 {
			prot |= native.MEM_PROT_EXEC
		}
		var path string
		if len(fields) >= 6 {
			path = strings.Join(fields[5:], " ")
		}
		regions = append(regions, native.MemRegion{
			Addr: start,
			Size: debugger.Align(end-start, pageSize),
			Prot: prot,
			Path: path,
		})
	}
	return regions, scanner.Err()
}

func readMaps(pid int) ([]native.MemRegion, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMaps(f)
}

// images reduces regions to the lowest mapping of every file backed image.
func images(regions []native.MemRegion) map[string]uint64 {
	bases := make(map[string]uint64)
	for _, r := range regions {
		if !strings.HasPrefix(r.Path, "/") {
			continue
		}
		if base, ok := bases[r.Path]; !ok || r.Addr < base {
			bases[r.Path] = r.Addr
		}
	}
	return bases
}

func parseAuxv(data []byte) (map[uint64]uint64, error) {
	buf := encoding.Buffer(data)
	stream := encoding.NewStream(&buf, 0)
	aux := make(map[uint64]uint64)
	size := encoding.DecodeSize(&auxvEntry{})
	for n := 0; n+size <= len(data); n += size {
		var entry auxvEntry
		if err := encoding.Decode(stream, &entry); err != nil {
			return nil, err
		}
		if entry.Type == _AT_NULL {
			break
		}
		aux[entry.Type] = entry.Value
	}
	return aux, nil
}

func readEntry(pid int) uint64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/auxv", pid))
	if err != nil {
		return 0
	}
	aux, err := parseAuxv(data)
	if err != nil {
		return 0
	}
	return aux[_AT_ENTRY]
}

func readExe(pid int) string {
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return ""
	}
	return path
}

func listThreads(pid int) ([]int, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", pid))
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		if tid, err := strconv.Atoi(e.Name()); err == nil {
			tids = append(tids, tid)
		}
	}
	return tids, nil
}
