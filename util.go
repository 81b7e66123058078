package raytracer

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"unsafe"
)

type stackFrame struct {
	pc   uintptr
	file string
	line int
	name string
}

func newStackFrame(pc uintptr) stackFrame {
	frame := stackFrame{pc: pc}
	if fn := runtime.FuncForPC(pc); fn != nil {
		frame.file, frame.line = fn.FileLine(pc - 1)
		frame.name = fn.Name()
		if i := strings.LastIndex(frame.name, "/"); i >= 0 {
			frame.name = frame.name[i+1:]
		}
	}
	return frame
}

func (f stackFrame) String() string {
	if f.file == "" {
		return fmt.Sprintf("0x%x", f.pc)
	}
	return fmt.Sprintf("%s:%d (%s)", filepath.Base(f.file), f.line, f.name)
}

// safeString null-terminates s for the C side.
func safeString(s string) string {
	if len(s) == 0 {
		return "\x00"
	}
	if s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, safeString(s))
	}
	return out
}

func trimNull(s string) string {
	return strings.TrimRight(s, "\x00")
}

// checkExisting returns the wanted names found in actual and the ones that are not.
func checkExisting(actual, wanted []string) (existing, missing []string) {
	have := make(map[string]struct{}, len(actual))
	for _, name := range actual {
		have[trimNull(name)] = struct{}{}
	}
	for _, name := range wanted {
		if _, ok := have[trimNull(name)]; ok {
			existing = append(existing, name)
		} else {
			missing = append(missing, trimNull(name))
		}
	}
	return existing, missing
}

// sliceUint32 reinterprets SPIR-V bytes as the uint32 words vulkan expects.
// len(data) must be a multiple of 4.
func sliceUint32(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
