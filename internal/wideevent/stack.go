package wideevent

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 32

// Carried stacks are looked up anywhere in the wrap chain.
type (
	byteStacker   interface{ Stack() []byte }
	stringStacker interface{ Stack() string }
	stringTracer  interface{ StackTrace() string }
	pcTracer      interface{ StackTrace() []uintptr }
)

// carriedStack returns the stack recorded by err or one it wraps.
func carriedStack(err error) (string, bool) {
	var bs byteStacker
	if errors.As(err, &bs) {
		return string(bs.Stack()), true
	}
	var ss stringStacker
	if errors.As(err, &ss) {
		return ss.Stack(), true
	}
	var st stringTracer
	if errors.As(err, &st) {
		return st.StackTrace(), true
	}
	var pt pcTracer
	if errors.As(err, &pt) {
		return formatFrames(framesOf(pt.StackTrace())), true
	}
	return "", false
}

// callers records the stack above the function calling callers, skip frames up.
func callers(skip int) []runtime.Frame {
	pcs := make([]uintptr, maxStackDepth)
	// 0 is runtime.Callers, 1 is callers itself
	n := runtime.Callers(skip+2, pcs)
	return framesOf(pcs[:n])
}

func framesOf(pcs []uintptr) []runtime.Frame {
	if len(pcs) == 0 {
		return nil
	}
	var out []runtime.Frame
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			return out
		}
	}
}

// panicSite trims a stack captured in a deferred function down to the frame
// that panicked: everything up to runtime.gopanic is the recovery machinery,
// and the runtime frames right after it belong to faults like nil dereferences.
func panicSite(frames []runtime.Frame) []runtime.Frame {
	for i, f := range frames {
		if f.Function != "runtime.gopanic" {
			continue
		}
		rest := frames[i+1:]
		for len(rest) > 0 && strings.HasPrefix(rest[0].Function, "runtime.") {
			rest = rest[1:]
		}
		return rest
	}
	return frames
}

func formatFrames(frames []runtime.Frame) string {
	var b strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
	}
	return b.String()
}
