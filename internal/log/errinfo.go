package log

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Implemented by the xerrors wrappers.
type hasPC interface{ PC() uintptr }
type hasStack interface{ StackPCs() []uintptr }

// errorAttrs is the kv the Error method appends: the error, its surface and
// root types, the message chain and optionally one call site per link.
func errorAttrs(err error, links bool, maxLinks int) []any {
	surface, root := classifyTypes(err)
	kv := []any{"err", err, "error_type", surface, "cause_type", root}
	if chain := errorChain(err); len(chain) > 1 {
		kv = append(kv, "error_chain", chain)
	}
	if links {
		kv = append(kv, "error_links", chainLinks(err, maxLinks))
	}
	return kv
}

// errorChain lists distinct messages from the outermost error inwards,
// descending into every branch of a joined error.
func errorChain(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		for e != nil {
			if msg := e.Error(); len(out) == 0 || out[len(out)-1] != msg {
				out = append(out, msg)
			}
			if j, ok := e.(interface{ Unwrap() []error }); ok {
				for _, inner := range j.Unwrap() {
					walk(inner)
				}
				return
			}
			e = errors.Unwrap(e)
		}
	}
	walk(err)
	return out
}

// chainLinks returns up to max entries of msg plus the func/file/line that
// created or wrapped each link. Links without a position are dropped except
// the first.
func chainLinks(err error, max int) []map[string]any {
	var links []map[string]any
	for depth, e := 0, err; e != nil && (max <= 0 || depth < max); depth, e = depth+1, errors.Unwrap(e) {
		link := map[string]any{"msg": e.Error()}
		fn, file, line, ok := linkPos(e)
		if ok {
			link["func"], link["file"], link["line"] = fn, file, line
		}
		if depth == 0 || ok {
			links = append(links, link)
		}
	}
	return links
}

func linkPos(e error) (fn, file string, line int, ok bool) {
	switch v := e.(type) {
	case hasPC:
		if v.PC() == 0 {
			return "", "", 0, false
		}
		fr, _ := runtime.CallersFrames([]uintptr{v.PC()}).Next()
		return fr.Function, fr.File, fr.Line, true
	case hasStack:
		frames := runtime.CallersFrames(v.StackPCs())
		for {
			fr, more := frames.Next()
			if fr.Function != "" && !internalFrame(fr.Function) && !strings.Contains(fr.Function, "/internal/xerrors.") {
				return fr.Function, fr.File, fr.Line, true
			}
			if !more {
				return "", "", 0, false
			}
		}
	}
	return "", "", 0, false
}

// internalFrame reports frames of the runtime or the logging layers.
func internalFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.HasPrefix(fn, "log/slog.") ||
		strings.HasPrefix(fn, "github.com/lmittmann/tint.") ||
		strings.Contains(fn, "/internal/log.")
}

// renderPCs formats frames from the first one outside the logger up to the
// runtime.
func renderPCs(pcs []uintptr) string {
	frames := runtime.CallersFrames(pcs)
	var b strings.Builder
	started := false
	for {
		fr, more := frames.Next()
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if !started && !internalFrame(fr.Function) {
			started = true
		}
		if started {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}

// classifyTypes returns the first type in the chain that is not a plain
// wrapper, and the type of the innermost error.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if !isWrapperType(e) {
			surface = fmt.Sprintf("%T", e)
			break
		}
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	last := err
	for e := err; e != nil; e = errors.Unwrap(e) {
		last = e
	}
	return surface, fmt.Sprintf("%T", last)
}

func isWrapperType(e error) bool {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	pkg, name := t.PkgPath(), t.Name()
	return strings.HasSuffix(pkg, "/internal/xerrors") ||
		(pkg == "fmt" && (name == "wrapError" || name == "wrapErrors"))
}
