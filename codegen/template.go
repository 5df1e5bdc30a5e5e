// Package codegen turns a lowered ir.Program into source text for a host
// compiler: a portable C rendition (c.go) and a native backend emitting Go
// source built as a plugin and loaded in-process (native.go). Both share
// the segmentize helper in this file, since both translate the IR's
// arbitrary label/jump graph into the same per-function program-counter
// state machine (spec §4.6) rather than relying on the host language's
// own goto, so a definition's control flow always compiles into one flat
// switch regardless of how its IF/ELSE/DO/LOOP nest.
package codegen

import (
	"strings"

	"roth/ir"
)

// segment is one program-counter case: the straight-line instructions
// that run between two label boundaries (or between the start of the
// function and the first label, or the last label and the end).
type segment struct {
	instrs []ir.Instruction
}

// segmentize splits fn's instruction stream at every OpLabel, returning
// the segments in execution order and a map from each Label to the
// segment index control transfers to when jumping to it.
func segmentize(fn *ir.Function) ([]segment, map[ir.Label]int) {
	var segs []segment
	pcOf := make(map[ir.Label]int)
	cur := segment{}

	for _, instr := range fn.Instructions {
		if instr.Op == ir.OpLabel {
			segs = append(segs, cur)
			pcOf[instr.Label] = len(segs)
			cur = segment{}
			continue
		}
		cur.instrs = append(cur.instrs, instr)
	}
	segs = append(segs, cur)
	return segs, pcOf
}

// wordSymbol maps a Forth word name to a host-language identifier.
func wordSymbol(name string) string {
	return "word_" + sanitizeIdent(name)
}

// constSymbol maps a CONSTANT name to a host-language identifier.
func constSymbol(name string) string {
	return "const_" + sanitizeIdent(name)
}

// isIntrinsicCallName reports whether name is one of the lowerer's
// "__"-prefixed intrinsic symbols (PICK, ROLL, >R, ...) rather than a
// user-defined word, mirroring runtime.CallByName's dispatch rule. Both
// backends need this to decide between a direct function call and a
// dispatch through the shared intrinsic table.
func isIntrinsicCallName(name string) bool {
	return strings.HasPrefix(name, "__")
}

func sanitizeIdent(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 || (out[0] >= '0' && out[0] <= '9') {
		out = append([]byte{'_'}, out...)
	}
	return string(out)
}
