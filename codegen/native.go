package codegen

import (
	"fmt"
	"sort"
	"strings"

	"roth/ir"
)

// NativeBackend emits Go source implementing the lowered program. The
// REPL's loader (repl/loader.go) builds this with `go build
// -buildmode=plugin` and loads it with the standard library's plugin
// package, so a compiled definition runs in the same process and against
// the same *runtime.Context as every prior REPL turn.
type NativeBackend struct{}

func (NativeBackend) Name() string { return "native" }

func (b NativeBackend) Emit(prog *ir.Program, opts Options) (string, error) {
	var sb strings.Builder

	localNames := make(map[string]bool, len(prog.Functions))
	for name := range prog.Functions {
		localNames[name] = true
	}

	sb.WriteString("// Code generated by roth's native backend. DO NOT EDIT.\n\n")
	if opts.Repl {
		// Built with `go build -buildmode=plugin` and loaded in-process
		// by repl/loader.go, so it must share the runtime package's
		// types with the loading process: package name is irrelevant to
		// the plugin loader, which resolves symbols by name regardless.
		sb.WriteString("package compiled\n\n")
		sb.WriteString("import \"roth/runtime\"\n\n")
	} else {
		// A standalone CLI compile (`roth file.fs [--run]`): a normal
		// Go program built and executed directly by the host toolchain,
		// with no plugin loading involved.
		sb.WriteString("package main\n\n")
		sb.WriteString("import (\n\t\"fmt\"\n\t\"os\"\n\n\t\"roth/runtime\"\n)\n\n")
	}

	constNames := make([]string, 0, len(prog.Constants))
	for name := range prog.Constants {
		constNames = append(constNames, name)
	}
	sort.Strings(constNames)
	for _, name := range constNames {
		fmt.Fprintf(&sb, "const %s int64 = %d\n", constSymbol(name), prog.Constants[name])
	}
	if len(prog.Constants) > 0 {
		sb.WriteString("\n")
	}

	for _, fn := range prog.AllFunctions() {
		if err := emitGoFunction(&sb, fn, opts, localNames); err != nil {
			return "", err
		}
		sb.WriteString("\n")
	}

	if opts.Repl {
		emitReplEntry(&sb, prog)
		return sb.String(), nil
	}

	sb.WriteString("func main() {\n\tctx := runtime.NewContext()\n")
	emitVariableInit(&sb, prog)
	fmt.Fprintf(&sb, "\tif err := %s(ctx); err != nil {\n\t\tfmt.Fprintf(os.Stderr, \"%%s\\n\", err)\n\t\tos.Exit(1)\n\t}\n}\n", wordSymbol("main"))

	return sb.String(), nil
}

// emitReplEntry writes the spec §4.8 calling convention: an entry point
// that registers every word this turn defined into ctx's cross-turn
// registry, then runs this turn's top-level code, plus a name list the
// REPL folds into its own bookkeeping after a successful turn.
//
// The spec names these symbols __repl_entry / __defined_words, a
// C-flavored convention inherited from the original implementation. The
// standard library's plugin package only resolves exported symbols, so
// this backend exposes the same two symbols under the exported Go names
// ReplEntry / DefinedWords instead; repl/loader.go looks them up by
// these names.
func emitReplEntry(sb *strings.Builder, prog *ir.Program) {
	names := make([]string, 0, len(prog.Functions))
	for name := range prog.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("var DefinedWords = []string{")
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%q", name)
	}
	sb.WriteString("}\n\n")

	sb.WriteString("func ReplEntry(ctx *runtime.Context) error {\n")
	for _, name := range names {
		fmt.Fprintf(sb, "\tctx.RegisterWord(%q, %s)\n", name, wordSymbol(name))
	}
	emitVariableInit(sb, prog)
	fmt.Fprintf(sb, "\treturn %s(ctx)\n", wordSymbol("main"))
	sb.WriteString("}\n")
}

// emitVariableInit zero-initializes every VARIABLE name the program knows
// about that the session's persistent memory has no cell for yet, mirroring
// runtime/interp.go's Run(): a declared-but-unwritten variable reads as 0
// rather than tripping InvalidMemoryAccess.
func emitVariableInit(sb *strings.Builder, prog *ir.Program) {
	if len(prog.Variables) == 0 {
		return
	}
	names := make([]string, 0, len(prog.Variables))
	for name := range prog.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sb, "\tif _, ok := ctx.Memory[%q]; !ok { ctx.Memory[%q] = 0 }\n", name, name)
	}
}

func emitGoFunction(sb *strings.Builder, fn *ir.Function, opts Options, localNames map[string]bool) error {
	segs, pcOf := segmentize(fn)

	fmt.Fprintf(sb, "func %s(ctx *runtime.Context) error {\n", wordSymbol(fn.Name))
	sb.WriteString("\tpc := 0\n")
	sb.WriteString("\tfor {\n")
	sb.WriteString("\t\tswitch pc {\n")

	for i, seg := range segs {
		fmt.Fprintf(sb, "\t\tcase %d:\n", i)
		fallsThrough := true
		for _, instr := range seg.instrs {
			terminal, err := emitGoInstr(sb, instr, pcOf, localNames)
			if err != nil {
				return err
			}
			if terminal {
				fallsThrough = false
			}
		}
		if fallsThrough {
			if i+1 < len(segs) {
				fmt.Fprintf(sb, "\t\t\tpc = %d\n\t\t\tcontinue\n", i+1)
			} else {
				sb.WriteString("\t\t\treturn nil\n")
			}
		}
	}

	sb.WriteString("\t\t}\n")
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")
	return nil
}

// emitGoInstr writes the Go statements for instr and reports whether it
// transferred control itself (an unconditional jump or a return), in
// which case the segment loop must not also fall through.
func emitGoInstr(sb *strings.Builder, instr ir.Instruction, pcOf map[ir.Label]int, localNames map[string]bool) (bool, error) {
	switch instr.Op {
	case ir.OpPush, ir.OpLoadConst:
		v, _ := instr.Value.IsConst()
		fmt.Fprintf(sb, "\t\t\tif err := runtime.Push(ctx, %d); err != nil { return err }\n", v)
		return false, nil

	case ir.OpPop, ir.OpDrop:
		fmt.Fprintf(sb, "\t\t\tif _, err := runtime.Pop(ctx, %q); err != nil { return err }\n", opSpelling(instr.Op))
		return false, nil

	case ir.OpDup:
		sb.WriteString("\t\t\tif v, err := ctx.Data.Peek(0); err != nil { return &runtime.StackUnderflow{Op: \"DUP\"} } else if err := runtime.Push(ctx, v); err != nil { return err }\n")
		return false, nil

	case ir.OpSwap:
		sb.WriteString("\t\t\tif err := runtime.Swap(ctx); err != nil { return err }\n")
		return false, nil

	case ir.OpOver:
		sb.WriteString("\t\t\tif v, err := ctx.Data.Peek(1); err != nil { return &runtime.StackUnderflow{Op: \"OVER\"} } else if err := runtime.Push(ctx, v); err != nil { return err }\n")
		return false, nil

	case ir.OpRot:
		sb.WriteString("\t\t\tif err := runtime.Rot(ctx); err != nil { return err }\n")
		return false, nil

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEqual, ir.OpNotEqual, ir.OpLess, ir.OpGreater,
		ir.OpLessEqual, ir.OpGreaterEqual, ir.OpAnd, ir.OpOr:
		fmt.Fprintf(sb, "\t\t\tif err := runtime.Binary(ctx, %q); err != nil { return err }\n", goBinaryName(instr.Op))
		return false, nil

	case ir.OpNeg:
		sb.WriteString("\t\t\tif err := runtime.Negate(ctx); err != nil { return err }\n")
		return false, nil

	case ir.OpNot:
		sb.WriteString("\t\t\tif err := runtime.Invert(ctx); err != nil { return err }\n")
		return false, nil

	case ir.OpLoad:
		fmt.Fprintf(sb, "\t\t\tif v, ok := ctx.Memory[%q]; !ok { return &runtime.InvalidMemoryAccess{Name: %q} } else if err := runtime.Push(ctx, v); err != nil { return err }\n", instr.Value.Variable, instr.Value.Variable)
		return false, nil

	case ir.OpStore:
		fmt.Fprintf(sb, "\t\t\tif v, err := runtime.Pop(ctx, \"!\"); err != nil { return err } else { ctx.Memory[%q] = v }\n", instr.Value.Variable)
		return false, nil

	case ir.OpJump:
		fmt.Fprintf(sb, "\t\t\tpc = %d\n\t\t\tcontinue\n", pcOf[instr.Label])
		return true, nil

	case ir.OpJumpIf:
		fmt.Fprintf(sb, "\t\t\tif v, err := runtime.Pop(ctx, \"IF\"); err != nil { return err } else if v != 0 { pc = %d; continue }\n", pcOf[instr.Label])
		return false, nil

	case ir.OpJumpIfNot:
		fmt.Fprintf(sb, "\t\t\tif v, err := runtime.Pop(ctx, \"IF\"); err != nil { return err } else if v == 0 { pc = %d; continue }\n", pcOf[instr.Label])
		return false, nil

	case ir.OpCall:
		switch {
		case isIntrinsicCallName(instr.Name):
			fmt.Fprintf(sb, "\t\t\tif err := runtime.CallByName(ctx, %q); err != nil { return err }\n", instr.Name)
		case localNames[instr.Name]:
			fmt.Fprintf(sb, "\t\t\tif err := %s(ctx); err != nil { return err }\n", wordSymbol(instr.Name))
		default:
			// Defined in an earlier REPL turn (a different loaded
			// plugin) or forward-referenced; resolved dynamically
			// through the session's word registry.
			fmt.Fprintf(sb, "\t\t\tif err := ctx.CallWord(%q); err != nil { return err }\n", instr.Name)
		}
		return false, nil

	case ir.OpReturn:
		sb.WriteString("\t\t\treturn nil\n")
		return true, nil

	case ir.OpDoLoop:
		fmt.Fprintf(sb, "\t\t\tif end, err := runtime.EnterLoop(ctx, %t); err != nil { return err } else if end { pc = %d; continue }\n",
			instr.Unchecked, pcOf[instr.EndLbl])
		return false, nil

	case ir.OpLoop:
		fmt.Fprintf(sb, "\t\t\tif cont, err := runtime.AdvanceLoop(ctx); err != nil { return err } else if cont { pc = %d; continue }\n",
			pcOf[instr.BodyLbl])
		return false, nil

	case ir.OpPushLoopIndex:
		sb.WriteString("\t\t\tif v, err := ctx.LoopIndex(); err != nil { return err } else if err := runtime.Push(ctx, v); err != nil { return err }\n")
		return false, nil

	case ir.OpPushLoopLimit:
		sb.WriteString("\t\t\tif v, err := ctx.LoopLimit(); err != nil { return err } else if err := runtime.Push(ctx, v); err != nil { return err }\n")
		return false, nil

	case ir.OpPrint:
		sb.WriteString("\t\t\tif err := runtime.PrintTop(ctx); err != nil { return err }\n")
		return false, nil

	case ir.OpPrintStack:
		sb.WriteString("\t\t\truntime.PrintStack(ctx)\n")
		return false, nil

	case ir.OpPrintChar:
		sb.WriteString("\t\t\tif err := runtime.PrintChar(ctx); err != nil { return err }\n")
		return false, nil

	case ir.OpPrintString:
		sb.WriteString("\t\t\tif err := runtime.PrintString(ctx); err != nil { return err }\n")
		return false, nil

	case ir.OpReadChar:
		sb.WriteString("\t\t\tif err := runtime.ReadChar(ctx); err != nil { return err }\n")
		return false, nil

	case ir.OpLabel, ir.OpComment, ir.OpNop:
		if instr.Op == ir.OpComment {
			fmt.Fprintf(sb, "\t\t\t// %s\n", instr.Text)
		}
		return false, nil

	default:
		return false, fmt.Errorf("native backend: unsupported opcode %v", instr.Op)
	}
}

// opSpelling names an opcode the way the generated code's runtime error
// tags it, mirroring runtime/interp.go's opName.
func opSpelling(op ir.Opcode) string {
	switch op {
	case ir.OpPop:
		return "POP"
	case ir.OpDrop:
		return "DROP"
	default:
		return fmt.Sprintf("%v", op)
	}
}

func goBinaryName(op ir.Opcode) string {
	switch op {
	case ir.OpAdd:
		return "+"
	case ir.OpSub:
		return "-"
	case ir.OpMul:
		return "*"
	case ir.OpDiv:
		return "/"
	case ir.OpMod:
		return "%"
	case ir.OpEqual:
		return "="
	case ir.OpNotEqual:
		return "<>"
	case ir.OpLess:
		return "<"
	case ir.OpGreater:
		return ">"
	case ir.OpLessEqual:
		return "<="
	case ir.OpGreaterEqual:
		return ">="
	case ir.OpAnd:
		return "AND"
	case ir.OpOr:
		return "OR"
	default:
		return "?"
	}
}
