package codegen

import (
	"fmt"
	"sort"
	"strings"

	"roth/ir"
)

// CBackend emits self-contained, portable C source implementing the
// lowered program. Unlike the native backend, nothing loads this output
// back into the running REPL process — it exists for `--backend c` export
// builds a user feeds to their own gcc/clang. The generated file carries
// its own stack-machine support code (push/pop/variable access, with
// overflow/underflow checks that abort with a diagnostic) rather than
// depending on an external runtime header, and exposes forth_main(ForthVM*)
// plus a standard main() so the output builds and runs on its own.
type CBackend struct{}

func (CBackend) Name() string { return "c" }

const (
	cStackMax = 4096
	cLoopMax  = 256
)

func (b CBackend) Emit(prog *ir.Program, opts Options) (string, error) {
	var sb strings.Builder

	varNames := cVariableNames(prog)
	varIndex := make(map[string]int, len(varNames))
	for i, name := range varNames {
		varIndex[name] = i
	}
	varCount := len(varNames)
	if varCount == 0 {
		varCount = 1 // a zero-length array is a GNU extension; keep this portable
	}

	sb.WriteString("/* Code generated by roth's C backend. DO NOT EDIT. */\n\n")
	sb.WriteString("#include <stdint.h>\n#include <stdio.h>\n#include <stdlib.h>\n#include <string.h>\n\n")

	fmt.Fprintf(&sb, "#define ROTH_STACK_MAX %d\n", cStackMax)
	fmt.Fprintf(&sb, "#define ROTH_LOOP_MAX %d\n", cLoopMax)
	fmt.Fprintf(&sb, "#define ROTH_VAR_COUNT %d\n\n", varCount)

	sb.WriteString("typedef struct {\n")
	sb.WriteString("\tint64_t data[ROTH_STACK_MAX];\n\tint sp;\n")
	sb.WriteString("\tint64_t ret[ROTH_STACK_MAX];\n\tint rp;\n")
	sb.WriteString("\tint64_t loop_index[ROTH_LOOP_MAX];\n\tint64_t loop_limit[ROTH_LOOP_MAX];\n\tint loop_sp;\n")
	sb.WriteString("\tint64_t vars[ROTH_VAR_COUNT];\n")
	sb.WriteString("} ForthVM;\n\n")

	if len(varNames) > 0 {
		sb.WriteString("/* VARIABLE slot indices, sorted by name: ")
		sb.WriteString(strings.Join(varNames, ", "))
		sb.WriteString(" */\n")
		for _, name := range varNames {
			fmt.Fprintf(&sb, "#define VAR_%s %d\n", sanitizeIdent(name), varIndex[name])
		}
		sb.WriteString("\n")
	}

	sb.WriteString(cSupportFunctions)

	names := make([]string, 0, len(prog.Constants))
	for name := range prog.Constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "static const int64_t %s = %d;\n", constSymbol(name), prog.Constants[name])
	}
	if len(names) > 0 {
		sb.WriteString("\n")
	}

	for _, fn := range prog.AllFunctions() {
		fmt.Fprintf(&sb, "static void %s(ForthVM *vm);\n", wordSymbol(fn.Name))
	}
	sb.WriteString("\n")

	for _, fn := range prog.AllFunctions() {
		if err := emitCFunction(&sb, fn, varIndex); err != nil {
			return "", err
		}
		sb.WriteString("\n")
	}

	// forth_main is the spec's required C entry point: it owns nothing
	// beyond running this translation unit's top-level code against a
	// VM the caller supplies, so an embedder can run several turns
	// against the same ForthVM the way the REPL carries state across
	// turns in-process.
	fmt.Fprintf(&sb, "void forth_main(ForthVM *vm) {\n\t%s(vm);\n}\n\n", wordSymbol("main"))

	sb.WriteString("int main(void) {\n\tForthVM vm;\n\tmemset(&vm, 0, sizeof(vm));\n\tforth_main(&vm);\n\treturn 0;\n}\n")

	return sb.String(), nil
}

// cVariableNames returns every VARIABLE name the program declared, sorted,
// so its slot index in ForthVM.vars is stable and reproducible across
// runs. Falls back to scanning Load/Store instructions for any name
// Variables somehow missed, so a compiled program never indexes out of
// bounds against an unlisted name.
func cVariableNames(prog *ir.Program) []string {
	seen := make(map[string]bool, len(prog.Variables))
	for name := range prog.Variables {
		seen[name] = true
	}
	for _, fn := range prog.AllFunctions() {
		for _, instr := range fn.Instructions {
			if instr.Op == ir.OpLoad || instr.Op == ir.OpStore {
				seen[instr.Value.Variable] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cSupportFunctions is the self-contained stack-machine support code every
// generated C file carries: push/pop with overflow/underflow checks that
// abort with a diagnostic (spec §4.6(5)), plus the shuffle/arithmetic/loop/
// I/O helpers emitCInstr calls.
const cSupportFunctions = `static void roth_abort(const char *msg) {
	fprintf(stderr, "%s\n", msg);
	exit(1);
}

static void roth_push(ForthVM *vm, int64_t v) {
	if (vm->sp >= ROTH_STACK_MAX) {
		char buf[64];
		snprintf(buf, sizeof buf, "stack overflow: limit is %d", ROTH_STACK_MAX);
		roth_abort(buf);
	}
	vm->data[vm->sp++] = v;
}

static int64_t roth_pop(ForthVM *vm, const char *op) {
	if (vm->sp <= 0) {
		char buf[64];
		snprintf(buf, sizeof buf, "stack underflow in %s", op);
		roth_abort(buf);
	}
	return vm->data[--vm->sp];
}

static void roth_rpush(ForthVM *vm, int64_t v) {
	if (vm->rp >= ROTH_STACK_MAX) {
		roth_abort("return stack overflow");
	}
	vm->ret[vm->rp++] = v;
}

static int64_t roth_rpop(ForthVM *vm) {
	if (vm->rp <= 0) {
		roth_abort("return stack underflow");
	}
	return vm->ret[--vm->rp];
}

static void roth_dup(ForthVM *vm) {
	if (vm->sp <= 0) roth_abort("stack underflow in DUP");
	roth_push(vm, vm->data[vm->sp - 1]);
}

static void roth_swap(ForthVM *vm) {
	int64_t b = roth_pop(vm, "SWAP");
	int64_t a = roth_pop(vm, "SWAP");
	roth_push(vm, b);
	roth_push(vm, a);
}

static void roth_over(ForthVM *vm) {
	if (vm->sp < 2) roth_abort("stack underflow in OVER");
	roth_push(vm, vm->data[vm->sp - 2]);
}

static void roth_rot(ForthVM *vm) {
	int64_t c = roth_pop(vm, "ROT");
	int64_t b = roth_pop(vm, "ROT");
	int64_t a = roth_pop(vm, "ROT");
	roth_push(vm, b);
	roth_push(vm, c);
	roth_push(vm, a);
}

static void roth_negate(ForthVM *vm) {
	roth_push(vm, -roth_pop(vm, "NEGATE"));
}

static void roth_invert(ForthVM *vm) {
	int64_t v = roth_pop(vm, "NOT");
	roth_push(vm, v == 0 ? -1 : 0);
}

static void roth_binary(ForthVM *vm, const char *op) {
	int64_t b = roth_pop(vm, op);
	int64_t a = roth_pop(vm, op);
	if (strcmp(op, "+") == 0) { roth_push(vm, a + b); return; }
	if (strcmp(op, "-") == 0) { roth_push(vm, a - b); return; }
	if (strcmp(op, "*") == 0) { roth_push(vm, a * b); return; }
	if (strcmp(op, "/") == 0) { if (b == 0) roth_abort("division by zero"); roth_push(vm, a / b); return; }
	if (strcmp(op, "%") == 0) { if (b == 0) roth_abort("division by zero"); roth_push(vm, a % b); return; }
	if (strcmp(op, "=") == 0) { roth_push(vm, a == b ? -1 : 0); return; }
	if (strcmp(op, "<>") == 0) { roth_push(vm, a != b ? -1 : 0); return; }
	if (strcmp(op, "<") == 0) { roth_push(vm, a < b ? -1 : 0); return; }
	if (strcmp(op, ">") == 0) { roth_push(vm, a > b ? -1 : 0); return; }
	if (strcmp(op, "<=") == 0) { roth_push(vm, a <= b ? -1 : 0); return; }
	if (strcmp(op, ">=") == 0) { roth_push(vm, a >= b ? -1 : 0); return; }
	if (strcmp(op, "AND") == 0) { roth_push(vm, (a != 0 && b != 0) ? -1 : 0); return; }
	if (strcmp(op, "OR") == 0) { roth_push(vm, (a != 0 || b != 0) ? -1 : 0); return; }
	roth_abort("unknown binary operator");
}

static int roth_enter_loop(ForthVM *vm, int unchecked) {
	int64_t index = roth_pop(vm, "DO");
	int64_t limit = roth_pop(vm, "DO");
	if (!unchecked && index >= limit) return 1;
	if (vm->loop_sp >= ROTH_LOOP_MAX) roth_abort("loop nesting too deep");
	vm->loop_index[vm->loop_sp] = index;
	vm->loop_limit[vm->loop_sp] = limit;
	vm->loop_sp++;
	return 0;
}

static int roth_advance_loop(ForthVM *vm) {
	if (vm->loop_sp <= 0) roth_abort("LOOP outside DO");
	int top = vm->loop_sp - 1;
	int64_t index = vm->loop_index[top] + 1;
	if (index < vm->loop_limit[top]) {
		vm->loop_index[top] = index;
		return 1;
	}
	vm->loop_sp--;
	return 0;
}

static void roth_push_loop_index(ForthVM *vm) {
	if (vm->loop_sp <= 0) roth_abort("I outside DO");
	roth_push(vm, vm->loop_index[vm->loop_sp - 1]);
}

static void roth_push_loop_limit(ForthVM *vm) {
	if (vm->loop_sp <= 0) roth_abort("I outside DO");
	roth_push(vm, vm->loop_limit[vm->loop_sp - 1]);
}

static void roth_print_top(ForthVM *vm) {
	printf("%lld ", (long long)roth_pop(vm, "."));
}

static void roth_print_stack(ForthVM *vm) {
	printf("<%d> ", vm->sp);
	for (int i = 0; i < vm->sp; i++) {
		printf("%lld ", (long long)vm->data[i]);
	}
	printf("\n");
}

static void roth_print_char(ForthVM *vm) {
	putchar((int)roth_pop(vm, "EMIT"));
}

static void roth_print_string(ForthVM *vm) {
	int64_t length = roth_pop(vm, "TYPE");
	char *buf = malloc((size_t)length);
	for (int64_t i = length - 1; i >= 0; i--) {
		buf[i] = (char)roth_pop(vm, "TYPE");
	}
	fwrite(buf, 1, (size_t)length, stdout);
	free(buf);
}

static void roth_read_char(ForthVM *vm) {
	int ch = getchar();
	roth_push(vm, ch == EOF ? -1 : (int64_t)ch);
}

static void roth_call_intrinsic(ForthVM *vm, const char *name) {
	if (strcmp(name, "__PICK") == 0) {
		int64_t n = roth_pop(vm, "PICK");
		if (n < 0 || n >= vm->sp) roth_abort("stack underflow in PICK");
		roth_push(vm, vm->data[vm->sp - 1 - (int)n]);
		return;
	}
	if (strcmp(name, "__ROLL") == 0) {
		int64_t n = roth_pop(vm, "ROLL");
		if (n < 0 || n >= vm->sp) roth_abort("stack underflow in ROLL");
		int idx = vm->sp - 1 - (int)n;
		int64_t v = vm->data[idx];
		memmove(&vm->data[idx], &vm->data[idx + 1], (size_t)(vm->sp - idx - 1) * sizeof(int64_t));
		vm->sp--;
		roth_push(vm, v);
		return;
	}
	if (strcmp(name, "__QDUP") == 0) {
		if (vm->sp <= 0) roth_abort("stack underflow in ?DUP");
		if (vm->data[vm->sp - 1] != 0) roth_dup(vm);
		return;
	}
	if (strcmp(name, "__2SWAP") == 0) {
		int64_t d = roth_pop(vm, "2SWAP"), c = roth_pop(vm, "2SWAP");
		int64_t b = roth_pop(vm, "2SWAP"), a = roth_pop(vm, "2SWAP");
		roth_push(vm, c); roth_push(vm, d); roth_push(vm, a); roth_push(vm, b);
		return;
	}
	if (strcmp(name, "__2OVER") == 0) {
		int64_t d = roth_pop(vm, "2OVER"), c = roth_pop(vm, "2OVER");
		int64_t b = roth_pop(vm, "2OVER"), a = roth_pop(vm, "2OVER");
		roth_push(vm, a); roth_push(vm, b); roth_push(vm, c); roth_push(vm, d);
		roth_push(vm, a); roth_push(vm, b);
		return;
	}
	if (strcmp(name, "__SLASHMOD") == 0) {
		int64_t b = roth_pop(vm, "/MOD"), a = roth_pop(vm, "/MOD");
		if (b == 0) roth_abort("division by zero");
		roth_push(vm, a % b); roth_push(vm, a / b);
		return;
	}
	if (strcmp(name, "__ABS") == 0) {
		int64_t v = roth_pop(vm, "ABS");
		roth_push(vm, v < 0 ? -v : v);
		return;
	}
	if (strcmp(name, "__MIN") == 0) {
		int64_t b = roth_pop(vm, "MIN"), a = roth_pop(vm, "MIN");
		roth_push(vm, a < b ? a : b);
		return;
	}
	if (strcmp(name, "__MAX") == 0) {
		int64_t b = roth_pop(vm, "MAX"), a = roth_pop(vm, "MAX");
		roth_push(vm, a > b ? a : b);
		return;
	}
	if (strcmp(name, "__TOR") == 0) { roth_rpush(vm, roth_pop(vm, ">R")); return; }
	if (strcmp(name, "__FROMR") == 0) { roth_push(vm, roth_rpop(vm)); return; }
	if (strcmp(name, "__RFETCH") == 0) {
		if (vm->rp <= 0) roth_abort("return stack underflow");
		roth_push(vm, vm->ret[vm->rp - 1]);
		return;
	}
	roth_abort("undefined word");
}

`

// emitCFunction renders fn as the same program-counter state machine
// native.go builds (via the shared segmentize helper), using C's switch
// and a goto-free continue loop instead of Go's.
func emitCFunction(sb *strings.Builder, fn *ir.Function, varIndex map[string]int) error {
	segs, pcOf := segmentize(fn)

	fmt.Fprintf(sb, "static void %s(ForthVM *vm) {\n", wordSymbol(fn.Name))
	sb.WriteString("\tint pc = 0;\n")
	sb.WriteString("\tfor (;;) {\n")
	sb.WriteString("\t\tswitch (pc) {\n")

	for i, seg := range segs {
		fmt.Fprintf(sb, "\t\tcase %d: {\n", i)
		fallsThrough := true
		for _, instr := range seg.instrs {
			terminal, err := emitCInstr(sb, instr, pcOf, varIndex)
			if err != nil {
				return err
			}
			if terminal {
				fallsThrough = false
			}
		}
		if fallsThrough {
			if i+1 < len(segs) {
				fmt.Fprintf(sb, "\t\t\tpc = %d;\n\t\t\tcontinue;\n", i+1)
			} else {
				sb.WriteString("\t\t\treturn;\n")
			}
		}
		sb.WriteString("\t\t}\n")
	}

	sb.WriteString("\t\t}\n")
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")
	return nil
}

// emitCInstr mirrors native.go's emitGoInstr opcode-for-opcode, against
// the support functions cSupportFunctions defines in the same file.
func emitCInstr(sb *strings.Builder, instr ir.Instruction, pcOf map[ir.Label]int, varIndex map[string]int) (bool, error) {
	switch instr.Op {
	case ir.OpPush, ir.OpLoadConst:
		v, _ := instr.Value.IsConst()
		fmt.Fprintf(sb, "\t\t\troth_push(vm, %d);\n", v)
		return false, nil

	case ir.OpPop, ir.OpDrop:
		fmt.Fprintf(sb, "\t\t\troth_pop(vm, %q);\n", opSpelling(instr.Op))
		return false, nil

	case ir.OpDup:
		sb.WriteString("\t\t\troth_dup(vm);\n")
		return false, nil

	case ir.OpSwap:
		sb.WriteString("\t\t\troth_swap(vm);\n")
		return false, nil

	case ir.OpOver:
		sb.WriteString("\t\t\troth_over(vm);\n")
		return false, nil

	case ir.OpRot:
		sb.WriteString("\t\t\troth_rot(vm);\n")
		return false, nil

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEqual, ir.OpNotEqual, ir.OpLess, ir.OpGreater,
		ir.OpLessEqual, ir.OpGreaterEqual, ir.OpAnd, ir.OpOr:
		fmt.Fprintf(sb, "\t\t\troth_binary(vm, %q);\n", goBinaryName(instr.Op))
		return false, nil

	case ir.OpNeg:
		sb.WriteString("\t\t\troth_negate(vm);\n")
		return false, nil

	case ir.OpNot:
		sb.WriteString("\t\t\troth_invert(vm);\n")
		return false, nil

	case ir.OpLoad:
		idx, ok := varIndex[instr.Value.Variable]
		if !ok {
			return false, fmt.Errorf("c backend: unresolved variable %q", instr.Value.Variable)
		}
		fmt.Fprintf(sb, "\t\t\troth_push(vm, vm->vars[%d]);\n", idx)
		return false, nil

	case ir.OpStore:
		idx, ok := varIndex[instr.Value.Variable]
		if !ok {
			return false, fmt.Errorf("c backend: unresolved variable %q", instr.Value.Variable)
		}
		fmt.Fprintf(sb, "\t\t\tvm->vars[%d] = roth_pop(vm, \"!\");\n", idx)
		return false, nil

	case ir.OpJump:
		fmt.Fprintf(sb, "\t\t\tpc = %d;\n\t\t\tcontinue;\n", pcOf[instr.Label])
		return true, nil

	case ir.OpJumpIf:
		fmt.Fprintf(sb, "\t\t\tif (roth_pop(vm, \"IF\") != 0) { pc = %d; continue; }\n", pcOf[instr.Label])
		return false, nil

	case ir.OpJumpIfNot:
		fmt.Fprintf(sb, "\t\t\tif (roth_pop(vm, \"IF\") == 0) { pc = %d; continue; }\n", pcOf[instr.Label])
		return false, nil

	case ir.OpCall:
		if isIntrinsicCallName(instr.Name) {
			fmt.Fprintf(sb, "\t\t\troth_call_intrinsic(vm, %q);\n", instr.Name)
		} else {
			fmt.Fprintf(sb, "\t\t\t%s(vm);\n", wordSymbol(instr.Name))
		}
		return false, nil

	case ir.OpReturn:
		sb.WriteString("\t\t\treturn;\n")
		return true, nil

	case ir.OpDoLoop:
		fmt.Fprintf(sb, "\t\t\tif (roth_enter_loop(vm, %s)) { pc = %d; continue; }\n",
			cBool(instr.Unchecked), pcOf[instr.EndLbl])
		return false, nil

	case ir.OpLoop:
		fmt.Fprintf(sb, "\t\t\tif (roth_advance_loop(vm)) { pc = %d; continue; }\n",
			pcOf[instr.BodyLbl])
		return false, nil

	case ir.OpPushLoopIndex:
		sb.WriteString("\t\t\troth_push_loop_index(vm);\n")
		return false, nil

	case ir.OpPushLoopLimit:
		sb.WriteString("\t\t\troth_push_loop_limit(vm);\n")
		return false, nil

	case ir.OpPrint:
		sb.WriteString("\t\t\troth_print_top(vm);\n")
		return false, nil

	case ir.OpPrintStack:
		sb.WriteString("\t\t\troth_print_stack(vm);\n")
		return false, nil

	case ir.OpPrintChar:
		sb.WriteString("\t\t\troth_print_char(vm);\n")
		return false, nil

	case ir.OpPrintString:
		sb.WriteString("\t\t\troth_print_string(vm);\n")
		return false, nil

	case ir.OpReadChar:
		sb.WriteString("\t\t\troth_read_char(vm);\n")
		return false, nil

	case ir.OpLabel, ir.OpNop:
		return false, nil

	case ir.OpComment:
		fmt.Fprintf(sb, "\t\t\t/* %s */\n", instr.Text)
		return false, nil

	default:
		return false, fmt.Errorf("c backend: unsupported opcode %v", instr.Op)
	}
}

func cBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
