package ir

// Optimize runs the fixed-point optimizer pipeline of spec §4.5: function
// inlining, constant folding, peephole rewriting, strength reduction, and
// dead code elimination, repeated until no pass reports a change or ten
// iterations have run (the cap exists because inlining mutually-recursive
// functions can make two passes keep finding new work indefinitely).
//
// Every pass operates on contiguous instruction windows and never touches
// an OpLabel instruction or a jump's target Label, so control-flow
// topology is preserved automatically: jumps address labels by identity,
// not by position, so deleting or rewriting instructions elsewhere never
// invalidates a jump target.
func Optimize(prog *Program) *Program {
	for iter := 0; iter < 10; iter++ {
		changed := false

		if inlineFunctions(prog) {
			changed = true
		}
		for _, fn := range prog.AllFunctions() {
			if constantFold(fn) {
				changed = true
			}
			if peephole(fn) {
				changed = true
			}
			if strengthReduce(fn) {
				changed = true
			}
			if deadCodeEliminate(fn) {
				changed = true
			}
		}

		if !changed {
			break
		}
	}
	return prog
}

// --- Function inlining -----------------------------------------------

const inlineMaxInstructions = 20

// isInlinable reports whether fn (registered under name) is small,
// straight-line (no labels or jumps of any kind, so no loop or
// conditional body ever qualifies), and not directly recursive.
func isInlinable(name string, fn *Function) bool {
	if len(fn.Instructions) >= inlineMaxInstructions {
		return false
	}
	for _, instr := range fn.Instructions {
		switch instr.Op {
		case OpLabel, OpJump, OpJumpIf, OpJumpIfNot, OpDoLoop, OpLoop:
			return false
		case OpCall:
			if instr.Name == name {
				return false
			}
		}
	}
	return true
}

func inlineFunctions(prog *Program) bool {
	candidates := make(map[string]*Function)
	for name, fn := range prog.Functions {
		if isInlinable(name, fn) {
			candidates[name] = fn
		}
	}
	if len(candidates) == 0 {
		return false
	}

	changed := false
	for _, fn := range prog.AllFunctions() {
		if inlineCallsIn(fn, candidates) {
			changed = true
		}
	}
	return changed
}

// inlineCallsIn replaces every Call to a candidate function with a copy of
// its body (its trailing Return dropped, since inlined code returns control
// to the caller's own instruction stream rather than the call stack).
func inlineCallsIn(fn *Function, candidates map[string]*Function) bool {
	changed := false
	out := make([]Instruction, 0, len(fn.Instructions))
	for _, instr := range fn.Instructions {
		callee, ok := candidates[instr.Name]
		if instr.Op != OpCall || !ok {
			out = append(out, instr)
			continue
		}
		body := callee.Instructions
		if n := len(body); n > 0 && body[n-1].Op == OpReturn {
			body = body[:n-1]
		}
		out = append(out, body...)
		changed = true
	}
	fn.Instructions = out
	return changed
}

// --- Constant folding ---------------------------------------------------

// constantFold collapses a Push(const)/Push(const)/binary-op triple into a
// single LoadConst, and a Push(const)/unary-op pair likewise, whenever the
// operator's result is known at compile time. Division and modulo are
// folded only when the divisor is non-zero, so that a runtime
// DivisionByZero error is never silently compiled away.
func constantFold(fn *Function) bool {
	changed := false
	src := fn.Instructions
	out := make([]Instruction, 0, len(src))

	for i := 0; i < len(src); {
		if i+2 < len(src) {
			a, b, op := src[i], src[i+1], src[i+2]
			if va, ok := constOf(a); ok {
				if vb, ok := constOf(b); ok {
					if folded, ok := foldBinary(op.Op, va, vb); ok {
						out = append(out, Instruction{Op: OpLoadConst, Value: Const(folded)})
						i += 3
						changed = true
						continue
					}
				}
			}
		}
		if i+1 < len(src) {
			a, op := src[i], src[i+1]
			if va, ok := constOf(a); ok {
				switch op.Op {
				case OpNeg:
					out = append(out, Instruction{Op: OpLoadConst, Value: Const(-va)})
					i += 2
					changed = true
					continue
				case OpNot:
					out = append(out, Instruction{Op: OpLoadConst, Value: Const(forthNot(va))})
					i += 2
					changed = true
					continue
				}
			}
		}
		out = append(out, src[i])
		i++
	}

	fn.Instructions = out
	return changed
}

func constOf(instr Instruction) (int64, bool) {
	if instr.Op != OpPush && instr.Op != OpLoadConst {
		return 0, false
	}
	return instr.Value.IsConst()
}

func forthBool(v bool) int64 {
	if v {
		return -1
	}
	return 0
}

func forthNot(v int64) int64 { return forthBool(v == 0) }

func foldBinary(op Opcode, a, b int64) (int64, bool) {
	switch op {
	case OpAdd:
		return a + b, true
	case OpSub:
		return a - b, true
	case OpMul:
		return a * b, true
	case OpDiv:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case OpMod:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case OpEqual:
		return forthBool(a == b), true
	case OpNotEqual:
		return forthBool(a != b), true
	case OpLess:
		return forthBool(a < b), true
	case OpGreater:
		return forthBool(a > b), true
	case OpLessEqual:
		return forthBool(a <= b), true
	case OpGreaterEqual:
		return forthBool(a >= b), true
	case OpAnd:
		return forthBool(a != 0 && b != 0), true
	case OpOr:
		return forthBool(a != 0 || b != 0), true
	default:
		return 0, false
	}
}

// --- Peephole -------------------------------------------------------------

// peephole applies local rewrite rules that each remove or simplify a
// redundant adjacent instruction window.
func peephole(fn *Function) bool {
	changed := false
	src := fn.Instructions
	out := make([]Instruction, 0, len(src))

	for i := 0; i < len(src); {
		if i+2 < len(src) {
			a, b, c := src[i], src[i+1], src[i+2]

			// LoadConst a, Dup, Add -> LoadConst(2a): doubling a known
			// constant is known at compile time too.
			if va, ok := constOf(a); ok && b.Op == OpDup && c.Op == OpAdd {
				out = append(out, Instruction{Op: OpLoadConst, Value: Const(2 * va)})
				i += 3
				changed = true
				continue
			}
			// LoadConst a, LoadConst b, Swap -> LoadConst b, LoadConst a:
			// swapping two known constants is just emitting them reordered.
			if va, ok := constOf(a); ok {
				if vb, ok := constOf(b); ok && c.Op == OpSwap {
					out = append(out, Instruction{Op: OpLoadConst, Value: Const(vb)}, Instruction{Op: OpLoadConst, Value: Const(va)})
					i += 3
					changed = true
					continue
				}
			}
		}
		if i+1 < len(src) {
			a, b := src[i], src[i+1]

			// SWAP SWAP cancels.
			if a.Op == OpSwap && b.Op == OpSwap {
				i += 2
				changed = true
				continue
			}
			// NEGATE NEGATE cancels.
			if a.Op == OpNeg && b.Op == OpNeg {
				i += 2
				changed = true
				continue
			}
			// OVER DROP is a no-op: the duplicate Over pushed is the one
			// Drop removes.
			if a.Op == OpOver && b.Op == OpDrop {
				i += 2
				changed = true
				continue
			}
			// An unconditional jump straight to the label that follows it
			// is redundant.
			if a.Op == OpJump && b.Op == OpLabel && a.Label == b.Label {
				i++
				changed = true
				continue
			}
		}
		out = append(out, src[i])
		i++
	}

	fn.Instructions = out
	return changed
}

// --- Strength reduction -----------------------------------------------

// strengthReduce applies arithmetic-identity rewrites: eliminating
// additive/multiplicative identities outright, collapsing a multiply by
// zero to the constant zero (dropping the other operand, whose value can
// no longer affect the result), and replacing a multiply by two with a
// self-add so the backend never has to emit a multiply instruction for it.
func strengthReduce(fn *Function) bool {
	changed := false
	src := fn.Instructions
	out := make([]Instruction, 0, len(src))

	for i := 0; i < len(src); {
		if i+1 < len(src) {
			a, op := src[i], src[i+1]
			if v, ok := constOf(a); ok {
				switch {
				case v == 0 && op.Op == OpAdd:
					i += 2
					changed = true
					continue
				case v == 0 && op.Op == OpSub:
					i += 2
					changed = true
					continue
				case v == 1 && op.Op == OpMul:
					i += 2
					changed = true
					continue
				case v == 0 && op.Op == OpMul:
					out = append(out, Instruction{Op: OpDrop}, Instruction{Op: OpLoadConst, Value: Const(0)})
					i += 2
					changed = true
					continue
				case v == 2 && op.Op == OpMul:
					out = append(out, Instruction{Op: OpDup}, Instruction{Op: OpAdd})
					i += 2
					changed = true
					continue
				}
			}
		}
		out = append(out, src[i])
		i++
	}

	fn.Instructions = out
	return changed
}

// --- Dead code elimination --------------------------------------------

// deadCodeEliminate drops OpNop instructions outright, and removes a
// pushed value that is immediately discarded, whether the push was a
// literal or a Dup of the current top.
func deadCodeEliminate(fn *Function) bool {
	changed := false
	src := fn.Instructions
	out := make([]Instruction, 0, len(src))

	for i := 0; i < len(src); {
		instr := src[i]

		if instr.Op == OpNop {
			i++
			changed = true
			continue
		}

		if i+1 < len(src) && src[i+1].Op == OpDrop {
			if instr.Op == OpPush || instr.Op == OpLoadConst || instr.Op == OpDup {
				i += 2
				changed = true
				continue
			}
		}

		out = append(out, instr)
		i++
	}

	fn.Instructions = out
	return changed
}
