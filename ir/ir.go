// Package ir defines the stack-effect intermediate representation of
// spec §3: a typed IR value/instruction vocabulary, IR functions carrying
// a computed stack effect, and an IR program tying named functions
// together through a flat Call-by-name graph (so that recursive and
// mutually-recursive functions never need to be modeled as pointer
// cycles — spec §9, "Recursive IR definitions").
package ir

import (
	"fmt"
	"sort"
)

// Label is a symbolic jump target: two labels are equal only if both the
// name-hint and the id match, which lets the lowerer mint fresh labels
// freely without ever colliding.
type Label struct {
	Hint string
	ID   int64
}

func (l Label) String() string { return fmt.Sprintf("%s_%d", l.Hint, l.ID) }

// LabelAllocator mints fresh, monotonically increasing Labels.
type LabelAllocator struct{ next int64 }

// New returns a fresh label with the given name-hint.
func (a *LabelAllocator) New(hint string) Label {
	a.next++
	return Label{Hint: hint, ID: a.next}
}

// ValueKind discriminates the IRValue variants.
type ValueKind int

const (
	ValConstant ValueKind = iota
	ValStackTop
	ValStackPos
	ValVariable
	ValTemporary
)

// Value is the tagged-variant IR value of spec §3.
type Value struct {
	Kind     ValueKind
	Constant int64  // ValConstant
	StackPos int    // ValStackPos: n elements below top, 0 = top
	Variable string // ValVariable
	Temp     int64  // ValTemporary
}

// Const builds a constant IR value.
func Const(n int64) Value { return Value{Kind: ValConstant, Constant: n} }

// Top refers to the current top of the data stack.
func Top() Value { return Value{Kind: ValStackTop} }

// AtDepth refers to the element n positions below the top (0 = top).
func AtDepth(n int) Value { return Value{Kind: ValStackPos, StackPos: n} }

// Var refers to a named variable cell.
func Var(name string) Value { return Value{Kind: ValVariable, Variable: name} }

// Temp refers to a numbered compiler temporary.
func Temp(id int64) Value { return Value{Kind: ValTemporary, Temp: id} }

func (v Value) String() string {
	switch v.Kind {
	case ValConstant:
		return fmt.Sprintf("%d", v.Constant)
	case ValStackTop:
		return "top"
	case ValStackPos:
		return fmt.Sprintf("s[%d]", v.StackPos)
	case ValVariable:
		return "var:" + v.Variable
	case ValTemporary:
		return fmt.Sprintf("t%d", v.Temp)
	default:
		return "?"
	}
}

// IsConst reports whether v is a compile-time known constant, and returns
// its value.
func (v Value) IsConst() (int64, bool) {
	if v.Kind == ValConstant {
		return v.Constant, true
	}
	return 0, false
}

// BinOp / UnOp identify the operator carried by a BinaryOp/UnaryOp
// instruction, used by the optimizer's constant-folding pass.
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinEqual
	BinNotEqual
	BinLess
	BinGreater
	BinLessEqual
	BinGreaterEqual
	BinAnd
	BinOr
)

type UnOp int

const (
	UnNeg UnOp = iota
	UnNot
)

// Opcode enumerates the closed instruction set of spec §3. Every
// instruction carries a static stack effect computed by Effect.
type Opcode int

const (
	OpPush Opcode = iota
	OpPop
	OpDup
	OpDrop
	OpSwap
	OpOver
	OpRot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpEqual
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpAnd
	OpOr
	OpNot
	OpLoad
	OpStore
	OpJump
	OpJumpIf
	OpJumpIfNot
	OpCall
	OpReturn
	OpDoLoop
	OpLoop
	OpPushLoopIndex
	OpPushLoopLimit
	OpPrint
	OpPrintStack
	OpPrintChar
	OpPrintString
	OpReadChar
	OpLabel
	OpComment
	OpLoadConst
	OpBinaryOp
	OpUnaryOp
	OpStackGet
	OpStackSet
	OpStackAlloc
	OpStackFree
	OpNop
)

// Effect is the (consumes, produces) pair summarizing how an instruction
// reshapes the data stack.
type Effect struct {
	Consumes int
	Produces int
}

// Net is Produces - Consumes.
func (e Effect) Net() int { return e.Produces - e.Consumes }

// Instruction is one IR instruction. Only the fields relevant to Op are
// populated; the rest are zero.
type Instruction struct {
	Op Opcode

	Value    Value // OpPush, OpLoad, OpStore, OpLoadConst(via Value.Constant)
	Label    Label // OpJump, OpJumpIf, OpJumpIfNot, OpLabel
	BodyLbl  Label // OpDoLoop, OpLoop: loop body label
	EndLbl   Label // OpDoLoop: loop end label
	Name      string
	Text      string // OpComment
	N         int    // OpStackGet, OpStackSet, OpStackAlloc, OpStackFree
	BinOp     BinOp
	UnOp      UnOp
	A, B      Value // OpBinaryOp operands
	Unchecked bool  // OpDoLoop: true for DO (always runs >=1 time), false for ?DO
}

// Effect computes the static stack effect of instr. Control-flow
// instructions have effect (0,0) on the data stack, except JumpIf/
// JumpIfNot which consume the tested value; Label/Comment/Nop never
// change the stack.
func (instr Instruction) Effect() Effect {
	switch instr.Op {
	case OpPush, OpLoadConst, OpLoad, OpDup, OpOver, OpPushLoopIndex, OpPushLoopLimit, OpReadChar:
		return Effect{0, 1}
	case OpPop, OpDrop, OpStore, OpPrint, OpPrintChar, OpJumpIf, OpJumpIfNot:
		return Effect{1, 0}
	case OpSwap, OpRot: // rot: 3 in, 3 out (but rot is really swap of 3, keep shape)
		if instr.Op == OpSwap {
			return Effect{2, 2}
		}
		return Effect{3, 3}
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEqual, OpNotEqual, OpLess, OpGreater,
		OpLessEqual, OpGreaterEqual, OpAnd, OpOr:
		return Effect{2, 1}
	case OpNeg, OpNot:
		return Effect{1, 1}
	case OpPrintStack, OpPrintString, OpJump, OpCall, OpReturn, OpDoLoop, OpLoop,
		OpLabel, OpComment, OpNop, OpStackAlloc, OpStackFree:
		return Effect{0, 0}
	case OpBinaryOp:
		return Effect{0, 1} // operands carried by value, not popped from stack
	case OpUnaryOp:
		return Effect{0, 1}
	case OpStackGet:
		return Effect{0, 1}
	case OpStackSet:
		return Effect{0, 0}
	default:
		return Effect{0, 0}
	}
}

// Function is one named IR function: the lowered body of a colon
// definition, or the synthetic "main" holding top-level code.
type Function struct {
	Name         string
	Instructions []Instruction
}

// StackEffect computes the net effect of walking the function's straight-
// line instructions once. This is a computed summary; neither lowering
// nor the optimizer's inlining check reads it.
func (f *Function) StackEffect() Effect {
	var e Effect
	depth := 0
	maxConsume := 0
	for _, instr := range f.Instructions {
		ie := instr.Effect()
		if depth < ie.Consumes {
			maxConsume += ie.Consumes - depth
			depth = ie.Consumes
		}
		depth += ie.Net()
	}
	e.Consumes = maxConsume
	e.Produces = depth
	return e
}

// Program is the lowered translation unit: a main entry function plus a
// name-keyed table of user-defined functions.
type Program struct {
	Main      *Function
	Functions map[string]*Function
	Constants map[string]int64 // CONSTANT bindings folded during lowering, for REPL carry-over
	Variables map[string]bool  // VARIABLE names known declared, carried plus any declared this turn
}

// NewProgram creates an empty Program with an empty main function.
func NewProgram() *Program {
	return &Program{
		Main:      &Function{Name: "main"},
		Functions: make(map[string]*Function),
		Constants: make(map[string]int64),
		Variables: make(map[string]bool),
	}
}

// AllFunctions returns main followed by every user function, in
// deterministic (sorted-by-name) order for reproducible emission.
func (p *Program) AllFunctions() []*Function {
	names := make([]string, 0, len(p.Functions))
	for n := range p.Functions {
		names = append(names, n)
	}
	sort.Strings(names)
	fns := make([]*Function, 0, len(names)+1)
	fns = append(fns, p.Main)
	for _, n := range names {
		fns = append(fns, p.Functions[n])
	}
	return fns
}
