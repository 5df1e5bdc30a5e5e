package runtime

import (
	"fmt"

	"roth/ir"
)

// Interp is a tree-walking reference interpreter over a lowered
// ir.Program. It exists purely as an execution oracle for tests: given
// the same IR, it must agree with whatever the native codegen backend
// produces (spec's testable properties P5/P6) — both call the exact same
// exported op functions in ops.go. It is never used to run a user's
// program outside of tests — the REPL always compiles and loads a real
// plugin.
type Interp struct {
	Program *ir.Program
	Ctx     *Context
}

// NewInterp builds an interpreter over prog, executing against ctx.
func NewInterp(prog *ir.Program, ctx *Context) *Interp {
	return &Interp{Program: prog, Ctx: ctx}
}

// Run executes the program's main function to completion. Every
// declared variable this program (or an earlier REPL turn) knows about
// is zero-initialized first if the session's memory has no cell for it
// yet, so a legitimately declared-but-unwritten variable reads as 0
// rather than tripping InvalidMemoryAccess.
func (in *Interp) Run() error {
	for name := range in.Program.Variables {
		if _, ok := in.Ctx.Memory[name]; !ok {
			in.Ctx.Memory[name] = 0
		}
	}
	return in.call(in.Program.Main)
}

// call executes fn's instructions from the top, following jumps and
// nested Calls, until an OpReturn or the end of the instruction list.
func (in *Interp) call(fn *ir.Function) error {
	labels := make(map[ir.Label]int, len(fn.Instructions))
	for idx, instr := range fn.Instructions {
		if instr.Op == ir.OpLabel {
			labels[instr.Label] = idx
		}
	}

	pc := 0
	for pc < len(fn.Instructions) {
		instr := fn.Instructions[pc]
		jumped, err := in.step(fn, instr, labels, &pc)
		if err != nil {
			return err
		}
		if instr.Op == ir.OpReturn {
			return nil
		}
		if !jumped {
			pc++
		}
	}
	return nil
}

// step executes one instruction. It returns jumped=true if it already
// repositioned pc itself (a jump/branch), so call should not also
// advance it.
func (in *Interp) step(fn *ir.Function, instr ir.Instruction, labels map[ir.Label]int, pc *int) (bool, error) {
	c := in.Ctx

	switch instr.Op {
	case ir.OpLabel, ir.OpComment, ir.OpNop, ir.OpReturn:
		return false, nil

	case ir.OpPush, ir.OpLoadConst:
		v, _ := instr.Value.IsConst()
		return false, Push(c, v)

	case ir.OpPop, ir.OpDrop:
		_, err := Pop(c, opName(instr.Op))
		return false, err

	case ir.OpDup:
		v, err := c.Data.Peek(0)
		if err != nil {
			return false, underflow("DUP")
		}
		return false, Push(c, v)

	case ir.OpSwap:
		return false, Swap(c)

	case ir.OpOver:
		v, err := c.Data.Peek(1)
		if err != nil {
			return false, underflow("OVER")
		}
		return false, Push(c, v)

	case ir.OpRot:
		return false, Rot(c)

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEqual, ir.OpNotEqual, ir.OpLess, ir.OpGreater,
		ir.OpLessEqual, ir.OpGreaterEqual, ir.OpAnd, ir.OpOr:
		return false, Binary(c, binarySpelling(instr.Op))

	case ir.OpNeg:
		return false, Negate(c)

	case ir.OpNot:
		return false, Invert(c)

	case ir.OpLoad:
		v, ok := c.Memory[instr.Value.Variable]
		if !ok {
			return false, &InvalidMemoryAccess{Name: instr.Value.Variable}
		}
		return false, Push(c, v)

	case ir.OpStore:
		v, err := Pop(c, "!")
		if err != nil {
			return false, err
		}
		c.Memory[instr.Value.Variable] = v
		return false, nil

	case ir.OpJump:
		*pc = labels[instr.Label]
		return true, nil

	case ir.OpJumpIf:
		v, err := Pop(c, "IF")
		if err != nil {
			return false, err
		}
		if v != 0 {
			*pc = labels[instr.Label]
			return true, nil
		}
		return false, nil

	case ir.OpJumpIfNot:
		v, err := Pop(c, "IF")
		if err != nil {
			return false, err
		}
		if v == 0 {
			*pc = labels[instr.Label]
			return true, nil
		}
		return false, nil

	case ir.OpCall:
		if callee, ok := in.Program.Functions[instr.Name]; ok {
			return false, in.call(callee)
		}
		return false, CallByName(c, instr.Name)

	case ir.OpDoLoop:
		end, err := EnterLoop(c, instr.Unchecked)
		if err != nil {
			return false, err
		}
		if end {
			*pc = labels[instr.EndLbl]
			return true, nil
		}
		return false, nil

	case ir.OpLoop:
		cont, err := AdvanceLoop(c)
		if err != nil {
			return false, err
		}
		if cont {
			*pc = labels[instr.BodyLbl]
			return true, nil
		}
		return false, nil

	case ir.OpPushLoopIndex:
		v, err := c.LoopIndex()
		if err != nil {
			return false, err
		}
		return false, Push(c, v)

	case ir.OpPushLoopLimit:
		v, err := c.LoopLimit()
		if err != nil {
			return false, err
		}
		return false, Push(c, v)

	case ir.OpPrint:
		return false, PrintTop(c)

	case ir.OpPrintStack:
		PrintStack(c)
		return false, nil

	case ir.OpPrintChar:
		return false, PrintChar(c)

	case ir.OpPrintString:
		return false, PrintString(c)

	case ir.OpReadChar:
		return false, ReadChar(c)

	default:
		return false, &RuntimeError{Message: fmt.Sprintf("unsupported opcode in interpreter: %v", instr.Op)}
	}
}

func binarySpelling(op ir.Opcode) string {
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


func opName(op ir.Opcode) string {
	switch op {
	case ir.OpPop:
		return "POP"
	case ir.OpDrop:
		return "DROP"
	default:
		return fmt.Sprintf("%v", op)
	}
}
