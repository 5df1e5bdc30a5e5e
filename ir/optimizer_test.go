package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roth/lexer"
	"roth/parser"
)

func optimizeSrc(t *testing.T, src string) *Program {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	out, _, err := New().Lower(prog)
	require.NoError(t, err)
	return Optimize(out)
}

func TestOptimizeConstantFoldsArithmetic(t *testing.T) {
	p := optimizeSrc(t, `2 3 +`)
	assert.Equal(t, []Opcode{OpLoadConst, OpReturn}, opcodes(p.Main))
	assert.Equal(t, int64(5), p.Main.Instructions[0].Value.Constant)
}

func TestOptimizeConstantFoldSkipsDivisionByZero(t *testing.T) {
	p := optimizeSrc(t, `4 0 /`)
	assert.Equal(t, []Opcode{OpPush, OpPush, OpDiv, OpReturn}, opcodes(p.Main))
}

func TestOptimizeConstantFoldsNegate(t *testing.T) {
	p := optimizeSrc(t, `5 NEGATE`)
	assert.Equal(t, []Opcode{OpLoadConst, OpReturn}, opcodes(p.Main))
	assert.Equal(t, int64(-5), p.Main.Instructions[0].Value.Constant)
}

func TestOptimizePeepholeCancelsDoubleSwap(t *testing.T) {
	p := optimizeSrc(t, `1 SWAP SWAP`)
	assert.Equal(t, []Opcode{OpPush, OpReturn}, opcodes(p.Main))
}

func TestOptimizePeepholeCancelsOverDrop(t *testing.T) {
	p := optimizeSrc(t, `1 2 OVER DROP`)
	ops := opcodes(p.Main)
	assert.NotContains(t, ops, OpOver)
}

func TestOptimizeStrengthReductionMulByTwo(t *testing.T) {
	p := optimizeSrc(t, `: DOUBLE 2 * ;`)
	fn := p.Functions["DOUBLE"]
	assert.Equal(t, []Opcode{OpDup, OpAdd, OpReturn}, opcodes(fn))
}

func TestOptimizeStrengthReductionAddZeroIdentity(t *testing.T) {
	p := optimizeSrc(t, `: NOOPADD 0 + ;`)
	fn := p.Functions["NOOPADD"]
	assert.Equal(t, []Opcode{OpReturn}, opcodes(fn))
}

func TestOptimizeStrengthReductionMulByZero(t *testing.T) {
	// ZERO multiplies whatever's already on the stack by the literal 0:
	// the incoming operand (not visible in this function's own
	// instructions) gets dropped and the constant 0 takes its place.
	p := optimizeSrc(t, `: ZERO 0 * ;`)
	fn := p.Functions["ZERO"]
	assert.Equal(t, []Opcode{OpDrop, OpLoadConst, OpReturn}, opcodes(fn))
	assert.Equal(t, int64(0), fn.Instructions[1].Value.Constant)
}

func TestOptimizePeepholeFoldsDupAddOfConstant(t *testing.T) {
	p := optimizeSrc(t, `3 DUP +`)
	assert.Equal(t, []Opcode{OpLoadConst, OpReturn}, opcodes(p.Main))
	assert.Equal(t, int64(6), p.Main.Instructions[0].Value.Constant)
}

func TestOptimizePeepholeSwapsAdjacentConstants(t *testing.T) {
	// 1 2 SWAP DROP leaves just the former top (2): SWAP reorders the two
	// constants, then dead-code elimination drops the new top (1).
	p := optimizeSrc(t, `1 2 SWAP DROP`)
	assert.Equal(t, []Opcode{OpLoadConst, OpReturn}, opcodes(p.Main))
	assert.Equal(t, int64(2), p.Main.Instructions[0].Value.Constant)
}

func TestOptimizeDeadCodeEliminatesPushDrop(t *testing.T) {
	p := optimizeSrc(t, `99 DROP`)
	assert.Equal(t, []Opcode{OpReturn}, opcodes(p.Main))
}

func TestOptimizeDeadCodeEliminatesDupDrop(t *testing.T) {
	p := optimizeSrc(t, `: IDENT DUP DROP ;`)
	fn := p.Functions["IDENT"]
	assert.Equal(t, []Opcode{OpReturn}, opcodes(fn))
}

func TestOptimizeInlinesSmallNonRecursiveFunction(t *testing.T) {
	p := optimizeSrc(t, `: SQUARE DUP * ; 4 SQUARE`)
	ops := opcodes(p.Main)
	assert.NotContains(t, ops, OpCall)
	assert.Contains(t, ops, OpDup)
	assert.Contains(t, ops, OpMul)
}

func TestOptimizeDoesNotInlineRecursiveFunction(t *testing.T) {
	p := optimizeSrc(t, `: COUNTDOWN DUP IF 1- COUNTDOWN THEN ; 3 COUNTDOWN`)
	mainOps := opcodes(p.Main)
	assert.Contains(t, mainOps, OpCall)
	fn := p.Functions["COUNTDOWN"]
	found := false
	for _, instr := range fn.Instructions {
		if instr.Op == OpCall && instr.Name == "COUNTDOWN" {
			found = true
		}
	}
	assert.True(t, found, "recursive call to self must survive inlining")
}

func TestOptimizeDoesNotInlineLoopBearingFunction(t *testing.T) {
	p := optimizeSrc(t, `: TENTIMES 10 0 ?DO I . LOOP ; TENTIMES`)
	mainOps := opcodes(p.Main)
	assert.Contains(t, mainOps, OpCall)
}

func TestOptimizePreservesLabelIdentityAcrossDeletions(t *testing.T) {
	p := optimizeSrc(t, `0 IF 1 2 + ELSE 99 DROP THEN`)
	ops := opcodes(p.Main)
	// The ELSE branch's "99 DROP" is dead-code eliminated, and "1 2 +"
	// folds to a constant, but the IF/ELSE/THEN labeled jump skeleton
	// must still be intact and balanced.
	var jumps, labels int
	for _, op := range ops {
		if op == OpJump || op == OpJumpIfNot {
			jumps++
		}
		if op == OpLabel {
			labels++
		}
	}
	assert.Equal(t, 2, jumps) // JumpIfNot (the IF) + Jump (the ELSE's jump to endif)
	assert.Equal(t, 2, labels)
}
