package runtime

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roth/ir"
	"roth/lexer"
	"roth/parser"
)

func run(t *testing.T, src string) (*Context, string) {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	program, _, err := ir.New().Lower(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	ctx := NewContext()
	ctx.Out = &out
	require.NoError(t, NewInterp(program, ctx).Run())
	return ctx, out.String()
}

func TestInterpArithmetic(t *testing.T) {
	_, out := run(t, `2 3 + .`)
	assert.Equal(t, "5 ", out)
}

func TestInterpDefinitionCall(t *testing.T) {
	_, out := run(t, `: SQUARE DUP * ; 6 SQUARE .`)
	assert.Equal(t, "36 ", out)
}

func TestInterpConditional(t *testing.T) {
	_, out := run(t, `1 IF 42 . ELSE 99 . THEN`)
	assert.Equal(t, "42 ", out)

	_, out = run(t, `0 IF 42 . ELSE 99 . THEN`)
	assert.Equal(t, "99 ", out)
}

func TestInterpDoLoop(t *testing.T) {
	_, out := run(t, `5 0 DO I . LOOP`)
	assert.Equal(t, "0 1 2 3 4 ", out)
}

func TestInterpQDoSkipsEmptyRange(t *testing.T) {
	_, out := run(t, `0 0 ?DO I . LOOP`)
	assert.Equal(t, "", out)
}

func TestInterpVariable(t *testing.T) {
	_, out := run(t, `VARIABLE X 10 X ! X @ .`)
	assert.Equal(t, "10 ", out)
}

func TestInterpConstant(t *testing.T) {
	_, out := run(t, `42 CONSTANT ANSWER ANSWER .`)
	assert.Equal(t, "42 ", out)
}

func TestInterpRecursion(t *testing.T) {
	_, out := run(t, `: COUNTDOWN DUP . DUP IF 1- COUNTDOWN THEN ; 3 COUNTDOWN`)
	assert.Equal(t, "3 2 1 0 ", out)
}

func TestInterpDivisionByZero(t *testing.T) {
	toks, err := lexer.Tokenize(`1 0 /`)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	program, _, err := ir.New().Lower(prog)
	require.NoError(t, err)

	ctx := NewContext()
	err = NewInterp(program, ctx).Run()
	require.Error(t, err)
	var dz *DivisionByZero
	require.ErrorAs(t, err, &dz)
}

func TestInterpStackUnderflow(t *testing.T) {
	toks, err := lexer.Tokenize(`+`)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	program, _, err := ir.New().Lower(prog)
	require.NoError(t, err)

	ctx := NewContext()
	err = NewInterp(program, ctx).Run()
	require.Error(t, err)
	var under *StackUnderflow
	require.ErrorAs(t, err, &under)
}

func TestInterpPick(t *testing.T) {
	_, out := run(t, `1 2 3 2 PICK .S`)
	assert.Equal(t, "<4> 1 2 3 1 \n", out)
}

func TestInterpReturnStack(t *testing.T) {
	_, out := run(t, `5 >R 10 R> + .`)
	assert.Equal(t, "15 ", out)
}

func TestInterpStringType(t *testing.T) {
	_, out := run(t, `S" HI" TYPE`)
	assert.Equal(t, "HI", out)
}

func TestInterpCR(t *testing.T) {
	_, out := run(t, `CR`)
	assert.Equal(t, "\n", out)
}

func TestInterpSameAsOptimizedProgram(t *testing.T) {
	toks, err := lexer.Tokenize(`: SQUARE DUP * ; 7 SQUARE .`)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	unoptimized, _, err := ir.New().Lower(prog)
	require.NoError(t, err)

	toks2, _ := lexer.Tokenize(`: SQUARE DUP * ; 7 SQUARE .`)
	prog2, _ := parser.Parse(toks2)
	optimizedSrc, _, _ := ir.New().Lower(prog2)
	optimized := ir.Optimize(optimizedSrc)

	var out1, out2 bytes.Buffer
	ctx1 := NewContext()
	ctx1.Out = &out1
	require.NoError(t, NewInterp(unoptimized, ctx1).Run())

	ctx2 := NewContext()
	ctx2.Out = &out2
	require.NoError(t, NewInterp(optimized, ctx2).Run())

	assert.Equal(t, out1.String(), out2.String())
}
