package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roth/ir"
)

func simpleProgram() *ir.Program {
	prog := ir.NewProgram()
	prog.Main.Instructions = []ir.Instruction{
		{Op: ir.OpPush, Value: ir.Const(1)},
		{Op: ir.OpPush, Value: ir.Const(2)},
		{Op: ir.OpAdd},
		{Op: ir.OpCall, Name: "DOUBLE"},
		{Op: ir.OpReturn},
	}
	prog.Functions["DOUBLE"] = &ir.Function{
		Name: "DOUBLE",
		Instructions: []ir.Instruction{
			{Op: ir.OpDup},
			{Op: ir.OpAdd},
			{Op: ir.OpReturn},
		},
	}
	prog.Constants["LIMIT"] = 10
	return prog
}

func TestNativeBackendName(t *testing.T) {
	assert.Equal(t, "native", NativeBackend{}.Name())
}

func TestNativeEmitProducesGoSource(t *testing.T) {
	out, err := NativeBackend{}.Emit(simpleProgram(), Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "package main")
	assert.Contains(t, out, "\t\"roth/runtime\"\n")
	assert.Contains(t, out, "const_LIMIT int64 = 10")
	assert.Contains(t, out, "func word_main(ctx *runtime.Context) error {")
	assert.Contains(t, out, "func word_DOUBLE(ctx *runtime.Context) error {")
	assert.Contains(t, out, "func main() {")
}

func TestNativeEmitCallsUserWordDirectly(t *testing.T) {
	out, err := NativeBackend{}.Emit(simpleProgram(), Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "word_DOUBLE(ctx)")
	assert.NotContains(t, out, `runtime.CallByName(ctx, "DOUBLE")`)
}

func TestNativeEmitDispatchesIntrinsicThroughCallByName(t *testing.T) {
	prog := ir.NewProgram()
	prog.Main.Instructions = []ir.Instruction{
		{Op: ir.OpCall, Name: "__PICK"},
		{Op: ir.OpReturn},
	}
	out, err := NativeBackend{}.Emit(prog, Options{})
	require.NoError(t, err)
	assert.Contains(t, out, `runtime.CallByName(ctx, "__PICK")`)
}

func TestNativeEmitStandaloneModeProducesRunnableMain(t *testing.T) {
	out, err := NativeBackend{}.Emit(simpleProgram(), Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "package main")
	assert.Contains(t, out, "func main() {")
	assert.Contains(t, out, "ctx := runtime.NewContext()")
	assert.Contains(t, out, "word_main(ctx)")
}

func TestNativeEmitLoopOpcodes(t *testing.T) {
	prog := ir.NewProgram()
	bodyLbl := ir.Label{Hint: "loop", ID: 1}
	endLbl := ir.Label{Hint: "loopend", ID: 2}
	prog.Main.Instructions = []ir.Instruction{
		{Op: ir.OpPush, Value: ir.Const(3)},
		{Op: ir.OpPush, Value: ir.Const(0)},
		{Op: ir.OpDoLoop, BodyLbl: bodyLbl, EndLbl: endLbl, Unchecked: true},
		{Op: ir.OpLabel, Label: bodyLbl},
		{Op: ir.OpPushLoopIndex},
		{Op: ir.OpPrint},
		{Op: ir.OpLoop, BodyLbl: bodyLbl, EndLbl: endLbl},
		{Op: ir.OpLabel, Label: endLbl},
		{Op: ir.OpReturn},
	}
	out, err := NativeBackend{}.Emit(prog, Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "runtime.EnterLoop(ctx, true)")
	assert.Contains(t, out, "runtime.AdvanceLoop(ctx)")
	assert.Contains(t, out, "ctx.LoopIndex()")
}

func TestNativeEmitReplModeRegistersWordsAndListsNames(t *testing.T) {
	out, err := NativeBackend{}.Emit(simpleProgram(), Options{Repl: true})
	require.NoError(t, err)
	assert.Contains(t, out, "func ReplEntry(ctx *runtime.Context) error {")
	assert.Contains(t, out, `ctx.RegisterWord("DOUBLE", word_DOUBLE)`)
	assert.Contains(t, out, `var DefinedWords = []string{"DOUBLE"}`)
	assert.Contains(t, out, "return word_main(ctx)")
}

func TestNativeEmitReplModeCallsCrossTurnWordThroughRegistry(t *testing.T) {
	prog := ir.NewProgram()
	prog.Main.Instructions = []ir.Instruction{
		{Op: ir.OpCall, Name: "EARLIER"},
		{Op: ir.OpReturn},
	}
	out, err := NativeBackend{}.Emit(prog, Options{Repl: true})
	require.NoError(t, err)
	assert.Contains(t, out, `ctx.CallWord("EARLIER")`)
}

func TestNativeEmitUnsupportedOpcodeErrors(t *testing.T) {
	prog := ir.NewProgram()
	prog.Main.Instructions = []ir.Instruction{{Op: ir.OpStackAlloc}}
	_, err := NativeBackend{}.Emit(prog, Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported opcode"))
}
