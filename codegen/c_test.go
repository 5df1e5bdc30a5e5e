package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roth/ir"
)

func TestCBackendName(t *testing.T) {
	assert.Equal(t, "c", CBackend{}.Name())
}

func TestCEmitProducesSelfContainedCSource(t *testing.T) {
	out, err := CBackend{}.Emit(simpleProgram(), Options{})
	require.NoError(t, err)
	assert.NotContains(t, out, `#include "roth_runtime.h"`)
	assert.Contains(t, out, "typedef struct {")
	assert.Contains(t, out, "static void roth_push(ForthVM *vm, int64_t v) {")
	assert.Contains(t, out, "static int64_t roth_pop(ForthVM *vm, const char *op) {")
	assert.Contains(t, out, "static const int64_t const_LIMIT = 10;")
	assert.Contains(t, out, "static void word_main(ForthVM *vm) {")
	assert.Contains(t, out, "static void word_DOUBLE(ForthVM *vm) {")
}

func TestCEmitExposesForthMainAndProcessEntry(t *testing.T) {
	out, err := CBackend{}.Emit(simpleProgram(), Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "void forth_main(ForthVM *vm) {\n\tword_main(vm);\n}")
	assert.Contains(t, out, "int main(void) {")
}

func TestCEmitForwardDeclaresFunctions(t *testing.T) {
	out, err := CBackend{}.Emit(simpleProgram(), Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "static void word_DOUBLE(ForthVM *vm);")
}

func TestCEmitCallsUserWordDirectly(t *testing.T) {
	out, err := CBackend{}.Emit(simpleProgram(), Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "word_DOUBLE(vm)")
	assert.NotContains(t, out, `roth_call_intrinsic(vm, "DOUBLE")`)
}

func TestCEmitDispatchesIntrinsicThroughSharedTable(t *testing.T) {
	prog := ir.NewProgram()
	prog.Main.Instructions = []ir.Instruction{
		{Op: ir.OpCall, Name: "__ROLL"},
		{Op: ir.OpReturn},
	}
	out, err := CBackend{}.Emit(prog, Options{})
	require.NoError(t, err)
	assert.Contains(t, out, `roth_call_intrinsic(vm, "__ROLL")`)
}

func TestCEmitAssignsStableVariableSlots(t *testing.T) {
	prog := ir.NewProgram()
	prog.Variables["X"] = true
	prog.Variables["Y"] = true
	prog.Main.Instructions = []ir.Instruction{
		{Op: ir.OpLoadConst, Value: ir.Const(5)},
		{Op: ir.OpStore, Value: ir.Var("X")},
		{Op: ir.OpLoad, Value: ir.Var("Y")},
		{Op: ir.OpReturn},
	}
	out, err := CBackend{}.Emit(prog, Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "#define VAR_X 0")
	assert.Contains(t, out, "#define VAR_Y 1")
	assert.Contains(t, out, "vm->vars[0] = roth_pop(vm, \"!\");")
	assert.Contains(t, out, "roth_push(vm, vm->vars[1]);")
}

func TestCEmitUnsupportedOpcodeErrors(t *testing.T) {
	prog := ir.NewProgram()
	prog.Main.Instructions = []ir.Instruction{{Op: ir.OpStackAlloc}}
	_, err := CBackend{}.Emit(prog, Options{})
	require.Error(t, err)
}
