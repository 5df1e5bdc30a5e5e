package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"roth/ir"
)

func TestSegmentizeSplitsAtLabels(t *testing.T) {
	lbl := ir.Label{Hint: "l", ID: 1}
	fn := &ir.Function{Instructions: []ir.Instruction{
		{Op: ir.OpPush, Value: ir.Const(1)},
		{Op: ir.OpJump, Label: lbl},
		{Op: ir.OpLabel, Label: lbl},
		{Op: ir.OpReturn},
	}}
	segs, pcOf := segmentize(fn)
	assert.Len(t, segs, 2)
	assert.Len(t, segs[0].instrs, 2)
	assert.Len(t, segs[1].instrs, 1)
	assert.Equal(t, 1, pcOf[lbl])
}

func TestSegmentizeNoLabelsIsOneSegment(t *testing.T) {
	fn := &ir.Function{Instructions: []ir.Instruction{
		{Op: ir.OpPush, Value: ir.Const(1)},
		{Op: ir.OpReturn},
	}}
	segs, pcOf := segmentize(fn)
	assert.Len(t, segs, 1)
	assert.Empty(t, pcOf)
}

func TestWordSymbolSanitizesPunctuation(t *testing.T) {
	assert.Equal(t, "word_SLASHMOD", wordSymbol("SLASHMOD"))
	assert.Equal(t, "word___", wordSymbol("?!"))
}

func TestConstSymbolPrefixesName(t *testing.T) {
	assert.Equal(t, "const_LIMIT", constSymbol("LIMIT"))
}

func TestSanitizeIdentGuardsLeadingDigit(t *testing.T) {
	assert.Equal(t, "_2DUP", sanitizeIdent("2DUP"))
}

func TestIsIntrinsicCallName(t *testing.T) {
	assert.True(t, isIntrinsicCallName("__PICK"))
	assert.False(t, isIntrinsicCallName("DOUBLE"))
}
