package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roth/token"
)

// Trivial test of the parsing of numbers.
func TestParseNumbers(t *testing.T) {
	input := `3 43 -17 -3`

	tests := []struct {
		expectedType  token.Type
		expectedValue int64
	}{
		{token.NUMBER, 3},
		{token.NUMBER, 43},
		{token.NUMBER, -17},
		{token.NUMBER, -3},
		{token.EOF, 0},
	}
	l := New(input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equalf(t, tt.expectedType, tok.Type, "tests[%d] type", i)
		if tt.expectedType == token.NUMBER {
			assert.Equal(t, tt.expectedValue, tok.Value)
		}
	}
}

func TestCaseNormalization(t *testing.T) {
	for _, lexeme := range []string{"dup", "DUP", "Dup", "dUp"} {
		l := New(lexeme)
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equal(t, token.WORD, tok.Type)
		assert.Equal(t, "DUP", tok.Text)
	}
}

func TestDefinitionTokens(t *testing.T) {
	toks, err := Tokenize(`: SQUARE DUP * ;`)
	require.NoError(t, err)
	want := []token.Type{
		token.STARTDEFINITION, token.WORD, token.WORD, token.WORD,
		token.ENDDEFINITION, token.EOF,
	}
	require.Len(t, toks, len(want))
	for i, w := range want {
		assert.Equalf(t, w, toks[i].Type, "token %d", i)
	}
}

func TestComment(t *testing.T) {
	toks, err := Tokenize(`( this is a comment ) 5`)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, token.COMMENT, toks[0].Type)
	assert.Equal(t, " this is a comment ", toks[0].Text)
	assert.Equal(t, token.NUMBER, toks[1].Type)
}

func TestUnterminatedComment(t *testing.T) {
	_, err := Tokenize(`( unterminated`)
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}

func TestStringLiteralEscapes(t *testing.T) {
	toks, err := Tokenize(`"a\nb\tc\\d\"e"`)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, token.STRING, toks[0].Type)
	assert.Equal(t, "a\nb\tc\\d\"e", toks[0].Text)
}

func TestUnterminatedString(t *testing.T) {
	_, err := Tokenize(`"unterminated`)
	require.Error(t, err)
}

func TestForthStyleString(t *testing.T) {
	toks, err := Tokenize(`S" hello world"`)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, token.STRING, toks[0].Type)
	assert.Equal(t, "hello world", toks[0].Text)
}

func TestNumericOverflow(t *testing.T) {
	_, err := Tokenize(`99999999999999999999999999999`)
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}

func TestPositionsTrackLineAndColumn(t *testing.T) {
	toks, err := Tokenize("DUP\nSWAP")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 2, toks[1].Pos.Line)
}
