package repl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionDefaultsBackendToNative(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, "native", s.backend)
}

// TestTurnAbortsBeforeBuildOnLexError exercises the "failure before
// invoking the host compiler leaves state untouched" half of spec §4.8's
// failure semantics — it never reaches Loader.Build, so it needs no real
// Go toolchain to pass.
func TestTurnAbortsBeforeBuildOnLexError(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	err := s.Turn(&out, `"unterminated`)
	require.Error(t, err)
	assert.Empty(t, s.words)
	assert.Equal(t, 0, s.turnCounter)
}

// TestTurnAbortsBeforeBuildOnParseError exercises the same failure-before-
// build path for a structurally invalid program.
func TestTurnAbortsBeforeBuildOnParseError(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	err := s.Turn(&out, `: DOUBLE DUP + `) // missing closing ;
	require.Error(t, err)
	assert.Equal(t, 0, s.turnCounter)
}

func TestTurnAbortsBeforeBuildOnUnknownWord(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	err := s.Turn(&out, `NOSUCHWORD`)
	require.Error(t, err)
	assert.Equal(t, 0, s.turnCounter)
}
