package repl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDispatchMetaQuit(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	quit, err := s.dispatchMeta(&out, ":quit")
	require.NoError(t, err)
	assert.True(t, quit)

	quit, err = s.dispatchMeta(&out, ":q")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestDispatchMetaUnknownCommandErrors(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	_, err := s.dispatchMeta(&out, ":bogus")
	require.Error(t, err)
}

func TestMetaStackPrintsBottomFirst(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	s.ctx.Data.Push(1)
	s.ctx.Data.Push(2)
	s.ctx.Data.Push(3)

	_, err := s.dispatchMeta(&out, ":stack")
	require.NoError(t, err)
	assert.Equal(t, "1 2 3\n", out.String())
}

func TestMetaClearEmptiesStack(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	s.ctx.Data.Push(1)
	s.ctx.Data.Push(2)

	_, err := s.dispatchMeta(&out, ":clear")
	require.NoError(t, err)
	assert.True(t, s.ctx.Data.Empty())
}

func TestMetaWordsListsKnownWords(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	s.words["DOUBLE"] = true
	s.words["TRIPLE"] = true

	_, err := s.dispatchMeta(&out, ":words")
	require.NoError(t, err)
	assert.Equal(t, "DOUBLE TRIPLE\n", out.String())
}

func TestMetaVarsShowsCurrentValues(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	s.variables["X"] = true
	s.ctx.Memory["X"] = 42

	_, err := s.dispatchMeta(&out, ":vars")
	require.NoError(t, err)
	assert.Equal(t, "X = 42\n", out.String())
}

func TestMetaResetClearsEverything(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	s.ctx.Data.Push(1)
	s.words["DOUBLE"] = true
	s.variables["X"] = true

	_, err := s.dispatchMeta(&out, ":reset")
	require.NoError(t, err)
	assert.True(t, s.ctx.Data.Empty())
	assert.Empty(t, s.words)
	assert.Empty(t, s.variables)
}

func TestMetaDebugSetsLevel(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	_, err := s.dispatchMeta(&out, ":debug 2")
	require.NoError(t, err)
	assert.Equal(t, 2, s.debug)
}

func TestMetaDebugRejectsOutOfRange(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	_, err := s.dispatchMeta(&out, ":debug 9")
	require.Error(t, err)
}
