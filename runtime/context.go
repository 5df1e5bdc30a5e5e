package runtime

import (
	"io"
	"os"

	"roth/stack"
	"roth/token"
)

// DefaultStackLimit bounds the data and return stacks of a freshly
// constructed Context when no explicit limit is requested.
const DefaultStackLimit = 1 << 16

// WordFn is the calling convention every compiled word — intrinsic or
// user-defined — exposes once registered: an exclusive reference to the
// shared Context, returning any runtime error it raised.
type WordFn func(*Context) error

// Context is the runtime state a compiled program, or the reference
// interpreter, executes against: the data and return stacks, the
// variable memory, the current loop-index stack (DO/?DO/LOOP nesting),
// the cross-turn word registry, and the I/O streams builtins read and
// write through. One Context is owned exclusively by the REPL loop for
// the lifetime of the session; each turn's entry point borrows it for
// the duration of that turn only.
type Context struct {
	Data   *stack.Stack
	Return *stack.Stack

	Memory map[string]int64

	loopIndex []int64
	loopLimit []int64

	// Words holds every word defined across the REPL session so far,
	// keyed by name. A loaded turn's ReplEntry registers its own
	// definitions here before running main, so later turns can call
	// them. Entries are never removed — loaded libraries backing them
	// are append-only for the session (spec's resource model).
	Words map[string]WordFn

	Out io.Writer
	In  io.Reader

	// Pos is a source position slot for diagnostics. Neither the
	// interpreter nor generated code updates it, so it keeps its zero
	// value unless a caller sets it, and runtime errors carry no source
	// position.
	Pos token.Position
}

// NewContext builds a Context with the default stack limit and the
// process's standard streams.
func NewContext() *Context {
	return &Context{
		Data:   stack.NewWithLimit(DefaultStackLimit),
		Return: stack.NewWithLimit(DefaultStackLimit),
		Memory: make(map[string]int64),
		Words:  make(map[string]WordFn),
		Out:    os.Stdout,
		In:     os.Stdin,
	}
}

// RegisterWord adds or replaces a word in the session's registry. A
// redefinition in a later turn shadows the earlier one, matching
// ordinary Forth redefinition semantics.
func (c *Context) RegisterWord(name string, fn WordFn) {
	c.Words[name] = fn
}

// CallWord invokes a previously registered word by name, reporting
// UndefinedWord if the session has never defined it.
func (c *Context) CallWord(name string) error {
	fn, ok := c.Words[name]
	if !ok {
		return &UndefinedWord{Name: name}
	}
	return fn(c)
}

// PushLoopIndex records a loop's current index and limit as control
// enters its body (or advances past its first ?DO check).
func (c *Context) PushLoopIndex(i, limit int64) {
	c.loopIndex = append(c.loopIndex, i)
	c.loopLimit = append(c.loopLimit, limit)
}

// PopLoopIndex discards the innermost loop's index and limit as control
// leaves it.
func (c *Context) PopLoopIndex() {
	if len(c.loopIndex) > 0 {
		c.loopIndex = c.loopIndex[:len(c.loopIndex)-1]
		c.loopLimit = c.loopLimit[:len(c.loopLimit)-1]
	}
}

// SetLoopIndex updates the innermost loop's current index (LOOP
// increments it each iteration).
func (c *Context) SetLoopIndex(i int64) {
	if len(c.loopIndex) > 0 {
		c.loopIndex[len(c.loopIndex)-1] = i
	}
}

// LoopIndex returns I: the innermost loop's current index. J (the next
// loop out) lowers identically to I per the documented limitation, so
// both read this same value.
func (c *Context) LoopIndex() (int64, error) {
	if len(c.loopIndex) == 0 {
		return 0, &RuntimeError{Message: "I used outside of a DO...LOOP"}
	}
	return c.loopIndex[len(c.loopIndex)-1], nil
}

// LoopLimit returns the innermost loop's upper bound, as set by the DO/
// ?DO that opened it.
func (c *Context) LoopLimit() (int64, error) {
	if len(c.loopLimit) == 0 {
		return 0, &RuntimeError{Message: "loop limit requested outside of a DO...LOOP"}
	}
	return c.loopLimit[len(c.loopLimit)-1], nil
}
