package codegen

import (
	"sort"

	"github.com/pkg/errors"

	"roth/ir"
)

// Options configures how a Backend renders a program.
type Options struct {
	// Debug carries the session's debug level (0-3). It is passed
	// through to the backend; neither the native nor the C backend
	// changes its output for it.
	Debug int

	// Repl selects the native backend's §4.8 REPL calling convention:
	// an exported ReplEntry(ctx) that registers this turn's words
	// into ctx's registry before running main, plus a DefinedWords
	// name list. Calls to words not defined in this turn's Program
	// route through ctx.CallWord, so a later turn can reach an earlier
	// turn's definitions even though each turn is a separate plugin.
	Repl bool
}

// Backend renders a lowered ir.Program as source text for one target.
type Backend interface {
	Name() string
	Emit(prog *ir.Program, opts Options) (string, error)
}

var registry = make(map[string]Backend)

// Register adds a Backend under its own Name(). Called from this file's
// init for both backends so that main.go's --backend flag and the REPL
// session can resolve a backend by name.
func Register(b Backend) {
	registry[b.Name()] = b
}

// Get resolves a backend by name.
func Get(name string) (Backend, error) {
	b, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown codegen backend %q (available: %v)", name, Names())
	}
	return b, nil
}

// Names lists every registered backend, sorted for stable --help output.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(NativeBackend{})
	Register(CBackend{})
}
