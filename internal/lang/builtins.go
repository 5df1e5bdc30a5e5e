// Package lang is the single source of truth for the builtin word table
// shared by the analyzer, the IR lowerer, and the runtime: every name that
// appears here is a primitive the language defines rather than something a
// user program may define with `:`.
package lang

// Builtins enumerates every primitive word, keyed by its canonical
// (upper-case) name. This set backs the analyzer's "is this a builtin"
// and "redefinition of a builtin" checks (spec §4.3).
var Builtins = buildBuiltins()

func buildBuiltins() map[string]bool {
	names := []string{
		// stack shuffles
		"DUP", "DROP", "SWAP", "OVER", "ROT", "-ROT", "NIP", "TUCK",
		"2DUP", "2DROP", "2SWAP", "2OVER", "?DUP", "PICK", "ROLL",
		// arithmetic
		"+", "-", "*", "/", "MOD", "/MOD", "NEGATE", "ABS", "MIN", "MAX",
		"1+", "1-", "2*", "2/",
		// comparison
		"=", "<>", "<", ">", "<=", ">=",
		// logic
		"AND", "OR", "NOT",
		// I/O
		".", ".S", "CR", "EMIT", "KEY", "TYPE",
		// control flow keywords
		"IF", "ELSE", "THEN", "DO", "?DO", "LOOP", "I", "J",
		// declarations
		"VARIABLE", "CONSTANT",
		// memory
		"!", "@", "+!",
		// return stack
		">R", "R>", "R@",
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// ControlFlow is the subset of Builtins that the IR lowerer handles
// structurally (via label/jump bookkeeping) rather than by emitting a
// single fixed instruction.
var ControlFlow = map[string]bool{
	"IF": true, "ELSE": true, "THEN": true,
	"DO": true, "?DO": true, "LOOP": true,
	"I": true, "J": true,
}

// IsBuiltin reports whether name (already upper-cased) is a primitive.
func IsBuiltin(name string) bool { return Builtins[name] }
