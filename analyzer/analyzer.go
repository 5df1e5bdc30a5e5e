// Package analyzer implements the semantic pass of spec §4.3: it walks the
// AST collecting definitions and variables, and fails closed on the first
// diagnostic it encounters.
package analyzer

import (
	"roth/ast"
	"roth/internal/lang"
	"roth/token"
)

// SemanticError reports a name-resolution or redefinition problem.
type SemanticError struct {
	Message string
	Pos     token.Position
}

func (e *SemanticError) Error() string {
	return "SemanticError: " + e.Message + " at " + e.Pos.String()
}

// Result is what a successful analysis contributes back to the caller: the
// cumulative set of user words and variables known after this program,
// used by the REPL to seed the next turn (spec §4.3, "consulted but not
// authoritative for REPL incremental compilation").
type Result struct {
	Words     map[string]bool
	Variables map[string]bool
}

// Analyzer holds the running symbol set. A fresh Analyzer is used for each
// offline compilation; the REPL constructs one per turn, seeded with the
// words and variables accumulated by prior turns.
type Analyzer struct {
	words      map[string]bool
	variables  map[string]bool
	permissive bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSeedWords seeds the analyzer with previously defined user words, so
// that a later REPL turn can call into an earlier one.
func WithSeedWords(words map[string]bool) Option {
	return func(a *Analyzer) {
		for w := range words {
			a.words[w] = true
		}
	}
}

// WithSeedVariables seeds the analyzer with previously declared variables.
func WithSeedVariables(vars map[string]bool) Option {
	return func(a *Analyzer) {
		for v := range vars {
			a.variables[v] = true
		}
	}
}

// Permissive downgrades references to unknown words from a fatal
// SemanticError to a no-op accepted by the analyzer; IR lowering then
// emits a diagnostic comment for it instead of aborting (spec §4.4, §9
// open question on fatal-vs-warning unknown-word policy).
func Permissive(v bool) Option {
	return func(a *Analyzer) { a.permissive = v }
}

// New creates an Analyzer seeded with the builtin word table and any
// supplied Options.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		words:     make(map[string]bool),
		variables: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze walks prog, returning the first SemanticError encountered, or a
// Result summarizing the (possibly enlarged) symbol set.
func (a *Analyzer) Analyze(prog *ast.Program) (*Result, error) {
	for _, node := range prog.Nodes {
		if err := a.analyzeNode(node); err != nil {
			return nil, err
		}
	}
	return &Result{Words: a.words, Variables: a.variables}, nil
}

func (a *Analyzer) analyzeNode(node ast.Node) error {
	switch n := node.(type) {
	case *ast.Number, *ast.StringLiteral:
		return nil

	case *ast.Word:
		return a.resolveWord(n.Name, n.Pos)

	case *ast.VariableDeclaration:
		a.variables[n.Name] = true
		return nil

	case *ast.Definition:
		if lang.IsBuiltin(n.Name) {
			return &SemanticError{Message: "cannot redefine builtin word '" + n.Name + "'", Pos: n.Pos}
		}
		// Registered before the body is analyzed: this permits direct
		// recursion, and silently allows redefining a prior user word
		// (the new definition shadows the old for later references).
		a.words[n.Name] = true
		for _, body := range n.Body {
			if err := a.analyzeNode(body); err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}

func (a *Analyzer) resolveWord(name string, pos token.Position) error {
	if lang.IsBuiltin(name) || a.words[name] || a.variables[name] {
		return nil
	}
	if a.permissive {
		return nil
	}
	return &SemanticError{Message: "undefined word '" + name + "'", Pos: pos}
}
