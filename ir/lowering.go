package ir

import (
	"roth/ast"
	"roth/internal/lang"
	"roth/token"
)

// Diagnostic is a non-fatal LoweringDiagnostic (spec §7): an unknown word
// reference accepted because the analyzer ran in permissive mode, an
// ELSE/THEN/LOOP with no matching opener, or a memory operator with no
// preceding variable. It surfaces as a Nop plus a Comment instruction in
// the lowered function.
type Diagnostic struct {
	Message string
	Pos     token.Position
}

// condFrame tracks one open IF/ELSE/THEN: elseLabel is the label jumped to
// when the condition is false; it is ⊥ (consumed) once an ELSE has run.
type condFrame struct {
	elseLabel   Label
	elseOpen    bool
	endifLabel  Label
}

// loopFrame tracks one open ?DO/DO ... LOOP.
type loopFrame struct {
	startLabel Label
	endLabel   Label
}

// Lowerer transforms an analyzed AST into an IR Program (spec §4.4).
type Lowerer struct {
	alloc LabelAllocator

	permissive bool
	variables  map[string]bool  // declared variable names, for bare-word memory-op folding
	constants  map[string]int64 // CONSTANT names, pre-folded to their value at every reference
	knownWords map[string]bool  // user words resolvable via Call(name)

	conds []condFrame
	loops []loopFrame

	diagnostics []Diagnostic
}

// Option configures a Lowerer.
type Option func(*Lowerer)

// Permissive controls whether a reference to a name that is neither
// builtin, user-defined, nor a declared variable is lowered to Nop plus a
// diagnostic comment (true) or is a fatal error (false, the default —
// spec §9 resolves this as "the fatal policy is safer").
func Permissive(v bool) Option {
	return func(l *Lowerer) { l.permissive = v }
}

// WithVariables seeds the set of variable names known to be declared, so
// that a bare variable reference can be told apart from a user word call.
func WithVariables(vars map[string]bool) Option {
	return func(l *Lowerer) {
		for v := range vars {
			l.variables[v] = true
		}
	}
}

// WithKnownWords seeds the set of user words already defined in a prior
// REPL turn, so that calling into them lowers to Call(name) instead of
// being mistaken for an unresolved reference.
func WithKnownWords(words map[string]bool) Option {
	return func(l *Lowerer) {
		for w := range words {
			l.knownWords[w] = true
		}
	}
}

// WithConstants seeds CONSTANT names already bound in a prior REPL turn,
// so that referencing one lowers to its literal value rather than a memory
// load.
func WithConstants(consts map[string]int64) Option {
	return func(l *Lowerer) {
		for name, v := range consts {
			l.constants[name] = v
		}
	}
}

// New creates a Lowerer.
func New(opts ...Option) *Lowerer {
	l := &Lowerer{
		variables:  make(map[string]bool),
		constants:  make(map[string]int64),
		knownWords: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FatalLoweringError reports an unrecoverable problem found while
// lowering (an unknown word, with permissive mode off).
type FatalLoweringError struct {
	Message string
	Pos     token.Position
}

func (e *FatalLoweringError) Error() string {
	return "LoweringError: " + e.Message + " at " + e.Pos.String()
}

// Lower runs the two-pass lowering of spec §4.4: collect every Definition
// body into the function table, then lower the remaining top-level nodes
// into main.
func (l *Lowerer) Lower(prog *ast.Program) (*Program, []Diagnostic, error) {
	out := NewProgram()

	// Collect definition names up front so that forward/recursive/mutually
	// recursive calls within this same compilation resolve.
	for _, node := range prog.Nodes {
		if def, ok := node.(*ast.Definition); ok {
			l.knownWords[def.Name] = true
		}
	}

	// Pass 1 & 2: collect and lower each Definition.
	for _, node := range prog.Nodes {
		def, ok := node.(*ast.Definition)
		if !ok {
			continue
		}
		fn := &Function{Name: def.Name}
		if err := l.lowerBody(fn, def.Body); err != nil {
			return nil, nil, err
		}
		fn.Instructions = append(fn.Instructions, Instruction{Op: OpReturn})
		out.Functions[def.Name] = fn
	}

	// Pass 3: lower non-Definition nodes into main.
	var topLevel []ast.Node
	for _, node := range prog.Nodes {
		if _, ok := node.(*ast.Definition); !ok {
			topLevel = append(topLevel, node)
		}
	}
	if err := l.lowerBody(out.Main, topLevel); err != nil {
		return nil, nil, err
	}
	out.Main.Instructions = append(out.Main.Instructions, Instruction{Op: OpReturn})

	for name, v := range l.constants {
		out.Constants[name] = v
	}
	for name := range l.variables {
		out.Variables[name] = true
	}

	return out, l.diagnostics, nil
}

func (l *Lowerer) lowerBody(fn *Function, nodes []ast.Node) error {
	for i := 0; i < len(nodes); i++ {
		if err := l.lowerNode(fn, nodes, &i); err != nil {
			return err
		}
	}
	return nil
}

// lowerNode lowers nodes[*i], possibly consuming an extra following node
// (the variable-then-!/@/+! memory-op pattern), advancing *i accordingly.
func (l *Lowerer) lowerNode(fn *Function, nodes []ast.Node, i *int) error {
	node := nodes[*i]
	switch n := node.(type) {
	case *ast.Number:
		emit(fn, Instruction{Op: OpPush, Value: Const(n.Value)})
		return nil

	case *ast.StringLiteral:
		for _, b := range []byte(n.Text) {
			emit(fn, Instruction{Op: OpPush, Value: Const(int64(b))})
		}
		emit(fn, Instruction{Op: OpPush, Value: Const(int64(len(n.Text)))})
		return nil

	case *ast.VariableDeclaration:
		if n.Constant {
			l.constants[n.Name] = n.Value
		} else {
			l.variables[n.Name] = true
		}
		return nil

	case *ast.Word:
		return l.lowerWord(fn, n, nodes, i)

	default:
		return nil
	}
}

func emit(fn *Function, instrs ...Instruction) {
	fn.Instructions = append(fn.Instructions, instrs...)
}

func (l *Lowerer) lowerWord(fn *Function, w *ast.Word, nodes []ast.Node, i *int) error {
	name := w.Name

	if lang.ControlFlow[name] {
		return l.lowerControlFlow(fn, w)
	}

	if v, ok := l.constants[name]; ok {
		emit(fn, Instruction{Op: OpPush, Value: Const(v)})
		return nil
	}

	if l.variables[name] {
		return l.lowerMemoryRef(fn, w, nodes, i)
	}

	if lit, ok := literalArithmetic[name]; ok {
		emit(fn, Instruction{Op: OpPush, Value: Const(lit.operand)}, Instruction{Op: lit.op})
		return nil
	}

	if name == "CR" {
		emit(fn, Instruction{Op: OpPush, Value: Const(10)}, Instruction{Op: OpPrintChar})
		return nil
	}

	if instrs, ok := staticExpansion[name]; ok {
		for _, op := range instrs {
			emit(fn, Instruction{Op: op})
		}
		return nil
	}

	if intrinsic, ok := intrinsicNames[name]; ok {
		emit(fn, Instruction{Op: OpCall, Name: "__" + intrinsic})
		return nil
	}

	if name == "!" || name == "@" || name == "+!" {
		// Reached only when no declared variable precedes this token
		// (the declared case is consumed by lowerMemoryRef above), e.g.
		// a bare "!" at the start of a definition or after another
		// memory operator. There's no variable to address, so this
		// can't lower to a Load/Store; flag it rather than silently
		// dropping the word.
		l.diagnostics = append(l.diagnostics, Diagnostic{Message: name + " has no preceding variable", Pos: w.Pos})
		emit(fn, Instruction{Op: OpNop}, Instruction{Op: OpComment, Text: "unresolved memory op: " + name})
		return nil
	}

	if lang.IsBuiltin(name) {
		// VARIABLE/CONSTANT are consumed at parse time into
		// VariableDeclaration nodes and never reach here as bare words.
		emit(fn, Instruction{Op: OpNop})
		return nil
	}

	if l.knownWords[name] {
		// Resolved by name at emission/load time, which is how recursive
		// and (in the REPL) cross-turn calls are supported without
		// modeling a pointer cycle (spec §9).
		emit(fn, Instruction{Op: OpCall, Name: name})
		return nil
	}

	if l.permissive {
		l.diagnostics = append(l.diagnostics, Diagnostic{Message: "unknown word '" + name + "'", Pos: w.Pos})
		emit(fn, Instruction{Op: OpNop}, Instruction{Op: OpComment, Text: "unresolved: " + name})
		return nil
	}

	return &FatalLoweringError{Message: "unknown word '" + name + "'", Pos: w.Pos}
}

// lowerMemoryRef folds "NAME !", "NAME @", and "NAME +!" into a single
// Store/Load/increment sequence: spec's Load/Store IR instructions carry
// the variable directly, so the variable name token itself never reaches
// the instruction stream on its own.
func (l *Lowerer) lowerMemoryRef(fn *Function, w *ast.Word, nodes []ast.Node, i *int) error {
	next := *i + 1
	if next < len(nodes) {
		if nw, ok := nodes[next].(*ast.Word); ok {
			switch nw.Name {
			case "!":
				emit(fn, Instruction{Op: OpStore, Value: Var(w.Name)})
				*i = next
				return nil
			case "@":
				emit(fn, Instruction{Op: OpLoad, Value: Var(w.Name)})
				*i = next
				return nil
			case "+!":
				emit(fn,
					Instruction{Op: OpLoad, Value: Var(w.Name)},
					Instruction{Op: OpAdd},
					Instruction{Op: OpStore, Value: Var(w.Name)},
				)
				*i = next
				return nil
			}
		}
	}
	// A bare reference with no following memory operator reads the cell.
	emit(fn, Instruction{Op: OpLoad, Value: Var(w.Name)})
	return nil
}

// lowerControlFlow implements the label/jump bookkeeping of spec §4.4.
func (l *Lowerer) lowerControlFlow(fn *Function, w *ast.Word) error {
	switch w.Name {
	case "IF":
		elseLbl := l.alloc.New("else")
		endifLbl := l.alloc.New("endif")
		emit(fn, Instruction{Op: OpJumpIfNot, Label: elseLbl})
		l.conds = append(l.conds, condFrame{elseLabel: elseLbl, elseOpen: true, endifLabel: endifLbl})
		return nil

	case "ELSE":
		if len(l.conds) == 0 {
			l.diagnostics = append(l.diagnostics, Diagnostic{Message: "ELSE without matching IF", Pos: w.Pos})
			emit(fn, Instruction{Op: OpComment, Text: "unmatched ELSE"})
			return nil
		}
		top := &l.conds[len(l.conds)-1]
		emit(fn, Instruction{Op: OpJump, Label: top.endifLabel})
		emit(fn, Instruction{Op: OpLabel, Label: top.elseLabel})
		top.elseOpen = false
		return nil

	case "THEN":
		if len(l.conds) == 0 {
			l.diagnostics = append(l.diagnostics, Diagnostic{Message: "THEN without matching IF", Pos: w.Pos})
			emit(fn, Instruction{Op: OpComment, Text: "unmatched THEN"})
			return nil
		}
		top := l.conds[len(l.conds)-1]
		l.conds = l.conds[:len(l.conds)-1]
		if top.elseOpen {
			emit(fn, Instruction{Op: OpLabel, Label: top.elseLabel})
		}
		emit(fn, Instruction{Op: OpLabel, Label: top.endifLabel})
		return nil

	case "?DO":
		start := l.alloc.New("loop")
		end := l.alloc.New("loopend")
		emit(fn, Instruction{Op: OpDoLoop, BodyLbl: start, EndLbl: end})
		emit(fn, Instruction{Op: OpLabel, Label: start})
		l.loops = append(l.loops, loopFrame{startLabel: start, endLabel: end})
		return nil

	case "DO":
		start := l.alloc.New("loop")
		end := l.alloc.New("loopend")
		// DO still needs to pop limit/start and establish the loop index,
		// it just never skips the body: Unchecked suppresses ?DO's
		// empty-range early exit.
		emit(fn, Instruction{Op: OpDoLoop, BodyLbl: start, EndLbl: end, Unchecked: true})
		emit(fn, Instruction{Op: OpLabel, Label: start})
		l.loops = append(l.loops, loopFrame{startLabel: start, endLabel: end})
		return nil

	case "LOOP":
		if len(l.loops) == 0 {
			l.diagnostics = append(l.diagnostics, Diagnostic{Message: "LOOP without matching DO", Pos: w.Pos})
			emit(fn, Instruction{Op: OpComment, Text: "unmatched LOOP"})
			return nil
		}
		top := l.loops[len(l.loops)-1]
		l.loops = l.loops[:len(l.loops)-1]
		emit(fn, Instruction{Op: OpLoop, BodyLbl: top.startLabel})
		emit(fn, Instruction{Op: OpLabel, Label: top.endLabel})
		return nil

	case "I":
		emit(fn, Instruction{Op: OpPushLoopIndex})
		return nil

	case "J":
		// Documented limitation (spec §9 open question, resolved): J is
		// lowered identically to I. True two-level nested-loop support
		// would need a richer runtime loop-index stack.
		emit(fn, Instruction{Op: OpPushLoopIndex})
		return nil
	}
	return nil
}

// staticExpansion holds stack shuffles with fixed, statically-known shape:
// they desugar directly into sequences of the base stack instructions.
var staticExpansion = map[string][]Opcode{
	"DUP":   {OpDup},
	"DROP":  {OpDrop},
	"SWAP":  {OpSwap},
	"OVER":  {OpOver},
	"ROT":   {OpRot},
	"-ROT":  {OpRot, OpRot},
	"NIP":   {OpSwap, OpDrop},
	"TUCK":  {OpSwap, OpOver},
	"2DUP":  {OpOver, OpOver},
	"2DROP": {OpDrop, OpDrop},

	"+":      {OpAdd},
	"-":      {OpSub},
	"*":      {OpMul},
	"/":      {OpDiv},
	"MOD":    {OpMod},
	"NEGATE": {OpNeg},

	"=":  {OpEqual},
	"<>": {OpNotEqual},
	"<":  {OpLess},
	">":  {OpGreater},
	"<=": {OpLessEqual},
	">=": {OpGreaterEqual},

	"AND": {OpAnd},
	"OR":  {OpOr},
	"NOT": {OpNot},

	".":    {OpPrint},
	".S":   {OpPrintStack},
	"EMIT": {OpPrintChar},
	"KEY":  {OpReadChar},
	"TYPE": {OpPrintString},
}

// literalArithmetic covers words that desugar to "push a literal operand,
// then apply a binary op" — 1+/1-/2*/2/ each need an operand the base
// zero-arity opcodes don't carry.
var literalArithmetic = map[string]struct {
	operand int64
	op      Opcode
}{
	"1+": {1, OpAdd},
	"1-": {1, OpSub},
	"2*": {2, OpMul},
	"2/": {2, OpDiv},
}

// intrinsicNames lowers to Call("__" + <mapped name>): either
// dynamically-indexed stack operations (PICK, ROLL) whose index comes off
// the data stack at runtime rather than being known at compile time,
// conditionally-dynamic ones (?DUP, /MOD, ABS, MIN, MAX depend on a
// runtime value), deep shuffles that need more than the base instruction
// set's fixed-arity ops (2SWAP, 2OVER), or return-stack operators that the
// IR's closed vocabulary has no dedicated opcode for (>R, R>, R@ — only
// the loop-index pseudo-ops PushLoopIndex/PushLoopLimit are true IR
// instructions per spec §3). These are implemented directly by the
// runtime and by each codegen backend as named intrinsics, the same way a
// Call resolves a user word. The mapped names are spelled out explicitly
// (rather than mechanically sanitized) so that >R and R> never collide.
var intrinsicNames = map[string]string{
	"PICK": "PICK", "ROLL": "ROLL", "?DUP": "QDUP",
	"2SWAP": "2SWAP", "2OVER": "2OVER",
	"/MOD": "SLASHMOD", "ABS": "ABS", "MIN": "MIN", "MAX": "MAX",
	">R": "TOR", "R>": "FROMR", "R@": "RFETCH",
}
