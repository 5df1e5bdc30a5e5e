package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"roth/analyzer"
	"roth/codegen"
	"roth/internal/logx"
	"roth/ir"
	"roth/lexer"
	"roth/parser"
	"roth/runtime"
)

// Session is the interactive compile-load-execute loop of spec §4.8. It
// owns the runtime context and cumulative symbol tables for the process
// lifetime; each turn borrows the context exclusively (spec §5).
type Session struct {
	ctx    *runtime.Context
	loader *Loader
	log    *logx.Logger

	words     map[string]bool
	variables map[string]bool
	constants map[string]int64

	backend     string
	debug       int
	permissive  bool
	turnCounter int
}

// Options configures a new Session.
type Options struct {
	Backend    string // codegen backend used to build each turn; always "native" in practice
	Debug      int    // 0-3, per spec §6
	Permissive bool
	Log        *logx.Logger
}

// New starts a session: allocates the scratch directory and the
// persistent runtime context.
func New(opts Options) (*Session, error) {
	loader, err := NewLoader()
	if err != nil {
		return nil, err
	}
	backend := opts.Backend
	if backend == "" {
		backend = "native"
	}
	log := opts.Log
	if log == nil {
		log = logx.New(logx.LevelSilent)
	}
	return &Session{
		ctx:        runtime.NewContext(),
		loader:     loader,
		log:        log,
		words:      make(map[string]bool),
		variables:  make(map[string]bool),
		constants:  make(map[string]int64),
		backend:    backend,
		debug:      opts.Debug,
		permissive: opts.Permissive,
	}, nil
}

// Close releases the session's scratch directory. Loaded plugins are not
// unloaded (Go cannot unload a plugin) but the files backing them are
// removed, matching spec §5's "removed on session exit".
func (s *Session) Close() error {
	return s.loader.Close()
}

// Run drives the interactive loop against an github.com/chzyer/readline
// instance until EOF, :quit, or an unrecoverable readline error.
func (s *Session) Run(out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "roth> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "^D",
	})
	if err != nil {
		return errors.Wrap(err, "initializing line editor")
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading input")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			quit, err := s.dispatchMeta(out, line)
			if err != nil {
				fmt.Fprintf(out, "error: %s\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.Turn(out, line); err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
			continue
		}
		fmt.Fprintln(out, "ok")
	}
}

// Turn runs the full spec §4.8 pipeline for one piece of top-level input:
// lex, parse, analyze, lower, optimize, emit, build, load, execute. On
// success the observed definitions are folded into the session's symbol
// tables. A failure before execution leaves session state untouched; a
// failure during execution folds no names into the symbol tables, but
// keeps whatever the turn already did to the runtime context.
func (s *Session) Turn(out io.Writer, src string) error {
	s.ctx.Out = out

	toks, err := lexer.Tokenize(src)
	if err != nil {
		return errors.Wrap(err, "lexing")
	}

	prog, err := parser.Parse(toks)
	if err != nil {
		return errors.Wrap(err, "parsing")
	}

	result, err := analyzer.New(
		analyzer.WithSeedWords(s.words),
		analyzer.WithSeedVariables(s.variables),
		analyzer.Permissive(s.permissive),
	).Analyze(prog)
	if err != nil {
		return errors.Wrap(err, "analyzing")
	}

	lowered, diags, err := ir.New(
		ir.WithKnownWords(s.words),
		ir.WithVariables(s.variables),
		ir.WithConstants(s.constants),
		ir.Permissive(s.permissive),
	).Lower(prog)
	if err != nil {
		return errors.Wrap(err, "lowering")
	}
	for _, d := range diags {
		s.log.Debugf("diagnostic: %s at %s", d.Message, d.Pos)
	}

	optimized := ir.Optimize(lowered)

	backend, err := codegen.Get(s.backend)
	if err != nil {
		return err
	}
	source, err := backend.Emit(optimized, codegen.Options{Repl: true, Debug: s.debug})
	if err != nil {
		return errors.Wrap(err, "emitting")
	}
	if s.debug >= 2 {
		s.log.Debugf("generated source:\n%s", source)
	}

	soPath, err := s.loader.Build(source)
	if err != nil {
		return err
	}

	entry, definedWords, err := s.loader.Load(soPath)
	if err != nil {
		return err
	}

	s.turnCounter++
	if err := entry(s.ctx); err != nil {
		return errors.Wrap(err, "executing turn")
	}

	for name := range result.Words {
		s.words[name] = true
	}
	for name := range result.Variables {
		s.variables[name] = true
	}
	for name, v := range optimized.Constants {
		s.constants[name] = v
	}
	for _, name := range definedWords {
		s.words[name] = true
	}

	return nil
}

// RunScript executes src line-by-line as a script (non-interactive),
// writing output to out. The CLI's file mode does not use it. Unlike Run it does not
// recognize meta-commands or readline editing.
func (s *Session) RunScript(src string, out io.Writer) error {
	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "\\") {
			continue
		}
		if err := s.Turn(out, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
