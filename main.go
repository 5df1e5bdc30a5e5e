// Command roth is the CLI front-end of spec §6: given a source file it
// compiles (and optionally runs) it; given no file it launches the
// interactive compile-load-execute loop of §4.8.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"roth/analyzer"
	"roth/codegen"
	"roth/internal/config"
	"roth/internal/logx"
	"roth/ir"
	"roth/lexer"
	"roth/parser"
	"roth/repl"
)

var (
	flagOutput     string
	flagBackend    string
	flagDebug      int
	flagNoColor    bool
	flagRun        bool
	flagPermissive bool
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "roth [file]",
		Short:         "a Forth-family compiler and interactive shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runRepl(cfg)
			}
			return runFile(cfg, args[0])
		},
	}

	flags := root.Flags()
	flags.StringVarP(&flagOutput, "output", "o", "", "destination for generated source, under .build/ adjacent to the input")
	flags.StringVarP(&flagBackend, "backend", "b", cfg.Backend, "codegen backend: native|c|debug-native|debug-c")
	flags.IntVarP(&flagDebug, "debug", "d", cfg.Debug, "debug verbosity 0-3")
	flags.BoolVar(&flagNoColor, "no-color", cfg.NoColor, "disable colored diagnostic output")
	flags.BoolVar(&flagRun, "run", false, "compile then execute, forwarding the child's exit status")
	flags.BoolVar(&flagPermissive, "permissive", false, "downgrade unknown-word references to a diagnostic instead of a fatal error")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// resolveBackend splits the four §6 backend names into the underlying
// codegen.Backend name plus whether debug scaffolding is forced on.
func resolveBackend(name string) (backend string, debug bool) {
	switch name {
	case "debug-native":
		return "native", true
	case "debug-c":
		return "c", true
	default:
		return name, false
	}
}

func runFile(cfg *config.Config, path string) error {
	log := logx.New(logx.Level(flagDebug))
	if flagNoColor {
		// No ANSI color is ever emitted by logx; kept for forward
		// compatibility with a future colorized diagnostic renderer.
		_ = flagNoColor
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	toks, err := lexer.Tokenize(string(src))
	if err != nil {
		return err
	}
	prog, err := parser.Parse(toks)
	if err != nil {
		return err
	}
	if _, err := analyzer.New(analyzer.Permissive(flagPermissive)).Analyze(prog); err != nil {
		return err
	}

	lowered, diags, err := ir.New(ir.Permissive(flagPermissive)).Lower(prog)
	if err != nil {
		return err
	}
	for _, d := range diags {
		log.Debugf("diagnostic: %s at %s", d.Message, d.Pos)
	}

	optimized := ir.Optimize(lowered)

	backendName, forceDebug := resolveBackend(flagBackend)
	back, err := codegen.Get(backendName)
	if err != nil {
		return err
	}
	debugLevel := flagDebug
	if forceDebug && debugLevel == 0 {
		debugLevel = 2
	}
	source, err := back.Emit(optimized, codegen.Options{Debug: debugLevel})
	if err != nil {
		return err
	}

	buildDir := filepath.Join(filepath.Dir(path), ".build")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", buildDir, err)
	}

	outName := flagOutput
	if outName == "" {
		ext := ".go"
		if backendName == "c" {
			ext = ".c"
		}
		outName = stem(path) + ext
	}
	outPath := filepath.Join(buildDir, outName)
	if err := os.WriteFile(outPath, []byte(source), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	if !flagRun {
		return nil
	}
	return runBuilt(buildDir, outPath, backendName)
}

func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// runBuilt invokes the host toolchain on the emitted source and executes
// the result, forwarding its exit status (spec §6, "the child's status
// on --run"). The native backend's standalone (non-REPL) emission is a
// plain `package main`, so it needs nothing beyond an ordinary `go
// build`; only the C backend reaches for an external compiler.
func runBuilt(buildDir, outPath, backendName string) error {
	binPath := outPath[:len(outPath)-len(filepath.Ext(outPath))]

	var build *exec.Cmd
	switch backendName {
	case "native":
		build = exec.Command("go", "build", "-o", binPath, outPath)
		build.Dir = buildDir
	case "c":
		build = exec.Command("gcc", "-o", binPath, outPath)
	default:
		return fmt.Errorf("--run is not supported for backend %q", backendName)
	}
	build.Stdout, build.Stderr = os.Stdout, os.Stderr
	if err := build.Run(); err != nil {
		return fmt.Errorf("host compiler failed: %w", err)
	}

	run := exec.Command(binPath)
	run.Stdout, run.Stderr, run.Stdin = os.Stdout, os.Stderr, os.Stdin
	if err := run.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	return nil
}

func runRepl(cfg *config.Config) error {
	log := logx.New(logx.Level(flagDebug))
	session, err := repl.New(repl.Options{
		Backend:    cfg.Backend,
		Debug:      flagDebug,
		Permissive: flagPermissive,
		Log:        log,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	return session.Run(os.Stdout)
}
