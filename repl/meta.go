package repl

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"roth/internal/logx"
	"roth/runtime"
)

// dispatchMeta handles one `:`-prefixed REPL meta-command (spec §4.8,
// §6). It reports quit=true when the session should end.
func (s *Session) dispatchMeta(out io.Writer, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case ":help":
		s.metaHelp(out)
	case ":quit", ":q":
		return true, nil
	case ":stack", ":s":
		s.metaStack(out)
	case ":words", ":w":
		s.metaWords(out)
	case ":vars", ":v":
		s.metaVars(out)
	case ":clear", ":c":
		s.metaClear(out)
	case ":reset", ":r":
		s.metaReset(out)
	case ":debug":
		return false, s.metaDebug(args)
	default:
		return false, fmt.Errorf("unknown meta-command %q (try :help)", cmd)
	}
	return false, nil
}

func (s *Session) metaHelp(out io.Writer) {
	fmt.Fprintln(out, "meta-commands:")
	fmt.Fprintln(out, "  :help            show this message")
	fmt.Fprintln(out, "  :quit, :q        end the session")
	fmt.Fprintln(out, "  :stack, :s       print the data stack, bottom first")
	fmt.Fprintln(out, "  :words, :w       list defined words")
	fmt.Fprintln(out, "  :vars, :v        list declared variables and their values")
	fmt.Fprintln(out, "  :clear, :c       clear the data stack")
	fmt.Fprintln(out, "  :reset, :r       reset the session: stacks, variables, and defined words")
	fmt.Fprintln(out, "  :debug N         set debug verbosity (0-3)")
}

func (s *Session) metaStack(out io.Writer) {
	vals := s.ctx.Data.Snapshot()
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.FormatInt(v, 10)
	}
	fmt.Fprintln(out, strings.Join(strs, " "))
}

func (s *Session) metaWords(out io.Writer) {
	names := make([]string, 0, len(s.words))
	for name := range s.words {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, strings.Join(names, " "))
}

func (s *Session) metaVars(out io.Writer) {
	names := make([]string, 0, len(s.variables))
	for name := range s.variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s = %d\n", name, s.ctx.Memory[name])
	}
}

func (s *Session) metaClear(out io.Writer) {
	for !s.ctx.Data.Empty() {
		s.ctx.Data.Pop()
	}
	fmt.Fprintln(out, "stack cleared")
}

func (s *Session) metaReset(out io.Writer) {
	s.ctx = runtime.NewContext()
	s.ctx.Out = out
	s.words = make(map[string]bool)
	s.variables = make(map[string]bool)
	s.constants = make(map[string]int64)
	fmt.Fprintln(out, "session state reset")
}

func (s *Session) metaDebug(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(":debug requires exactly one argument (0-3)")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n > 3 {
		return fmt.Errorf("invalid debug level %q (want 0-3)", args[0])
	}
	s.debug = n
	s.log.SetLevel(logx.Level(n))
	return nil
}
