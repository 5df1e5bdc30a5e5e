// Package repl implements the interactive compile-load-execute loop of
// spec §4.8: each top-level turn is lowered, optimized, emitted as Go
// source, built into a plugin by the host Go toolchain, and loaded
// in-process so its definitions persist for the rest of the session.
package repl

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"plugin"

	"github.com/pkg/errors"

	"roth/runtime"
)

// Loader owns one session's scratch directory and the monotonic counter
// that names each turn's generated source/plugin pair uniquely. Loaded
// plugins are append-only: Loader never unloads one, matching spec §5's
// resource model ("existing pointers remain valid for the session").
type Loader struct {
	dir     string
	counter int
}

// NewLoader allocates a fresh per-session scratch directory.
func NewLoader() (*Loader, error) {
	dir, err := os.MkdirTemp("", "roth-repl-")
	if err != nil {
		return nil, errors.Wrap(err, "creating REPL scratch directory")
	}
	return &Loader{dir: dir}, nil
}

// Close removes the session's scratch directory and everything built
// into it. Called once, at session exit.
func (l *Loader) Close() error {
	return os.RemoveAll(l.dir)
}

// Build writes source to a fresh file in the scratch directory and
// invokes the host Go compiler to build it as a plugin, returning the
// path to the resulting shared library. A fresh, unique name is used
// every turn per spec §4.8 step 5.
func (l *Loader) Build(source string) (string, error) {
	l.counter++
	base := fmt.Sprintf("turn%04d", l.counter)
	srcPath := filepath.Join(l.dir, base+".go")
	soPath := filepath.Join(l.dir, base+".so")

	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return "", errors.Wrapf(err, "writing turn source %s", srcPath)
	}

	cmd := exec.Command("go", "build", "-buildmode=plugin", "-o", soPath, srcPath)
	cmd.Dir = l.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "host compiler failed:\n%s", string(out))
	}
	return soPath, nil
}

// ReplEntryFn is the calling convention a loaded turn's plugin exposes:
// the exported Go symbols ReplEntry (func(*runtime.Context) error) and
// DefinedWords ([]string), standing in for the spec's C-flavored
// __repl_entry / __defined_words names (see codegen/native.go).
type ReplEntryFn func(*runtime.Context) error

// Load opens the shared library at path and resolves its ReplEntry entry
// point and DefinedWords name list.
func (l *Loader) Load(path string) (ReplEntryFn, []string, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading turn plugin %s", path)
	}

	entrySym, err := p.Lookup("ReplEntry")
	if err != nil {
		return nil, nil, errors.Wrap(err, "resolving ReplEntry")
	}
	entry, ok := entrySym.(func(*runtime.Context) error)
	if !ok {
		return nil, nil, errors.Errorf("ReplEntry has unexpected type %T", entrySym)
	}

	wordsSym, err := p.Lookup("DefinedWords")
	if err != nil {
		return nil, nil, errors.Wrap(err, "resolving DefinedWords")
	}
	wordsPtr, ok := wordsSym.(*[]string)
	if !ok {
		return nil, nil, errors.Errorf("DefinedWords has unexpected type %T", wordsSym)
	}

	return entry, *wordsPtr, nil
}
