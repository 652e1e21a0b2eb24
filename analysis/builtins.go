package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/docs"
)

// Sentinel errors.
var (
	ErrEmptyCommand  = errors.New("analysis: empty interpreter command")
	ErrBadVersion    = errors.New("analysis: unrecognized interpreter version")
	ErrVersionTooOld = errors.New("analysis: interpreter too old for builtin metadata")
)

// Builtin is a name in the builtins set.
type Builtin struct {
	Name       string
	Args       []string
	Doc        string
	Deprecated bool
}

// Signature renders the arguments as "a -> b".
func (b *Builtin) Signature() string {
	return docs.Entry{Args: b.Args}.Signature()
}

// Detail is a one-line summary for completion items.
func (b *Builtin) Detail() string {
	if len(b.Args) == 0 {
		return "builtin"
	}

	return "Lambda: " + b.Signature() + " -> Result"
}

// Entry converts the builtin to a documentation entry named
// "builtins.<name>".
func (b *Builtin) Entry() docs.Entry {
	return docs.Entry{
		Name:       "builtins." + b.Name,
		Doc:        b.Doc,
		Args:       b.Args,
		Source:     "builtins",
		Kind:       docs.KindBuiltin,
		Deprecated: b.Deprecated,
	}
}

// Interpreter runs the Nix interpreter.
type Interpreter interface {
	// Version returns the output of "--version".
	Version(ctx context.Context) (string, error)

	// DumpBuiltins returns the output of "__dump-builtins".
	DumpBuiltins(ctx context.Context) ([]byte, error)
}

// ExecInterpreter runs the interpreter as a child process.
type ExecInterpreter struct {
	Args []string
}

// NewExecInterpreter splits command with shell quoting rules.
func NewExecInterpreter(command string) (*ExecInterpreter, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("interpreter command %q: %w", command, err)
	}

	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	return &ExecInterpreter{Args: args}, nil
}

// Version implements Interpreter.
func (e *ExecInterpreter) Version(ctx context.Context) (string, error) {
	out, err := e.run(ctx, "--version")

	return string(out), err
}

// DumpBuiltins implements Interpreter.
func (e *ExecInterpreter) DumpBuiltins(ctx context.Context) ([]byte, error) {
	return e.run(ctx, "__dump-builtins")
}

func (e *ExecInterpreter) run(ctx context.Context, arg string) ([]byte, error) {
	args := append(append([]string(nil), e.Args[1:]...), arg)

	//nolint:gosec // The command comes from the user's configuration.
	cmd := exec.CommandContext(ctx, e.Args[0], args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", e.Args[0], arg, err, bytes.TrimSpace(stderr.Bytes()))
	}

	return out, nil
}

var versionPattern = regexp.MustCompile(`^nix \(Nix\) (\d+)\.(\d+)`)

// CheckVersion reports whether the "--version" output names an interpreter
// at least minVersion, e.g. "2.4".
func CheckVersion(output, minVersion string) error {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return fmt.Errorf("%w: %q", ErrBadVersion, output)
	}

	have := "v" + m[1] + "." + m[2]
	want := "v" + minVersion

	if !semver.IsValid(want) {
		return fmt.Errorf("%w: minimum %q", ErrBadVersion, minVersion)
	}

	if semver.Compare(have, want) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrVersionTooOld, have, want)
	}

	return nil
}

// Builtins is the process-wide builtin table. The interpreter is probed at
// most once, on first use.
type Builtins struct {
	interp     Interpreter
	minVersion string
	timeout    time.Duration
	logger     *zap.Logger

	once  sync.Once
	table map[string]*Builtin
	rich  bool
}

// NewBuiltins creates a table probing interp. A nil interp always yields
// the fallback names.
func NewBuiltins(interp Interpreter, cfg nixls.InterpreterConfig, logger *zap.Logger) *Builtins {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.MinVersion == "" {
		cfg.MinVersion = nixls.DefaultMinVersion
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = nixls.DefaultInterpreterTimeout
	}

	return &Builtins{
		interp:     interp,
		minVersion: cfg.MinVersion,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

// Table returns the builtins by name. It never fails: without a usable
// interpreter the fallback names are returned with empty metadata.
func (b *Builtins) Table(ctx context.Context) map[string]*Builtin {
	b.once.Do(func() {
		entries, err := b.probe(ctx)
		if err != nil {
			b.logger.Warn("Builtin metadata unavailable, using fallback names", zap.Error(err))
			b.table = fallbackTable()

			return
		}

		b.table = make(map[string]*Builtin, len(entries))
		for _, e := range entries {
			b.table[e.Name] = &Builtin{Name: e.Name, Args: e.Args, Doc: e.Doc, Deprecated: e.Deprecated}
		}

		b.rich = true

		b.logger.Info("Loaded builtin metadata", zap.Int("builtins", len(b.table)))
	})

	return b.table
}

// Rich reports whether the table carries interpreter metadata.
func (b *Builtins) Rich(ctx context.Context) bool {
	b.Table(ctx)

	return b.rich
}

// Names returns the builtin names in order.
func (b *Builtins) Names(ctx context.Context) []string {
	table := b.Table(ctx)

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Scope returns the builtins as a scope.
func (b *Builtins) Scope(ctx context.Context) *Scope {
	s := NewScope("")

	for name, bi := range b.Table(ctx) {
		s.Names[name] = &Binding{Name: name, Kind: KindBuiltin, Builtin: bi}
	}

	return s
}

func (b *Builtins) probe(ctx context.Context) ([]docs.Entry, error) {
	if b.interp == nil {
		return nil, ErrEmptyCommand
	}

	// The first caller's cancellation must not poison the memoized table.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	version, err := b.interp.Version(ctx)
	if err != nil {
		return nil, err
	}

	if err := CheckVersion(version, b.minVersion); err != nil {
		return nil, err
	}

	out, err := b.interp.DumpBuiltins(ctx)
	if err != nil {
		return nil, err
	}

	return docs.DecodeBuiltins(bytes.NewReader(out))
}

func fallbackTable() map[string]*Builtin {
	table := make(map[string]*Builtin, len(fallbackNames))
	for _, name := range fallbackNames {
		table[name] = &Builtin{Name: name}
	}

	return table
}

// fallbackNames is used when the interpreter cannot describe its builtins.
var fallbackNames = []string{
	"abort", "add", "all", "any", "attrNames", "attrValues", "baseNameOf",
	"bitAnd", "bitOr", "bitXor", "catAttrs", "compareVersions", "concatLists",
	"concatMap", "concatStringsSep", "deepSeq", "dirOf", "div", "elem",
	"elemAt", "fetchGit", "fetchTarball", "fetchurl", "filter", "filterSource",
	"foldl'", "fromJSON", "functionArgs", "genList", "getAttr", "getEnv",
	"hasAttr", "hashFile", "hashString", "head", "import", "intersectAttrs",
	"isAttrs", "isBool", "isFloat", "isFunction", "isInt", "isList", "isNull",
	"isPath", "isString", "length", "lessThan", "listToAttrs", "map",
	"mapAttrs", "match", "mul", "parseDrvName", "partition", "path",
	"pathExists", "placeholder", "readDir", "readFile", "removeAttrs",
	"replaceStrings", "seq", "sort", "split", "splitVersion", "storePath",
	"stringLength", "sub", "substring", "tail", "throw", "toFile", "toJSON",
	"toPath", "toString", "toXML", "trace", "tryEval", "typeOf",
}
