package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nixls/nixls"
)

// Sub-index formats.
const (
	FormatEntries  = "entries"
	FormatOptions  = "options"
	FormatBuiltins = "builtins"
)

// Sentinel errors.
var (
	ErrUnknownFormat = errors.New("docs: unknown index format")
	ErrMalformed     = errors.New("docs: malformed index")
)

// DeprecatedMarker prefixes the documentation of deprecated builtins.
const DeprecatedMarker = "**DEPRECATED.**"

// maxConcurrentLoads bounds how many sub-index files are decoded at once.
const maxConcurrentLoads = 4

// LoadSources loads every configured sub-index concurrently. A source that
// fails to load is skipped with a warning; the returned error combines all
// failures while the aggregate serves the rest, in configuration order.
func LoadSources(ctx context.Context, sources []nixls.DocSource, logger *zap.Logger) (*Aggregate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loaded := make([]*Index, len(sources))

	var (
		mu   sync.Mutex
		errs error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)

	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			idx, err := LoadFile(src)
			if err != nil {
				logger.Warn("Skipping documentation source",
					zap.String("name", src.Name),
					zap.String("path", src.Path),
					zap.Error(err))

				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", src.Name, err))
				mu.Unlock()

				return nil
			}

			logger.Info("Loaded documentation source",
				zap.String("name", src.Name),
				zap.Int("entries", idx.Len()))

			loaded[i] = idx

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}

	indices := make([]Searcher, 0, len(loaded))

	for _, idx := range loaded {
		if idx != nil {
			indices = append(indices, idx)
		}
	}

	return NewAggregate(indices...), errs
}

// LoadFile reads one sub-index.
func LoadFile(src nixls.DocSource) (*Index, error) {
	data, err := os.ReadFile(filepath.Clean(src.Path))
	if err != nil {
		return nil, err
	}

	return Decode(src.Name, src.Format, bytes.NewReader(data))
}

// Decode parses a sub-index in the given format.
func Decode(name, format string, r io.Reader) (*Index, error) {
	var (
		entries []Entry
		err     error
	)

	switch format {
	case FormatEntries, "":
		entries, err = decodeEntries(r)
	case FormatOptions:
		entries, err = decodeOptions(r)
	case FormatBuiltins:
		entries, err = DecodeBuiltins(r)
		for i := range entries {
			entries[i].Name = "builtins." + entries[i].Name
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return nil, err
	}

	return NewIndex(name, entries), nil
}

type rawEntry struct {
	Name       string   `json:"name"`
	Doc        string   `json:"doc"`
	Args       []string `json:"args"`
	Deprecated bool     `json:"deprecated"`
}

func decodeEntries(r io.Reader) ([]Entry, error) {
	var raw []rawEntry

	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	entries := make([]Entry, 0, len(raw))

	for _, e := range raw {
		if e.Name == "" {
			continue
		}

		entries = append(entries, Entry{
			Name:       e.Name,
			Doc:        e.Doc,
			Args:       e.Args,
			Kind:       KindFunction,
			Deprecated: e.Deprecated,
		})
	}

	return entries, nil
}

// optionDescription accepts both a plain string and the {"_type", "text"}
// object newer option dumps use.
type optionDescription string

func (d *optionDescription) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = optionDescription(s)

		return nil
	}

	var obj struct {
		Text string `json:"text"`
	}

	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*d = optionDescription(obj.Text)

	return nil
}

type rawOption struct {
	Description optionDescription `json:"description"`
	Type        string            `json:"type"`
}

func decodeOptions(r io.Reader) ([]Entry, error) {
	var entries []Entry

	err := decodeObject(r, func(name string, raw json.RawMessage) error {
		var opt rawOption
		if err := json.Unmarshal(raw, &opt); err != nil {
			return fmt.Errorf("option %s: %w", name, err)
		}

		entries = append(entries, Entry{
			Name: name,
			Doc:  string(opt.Description),
			Type: opt.Type,
			Kind: KindOption,
		})

		return nil
	})

	return entries, err
}

type rawBuiltin struct {
	Args []string `json:"args"`
	Doc  string   `json:"doc"`
}

// DecodeBuiltins parses the output of "nix __dump-builtins": an object
// mapping builtin names to their argument names and documentation. Names are
// returned without the "builtins." prefix, in document order.
func DecodeBuiltins(r io.Reader) ([]Entry, error) {
	var entries []Entry

	err := decodeObject(r, func(name string, raw json.RawMessage) error {
		var b rawBuiltin
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("builtin %s: %w", name, err)
		}

		entries = append(entries, Entry{
			Name:       name,
			Doc:        b.Doc,
			Args:       b.Args,
			Kind:       KindBuiltin,
			Deprecated: strings.HasPrefix(b.Doc, DeprecatedMarker),
		})

		return nil
	})

	return entries, err
}

// decodeObject streams a top-level JSON object, calling each for every
// member in document order. Go maps would lose that order.
func decodeObject(r io.Reader, each func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected object", ErrMalformed)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected member name", ErrMalformed)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		if err := each(key, raw); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return nil
}
