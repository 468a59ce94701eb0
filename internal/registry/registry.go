// Package registry selects the right parser for a file by header sniffing.
package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/finledger/internal/parser"
	"github.com/rumor-ml/commons.systems/finledger/internal/parsers/bankcsv"
	"github.com/rumor-ml/commons.systems/finledger/internal/parsers/ofx"
	"github.com/rumor-ml/commons.systems/finledger/internal/parsers/qif"
	"github.com/rumor-ml/commons.systems/finledger/internal/parsers/statement"
)

// headerSize is how many leading bytes FindParser reads for format
// detection. Enough for magic numbers and CSV header rows in the
// supported formats.
const headerSize = 512

// Registry holds all registered parsers in registration order. Earlier
// parsers win when several claim a file, so the more specific formats
// are registered first.
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers.
func New() (*Registry, error) {
	mono, err := bankcsv.NewParser(bankcsv.MonoMapping())
	if err != nil {
		return nil, fmt.Errorf("building built-in csv parser: %w", err)
	}
	return &Registry{
		parsers: []parser.Parser{
			qif.NewParser(),
			ofx.NewParser(),
			mono,
			statement.NewParser(),
		},
	}, nil
}

// MustNew is New for initialization paths where failure is a programming
// error.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a custom parser, e.g. a bank CSV mapping loaded from
// configuration.
func (r *Registry) Register(p parser.Parser) error {
	if p == nil {
		return fmt.Errorf("cannot register nil parser")
	}
	for _, existing := range r.parsers {
		if existing.Name() == p.Name() {
			return fmt.Errorf("parser %q already registered", p.Name())
		}
	}
	r.parsers = append(r.parsers, p)
	return nil
}

// FindParser returns the first parser that claims the file, based on its
// path and leading bytes.
func (r *Registry) FindParser(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		// Short files are fine; parsers see whatever was read.
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	header = header[:n]

	for _, p := range r.parsers {
		if p.CanParse(path, header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser found for file: %s", path)
}

// ListParsers returns the names of all registered parsers in order.
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
