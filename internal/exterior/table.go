// Package exterior loads the mapping from short exterior codes to vendor
// colour tokens.
//
// The resource is a two-column CSV file with a header row:
//
//	code,token
//	RED,3T3
//	BLK,212
package exterior

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"carpics/fetcher/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Table maps exterior codes to vendor tokens. It is immutable once loaded.
type Table struct {
	tokens map[string]string
	codes  []string
}

// Load reads a table from CSV. Malformed rows and rows with an empty code or
// token are skipped; the first occurrence of a duplicate code wins.
func Load(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	t := &Table{tokens: make(map[string]string)}

	for idx := 0; ; idx++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Debugf("Skipping malformed exterior row %d: %v", idx+1, err)
				continue
			}
			return nil, fmt.Errorf("failed to read exterior table: %w", err)
		}

		if idx == 0 || len(row) < 2 || row[0] == "" || row[1] == "" {
			continue
		}
		if _, dup := t.tokens[row[0]]; dup {
			log.Debugf("Ignoring duplicate exterior code %s on row %d", row[0], idx+1)
			continue
		}

		t.tokens[row[0]] = row[1]
		t.codes = append(t.codes, row[0])
	}

	return t, nil
}

// LoadFile reads a table from a CSV file on disk.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResourceNotFound, err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResourceNotFound, err)
	}

	log.Debugf("Loaded %d exterior codes from %s", t.Len(), path)
	return t, nil
}

// FromMap builds a table directly, mostly for tests. Codes are listed in the order given.
func FromMap(codes []string, tokens map[string]string) *Table {
	t := &Table{tokens: make(map[string]string, len(codes))}
	for _, c := range codes {
		tok, ok := tokens[c]
		if !ok || c == "" || tok == "" {
			continue
		}
		if _, dup := t.tokens[c]; dup {
			continue
		}
		t.tokens[c] = tok
		t.codes = append(t.codes, c)
	}
	return t
}

func (t *Table) Lookup(code string) (string, error) {
	tok, ok := t.tokens[code]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownExteriorCode, code)
	}
	return tok, nil
}

// Codes returns the known codes in file order.
func (t *Table) Codes() []string {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out
}

func (t *Table) Len() int {
	return len(t.codes)
}

// Source loads a table from a file the first time it is needed and keeps it
// for the life of the process.
type Source struct {
	path string
	once sync.Once
	tbl  *Table
	err  error
}

func NewSource(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Table() (*Table, error) {
	s.once.Do(func() {
		s.tbl, s.err = LoadFile(s.path)
	})
	return s.tbl, s.err
}

// Lookup resolves a code through the lazily loaded table.
func (s *Source) Lookup(code string) (string, error) {
	t, err := s.Table()
	if err != nil {
		return "", err
	}
	return t.Lookup(code)
}
