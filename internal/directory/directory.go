// Package directory holds the legal directory: the static, ordered mapping
// from company key to contact address and legal basis, plus the ticket
// overrides applied after classification.
//
// A Directory is immutable once loaded and safe for concurrent use.
package directory

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Other is the company key used when nothing in the directory matches.
const Other = "other"

// GenericLaw is the legal basis used for cases whose company is unknown.
const GenericLaw = "Article 1231-1 du Code civil (responsabilité contractuelle)"

//go:embed directory.yaml
var embedded []byte

// Entry is one company of the directory.
type Entry struct {
	Key     string `yaml:"key" json:"key"`
	Contact string `yaml:"contact" json:"contact"`
	Law     string `yaml:"law" json:"law"`
}

// Override fixes company and amount for any subject containing Marker.
type Override struct {
	Marker  string `yaml:"marker" json:"marker"`
	Company string `yaml:"company" json:"company"`
	Amount  string `yaml:"amount" json:"amount"`
}

type document struct {
	Companies []Entry    `yaml:"companies"`
	Overrides []Override `yaml:"overrides"`
}

type Directory struct {
	entries   []Entry
	index     map[string]int
	overrides []Override
}

var ErrInvalid = errors.New("invalid directory")

// Load reads the directory from path, or the embedded default when path is empty.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded directory. The embedded file is validated by
// tests, so a failure here is a build defect.
func Default() *Directory {
	d, err := Parse(embedded)
	if err != nil {
		panic(err)
	}
	return d
}

// Parse decodes a YAML directory. Keys are lowercased and must be unique and
// must not collide with Other; declaration order is preserved.
func Parse(data []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return New(doc.Companies, doc.Overrides)
}

// New builds a directory from entries in declaration order.
func New(entries []Entry, overrides []Override) (*Directory, error) {
	d := &Directory{
		entries:   make([]Entry, 0, len(entries)),
		index:     make(map[string]int, len(entries)),
		overrides: make([]Override, 0, len(overrides)),
	}
	for i, e := range entries {
		e.Key = strings.ToLower(strings.TrimSpace(e.Key))
		switch {
		case e.Key == "":
			return nil, fmt.Errorf("%w: entry %d has no key", ErrInvalid, i)
		case e.Key == Other:
			return nil, fmt.Errorf("%w: key %q is reserved", ErrInvalid, Other)
		case e.Contact == "":
			return nil, fmt.Errorf("%w: %q has no contact", ErrInvalid, e.Key)
		}
		if _, dup := d.index[e.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalid, e.Key)
		}
		d.index[e.Key] = len(d.entries)
		d.entries = append(d.entries, e)
	}
	for _, o := range overrides {
		o.Company = strings.ToLower(strings.TrimSpace(o.Company))
		if o.Marker == "" || o.Amount == "" {
			return nil, fmt.Errorf("%w: override needs marker and amount", ErrInvalid)
		}
		if _, ok := d.index[o.Company]; !ok && o.Company != Other {
			return nil, fmt.Errorf("%w: override %q targets unknown company %q", ErrInvalid, o.Marker, o.Company)
		}
		d.overrides = append(d.overrides, o)
	}
	return d, nil
}

// Lookup returns the entry for key.
func (d *Directory) Lookup(key string) (Entry, bool) {
	i, ok := d.index[key]
	if !ok {
		return Entry{}, false
	}
	return d.entries[i], true
}

// Entries returns a copy of the entries in declaration order.
func (d *Directory) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Overrides returns a copy of the ticket overrides in declaration order.
func (d *Directory) Overrides() []Override {
	out := make([]Override, len(d.overrides))
	copy(out, d.overrides)
	return out
}
