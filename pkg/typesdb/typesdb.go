// Package typesdb loads collectd types databases, which map a type name to the ordered list of data sources
// that make up the values of that type.
package typesdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
)

// SchemaError is returned when a types database line can not be parsed.
type SchemaError struct {
	Source string // File name, or "" if loaded from a reader
	Line   int    // 1-based line number
	Text   string // The offending line
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("types database line %d: %s: %q", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("types database %s:%d: %s: %q", e.Source, e.Line, e.Reason, e.Text)
}

// Database maps type names to their definitions.  It is built at startup and is safe for concurrent reads
// once fully loaded.  Merge must not be called concurrently with anything else.
type Database struct {
	types map[string]TypeDefinition
}

// New returns an empty Database.
func New() *Database {
	return &Database{
		types: map[string]TypeDefinition{},
	}
}

// Load reads a types database from r.
func Load(r io.Reader) (*Database, error) {
	return load(r, "")
}

// LoadFile reads a types database from the named file.
func LoadFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint:errcheck
	return load(f, path)
}

// LoadFiles reads each file in order and merges them, later definitions of a type replace earlier ones.
func LoadFiles(paths ...string) (*Database, error) {
	db := New()
	for _, path := range paths {
		fdb, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		db.Merge(fdb)
	}
	return db, nil
}

func load(r io.Reader, source string) (*Database, error) {
	db := New()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		name, td, reason := parseLine(line)
		if reason != "" {
			return nil, &SchemaError{
				Source: source,
				Line:   lineNo,
				Text:   line,
				Reason: reason,
			}
		}
		db.types[name] = td
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return db, nil
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

// parseLine parses `type_name ds:KIND:min:max[, ds:KIND:min:max]*`, returning a non-empty reason on failure.
func parseLine(line string) (string, TypeDefinition, string) {
	fields := strings.FieldsFunc(line, isSeparator)
	if len(fields) < 2 {
		return "", nil, "no data sources"
	}
	name := fields[0]
	if strings.ContainsRune(name, ':') {
		return "", nil, "invalid type name"
	}
	td := make(TypeDefinition, 0, len(fields)-1)
	seen := make(map[string]struct{}, len(fields)-1)
	for _, field := range fields[1:] {
		parts := strings.Split(field, ":")
		if len(parts) != 4 {
			return "", nil, fmt.Sprintf("data source %q must be name:kind:min:max", field)
		}
		if parts[0] == "" {
			return "", nil, fmt.Sprintf("data source %q has no name", field)
		}
		if _, ok := seen[parts[0]]; ok {
			return "", nil, fmt.Sprintf("duplicate data source %q", parts[0])
		}
		seen[parts[0]] = struct{}{}
		kind, err := ParseKind(parts[1])
		if err != nil {
			return "", nil, err.Error()
		}
		min, err := parseBound(parts[2])
		if err != nil {
			return "", nil, "min: " + err.Error()
		}
		max, err := parseBound(parts[3])
		if err != nil {
			return "", nil, "max: " + err.Error()
		}
		td = append(td, DataSource{
			Name: parts[0],
			Kind: kind,
			Min:  min,
			Max:  max,
		})
	}
	return name, td, ""
}

// Merge copies every definition of other into db, replacing definitions of the same name.  It returns the
// names which were replaced.
func (db *Database) Merge(other *Database) []string {
	var replaced []string
	for name, td := range other.types {
		if _, ok := db.types[name]; ok {
			replaced = append(replaced, name)
		}
		db.types[name] = td
	}
	sort.Strings(replaced)
	return replaced
}

// Resolve returns the definition of the named type.
func (db *Database) Resolve(name string) (TypeDefinition, bool) {
	td, ok := db.types[name]
	return td, ok
}

// Len returns the number of types defined.
func (db *Database) Len() int {
	return len(db.types)
}

// Names returns the defined type names, sorted.
func (db *Database) Names() []string {
	names := make([]string, 0, len(db.types))
	for name := range db.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
