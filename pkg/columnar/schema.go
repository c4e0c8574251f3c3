// Package columnar reads and writes Parquet files one row group at a time.
//
// Columns are flat INT32, INT64 or DOUBLE leaves compressed with zstd.
// Parquet orders the leaves of a group by name, so the schema read back from
// a file lists its fields sorted by name. The writer stores an xxhash64 of
// each row group's values in the key/value metadata under ChecksumKey and
// the reader verifies it when present.
package columnar

import (
	"errors"
	"fmt"
)

var (
	ErrBadMagic      = errors.New("columnar: not a parquet file")
	ErrCorrupt       = errors.New("columnar: corrupt file")
	ErrChecksum      = errors.New("columnar: row group checksum mismatch")
	ErrUnknownColumn = errors.New("columnar: unknown column")
	ErrSchema        = errors.New("columnar: row group does not match schema")
	ErrEmptyGroup    = errors.New("columnar: empty row group")
	ErrClosed        = errors.New("columnar: file closed")
)

// Type is the physical type of a column.
type Type uint8

const (
	Int32 Type = iota + 1
	Int64
	Float64
)

func (t Type) String() string {
	switch t {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

func (t Type) width() int {
	switch t {
	case Int32:
		return 4
	case Int64, Float64:
		return 8
	}
	return 0
}

type Field struct {
	Name string
	Type Type
}

// Schema is an ordered list of uniquely named fields.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema validates field names and types.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{fields: append([]Field(nil), fields...), index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", ErrSchema, i)
		}
		if f.Type.width() == 0 {
			return nil, fmt.Errorf("%w: field %s has invalid type %s", ErrSchema, f.Name, f.Type)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %s", ErrSchema, f.Name)
		}
		s.index[f.Name] = i
	}
	return s, nil
}

// MustSchema is NewSchema for static schemas.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Fields() []Field { return append([]Field(nil), s.fields...) }

func (s *Schema) Len() int { return len(s.fields) }

// Lookup returns the field with the given name.
func (s *Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// With returns a copy of s with extra fields appended. Fields already
// present with the same type are kept in place.
func (s *Schema) With(extra ...Field) (*Schema, error) {
	fields := s.Fields()
	for _, f := range extra {
		if old, ok := s.Lookup(f.Name); ok {
			if old.Type != f.Type {
				return nil, fmt.Errorf("%w: field %s is %s, not %s", ErrSchema, f.Name, old.Type, f.Type)
			}
			continue
		}
		fields = append(fields, f)
	}
	return NewSchema(fields...)
}
