package sketch

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

const artifactMagic = "TSK1"

// maxRecord bounds a single encoded digest.
const maxRecord = 64 << 20

// Set is a named collection of digests, one per normalized feature, kept in
// insertion order.
type Set struct {
	names   []string
	digests map[string]*TDigest
}

func NewSet() *Set {
	return &Set{digests: make(map[string]*TDigest)}
}

// Put stores d under name, replacing any previous digest.
func (s *Set) Put(name string, d *TDigest) {
	if _, ok := s.digests[name]; !ok {
		s.names = append(s.names, name)
	}
	s.digests[name] = d
}

func (s *Set) Get(name string) (*TDigest, bool) {
	d, ok := s.digests[name]
	return d, ok
}

func (s *Set) Names() []string { return append([]string(nil), s.names...) }

// MergeFrom merges every digest of other into s, adding missing names.
func (s *Set) MergeFrom(other *Set) {
	for _, name := range other.names {
		od := other.digests[name]
		if d, ok := s.digests[name]; ok {
			d.Merge(od)
			continue
		}
		d := New(od.Compression())
		d.Merge(od)
		s.Put(name, d)
	}
}

// LookupTables builds one table per digest.
func (s *Set) LookupTables(size int) (map[string]*LookupTable, error) {
	out := make(map[string]*LookupTable, len(s.names))
	for _, name := range s.names {
		t, err := NewLookupTable(s.digests[name], size)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// WriteTo encodes the set as magic, count, then (name, digest) records with
// u16 and u32 length prefixes.
func (s *Set) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	write := func(p []byte) error {
		m, err := bw.Write(p)
		n += int64(m)
		return err
	}
	var scratch [4]byte
	if err := write([]byte(artifactMagic)); err != nil {
		return n, err
	}
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(s.names)))
	if err := write(scratch[:4]); err != nil {
		return n, err
	}
	for _, name := range s.names {
		body, err := s.digests[name].MarshalBinary()
		if err != nil {
			return n, err
		}
		binary.LittleEndian.PutUint16(scratch[:2], uint16(len(name)))
		if err := write(scratch[:2]); err != nil {
			return n, err
		}
		if err := write([]byte(name)); err != nil {
			return n, err
		}
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(body)))
		if err := write(scratch[:4]); err != nil {
			return n, err
		}
		if err := write(body); err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// ReadSet decodes a set written by WriteTo.
func ReadSet(r io.Reader) (*Set, error) {
	br := bufio.NewReader(r)
	head := make([]byte, 8)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadEncoding, err)
	}
	if string(head[:4]) != artifactMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadEncoding, head[:4])
	}
	count := int(binary.LittleEndian.Uint32(head[4:]))

	s := NewSet()
	var scratch [4]byte
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(br, scratch[:2]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrBadEncoding, i, err)
		}
		name := make([]byte, binary.LittleEndian.Uint16(scratch[:2]))
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fmt.Errorf("%w: record %d name: %v", ErrBadEncoding, i, err)
		}
		if _, err := io.ReadFull(br, scratch[:4]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrBadEncoding, i, err)
		}
		size := binary.LittleEndian.Uint32(scratch[:4])
		if size > maxRecord {
			return nil, fmt.Errorf("%w: record %d claims %d bytes", ErrBadEncoding, i, size)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, fmt.Errorf("%w: record %d body: %v", ErrBadEncoding, i, err)
		}
		d := &TDigest{}
		if err := d.UnmarshalBinary(body); err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, err)
		}
		s.Put(string(name), d)
	}
	return s, nil
}

// SaveFile writes the set to path as a zstd stream.
func (s *Set) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sketch file: %w", err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("zstd encoder: %w", err)
	}
	if _, err := s.WriteTo(zw); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("write sketch file: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("write sketch file: %w", err)
	}
	return f.Close()
}

// LoadFile reads a set written by SaveFile.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	defer zr.Close()
	s, err := ReadSet(zr)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}
