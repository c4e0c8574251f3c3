package columnar

import (
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/parquet-go/parquet-go"
)

// Reader gives random access to the row groups of a file. ReadRowGroup may
// be called from several goroutines at once.
type Reader struct {
	f      *os.File
	file   *parquet.File
	schema *Schema
	cols   []column
	meta   map[string]string
	sums   []uint64
}

// Open validates the framing of path and parses its footer.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return r, nil
}

func newReader(f *os.File) (r *Reader, err error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if err := checkFrame(f, size); err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("%w: footer: %v", ErrCorrupt, p)
		}
	}()
	pf, err := parquet.OpenFile(f, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	schema, err := schemaOf(pf.Schema())
	if err != nil {
		return nil, err
	}
	cols, err := columnsOf(schema, pf.Schema())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, kv := range pf.Metadata().KeyValueMetadata {
		meta[kv.Key] = kv.Value
	}
	var sums []uint64
	if s, ok := meta[ChecksumKey]; ok {
		if sums, err = parseChecksums(s, len(pf.RowGroups())); err != nil {
			return nil, err
		}
		delete(meta, ChecksumKey)
	}
	return &Reader{f: f, file: pf, schema: schema, cols: cols, meta: meta, sums: sums}, nil
}

// checkFrame validates the leading and trailing magic and the footer length
// so a damaged tail is reported before the footer is allocated.
func checkFrame(f io.ReaderAt, size int64) error {
	if size < 12 {
		return fmt.Errorf("%w: %d bytes", ErrBadMagic, size)
	}
	var head [4]byte
	var tail [8]byte
	if _, err := f.ReadAt(head[:], 0); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if _, err := f.ReadAt(tail[:], size-8); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if string(head[:]) != magic || string(tail[4:]) != magic {
		return fmt.Errorf("%w: got %q..%q", ErrBadMagic, head[:], tail[4:])
	}
	if n := int64(binary.LittleEndian.Uint32(tail[:4])); n == 0 || n > size-12 {
		return fmt.Errorf("%w: footer length %d in a %d byte file", ErrCorrupt, n, size)
	}
	return nil
}

func (r *Reader) Schema() *Schema { return r.schema }

// Metadata returns a copy of the footer key/value pairs.
func (r *Reader) Metadata() map[string]string { return maps.Clone(r.meta) }

func (r *Reader) NumRowGroups() int { return len(r.file.RowGroups()) }

func (r *Reader) NumRows() int64 { return r.file.NumRows() }

// RowGroupRows reports the row count of group i without reading it.
func (r *Reader) RowGroupRows(i int) int { return int(r.file.RowGroups()[i].NumRows()) }

// ReadRowGroup decodes and verifies row group i.
func (r *Reader) ReadRowGroup(i int) (g *RowGroup, err error) {
	groups := r.file.RowGroups()
	if i < 0 || i >= len(groups) {
		return nil, fmt.Errorf("columnar: row group %d out of range [0,%d)", i, len(groups))
	}
	defer func() {
		if p := recover(); p != nil {
			g, err = nil, fmt.Errorf("row group %d: %w: %v", i, ErrCorrupt, p)
		}
	}()

	n := int(groups[i].NumRows())
	g = NewRowGroup(n)
	sinks := sinkFuncs(g, r.cols)
	rows := groups[i].Rows()
	defer rows.Close()

	buf := make([]parquet.Row, rowBatch)
	read := 0
	for {
		k, rerr := rows.ReadRows(buf)
		if read+k > n {
			return nil, fmt.Errorf("row group %d: %w: more than %d rows", i, ErrCorrupt, n)
		}
		for _, row := range buf[:k] {
			for _, v := range row {
				if c := v.Column(); c >= 0 && c < len(sinks) && sinks[c] != nil {
					sinks[c](read, v)
				}
			}
			read++
		}
		if rerr == io.EOF || (rerr == nil && k == 0) {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("row group %d: %w", i, rerr)
		}
	}
	if read != n {
		return nil, fmt.Errorf("row group %d: %w: read %d of %d rows", i, ErrCorrupt, read, n)
	}
	if r.sums != nil && checksum(g, r.cols) != r.sums[i] {
		return nil, fmt.Errorf("row group %d: %w", i, ErrChecksum)
	}
	return g, nil
}

func (r *Reader) Close() error { return r.f.Close() }
