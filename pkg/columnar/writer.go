package columnar

import (
	"fmt"
	"os"
	"sort"

	"github.com/parquet-go/parquet-go"
	pzstd "github.com/parquet-go/parquet-go/compress/zstd"
)

type writerOptions struct {
	level    pzstd.Level
	metadata [][2]string
}

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

// WithLevel sets the zstd level (1 fastest .. 4 best).
func WithLevel(level int) WriterOption {
	return func(o *writerOptions) {
		switch {
		case level <= 0:
		case level == 1:
			o.level = pzstd.SpeedFastest
		case level == 2:
			o.level = pzstd.SpeedDefault
		case level == 3:
			o.level = pzstd.SpeedBetterCompression
		default:
			o.level = pzstd.SpeedBestCompression
		}
	}
}

// WithMetadata adds a key/value pair to the footer.
func WithMetadata(key, value string) WriterOption {
	return func(o *writerOptions) { o.metadata = append(o.metadata, [2]string{key, value}) }
}

// Writer appends row groups to a new file. It is not safe for concurrent
// use; pipelines funnel row groups to a single writer goroutine.
//
// The schema is only known at run time, so rows go through the untyped
// parquet.Writer rather than GenericWriter.
type Writer struct {
	f      *os.File
	pw     *parquet.Writer
	schema *Schema
	cols   []column
	batch  []parquet.Row
	meta   map[string]string
	sums   []uint64
	closed bool
}

// Create truncates path and prepares a zstd compressed parquet writer.
func Create(path string, schema *Schema, opts ...WriterOption) (*Writer, error) {
	o := writerOptions{level: pzstd.SpeedDefault}
	for _, opt := range opts {
		opt(&o)
	}
	ps := schema.parquetSchema()
	cols, err := columnsOf(schema, ps)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		f:      f,
		pw:     parquet.NewWriter(f, ps, parquet.Compression(&pzstd.Codec{Level: o.level})),
		schema: schema,
		cols:   cols,
		batch:  make([]parquet.Row, rowBatch),
		meta:   make(map[string]string),
	}
	for _, kv := range o.metadata {
		w.SetMetadata(kv[0], kv[1])
	}
	return w, nil
}

// SetMetadata records a footer key/value pair, replacing an earlier value.
func (w *Writer) SetMetadata(key, value string) { w.meta[key] = value }

func (w *Writer) Schema() *Schema { return w.schema }

func (w *Writer) NumRowGroups() int { return len(w.sums) }

// WriteRowGroup writes g as one parquet row group and returns its index.
func (w *Writer) WriteRowGroup(g *RowGroup) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if err := g.Conform(w.schema); err != nil {
		return 0, err
	}
	idx := len(w.sums)
	if g.rows == 0 {
		return 0, fmt.Errorf("row group %d: %w", idx, ErrEmptyGroup)
	}

	values := valueFuncs(g, w.cols)
	for start := 0; start < g.rows; start += rowBatch {
		end := min(start+rowBatch, g.rows)
		rows := w.batch[:end-start]
		for k := range rows {
			row := rows[k][:0]
			for _, v := range values {
				row = append(row, v(start+k))
			}
			rows[k] = row
		}
		if _, err := w.pw.WriteRows(rows); err != nil {
			return 0, fmt.Errorf("write row group %d: %w", idx, err)
		}
	}
	if err := w.pw.Flush(); err != nil {
		return 0, fmt.Errorf("flush row group %d: %w", idx, err)
	}
	w.sums = append(w.sums, checksum(g, w.cols))
	return idx, nil
}

// Close writes the footer with metadata and checksums and closes the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	keys := make([]string, 0, len(w.meta))
	for k := range w.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.pw.SetKeyValueMetadata(k, w.meta[k])
	}
	w.pw.SetKeyValueMetadata(ChecksumKey, formatChecksums(w.sums))

	if err := w.pw.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("write footer: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
