package catalog

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
)

// Source produces raw catalog rows. Build validates them.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Item, error)
}

// NewFileSource picks a reader by file extension.
func NewFileSource(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return &ParquetSource{Path: path}, nil
	case ".csv":
		return &CSVSource{Path: path}, nil
	case ".jsonl", ".ndjson", ".json":
		return &JSONLSource{Path: path}, nil
	case ".feather", ".arrow":
		return nil, fmt.Errorf("unsupported catalog file type '%s': convert the snapshot to parquet first", filepath.Ext(path))
	}
	return nil, fmt.Errorf("unsupported catalog file type '%s'", filepath.Ext(path))
}

func openSource(path string) (*os.File, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}
		return nil, err
	}
	return f, nil
}

// CSVSource reads a CSV export with a header row.
type CSVSource struct {
	Path string
}

func (s *CSVSource) Name() string { return "csv:" + s.Path }

func (s *CSVSource) Load(ctx context.Context) ([]Item, error) {
	f, err := openSource(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", ErrDataUnavailable, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	var items []Item
	for row := 0; ; row++ {
		if row%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv row %d: %v", ErrDataUnavailable, row, err)
		}
		rec := make(record, len(header))
		for i, v := range fields {
			if i < len(header) {
				rec[header[i]] = []string{v}
			}
		}
		items = append(items, rec.toItem(row))
	}
	return items, nil
}

// JSONLSource reads one JSON object per line. A file holding a single JSON
// array is accepted too.
type JSONLSource struct {
	Path string
}

func (s *JSONLSource) Name() string { return "jsonl:" + s.Path }

func (s *JSONLSource) Load(ctx context.Context) ([]Item, error) {
	f, err := openSource(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	var items []Item
	if first == '[' {
		var rows []map[string]any
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("%w: decode json array: %v", ErrDataUnavailable, err)
		}
		for i, row := range rows {
			items = append(items, jsonRecord(row).toItem(i))
		}
		return items, nil
	}

	for row := 0; ; row++ {
		if row%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var obj map[string]any
		err := dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: jsonl row %d: %v", ErrDataUnavailable, row, err)
		}
		items = append(items, jsonRecord(obj).toItem(row))
	}
	return items, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != ' ' && b != '\n' && b != '\r' && b != '\t' {
			return b, br.UnreadByte()
		}
	}
}

func jsonRecord(obj map[string]any) record {
	rec := make(record, len(obj))
	for k, v := range obj {
		rec[strings.ToLower(k)] = jsonStrings(v)
	}
	return rec
}

func jsonStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case json.Number:
		return []string{t.String()}
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(t)}
	case []any:
		var out []string
		for _, e := range t {
			out = append(out, jsonStrings(e)...)
		}
		return out
	case map[string]any:
		// TMDB style {"id": 18, "name": "Drama"} and Udemy instructor
		// objects both carry a display name.
		for _, key := range []string{"name", "title", "display_name"} {
			if s, ok := t[key].(string); ok {
				return []string{s}
			}
		}
	}
	return nil
}

// ParquetSource reads a columnar snapshot. List columns are flattened by
// leaf column so repeated values accumulate on one row.
type ParquetSource struct {
	Path string
}

func (s *ParquetSource) Name() string { return "parquet:" + s.Path }

func (s *ParquetSource) Load(ctx context.Context) ([]Item, error) {
	f, err := openSource(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: open parquet: %v", ErrDataUnavailable, err)
	}

	columns := make(map[int]string)
	for i, path := range pf.Schema().Columns() {
		if len(path) > 0 {
			columns[i] = strings.ToLower(path[0])
		}
	}

	var items []Item
	seq := 0
	buf := make([]parquet.Row, 512)
	for _, rg := range pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		for {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				rec := make(record, len(columns))
				for _, v := range buf[i] {
					name, ok := columns[v.Column()]
					if !ok || v.IsNull() {
						continue
					}
					rec[name] = append(rec[name], parquetString(v))
				}
				items = append(items, rec.toItem(seq))
				seq++
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("%w: read parquet rows: %v", ErrDataUnavailable, readErr)
			}
		}
	}
	return items, nil
}

func parquetString(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	}
	return string(v.ByteArray())
}
