package dedup

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"
)

// utf8BOM lets spreadsheet tools detect the encoding of Gujarati titles.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvBackend struct {
	path string
}

func (b *csvBackend) Location() string { return b.path }

func (b *csvBackend) Read(ctx context.Context) ([]Entry, error) {
	data, ok, err := readFileIfExists(b.path)
	if err != nil {
		return nil, ioErr("load", b.path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !ok || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	entries, err := decodeCSV(bytes.NewReader(data))
	if err != nil {
		return nil, corruptErr("load", b.path, err)
	}
	return entries, nil
}

func decodeCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	fields := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		f, ok := canonicalField(h)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", h)
		}
		fields[i] = f
		seen[f] = true
	}
	if !seen[fieldTitle] && !seen[fieldURL] {
		return nil, errors.New("missing title and url columns")
	}

	var entries []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		values := make(map[string][]string, len(fields))
		for i, f := range fields {
			if i < len(rec) {
				addValue(values, header[i], f, rec[i])
			}
		}
		e, err := entryFromFields(values)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (b *csvBackend) Commit(ctx context.Context, all, _ []Entry) error {
	err := writeFileAtomic(b.path, func(w io.Writer) error {
		if _, err := w.Write(utf8BOM); err != nil {
			return err
		}
		cw := csv.NewWriter(w)
		if err := cw.Write(storedFields); err != nil {
			return err
		}
		for _, e := range all {
			rec := []string{
				e.Identity, e.Title, e.URL, e.PublishedMarker, e.Category,
				e.ApplyURL, e.Description, e.FirstSeen.UTC().Format(time.RFC3339Nano),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return ioErr("flush", b.path, err)
	}
	return nil
}
