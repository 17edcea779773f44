package dedup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const jsonVersion = 1

type jsonDocument struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Entries   []Entry   `json:"entries"`
}

type jsonBackend struct {
	path string
}

func (b *jsonBackend) Location() string { return b.path }

func (b *jsonBackend) Read(ctx context.Context) ([]Entry, error) {
	data, ok, err := readFileIfExists(b.path)
	if err != nil {
		return nil, ioErr("load", b.path, err)
	}
	data = bytes.TrimSpace(data)
	if !ok || len(data) == 0 {
		return nil, nil
	}

	entries, err := decodeJSON(data)
	if err != nil {
		return nil, corruptErr("load", b.path, err)
	}
	return entries, nil
}

// decodeJSON accepts the versioned document or a bare array of records.
// Anything else, including unknown keys, is rejected rather than dropped.
func decodeJSON(data []byte) ([]Entry, error) {
	var records []map[string]json.RawMessage
	if data[0] == '[' {
		if err := strictUnmarshal(data, &records); err != nil {
			return nil, err
		}
	} else {
		var doc struct {
			Version   *int                          `json:"version"`
			UpdatedAt time.Time                     `json:"updated_at"`
			Entries   *[]map[string]json.RawMessage `json:"entries"`
		}
		if err := strictUnmarshal(data, &doc); err != nil {
			return nil, err
		}
		switch {
		case doc.Version == nil || doc.Entries == nil:
			return nil, errors.New("not a listing document: version and entries are required")
		case *doc.Version < 1 || *doc.Version > jsonVersion:
			return nil, fmt.Errorf("unsupported document version %d", *doc.Version)
		}
		records = *doc.Entries
	}

	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("entry %d: null", i)
		}
		values := make(map[string][]string, len(rec))
		for key, raw := range rec {
			f, ok := canonicalField(key)
			if !ok {
				return nil, fmt.Errorf("entry %d: unknown key %q", i, key)
			}
			var v *string
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("entry %d: key %q: %w", i, key, err)
			}
			if v != nil {
				addValue(values, key, f, *v)
			}
		}
		e, err := entryFromFields(values)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// strictUnmarshal decodes exactly one JSON value with no unknown fields.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	return nil
}

func (b *jsonBackend) Commit(ctx context.Context, all, _ []Entry) error {
	doc := jsonDocument{Version: jsonVersion, UpdatedAt: time.Now().UTC(), Entries: all}
	if doc.Entries == nil {
		doc.Entries = []Entry{}
	}

	err := writeFileAtomic(b.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(doc)
	})
	if err != nil {
		return ioErr("flush", b.path, err)
	}
	return nil
}
