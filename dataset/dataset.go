// Package dataset provides read-only access to the tabular CSV collaborators
// (the curated talk dataset and the sustainability indicator series). Tables
// preserve file row order, which downstream similarity ranking relies on for
// stable tie-breaking.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one row keyed by column header.
type Record map[string]string

// Table is an immutable, ordered view over a CSV file with an optional keyed
// index over one column. Built once at startup; safe for concurrent reads.
type Table struct {
	headers []string
	rows    []Record
	index   map[string]int
	keyCol  string
}

// Load reads a CSV file into a Table. keyColumn, when non-empty, must be one
// of the headers and builds the lookup index; duplicate keys keep the first
// occurrence.
func Load(path, keyColumn string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()
	t, err := Parse(f, keyColumn)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return t, nil
}

// Parse reads CSV data from r into a Table.
func Parse(r io.Reader, keyColumn string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows, missing cells become ""

	headers, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	t := &Table{headers: headers, keyCol: keyColumn}
	if keyColumn != "" {
		found := false
		for _, h := range headers {
			if h == keyColumn {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("key column %q not in header", keyColumn)
		}
		t.index = map[string]int{}
	}

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.rows)+2, err)
		}
		rec := make(Record, len(headers))
		for i, h := range headers {
			if i < len(fields) {
				rec[h] = strings.TrimSpace(fields[i])
			} else {
				rec[h] = ""
			}
		}
		if t.index != nil {
			if key := rec[keyColumn]; key != "" {
				if _, exists := t.index[key]; !exists {
					t.index[key] = len(t.rows)
				}
			}
		}
		t.rows = append(t.rows, rec)
	}

	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Headers returns the column headers in file order.
func (t *Table) Headers() []string {
	out := make([]string, len(t.headers))
	copy(out, t.headers)
	return out
}

// Row returns the record at index i in original file order.
func (t *Table) Row(i int) Record { return t.rows[i] }

// Lookup returns the first record whose key column equals key.
func (t *Table) Lookup(key string) (Record, bool) {
	if t.index == nil {
		return nil, false
	}
	i, ok := t.index[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return t.rows[i], true
}
