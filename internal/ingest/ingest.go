// Package ingest turns uploaded CSV, TSV and XLSX files into frames with
// typed columns.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/sheetchat/internal/frame"
)

// Options controls parsing of tabular files.
type Options struct {
	// Delimiter for CSV. If 0, sniffed from the header line among ',', ';', '\t', '|'.
	Delimiter rune
	// Sheet selects an XLSX sheet by name; SheetIndex (1-based) is used when empty.
	Sheet      string
	SheetIndex int
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
}

var (
	ErrEmptyFile   = errors.New("file has no header row")
	ErrUnsupported = errors.New("unsupported file type")
)

// Supported reports whether the file name has a readable extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt", ".xlsx":
		return true
	}
	return false
}

// ReadFile parses the file at path.
func ReadFile(path string, opts Options) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path), opts)
}

// Read parses r; name selects the format by extension.
func Read(r io.Reader, name string, opts Options) (*frame.Frame, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		b, rerr := io.ReadAll(r)
		if rerr != nil {
			return nil, fmt.Errorf("read xlsx: %w", rerr)
		}
		records, err = readWorkbook(b, name, opts.Sheet, opts.SheetIndex)
	case ".csv", ".tsv", ".txt", "":
		records, err = readDelimited(r, name, opts.Delimiter)
	default:
		return nil, fmt.Errorf("%w: %s (use .csv, .tsv or .xlsx)", ErrUnsupported, filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}
	return build(records, opts)
}

func readDelimited(r io.Reader, name string, delim rune) ([][]string, error) {
	br := bufio.NewReader(r)
	if delim == 0 {
		head, _ := br.Peek(64 * 1024)
		delim = sniffDelimiter(name, head)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.Comma = delim
	var out [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// sniffDelimiter picks the candidate occurring most often in the first line.
// TSV files default to tab.
func sniffDelimiter(name string, head []byte) rune {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return '\t'
	}
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestN := ',', 0
	for _, c := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

// build converts raw records (header first) into a typed frame.
func build(records [][]string, opts Options) (*frame.Frame, error) {
	for len(records) > 0 && blank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	header := headerNames(records[0])
	ncol := len(header)
	cells := make([][]string, ncol)
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		if len(rec) > ncol {
			extra := rec[ncol:]
			if !blank(extra) {
				return nil, fmt.Errorf("row %d has %d fields, header has %d", i+2, len(rec), ncol)
			}
			rec = rec[:ncol]
		}
		for j := 0; j < ncol; j++ {
			v := ""
			if j < len(rec) {
				v = rec[j]
			}
			cells[j] = append(cells[j], v)
		}
	}
	cols := make([]frame.Column, ncol)
	for j, name := range header {
		kind, vals := inferColumn(cells[j], opts)
		if vals == nil {
			vals = []any{}
		}
		cols[j] = frame.Column{Name: name, Kind: kind, Values: vals}
	}
	return frame.New(cols...)
}

// headerNames trims names, fills blanks as column_N and suffixes duplicates.
func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	seen := map[string]int{}
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if seen[h] > 0 {
			base := h
			for n := 2; seen[h] > 0; n++ {
				h = fmt.Sprintf("%s_%d", base, n)
			}
		}
		seen[h]++
		out[i] = h
	}
	return out
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
