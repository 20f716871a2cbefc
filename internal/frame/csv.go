package frame

import (
	"bytes"
	"encoding/csv"
	"io"
)

// WriteCSV writes a header row then one line per row. Missing values are
// empty fields; the output is byte-stable for a given frame.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns()); err != nil {
		return err
	}
	rec := make([]string, len(f.cols))
	for r := 0; r < f.rows; r++ {
		for i, c := range f.cols {
			rec[i] = FormatValue(c.Values[r])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV returns the frame encoded as CSV text.
func (f *Frame) CSV() string {
	var buf bytes.Buffer
	_ = f.WriteCSV(&buf)
	return buf.String()
}

// String renders the header and up to ten rows, for logs and debugging.
func (f *Frame) String() string {
	return f.Head(10).CSV()
}
