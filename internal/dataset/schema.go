package dataset

import "github.com/KaramelBytes/sheetchat/internal/frame"

const maxSamples = 2

// ColumnInfo describes one column for prompts and previews.
type ColumnInfo struct {
	Name    string     `json:"name"`
	Kind    frame.Kind `json:"kind"`
	Samples []any      `json:"samples"`
}

// Schema is the dataset summary handed to the prompt builder.
type Schema struct {
	Rows    int          `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

// Summarize lists each column with its kind and up to two non-missing
// sample values, in column order.
func Summarize(df *frame.Frame) Schema {
	if df == nil {
		return Schema{}
	}
	s := Schema{Rows: df.Len(), Columns: make([]ColumnInfo, df.Width())}
	for i := range s.Columns {
		c := df.ColumnAt(i)
		info := ColumnInfo{Name: c.Name, Kind: c.Kind, Samples: []any{}}
		for _, v := range c.Values {
			if v == nil {
				continue
			}
			info.Samples = append(info.Samples, v)
			if len(info.Samples) == maxSamples {
				break
			}
		}
		s.Columns[i] = info
	}
	return s
}
