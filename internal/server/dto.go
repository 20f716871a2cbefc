package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/KaramelBytes/sheetchat/internal/dataset"
	"github.com/KaramelBytes/sheetchat/internal/frame"
	"github.com/KaramelBytes/sheetchat/internal/render"
	"github.com/KaramelBytes/sheetchat/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

type sizeErrorResponse struct {
	Error  string `json:"error"`
	Bound  string `json:"bound"`
	Limit  int    `json:"limit"`
	Actual int    `json:"actual"`
}

type datasetResponse struct {
	Name    string         `json:"name"`
	Schema  dataset.Schema `json:"schema"`
	Preview *tableDTO      `json:"preview"`
}

type tableDTO struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	CSV     string   `json:"csv,omitempty"`
}

type displayDTO struct {
	Kind  render.ActionKind `json:"kind"`
	Text  string            `json:"text,omitempty"`
	Table *tableDTO         `json:"table,omitempty"`
	// Chart is a Vega-Lite spec.
	Chart map[string]any `json:"chart,omitempty"`
}

type turnResponse struct {
	Query   string          `json:"query"`
	Reply   string          `json:"reply"`
	Kind    string          `json:"kind"`
	Outcome string          `json:"outcome"`
	Code    string          `json:"code,omitempty"`
	Display displayDTO      `json:"display"`
	Trace   []session.Stage `json:"trace"`
	Error   string          `json:"error,omitempty"`
}

func newTurn(res *session.TurnResult) turnResponse {
	out := turnResponse{
		Query:   res.Query,
		Reply:   res.Reply,
		Kind:    res.Kind.String(),
		Outcome: res.Outcome(),
		Code:    res.Code,
		Trace:   res.Trace,
		Display: displayDTO{Kind: res.Action.Kind, Text: res.Action.Text},
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if res.Action.Table != nil {
		out.Display.Table = newTable(res.Action.Table, true)
	}
	if res.Action.Chart != nil {
		out.Display.Chart = res.Action.Chart.Spec()
	}
	return out
}

func newTable(f *frame.Frame, withCSV bool) *tableDTO {
	t := &tableDTO{Columns: f.Columns(), Rows: make([][]any, f.Len())}
	for i := range t.Rows {
		t.Rows[i] = make([]any, f.Width())
	}
	for j := 0; j < f.Width(); j++ {
		for i, v := range f.ColumnAt(j).Values {
			t.Rows[i][j] = jsonCell(v)
		}
	}
	if withCSV {
		t.CSV = f.CSV()
	}
	return t
}

// jsonCell maps values encoding/json rejects or renders poorly.
func jsonCell(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return v
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON encodes before writing the header so a value that cannot be
// encoded turns into a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponse{Error: "response could not be encoded"})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
