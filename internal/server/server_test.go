package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sheetchat/internal/render"
	"github.com/KaramelBytes/sheetchat/internal/sandbox"
	"github.com/KaramelBytes/sheetchat/internal/session"
)

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

const salesCSV = "region,sales\nnorth,10\nsouth,4\nnorth,6\n"

func newTestServer(t *testing.T, c session.Completer) *httptest.Server {
	t.Helper()
	m := session.NewManager(time.Minute, func(string) *session.Session {
		return session.New(c, sandbox.New(2*time.Second, nil))
	})
	srv := httptest.NewServer(New(Config{}, m, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, contentType string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, srv.URL+"/api/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out["id"])
	return out["id"]
}

func upload(t *testing.T, srv *httptest.Server, id, name, content string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/dataset", mw.FormDataContentType(), &buf)
}

func ask(t *testing.T, srv *httptest.Server, id, q string) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(queryRequest{Query: q})
	require.NoError(t, err)
	return do(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/query", "application/json", bytes.NewReader(body))
}

func TestUploadQueryAndExport(t *testing.T) {
	srv := newTestServer(t, completerFunc(func(context.Context, string) (string, error) {
		return "```js\nresult = df.where(\"region\", \"==\", \"north\")\n```", nil
	}))
	id := createSession(t, srv)

	resp, body := upload(t, srv, id, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var ds datasetResponse
	require.NoError(t, json.Unmarshal(body, &ds))
	assert.Equal(t, "sales.csv", ds.Name)
	assert.Equal(t, 3, ds.Schema.Rows)
	assert.Equal(t, []string{"region", "sales"}, ds.Preview.Columns)
	assert.Len(t, ds.Preview.Rows, 3)

	resp, body = ask(t, srv, id, "rows in the north")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var turn turnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, render.TableAck, turn.Reply)
	assert.Equal(t, "snippet", turn.Kind)
	assert.Equal(t, render.ShowTable, turn.Display.Kind)
	require.NotNil(t, turn.Display.Table)
	assert.Len(t, turn.Display.Table.Rows, 2)
	assert.Equal(t, "region,sales\nnorth,10\nnorth,6\n", turn.Display.Table.CSV)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/export.csv", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "result.csv")
	assert.Equal(t, "region,sales\nnorth,10\nnorth,6\n", string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/history", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist map[string][]session.Turn
	require.NoError(t, json.Unmarshal(body, &hist))
	require.Len(t, hist["turns"], 2)
	assert.Equal(t, session.User, hist["turns"][0].Sender)
	assert.Equal(t, render.TableAck, hist["turns"][1].Text)
}

func TestChartTurnCarriesSpec(t *testing.T) {
	srv := newTestServer(t, completerFunc(func(context.Context, string) (string, error) {
		return "```js\nresult = plot.bar(df, {x: \"region\", y: \"sales\"})\n```", nil
	}))
	id := createSession(t, srv)
	resp, _ := upload(t, srv, id, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ask(t, srv, id, "bar chart")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var turn turnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, render.RenderChart, turn.Display.Kind)
	assert.NotEmpty(t, turn.Display.Chart)
	assert.Equal(t, render.ChartAck, turn.Reply)
}

func TestChartWithInfiniteValues(t *testing.T) {
	srv := newTestServer(t, completerFunc(func(context.Context, string) (string, error) {
		return "```js\nresult = plot.bar(df.mutate(\"rate\", r => r.sales / 0), {x: \"region\", y: \"rate\"})\n```", nil
	}))
	id := createSession(t, srv)
	resp, _ := upload(t, srv, id, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ask(t, srv, id, "approval rate by region")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var turn turnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, render.RenderChart, turn.Display.Kind)
	assert.NotEmpty(t, turn.Display.Chart)
}

func TestWriteJSONUnencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"y": math.Inf(1)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.NotEmpty(t, e.Error)
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(t, completerFunc(func(context.Context, string) (string, error) { return "ok", nil }))

	resp, _ := ask(t, srv, "nope", "hello")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	id := createSession(t, srv)
	resp, _ = ask(t, srv, id, "hello")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/dataset", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/export.csv", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/query", "application/json", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/sessions/"+id, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/history", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOversizeUploadIsRejected(t *testing.T) {
	srv := newTestServer(t, completerFunc(func(context.Context, string) (string, error) { return "ok", nil }))
	id := createSession(t, srv)

	var b strings.Builder
	for i := 0; i < 21; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "c%d", i)
	}
	b.WriteString("\n")
	for i := 0; i < 21; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("1")
	}
	b.WriteString("\n")

	resp, body := upload(t, srv, id, "wide.csv", b.String())
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
	var out sizeErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "columns", out.Bound)
	assert.Equal(t, 20, out.Limit)
	assert.Equal(t, 21, out.Actual)

	resp, _ = upload(t, srv, id, "notes.pdf", "x")
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestConcurrentQueryConflicts(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := newTestServer(t, completerFunc(func(context.Context, string) (string, error) {
		close(entered)
		<-release
		return "done", nil
	}))
	id := createSession(t, srv)
	resp, _ := upload(t, srv, id, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	first := make(chan int, 1)
	go func() {
		body, _ := json.Marshal(queryRequest{Query: "slow"})
		r, err := http.Post(srv.URL+"/api/sessions/"+id+"/query", "application/json", bytes.NewReader(body))
		if err != nil {
			first <- 0
			return
		}
		r.Body.Close()
		first <- r.StatusCode
	}()
	<-entered

	resp, _ = ask(t, srv, id, "second")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/reset", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/reset", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestExamples(t *testing.T) {
	var (
		mu      sync.Mutex
		prompts []string
	)
	srv := newTestServer(t, completerFunc(func(_ context.Context, p string) (string, error) {
		mu.Lock()
		prompts = append(prompts, p)
		mu.Unlock()
		return "Sure.", nil
	}))
	id := createSession(t, srv)
	resp, _ := upload(t, srv, id, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/examples", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ex map[string][]string
	require.NoError(t, json.Unmarshal(body, &ex))
	assert.Equal(t, session.DefaultExamples, ex["examples"])

	resp, body = do(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/examples/0", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var turn turnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, session.DefaultExamples[0], turn.Query)
	assert.Equal(t, "Sure.", turn.Reply)
	mu.Lock()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], session.DefaultExamples[0])
	mu.Unlock()

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/examples/99", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/examples/x", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, completerFunc(func(context.Context, string) (string, error) { return "ok", nil }))
	createSession(t, srv)

	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sheetchat_sessions_active")
	assert.Contains(t, string(body), `sheetchat_http_requests_total`)
}

func TestCORSPreflight(t *testing.T) {
	m := session.NewManager(time.Minute, func(string) *session.Session { return session.New(nil, nil) })
	h := New(Config{AllowedOrigins: []string{"http://app.test"}}, m, nil).Routes()

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
