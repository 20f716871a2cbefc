package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func testServerSequence(t *testing.T, statuses []int, headers []http.Header, bodyOK any) (*ipv4Server, *int32) {
	t.Helper()
	var idx int32
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		st := statuses[i]
		if headers != nil && i < len(headers) && headers[i] != nil {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(st)
		if st >= 200 && st < 300 {
			_ = json.NewEncoder(w).Encode(bodyOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	})), &idx
}

func userPrompt(s string) []Message { return []Message{{Role: "user", Content: s}} }

func TestGenerateRetriesOn429(t *testing.T) {
	okBody := GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
	srv, calls := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}, {}}, okBody)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{Model: "test-model", Messages: userPrompt("hi"), MaxTokens: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	okBody := GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
	srv, _ := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}, {}}, okBody)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 5*time.Second, 3, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := c.Generate(ctx, GenerateRequest{Model: "test-model", Messages: userPrompt("hi"), MaxTokens: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected at least ~1s delay due to Retry-After, got %v", elapsed)
	}
}

func TestRateLimitExhaustedIsTyped(t *testing.T) {
	srv, calls := testServerSequence(t, []int{429}, nil, nil)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 2, 5*time.Millisecond, 10*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: userPrompt("hi")})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	if got := ErrorKind(err); got != "rate_limit" {
		t.Fatalf("ErrorKind = %q", got)
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "test-model", Messages: userPrompt("hi"), MaxTokens: 1})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
	var bad *BadRequestError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadRequestError, got %T", err)
	}
}

func TestClassifyAPIError(t *testing.T) {
	cases := []struct {
		status int
		msg    string
		want   string
	}{
		{401, "nope", "auth"},
		{403, "nope", "auth"},
		{404, "model not found", "model_not_found"},
		{402, "insufficient credits", "quota"},
		{500, "boom", "server"},
		{404, "route missing", "api"},
	}
	for _, c := range cases {
		err := classifyAPIError(&APIError{StatusCode: c.status, Message: c.msg}, &http.Response{Header: http.Header{}})
		if got := ErrorKind(err); got != c.want {
			t.Errorf("status %d %q: got %q want %q", c.status, c.msg, got, c.want)
		}
	}
}

func TestMissingKeyIsAuthError(t *testing.T) {
	c := NewOpenRouterClient("")
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: userPrompt("hi")})
	var auth *AuthError
	if !errors.As(err, &auth) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestGenerateHonorsCancelledContext(t *testing.T) {
	c := NewClientWithBaseURL("test", time.Second, 1, 0, 0, "http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, GenerateRequest{Model: "m", Messages: userPrompt("hi")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
