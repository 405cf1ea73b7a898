package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mockResponse struct {
	body       string
	statusCode int
	err        error
}

type mockTransport struct {
	responses []mockResponse
	calls     int
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	r := m.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(r.body)),
	}, nil
}

func newTestFetcher(transport *mockTransport) *Fetcher {
	f := New(transport)
	f.SetBackoff(time.Millisecond)
	return f
}

func TestFetchPage(t *testing.T) {
	tests := []struct {
		name      string
		responses []mockResponse
		wantBody  string
		wantCalls int
		wantKind  ErrorKind
		wantErr   bool
	}{
		{
			name:      "success first try",
			responses: []mockResponse{{body: "<html>cats</html>", statusCode: 200}},
			wantBody:  "<html>cats</html>",
			wantCalls: 1,
		},
		{
			name: "network error then success is retried once",
			responses: []mockResponse{
				{err: io.ErrUnexpectedEOF},
				{body: "ok", statusCode: 200},
			},
			wantBody:  "ok",
			wantCalls: 2,
		},
		{
			name: "persistent network error exhausts single retry",
			responses: []mockResponse{
				{err: io.ErrUnexpectedEOF},
				{err: io.ErrUnexpectedEOF},
				{err: io.ErrUnexpectedEOF},
			},
			wantCalls: 2,
			wantKind:  KindNetwork,
			wantErr:   true,
		},
		{
			name:      "bad status is not retried",
			responses: []mockResponse{{body: "not found", statusCode: 404}},
			wantCalls: 1,
			wantKind:  KindStatus,
			wantErr:   true,
		},
		{
			name:      "server error is not retried",
			responses: []mockResponse{{body: "boom", statusCode: 500}},
			wantCalls: 1,
			wantKind:  KindStatus,
			wantErr:   true,
		},
		{
			name: "timeout is classified and retried",
			responses: []mockResponse{
				{err: context.DeadlineExceeded},
				{err: context.DeadlineExceeded},
			},
			wantCalls: 2,
			wantKind:  KindTimeout,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &mockTransport{responses: tt.responses}
			f := newTestFetcher(transport)

			body, err := f.FetchPage(context.Background(), "https://shelter.example.com/cats")

			if diff := cmp.Diff(tt.wantCalls, transport.calls); diff != "" {
				t.Errorf("call count mismatch (-want +got):\n%s", diff)
			}

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var fe *FetchError
				if !errors.As(err, &fe) {
					t.Fatalf("expected *FetchError, got %T: %v", err, err)
				}
				if diff := cmp.Diff(tt.wantKind, fe.Kind); diff != "" {
					t.Errorf("error kind mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchPageStatusError(t *testing.T) {
	transport := &mockTransport{responses: []mockResponse{{body: "gone", statusCode: 410}}}
	f := newTestFetcher(transport)

	_, err := f.FetchPage(context.Background(), "https://shelter.example.com/cats")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if diff := cmp.Diff(410, fe.Status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}
