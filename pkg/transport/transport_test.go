package transport

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testTransport() *HTTP {
	return NewHTTP(Config{Timeout: 5 * time.Second, Logger: zap.NewNop()})
}

func TestSendDecodesJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":9007199254740993,"name":"A"}]`))
	}))
	defer ts.Close()

	resp, err := testTransport().Send(context.Background(), &Request{Method: MethodGet, URL: ts.URL + "/users"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	list, ok := resp.Body.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected one-element list, got %#v", resp.Body)
	}
	id := list[0].(map[string]any)["id"]
	if id != json.Number("9007199254740993") {
		t.Errorf("expected exact json.Number id, got %#v", id)
	}
}

func TestSendEncodesBodyAndHeaders(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	resp, err := testTransport().Send(context.Background(), &Request{
		Method:  MethodPost,
		URL:     ts.URL + "/users",
		Headers: map[string]string{"Authorization": "Bearer t"},
		Body:    map[string]any{"name": "A"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.Status)
	}
	if resp.Body != nil {
		t.Errorf("expected nil body for empty response, got %#v", resp.Body)
	}
	if gotAuth != "Bearer t" || gotType != "application/json" {
		t.Errorf("unexpected headers auth=%q type=%q", gotAuth, gotType)
	}
	if gotBody["name"] != "A" {
		t.Errorf("expected body forwarded, got %v", gotBody)
	}
}

func TestSendStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer ts.Close()

	_, err := testTransport().Send(context.Background(), &Request{Method: MethodGet, URL: ts.URL})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", se.Status)
	}
	if se.Body.(map[string]any)["error"] != "not found" {
		t.Errorf("expected decoded error body, got %#v", se.Body)
	}
}

func TestSendGzip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		io.WriteString(gw, `{"id":1}`)
		gw.Close()
	}))
	defer ts.Close()

	resp, err := testTransport().Send(context.Background(), &Request{Method: MethodGet, URL: ts.URL})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Body.(map[string]any)["id"] != json.Number("1") {
		t.Errorf("unexpected body %#v", resp.Body)
	}
}

func TestSendPlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	resp, err := testTransport().Send(context.Background(), &Request{Method: MethodDelete, URL: ts.URL})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Body != "ok" {
		t.Errorf("expected raw string body, got %#v", resp.Body)
	}
}

func TestSendConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	if _, err := testTransport().Send(context.Background(), &Request{Method: MethodGet, URL: url}); err == nil {
		t.Fatal("expected error for closed server")
	}
}
