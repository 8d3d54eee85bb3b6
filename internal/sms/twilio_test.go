package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}

func testClient(serverURL string) *Client {
	c := NewClient("AC123", "secret", "+15550001111")
	c.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: serverURL}}
	return c
}

func TestSendVerificationCode(t *testing.T) {
	var gotTo, gotFrom, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "SM123"}`))
	}))
	defer server.Close()

	err := testClient(server.URL).SendVerificationCode(context.Background(), "+15552223333", "7K2Q")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotTo != "+15552223333" {
		t.Errorf("To = %q, want %q", gotTo, "+15552223333")
	}
	if gotFrom != "+15550001111" {
		t.Errorf("From = %q, want %q", gotFrom, "+15550001111")
	}
	if gotBody != "Your verification code is 7K2Q" {
		t.Errorf("Body = %q, want code message", gotBody)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	err := testClient(server.URL).SendVerificationCode(context.Background(), "+15552223333", "7K2Q")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := testClient(server.URL).SendVerificationCode(context.Background(), "bad-number", "7K2Q")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on client error)", calls)
	}
}

func TestSendNotConfigured(t *testing.T) {
	c := NewClient("", "", "")
	if c.Configured() {
		t.Error("expected Configured() = false")
	}
	if err := c.SendVerificationCode(context.Background(), "+15552223333", "7K2Q"); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}
