package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestDecodeTransferRequest(t *testing.T) {
	body := `{"recipient":"  bob@bank  ","recipient_name":"Bob\u0000","amount":" 300.00 ","description":"rent"}`
	r := httptest.NewRequest(http.MethodPost, "/api/transfers", strings.NewReader(body))

	req, err := decodeTransferRequest(r)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if req.Recipient != "bob@bank" {
		t.Errorf("recipient = %q, want trimmed bob@bank", req.Recipient)
	}
	if req.RecipientName != "Bob" {
		t.Errorf("recipient_name = %q, want control characters stripped", req.RecipientName)
	}
	if req.Amount != "300.00" {
		t.Errorf("amount = %q, want 300.00", req.Amount)
	}
}

func TestDecodeTransferRequest_Invalid(t *testing.T) {
	for _, body := range []string{"", "{broken", `["array"]`} {
		r := httptest.NewRequest(http.MethodPost, "/api/transfers", strings.NewReader(body))
		if _, err := decodeTransferRequest(r); err == nil {
			t.Errorf("decode(%q) did not fail", body)
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=0", 20},
		{"limit=-3", 20},
		{"limit=abc", 20},
		{"limit=500", 100},
	}

	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		if got := parseLimit(q, 20, 100); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"with\x00null", "withnull"},
		{"keep\ttabs\nand newlines", "keep\ttabs\nand newlines"},
		{"\x1b[31mansi\x1b[0m", "[31mansi[0m"},
	}

	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
