// Package http serves the JSON transfer API.
//
// This file implements utilities for parsing and validating request data:
// body decoding with a size cap, actor identification and input
// sanitization shared by the handlers.
package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxBodyBytes caps request bodies; transfer payloads are tiny.
const maxBodyBytes = 64 << 10

// transferRequest is the POST /api/transfers payload. Amount arrives as a
// decimal string ("300.00") and is parsed into cents server-side.
type transferRequest struct {
	Recipient     string `json:"recipient"`
	RecipientName string `json:"recipient_name"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
}

// decodeTransferRequest reads and decodes the JSON body, sanitizing every
// string field.
func decodeTransferRequest(r *http.Request) (transferRequest, error) {
	var req transferRequest

	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, err
	}

	req.Recipient = sanitizeInput(req.Recipient)
	req.RecipientName = sanitizeInput(req.RecipientName)
	req.Amount = strings.TrimSpace(req.Amount)
	req.Description = sanitizeInput(req.Description)

	return req, nil
}

// accountID identifies the acting account. Authentication happens upstream;
// the gateway forwards the verified account in this header.
func accountID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Account-ID"))
}

// parseLimit reads a list-size parameter with a default and a hard cap.
func parseLimit(query url.Values, def, max int) int {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// sanitizeInput removes potentially dangerous characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	// Remove control characters except tab, newline, carriage return
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1 // remove character
		}
		return r
	}, s)
	return result
}
