// Package http serves the JSON transfer API.
//
// This file implements the builder for JSON responses. It provides a
// fluent API for setting status, headers and payload, plus the mapping
// from transfer outcomes to HTTP status codes.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"payflow/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Payload sets the response body, serialized as JSON on Write.
func (b *JSONResponseBuilder) Payload(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.payload != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}

	w.WriteHeader(b.statusCode)
	if b.payload != nil {
		_ = json.NewEncoder(w).Encode(b.payload)
	}
}

// errorBody is the envelope for plain error responses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Payload(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(code, message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, code, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(code, message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, code, message)
}

// InternalError creates a 500 Internal Server Error response.
func InternalError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal_error", message)
}

// transferJSON is the wire shape of a transfer record.
type transferJSON struct {
	ID              string `json:"id"`
	SenderAccountID string `json:"sender_account_id"`
	Recipient       string `json:"recipient"`
	RecipientName   string `json:"recipient_name,omitempty"`
	AmountCents     int64  `json:"amount_cents"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	Description     string `json:"description,omitempty"`
	Reference       string `json:"reference"`
	CreatedAt       string `json:"created_at"`
}

func toTransferJSON(t core.Transfer) transferJSON {
	return transferJSON{
		ID:              t.ID,
		SenderAccountID: t.SenderAccountID,
		Recipient:       t.RecipientHandle,
		RecipientName:   t.RecipientName,
		AmountCents:     t.Amount.Cents,
		Amount:          t.Amount.String(),
		Status:          string(t.Status),
		Description:     t.Description,
		Reference:       t.Reference,
		CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// outcomeBody is the POST /api/transfers response for every outcome class.
type outcomeBody struct {
	Status          string        `json:"status"`
	Transfer        *transferJSON `json:"transfer,omitempty"`
	NewBalanceCents *int64        `json:"new_balance_cents,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	Detail          string        `json:"detail,omitempty"`
	RemainingCents  *int64        `json:"remaining_daily_cents,omitempty"`
	ResetAt         string        `json:"reset_at,omitempty"`
	Retryable       bool          `json:"retryable,omitempty"`
	Indeterminate   bool          `json:"indeterminate,omitempty"`
	Reference       string        `json:"reference,omitempty"`
}

// OutcomeResponse maps a transfer outcome onto a status code and JSON body.
//
// Completed transfers return 201. Input rejections return 400, policy
// rejections 422, admission rejections 429 with Retry-After. Failures
// return 502 when retrying is safe and 504 when the outcome is
// indeterminate and the caller must reconcile by reference.
func OutcomeResponse(o core.Outcome) *JSONResponseBuilder {
	body := outcomeBody{Status: string(o.Status)}

	switch o.Status {
	case core.OutcomeCompleted:
		tj := toTransferJSON(*o.Transfer)
		body.Transfer = &tj
		balance := o.NewBalance.Cents
		body.NewBalanceCents = &balance
		return NewJSONResponse().Status(http.StatusCreated).Payload(body)

	case core.OutcomeRejected:
		body.Reason = string(o.Reason)
		body.Detail = o.Detail

		switch o.Reason {
		case core.RejectInvalidRecipient, core.RejectInvalidAmount, core.RejectInvalidDescription:
			return NewJSONResponse().Status(http.StatusBadRequest).Payload(body)

		case core.RejectRateLimited:
			b := NewJSONResponse().Status(http.StatusTooManyRequests).Payload(body)
			if !o.ResetAt.IsZero() {
				body.ResetAt = o.ResetAt.UTC().Format(time.RFC3339)
				retryAfter := int(time.Until(o.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				b.Payload(body).Header("Retry-After", strconv.Itoa(retryAfter))
			}
			return b

		default:
			// self_transfer, insufficient_funds, daily_limit_exceeded
			if o.Reason == core.RejectDailyLimitExceeded {
				remaining := o.Remaining.Cents
				body.RemainingCents = &remaining
			}
			return NewJSONResponse().Status(http.StatusUnprocessableEntity).Payload(body)
		}

	default: // core.OutcomeFailed
		body.Retryable = o.Retryable
		body.Indeterminate = o.Indeterminate
		body.Reference = o.Reference
		status := http.StatusBadGateway
		if o.Indeterminate {
			status = http.StatusGatewayTimeout
		}
		return NewJSONResponse().Status(status).Payload(body)
	}
}
