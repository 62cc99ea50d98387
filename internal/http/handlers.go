package http

import (
	"errors"
	"net/http"

	"payflow/internal/core"
	applog "payflow/internal/log"
)

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	actor := accountID(r)
	if actor == "" {
		BadRequestError("missing_account", "X-Account-ID header is required").Write(w)
		return
	}

	logger := applog.FromContext(r.Context())

	req, err := decodeTransferRequest(r)
	if err != nil {
		logger.WarnContext(r.Context(), "Undecodable transfer request",
			applog.FieldError, err.Error(),
			applog.FieldAccountID, actor)
		BadRequestError("invalid_body", "request body must be valid JSON").Write(w)
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		BadRequestError("invalid_amount", "amount must be a positive decimal number").Write(w)
		return
	}

	outcome := s.svc.Execute(r.Context(), actor, req.Recipient, req.RecipientName, core.Money{Cents: cents}, req.Description)

	reference := outcome.Reference
	if outcome.Transfer != nil {
		reference = outcome.Transfer.Reference
	}
	applog.NewStructuredLogger(logger).LogTransferOutcome(r.Context(), actor, req.Recipient, cents, string(outcome.Status), reference)

	if outcome.Status == core.OutcomeCompleted {
		// The recipient list may have gained an entry.
		s.recipientsCache.Delete(actor)
	}

	OutcomeResponse(outcome).Write(w)
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	actor := accountID(r)
	if actor == "" {
		BadRequestError("missing_account", "X-Account-ID header is required").Write(w)
		return
	}

	limit := parseLimit(r.URL.Query(), 20, 100)
	transfers, err := s.svc.RecentTransfers(r.Context(), actor, limit)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Transfer list error",
			applog.FieldError, err.Error(),
			applog.FieldAccountID, actor)
		InternalError("could not list transfers").Write(w)
		return
	}

	items := make([]transferJSON, 0, len(transfers))
	for _, t := range transfers {
		items = append(items, toTransferJSON(t))
	}

	NewJSONResponse().Payload(struct {
		Transfers []transferJSON `json:"transfers"`
	}{Transfers: items}).Write(w)
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")
	if reference == "" {
		BadRequestError("missing_reference", "transfer reference is required").Write(w)
		return
	}

	transfer, err := s.svc.TransferByReference(r.Context(), reference)
	if err != nil {
		if errors.Is(err, core.ErrTransferNotFound) {
			NotFoundError("transfer_not_found", "no transfer with that reference").Write(w)
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Transfer lookup error",
			applog.FieldError, err.Error(),
			applog.FieldReference, reference)
		InternalError("could not look up transfer").Write(w)
		return
	}

	tj := toTransferJSON(transfer)
	NewJSONResponse().Payload(struct {
		Transfer transferJSON `json:"transfer"`
	}{Transfer: tj}).Write(w)
}

func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	actor := accountID(r)
	if actor == "" {
		BadRequestError("missing_account", "X-Account-ID header is required").Write(w)
		return
	}

	recipients, found := s.recipientsCache.Get(actor)
	if !found {
		var err error
		recipients, err = s.svc.SavedRecipients(r.Context(), actor)
		if err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Recipient list error",
				applog.FieldError, err.Error(),
				applog.FieldAccountID, actor)
			InternalError("could not list recipients").Write(w)
			return
		}
		s.recipientsCache.Set(actor, recipients)
	}

	type recipientJSON struct {
		Handle string `json:"handle"`
		Name   string `json:"name"`
	}
	items := make([]recipientJSON, 0, len(recipients))
	for _, rec := range recipients {
		items = append(items, recipientJSON{Handle: rec.Handle, Name: rec.Name})
	}

	NewJSONResponse().Payload(struct {
		Recipients []recipientJSON `json:"recipients"`
	}{Recipients: items}).Write(w)
}
