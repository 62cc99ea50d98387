package amqp

import (
	"testing"
	"time"
)

func TestNewTransferCompletedMessage(t *testing.T) {
	msg := NewTransferCompletedMessage("tx-1", "TXN-ABC123", "acc-1", "shop@bank", "Corner Shop", 4250, "weekly groceries")

	if msg.TransferID != "tx-1" {
		t.Errorf("TransferID = %v, want tx-1", msg.TransferID)
	}
	if msg.Reference != "TXN-ABC123" {
		t.Errorf("Reference = %v, want TXN-ABC123", msg.Reference)
	}
	if msg.AmountCents != 4250 {
		t.Errorf("AmountCents = %v, want 4250", msg.AmountCents)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestTransferCompletedMessage_JSON(t *testing.T) {
	timestamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &TransferCompletedMessage{
		TransferID:      "tx-9",
		Reference:       "TXN-XYZ789",
		SenderAccountID: "acc-9",
		RecipientHandle: "cafe@bank",
		RecipientName:   "Corner Cafe",
		AmountCents:     300_00,
		Description:     "team lunch",
		Timestamp:       timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := TransferCompletedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("TransferCompletedMessageFromJSON() error = %v", err)
	}

	if parsed.TransferID != msg.TransferID {
		t.Errorf("Parsed TransferID = %v, want %v", parsed.TransferID, msg.TransferID)
	}
	if parsed.RecipientHandle != msg.RecipientHandle {
		t.Errorf("Parsed RecipientHandle = %v, want %v", parsed.RecipientHandle, msg.RecipientHandle)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestTransferCompletedMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"amount_cents": "not_a_number"}`)

	_, err := TransferCompletedMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("TransferCompletedMessageFromJSON() should fail with invalid JSON")
	}
}
