package amqp

import (
	"encoding/json"
	"time"
)

// TransferCompletedMessage carries a completed transfer to the enrichment
// worker. It is self-contained so the worker can build the expense record
// without a ledger read.
type TransferCompletedMessage struct {
	TransferID      string    `json:"transfer_id"`
	Reference       string    `json:"reference"`
	SenderAccountID string    `json:"sender_account_id"`
	RecipientHandle string    `json:"recipient_handle"`
	RecipientName   string    `json:"recipient_name"`
	AmountCents     int64     `json:"amount_cents"`
	Description     string    `json:"description"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewTransferCompletedMessage builds the event for one completed transfer.
func NewTransferCompletedMessage(transferID, reference, senderAccountID, recipientHandle, recipientName string, amountCents int64, description string) *TransferCompletedMessage {
	return &TransferCompletedMessage{
		TransferID:      transferID,
		Reference:       reference,
		SenderAccountID: senderAccountID,
		RecipientHandle: recipientHandle,
		RecipientName:   recipientName,
		AmountCents:     amountCents,
		Description:     description,
		Timestamp:       time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *TransferCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransferCompletedMessageFromJSON creates a message from JSON bytes.
func TransferCompletedMessageFromJSON(data []byte) (*TransferCompletedMessage, error) {
	var msg TransferCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
