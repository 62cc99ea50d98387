package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"payflow/internal/core"
)

type fakeStore struct {
	events []core.AuditEvent
	err    error
}

func (s *fakeStore) InsertAuditEvent(ctx context.Context, e core.AuditEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func TestRecord_PersistsEvent(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store)

	rec.RecordPaymentAttempt(context.Background(), "acc-1", "shop@bank", core.Money{Cents: 300_00}, StatusSuccess, "")

	if len(store.events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(store.events))
	}
	e := store.events[0]
	if e.Actor != "acc-1" || e.Action != ActionPaymentSent || e.Status != StatusSuccess {
		t.Errorf("unexpected event: %+v", e)
	}

	var details map[string]any
	if err := json.Unmarshal([]byte(e.Details), &details); err != nil {
		t.Fatalf("details not JSON: %v", err)
	}
	if details["recipient"] != "shop@bank" {
		t.Errorf("recipient = %v", details["recipient"])
	}
}

func TestRecord_SwallowsStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("store down")}
	rec := NewRecorder(store)

	// Must not panic or surface the error in any way.
	rec.Record(context.Background(), "acc-1", ActionPaymentSent, StatusFailure, nil)
}

func TestRecord_NilRecorder(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), "acc-1", ActionPaymentSent, StatusSuccess, nil)
}

func TestRecord_SurvivesCancelledCaller(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.Record(ctx, "acc-1", ActionPaymentSent, StatusSuccess, map[string]any{"k": "v"})

	if len(store.events) != 1 {
		t.Fatalf("event should still be written after caller cancellation, got %d", len(store.events))
	}
}
