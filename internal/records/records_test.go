package records

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/callflow/internal/session"
)

func TestSQLiteStore_PatientRoundTrip(t *testing.T) {
	store, err := OpenSQLite("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	p := &session.Patient{Name: "Dana Whitfield", Phone: "+15551230001"}
	if err := store.UpsertPatient(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.ID == "" {
		t.Fatal("upsert should assign an ID")
	}

	got, err := store.PatientByPhone(ctx, "+15551230001")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || got.Name != "Dana Whitfield" || got.ID != p.ID {
		t.Fatalf("unexpected patient: %+v", got)
	}
}

func TestSQLiteStore_PatientByPhone_Unknown(t *testing.T) {
	store, err := OpenSQLite("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	got, err := store.PatientByPhone(context.Background(), "+15550000000")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown phone, got %+v", got)
	}
}

func TestSQLiteStore_UpsertPatient_UpdatesName(t *testing.T) {
	store, err := OpenSQLite("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.UpsertPatient(ctx, &session.Patient{Name: "Old Name", Phone: "+15551230002"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertPatient(ctx, &session.Patient{Name: "New Name", Phone: "+15551230002"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.PatientByPhone(ctx, "+15551230002")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Name != "New Name" {
		t.Fatalf("name = %q, want updated name", got.Name)
	}
}

func TestSQLiteStore_OutcomeRoundTrip(t *testing.T) {
	store, err := OpenSQLite("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	endedAt := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	outcome := Outcome{
		CallID:    "call-1",
		PatientID: "patient-1",
		EndReason: "completed",
		Transcript: []session.Turn{
			{Role: session.RoleAssistant, Text: "Hello, this is the clinic.", Timestamp: endedAt.Add(-time.Minute)},
			{Role: session.RoleUser, Text: "Hi, yes I can make it.", Timestamp: endedAt.Add(-30 * time.Second)},
		},
		EndedAt: endedAt,
	}
	if err := store.SaveOutcome(ctx, outcome); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.OutcomesByPatient(ctx, "patient-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(got))
	}
	if got[0].EndReason != "completed" || len(got[0].Transcript) != 2 {
		t.Fatalf("unexpected outcome: %+v", got[0])
	}
	if got[0].Transcript[1].Text != "Hi, yes I can make it." {
		t.Fatalf("transcript order lost: %+v", got[0].Transcript)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.AddPatient(&session.Patient{ID: "p1", Name: "Ray Okafor", Phone: "+15551230003"})

	got, err := store.PatientByPhone(ctx, "+15551230003")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || got.ID != "p1" {
		t.Fatalf("unexpected patient: %+v", got)
	}

	missing, err := store.PatientByPhone(ctx, "+15559999999")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown phone, got (%+v, %v)", missing, err)
	}

	if err := store.SaveOutcome(ctx, Outcome{CallID: "c1", EndReason: "hung_up"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if outcomes := store.Outcomes(); len(outcomes) != 1 || outcomes[0].CallID != "c1" {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
}
