//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/knockmap/knockmap/internal/audit"
	"github.com/knockmap/knockmap/internal/edit"
)

func TestMongoAuditSink(t *testing.T) {
	skipIfNoMongo(t)
	ctx := context.Background()

	collection := fmt.Sprintf("edits_%d", time.Now().UnixNano())
	sink, err := audit.NewMongoSink(ctx, mongoURI(t), mongoDatabase(t), collection)
	if err != nil {
		t.Fatalf("connecting to MongoDB: %v", err)
	}
	defer sink.Close(ctx)

	at := time.Now().UTC().Truncate(time.Millisecond)
	res := edit.Result{
		Attempted: 2,
		Outcomes: []edit.Outcome{
			{Key: "Ana Lopez", Action: "save", Message: "Saved changes for Ana Lopez"},
			{Key: "Ben Ortiz", Action: "save", Message: "Error saving changes for Ben Ortiz: boom", Err: errors.New("boom")},
		},
	}
	if err := sink.Record(ctx, audit.Events(audit.EntityTarget, "req-1", at, res)); err != nil {
		t.Fatalf("recording events: %v", err)
	}

	n, err := sink.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 documents, got %d", n)
	}

	events, err := sink.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.RequestID != "req-1" || e.Entity != audit.EntityTarget || !e.Time.Equal(at) {
			t.Errorf("unexpected event: %+v", e)
		}
	}
}
