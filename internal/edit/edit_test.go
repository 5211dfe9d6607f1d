package edit

import (
	"errors"
	"testing"
)

func TestResultFailed(t *testing.T) {
	r := Result{Outcomes: []Outcome{
		{Key: "Denver", Message: "Updated market 'Denver'"},
		{Key: "Austin", Message: "Error processing Inserted new market 'Austin': boom", Err: errors.New("boom")},
	}}
	failed := r.Failed()
	if len(failed) != 1 || failed[0].Key != "Austin" {
		t.Errorf("Failed() = %+v, want only Austin", failed)
	}
	if r.Empty() {
		t.Error("result with outcomes should not be empty")
	}
	if !r.Outcomes[0].OK() || r.Outcomes[1].OK() {
		t.Error("OK() mismatch")
	}
}

func TestText(t *testing.T) {
	if got := Text("  Denver \t"); got != "Denver" {
		t.Errorf("Text() = %q", got)
	}
}
