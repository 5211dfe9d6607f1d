// Package edit carries the outcome of applying a manager's edits to the
// warehouse, one entry per changed entity.
package edit

import "strings"

// NoChanges is reported when a submitted table matches its snapshot.
const NoChanges = "No changes detected."

// Outcome is the result of one mutation statement or one rejected row.
type Outcome struct {
	Key     string `json:"key"`
	Action  string `json:"action"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Err == nil }

// Result collects the outcomes of one submit in execution order.
type Result struct {
	Outcomes []Outcome
	// Attempted counts statements sent to the warehouse.
	Attempted int
}

// Empty reports whether the submit produced no outcomes at all.
func (r Result) Empty() bool { return len(r.Outcomes) == 0 }

// Failed returns the outcomes that carry an error.
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Text trims surrounding whitespace the way cells are compared.
func Text(s string) string {
	return strings.TrimSpace(s)
}
