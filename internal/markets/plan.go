package markets

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/knockmap/knockmap/internal/edit"
	"github.com/knockmap/knockmap/internal/warehouse"
)

// Actions recorded on outcomes.
const (
	ActionDelete = "delete"
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionReject = "reject"
)

// Op is one mutation statement of a plan.
type Op struct {
	Action  string
	Market  string
	Stmt    warehouse.Statement
	Message string
}

// Plan is the set of statements that turns the original table into the
// edited one, plus the rows that were rejected while building it.
type Plan struct {
	Ops      []Op
	Rejected []edit.Outcome
}

// Empty reports whether the submit changed nothing.
func (p Plan) Empty() bool {
	return len(p.Ops) == 0 && len(p.Rejected) == 0
}

// Plan diffs edited against original by market name. Removed names become
// deletes, unseen names inserts, and names present in both an update when
// group, rank or notes differ. Deletes run first, then inserts, then updates.
// When a name appears more than once in edited, the first row wins.
func (s *Store) Plan(original []Market, edited []Edit) Plan {
	byName := make(map[string]Market, len(original))
	for _, m := range original {
		if _, dup := byName[edit.Text(m.Name)]; !dup {
			byName[edit.Text(m.Name)] = m
		}
	}

	var rows []Edit
	seen := make(map[string]bool, len(edited))
	for _, e := range edited {
		e = Edit{Name: edit.Text(e.Name), Group: edit.Text(e.Group), Rank: edit.Text(e.Rank), Notes: edit.Text(e.Notes)}
		if e.Name != "" && seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		rows = append(rows, e)
	}

	var plan Plan
	ts := s.now().Format(time.DateTime)

	var deleted []string
	for name := range byName {
		if !seen[name] {
			deleted = append(deleted, name)
		}
	}
	sort.Strings(deleted)
	for _, name := range deleted {
		plan.Ops = append(plan.Ops, Op{
			Action:  ActionDelete,
			Market:  name,
			Stmt:    warehouse.Stmt(fmt.Sprintf("DELETE FROM %s WHERE MARKET = ?", s.table), byName[name].Name),
			Message: fmt.Sprintf("Deleted market '%s'", name),
		})
	}

	var updates []Op
	for _, e := range rows {
		orig, exists := byName[e.Name]
		if exists && !changed(orig, e) {
			continue
		}

		if e.Name == "" {
			plan.Rejected = append(plan.Rejected, reject(e.Name, "Market name cannot be empty."))
			continue
		}
		rank, err := ParseRank(e.Rank)
		if err != nil {
			plan.Rejected = append(plan.Rejected, reject(e.Name,
				fmt.Sprintf("Invalid rank value for market '%s'. Rank must be an integer.", e.Name)))
			continue
		}

		if !exists {
			plan.Ops = append(plan.Ops, Op{
				Action: ActionInsert,
				Market: e.Name,
				Stmt: warehouse.Stmt(
					fmt.Sprintf("INSERT INTO %s (MARKET, MARKET_GROUP, RANK, NOTES, TIMESTAMP) VALUES (?, ?, ?, ?, ?)", s.table),
					e.Name, e.Group, nullable(rank), e.Notes, ts),
				Message: fmt.Sprintf("Inserted new market '%s'", e.Name),
			})
			continue
		}
		updates = append(updates, Op{
			Action: ActionUpdate,
			Market: e.Name,
			Stmt: warehouse.Stmt(
				fmt.Sprintf("UPDATE %s SET MARKET_GROUP = ?, RANK = ?, NOTES = ?, TIMESTAMP = ? WHERE MARKET = ?", s.table),
				e.Group, nullable(rank), e.Notes, ts, orig.Name),
			Message: fmt.Sprintf("Updated market '%s'", e.Name),
		})
	}
	plan.Ops = append(plan.Ops, updates...)
	return plan
}

// Apply executes each statement of the plan independently, in order.
func (s *Store) Apply(ctx context.Context, plan Plan) edit.Result {
	res := edit.Result{Outcomes: append([]edit.Outcome(nil), plan.Rejected...)}
	for _, op := range plan.Ops {
		res.Attempted++
		if _, err := s.client.Exec(ctx, op.Stmt); err != nil {
			res.Outcomes = append(res.Outcomes, edit.Outcome{
				Key:     op.Market,
				Action:  op.Action,
				Message: fmt.Sprintf("Error processing %s: %v", op.Message, err),
				Err:     err,
			})
			continue
		}
		res.Outcomes = append(res.Outcomes, edit.Outcome{Key: op.Market, Action: op.Action, Message: op.Message})
	}
	return res
}

// changed compares trimmed cells, so stored padding alone is not an edit.
func changed(orig Market, e Edit) bool {
	return edit.Text(orig.Group) != e.Group || edit.Text(orig.Notes) != e.Notes || orig.AsEdit().Rank != normalizeRank(e.Rank)
}

// normalizeRank makes "3.0" and "3" compare equal.
func normalizeRank(s string) string {
	rank, err := ParseRank(s)
	if err != nil {
		return s
	}
	return Market{Rank: rank}.AsEdit().Rank
}

func nullable(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func reject(key, msg string) edit.Outcome {
	return edit.Outcome{Key: key, Action: ActionReject, Message: msg, Err: fmt.Errorf("%s", msg)}
}
