package roster

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/knockmap/knockmap/internal/edit"
)

// Actions recorded on outcomes.
const (
	ActionSave   = "save"
	ActionReject = "reject"
)

// Diff matches edited rows to original rows by name and returns the edited
// rows whose editable cells differ. Cells are compared as trimmed text.
// Names not in original are returned separately; the first edited row for
// a name wins.
func Diff(original, edited []Closer) (changed []Closer, unknown []string) {
	byName := make(map[string]Closer, len(original))
	for _, c := range original {
		if _, dup := byName[c.Name]; !dup {
			byName[c.Name] = c
		}
	}

	seen := make(map[string]bool, len(edited))
	for _, e := range edited {
		e.Name = edit.Text(e.Name)
		e.Market = edit.Text(e.Market)
		e.Channel = Channel(edit.Text(string(e.Channel)))
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true

		orig, ok := byName[e.Name]
		if !ok {
			unknown = append(unknown, e.Name)
			continue
		}
		if cells(orig) == cells(e) {
			continue
		}
		// Identity and picture are not editable.
		e.SalesforceID = orig.SalesforceID
		e.ProfilePicture = orig.ProfilePicture
		changed = append(changed, e)
	}
	return changed, unknown
}

// cells renders the editable columns as the text the editor compares.
func cells(c Closer) [7]string {
	return [7]string{
		c.Market,
		string(c.Channel),
		strconv.FormatBool(c.Active),
		strconv.FormatInt(c.Goal, 10),
		strconv.FormatInt(c.Rank, 10),
		strconv.FormatInt(c.FMGoal, 10),
		strconv.FormatInt(c.FMRank, 10),
	}
}

// Validate checks an edited row against the market list.
func Validate(c Closer, marketNames map[string]bool) error {
	if c.Market != NoMarket && !marketNames[c.Market] {
		return fmt.Errorf("unknown market %q", c.Market)
	}
	if !c.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", c.Channel)
	}
	if c.Goal < 0 || c.FMGoal < 0 {
		return errors.New("goals cannot be negative")
	}
	if c.Rank < 0 || c.FMRank < 0 {
		return errors.New("ranks cannot be negative")
	}
	return nil
}

// Review diffs and validates a submitted table. It returns the rows to save
// and an outcome for every row that was refused.
func Review(original, edited []Closer, marketNames map[string]bool) ([]Closer, []edit.Outcome) {
	changed, unknown := Diff(original, edited)

	var rejected []edit.Outcome
	for _, name := range unknown {
		err := fmt.Errorf("%q is not on the roster", name)
		rejected = append(rejected, refuse(name, err))
	}

	valid := changed[:0:0]
	for _, c := range changed {
		if err := Validate(c, marketNames); err != nil {
			rejected = append(rejected, refuse(c.Name, err))
			continue
		}
		valid = append(valid, c)
	}
	return valid, rejected
}

// Reconcile checks changed rows against the roster as it is now. Rows
// whose closer has left the roster since the snapshot are refused; the rest
// take their identity and picture from the current row.
func Reconcile(changed, current []Closer) ([]Closer, []edit.Outcome) {
	byName := make(map[string]Closer, len(current))
	for _, c := range current {
		if _, dup := byName[c.Name]; !dup {
			byName[c.Name] = c
		}
	}

	var rejected []edit.Outcome
	kept := changed[:0:0]
	for _, c := range changed {
		cur, ok := byName[c.Name]
		if !ok {
			rejected = append(rejected, refuse(c.Name, fmt.Errorf("%q is no longer on the roster", c.Name)))
			continue
		}
		c.SalesforceID = cur.SalesforceID
		c.ProfilePicture = cur.ProfilePicture
		kept = append(kept, c)
	}
	return kept, rejected
}

func refuse(name string, err error) edit.Outcome {
	return edit.Outcome{
		Key:     name,
		Action:  ActionReject,
		Message: fmt.Sprintf("Error saving changes for %s: %v", name, err),
		Err:     err,
	}
}
