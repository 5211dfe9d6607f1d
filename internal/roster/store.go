package roster

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knockmap/knockmap/internal/edit"
	"github.com/knockmap/knockmap/internal/warehouse"
)

// Tables names the warehouse tables the roster reads.
type Tables struct {
	Users   string
	Targets string
}

// Store reads users and targets and writes target edits.
type Store struct {
	client  warehouse.Client
	tables  Tables
	roles   []string
	picture string
	now     func() time.Time
}

// NewStore creates a Store. Only users holding one of roles are listed and
// closers without a picture get defaultPicture.
func NewStore(client warehouse.Client, tables Tables, roles []string, defaultPicture string) *Store {
	return &Store{client: client, tables: tables, roles: roles, picture: defaultPicture, now: time.Now}
}

// Load reads users, pictures and targets concurrently and merges them into
// the editable roster.
func (s *Store) Load(ctx context.Context, marketNames map[string]bool) ([]Closer, error) {
	var (
		users    []User
		pictures map[string]string
		targets  []Target
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.Users(ctx)
		return err
	})
	g.Go(func() (err error) {
		pictures, err = s.Pictures(ctx)
		return err
	})
	g.Go(func() (err error) {
		targets, err = s.Targets(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(users, targets, pictures, marketNames, s.picture), nil
}

// Users returns active users with one of the configured roles.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	args := make([]any, len(s.roles))
	for i, r := range s.roles {
		args[i] = r
	}
	rows, err := s.client.Query(ctx, warehouse.Stmt(fmt.Sprintf(
		"SELECT DISTINCT FULL_NAME, SALESFORCE_ID FROM %s WHERE ROLE_TYPE IN (%s) AND TERM_DATE IS NULL",
		s.tables.Users, warehouse.Placeholders(len(args))), args...))
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}

	out := make([]User, 0, len(rows))
	for _, r := range rows {
		name, ok := r.String("FULL_NAME")
		if !ok {
			continue
		}
		id, _ := r.String("SALESFORCE_ID")
		out = append(out, User{Name: name, SalesforceID: id})
	}
	return out, nil
}

// Pictures returns profile picture URLs by full name. The first non-empty
// picture for a name wins.
func (s *Store) Pictures(ctx context.Context) (map[string]string, error) {
	rows, err := s.client.Query(ctx, warehouse.Stmt(
		fmt.Sprintf("SELECT FULL_NAME, PROFILE_PICTURE FROM %s", s.tables.Users)))
	if err != nil {
		return nil, fmt.Errorf("loading profile pictures: %w", err)
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		name, ok := r.String("FULL_NAME")
		if !ok {
			continue
		}
		pic, ok := r.String("PROFILE_PICTURE")
		if !ok || pic == "" {
			continue
		}
		if _, dup := out[name]; !dup {
			out[name] = pic
		}
	}
	return out, nil
}

// Targets returns every row of the targets table.
func (s *Store) Targets(ctx context.Context) ([]Target, error) {
	rows, err := s.client.Query(ctx, warehouse.Stmt(fmt.Sprintf(
		"SELECT CLOSER_ID, NAME, GOAL, RANK, FM_GOAL, FM_RANK, ACTIVE, TYPE, MARKET FROM %s",
		s.tables.Targets)))
	if err != nil {
		return nil, fmt.Errorf("loading targets: %w", err)
	}

	out := make([]Target, 0, len(rows))
	for _, r := range rows {
		name, ok := r.String("NAME")
		if !ok {
			continue
		}
		t := Target{Name: name}
		t.CloserID, _ = r.String("CLOSER_ID")
		t.Goal = optInt(r, "GOAL")
		t.Rank = optInt(r, "RANK")
		t.FMGoal = optInt(r, "FM_GOAL")
		t.FMRank = optInt(r, "FM_RANK")
		t.Active = optString(r, "ACTIVE")
		t.Type = optString(r, "TYPE")
		t.Market = optString(r, "MARKET")
		out = append(out, t)
	}
	return out, nil
}

// Save writes one upsert per closer keyed on name, in order. A failed
// statement does not stop the ones after it.
func (s *Store) Save(ctx context.Context, changed []Closer) edit.Result {
	var res edit.Result
	ts := s.now().Format(time.DateTime)
	for _, c := range changed {
		stmt := s.client.Dialect().Upsert(warehouse.Upsert{
			Table: s.tables.Targets,
			Key:   warehouse.Assignment{Column: "NAME", Value: c.Name},
			Set: []warehouse.Assignment{
				{Column: "GOAL", Value: c.Goal},
				{Column: "RANK", Value: c.Rank},
				{Column: "FM_GOAL", Value: c.FMGoal},
				{Column: "FM_RANK", Value: c.FMRank},
				{Column: "ACTIVE", Value: ActiveFlag(c.Active)},
				{Column: "TYPE", Value: string(c.Channel)},
				{Column: "MARKET", Value: c.Market},
				{Column: "TIMESTAMP", Value: ts},
				{Column: "PROFILE_PICTURE", Value: c.ProfilePicture},
			},
			InsertOnly: []warehouse.Assignment{
				{Column: "CLOSER_ID", Value: c.SalesforceID},
			},
		})

		res.Attempted++
		if _, err := s.client.Exec(ctx, stmt); err != nil {
			res.Outcomes = append(res.Outcomes, edit.Outcome{
				Key:     c.Name,
				Action:  ActionSave,
				Message: fmt.Sprintf("Error saving changes for %s: %v", c.Name, err),
				Err:     err,
			})
			continue
		}
		res.Outcomes = append(res.Outcomes, edit.Outcome{
			Key:     c.Name,
			Action:  ActionSave,
			Message: fmt.Sprintf("Saved changes for %s", c.Name),
		})
	}
	return res
}

func optInt(r warehouse.Row, col string) *int64 {
	n, ok := r.Int(col)
	if !ok {
		return nil
	}
	return &n
}

func optString(r warehouse.Row, col string) *string {
	s, ok := r.String(col)
	if !ok {
		return nil
	}
	return &s
}
