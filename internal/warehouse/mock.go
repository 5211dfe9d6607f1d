package warehouse

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MockClient is a test double for the Client interface.
type MockClient struct {
	// Results maps a SQL fragment to the rows returned by any query
	// containing it. The longest matching fragment wins.
	Results  map[string][]Row
	QueryErr error
	PingErr  error
	// ExecErrs maps a fragment of the SQL or of any string argument to the
	// error the matching Exec returns.
	ExecErrs map[string]error
	Flavor   Dialect

	mu       sync.Mutex
	Queried  []Statement
	Executed []Statement
	Closed   bool
}

func (m *MockClient) Dialect() Dialect {
	if m.Flavor == "" {
		return Snowflake
	}
	return m.Flavor
}

func (m *MockClient) Ping(_ context.Context) error {
	return m.PingErr
}

func (m *MockClient) Query(_ context.Context, stmt Statement) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queried = append(m.Queried, stmt)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	key := longestMatch(m.Results, func(k string) bool { return strings.Contains(stmt.SQL, k) })
	if key == "" {
		return nil, nil
	}
	return m.Results[key], nil
}

func (m *MockClient) Exec(_ context.Context, stmt Statement) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Executed = append(m.Executed, stmt)
	key := longestMatch(m.ExecErrs, func(k string) bool {
		if strings.Contains(stmt.SQL, k) {
			return true
		}
		for _, a := range stmt.Args {
			if s, ok := a.(string); ok && strings.Contains(s, k) {
				return true
			}
		}
		return false
	})
	if key != "" {
		return 0, m.ExecErrs[key]
	}
	return 1, nil
}

func (m *MockClient) Close() error {
	m.Closed = true
	return nil
}

// QueryCount returns how many queries contained fragment.
func (m *MockClient) QueryCount(fragment string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.Queried {
		if strings.Contains(s.SQL, fragment) {
			n++
		}
	}
	return n
}

func longestMatch[V any](m map[string]V, match func(string) bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if match(k) {
			return k
		}
	}
	return ""
}

// String renders a statement for logs and test failures.
func (s Statement) String() string {
	return fmt.Sprintf("%s %v", s.SQL, s.Args)
}
