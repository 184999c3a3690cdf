// Package memstore is an in-process backend used for local runs
// (BACKEND=memory) and as the store behind the service and handler tests.
// Rows are kept as decoded JSON objects, the same shape the hosted store
// returns, so callers exercise their real encoding paths.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/google/uuid"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

var timestamped = map[string]bool{
	backend.TableQuestions: true,
	backend.TableProfiles:  true,
	backend.TableResults:   true,
}

var uuidKeyed = map[string]bool{
	backend.TableProfiles: true,
}

type row = map[string]any

// Call records one operation that reached the store.
type Call struct {
	Op    string
	Table string
}

type fault struct {
	op    string
	table string
	err   error
}

type Store struct {
	mu     sync.Mutex
	tables map[string][]row
	nextID map[string]int64
	faults []fault
	calls  []Call

	Now func() time.Time
}

func New() *Store {
	return &Store{
		tables: make(map[string][]row),
		nextID: make(map[string]int64),
		Now:    time.Now,
	}
}

// FailNext makes the next op ("select", "count", "insert", "delete") on table
// fail with err. An empty table matches any table.
func (s *Store) FailNext(op, table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{op: op, table: table, err: err})
}

func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Store) Select(ctx context.Context, q backend.Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := backend.CheckQuery(q); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("select", q.Table); err != nil {
		return err
	}

	matched, err := s.match(q.Table, q.Filters)
	if err != nil {
		return err
	}
	if q.Order != nil {
		col, asc := q.Order.Column, q.Order.Ascending
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(matched[i][col], matched[j][col])
			if asc {
				return c < 0
			}
			return c > 0
		})
	}

	out := make([]row, 0, len(matched))
	for _, r := range matched {
		projected := project(r, q.Columns)
		for _, e := range q.Embeds {
			rel, _ := backend.LookupRelation(q.Table, e.Relation)
			projected[e.Relation] = s.embed(r, rel, e.Columns)
		}
		out = append(out, projected)
	}
	return roundTrip(out, dest)
}

func (s *Store) Count(ctx context.Context, q backend.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := backend.CheckQuery(q); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("count", q.Table); err != nil {
		return 0, err
	}
	matched, err := s.match(q.Table, q.Filters)
	return int64(len(matched)), err
}

func (s *Store) Insert(ctx context.Context, table string, rows any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !backend.ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("insert", table); err != nil {
		return err
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode %s rows: %w", table, err)
	}
	single := !strings.HasPrefix(strings.TrimSpace(string(raw)), "[")
	var incoming []row
	if single {
		var r row
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		incoming = []row{r}
	} else if err := json.Unmarshal(raw, &incoming); err != nil {
		return err
	}

	for _, r := range incoming {
		if err := s.checkForeignKeys(table, r); err != nil {
			return err
		}
	}
	for _, r := range incoming {
		if isZero(r["id"]) {
			if uuidKeyed[table] {
				r["id"] = uuid.NewString()
			} else {
				s.nextID[table]++
				r["id"] = float64(s.nextID[table])
			}
		}
		if timestamped[table] && isZero(r["created_at"]) {
			r["created_at"] = s.Now().UTC().Format(timestampLayout)
		}
		s.tables[table] = append(s.tables[table], r)
	}

	if single {
		return roundTrip(incoming[0], rows)
	}
	return roundTrip(incoming, rows)
}

func (s *Store) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(filters) == 0 {
		return backend.ErrMissingFilter
	}
	if err := backend.CheckQuery(backend.Query{Table: table, Filters: filters}); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("delete", table); err != nil {
		return err
	}

	kept := s.tables[table][:0]
	for _, r := range s.tables[table] {
		ok, err := matches(r, filters)
		if err != nil {
			return err
		}
		if !ok {
			kept = append(kept, r)
		}
	}
	s.tables[table] = kept
	return nil
}

// enter records the call and consumes a matching fault. Callers hold s.mu.
func (s *Store) enter(op, table string) error {
	s.calls = append(s.calls, Call{Op: op, Table: table})
	for i, f := range s.faults {
		if f.op == op && (f.table == "" || f.table == table) {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			return f.err
		}
	}
	return nil
}

func (s *Store) match(table string, filters []backend.Filter) ([]row, error) {
	var out []row
	for _, r := range s.tables[table] {
		ok, err := matches(r, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) embed(parent row, rel backend.Relation, columns []string) any {
	local := parent[rel.LocalKey]
	var related []row
	for _, r := range s.tables[rel.Table] {
		if compare(r[rel.ForeignKey], local) == 0 {
			related = append(related, project(r, columns))
		}
	}
	if rel.Many {
		if related == nil {
			return []row{}
		}
		return related
	}
	if len(related) == 0 {
		return nil
	}
	return related[0]
}

// checkForeignKeys mirrors the constraint the hosted schema declares on
// options.question_id.
func (s *Store) checkForeignKeys(table string, r row) error {
	for parent, rels := range backend.Relations {
		for _, rel := range rels {
			if !rel.Many || rel.Table != table {
				continue
			}
			found := false
			for _, p := range s.tables[parent] {
				if compare(p[rel.LocalKey], r[rel.ForeignKey]) == 0 {
					found = true
					break
				}
			}
			if !found {
				return &backend.Error{
					Status:  409,
					Code:    "23503",
					Message: fmt.Sprintf("insert or update on table %q violates foreign key constraint on %q", table, rel.ForeignKey),
				}
			}
		}
	}
	return nil
}

func matches(r row, filters []backend.Filter) (bool, error) {
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false, err
		}
		c := compare(r[f.Column], want)
		switch f.Op {
		case backend.OpEq:
			if c != 0 {
				return false, nil
			}
		case backend.OpGte:
			if c < 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

func project(r row, columns []string) row {
	out := make(row, len(r))
	if len(columns) == 0 {
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

// normalize gives a Go value the representation it has after a JSON round trip.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}

func roundTrip(src, dest any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func isZero(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case float64:
		return val == 0
	case string:
		return val == "" || val == "0001-01-01T00:00:00Z" || val == uuid.Nil.String()
	}
	return false
}

// compare orders numbers numerically, timestamps chronologically and
// everything else by its string form. nil sorts first.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			if tx, okx := parseTime(x); okx {
				if ty, oky := parseTime(y); oky {
					return tx.Compare(ty)
				}
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
