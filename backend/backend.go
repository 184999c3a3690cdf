// Package backend defines the table-scoped contract the dashboard uses to talk
// to the hosted relational store. Implementations live in the postgrest,
// gormstore and memstore subpackages.
package backend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

const (
	TableQuestions = "questions"
	TableOptions   = "options"
	TableProfiles  = "profiles"
	TableResults   = "results"
)

type Operator string

const (
	OpEq  Operator = "eq"
	OpGte Operator = "gte"
)

type Filter struct {
	Column string
	Op     Operator
	Value  any
}

func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }

type Order struct {
	Column    string
	Ascending bool
}

// Embed asks for a related table to be returned nested inside each row.
// Relation must be registered in Relations for the queried table.
type Embed struct {
	Relation string
	Columns  []string
}

type Query struct {
	Table   string
	Columns []string
	Embeds  []Embed
	Filters []Filter
	Order   *Order
}

// Client is the remote store. Every call either succeeds or returns an error
// value; nothing panics on a backend failure.
type Client interface {
	// Select decodes the matching rows into dest, a pointer to a slice.
	Select(ctx context.Context, q Query, dest any) error
	// Count returns the number of matching rows without fetching them.
	Count(ctx context.Context, q Query) (int64, error)
	// Insert writes rows (pointer to a struct or to a slice of structs) and
	// copies the backend-assigned columns back into them.
	Insert(ctx context.Context, table string, rows any) error
	// Delete removes the rows matching every filter. At least one filter is required.
	Delete(ctx context.Context, table string, filters ...Filter) error
}

// Transactor is implemented by clients that can run several writes atomically.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx Client) error) error
}

var (
	ErrUnconfigured  = errors.New("backend is not configured")
	ErrMissingFilter = errors.New("delete requires at least one filter")
)

// Error is a failure reported by the backend itself.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// Relation describes how an embedded table joins to its parent row.
type Relation struct {
	Table      string
	LocalKey   string
	ForeignKey string
	Many       bool
	// Field is the struct field that receives the embedded rows.
	Field string
}

var Relations = map[string]map[string]Relation{
	TableQuestions: {
		TableOptions: {Table: TableOptions, LocalKey: "id", ForeignKey: "question_id", Many: true, Field: "Options"},
	},
	TableResults: {
		TableProfiles: {Table: TableProfiles, LocalKey: "profile_id", ForeignKey: "id", Many: false, Field: "Profile"},
	},
}

func LookupRelation(table, relation string) (Relation, error) {
	rel, ok := Relations[table][relation]
	if !ok {
		return Relation{}, fmt.Errorf("unknown relation %q on table %q", relation, table)
	}
	return rel, nil
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to place in a query as a table
// or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// CheckQuery rejects queries whose identifiers or relations are not known.
func CheckQuery(q Query) error {
	if !ValidIdentifier(q.Table) {
		return fmt.Errorf("invalid table name %q", q.Table)
	}
	for _, c := range q.Columns {
		if c != "*" && !ValidIdentifier(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
	}
	for _, f := range q.Filters {
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("invalid filter column %q", f.Column)
		}
		if f.Op != OpEq && f.Op != OpGte {
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	if q.Order != nil && !ValidIdentifier(q.Order.Column) {
		return fmt.Errorf("invalid order column %q", q.Order.Column)
	}
	for _, e := range q.Embeds {
		if _, err := LookupRelation(q.Table, e.Relation); err != nil {
			return err
		}
	}
	return nil
}

// Unconfigured stands in when no endpoint or credentials were supplied.
// Every call fails with ErrUnconfigured so the dashboard can say so instead
// of showing empty tables.
type Unconfigured struct{}

func (Unconfigured) Select(context.Context, Query, any) error        { return ErrUnconfigured }
func (Unconfigured) Count(context.Context, Query) (int64, error)     { return 0, ErrUnconfigured }
func (Unconfigured) Insert(context.Context, string, any) error        { return ErrUnconfigured }
func (Unconfigured) Delete(context.Context, string, ...Filter) error { return ErrUnconfigured }

func IsConfigured(c Client) bool {
	_, ok := c.(Unconfigured)
	return !ok
}
