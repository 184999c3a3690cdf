// Package gormstore implements the backend contract directly on Postgres
// through GORM, for deployments that own their database.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/anjiri1684/psych_admin/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tableModels = map[string]func() any{
	backend.TableQuestions: func() any { return &models.Question{} },
	backend.TableOptions:   func() any { return &models.Option{} },
	backend.TableProfiles:  func() any { return &models.Profile{} },
	backend.TableResults:   func() any { return &models.Result{} },
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Select(ctx context.Context, q backend.Query, dest any) error {
	if err := backend.CheckQuery(q); err != nil {
		return err
	}
	tx := s.scoped(ctx, q.Table, q.Filters)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	for _, e := range q.Embeds {
		rel, _ := backend.LookupRelation(q.Table, e.Relation)
		tx = tx.Preload(rel.Field)
	}
	if q.Order != nil {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.Order.Column}, Desc: !q.Order.Ascending})
	}
	return wrap(tx.Find(dest).Error)
}

func (s *Store) Count(ctx context.Context, q backend.Query) (int64, error) {
	if err := backend.CheckQuery(q); err != nil {
		return 0, err
	}
	var count int64
	err := s.scoped(ctx, q.Table, q.Filters).Count(&count).Error
	return count, wrap(err)
}

func (s *Store) Insert(ctx context.Context, table string, rows any) error {
	if !backend.ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	err := s.db.WithContext(ctx).Table(table).Omit(clause.Associations).Create(rows).Error
	return wrap(err)
}

func (s *Store) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	if len(filters) == 0 {
		return backend.ErrMissingFilter
	}
	if err := backend.CheckQuery(backend.Query{Table: table, Filters: filters}); err != nil {
		return err
	}
	newModel, ok := tableModels[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	err := s.scoped(ctx, "", filters).Delete(newModel()).Error
	return wrap(err)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx backend.Client) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) scoped(ctx context.Context, table string, filters []backend.Filter) *gorm.DB {
	tx := s.db.WithContext(ctx)
	if table != "" {
		tx = tx.Table(table)
	}
	for _, f := range filters {
		switch f.Op {
		case backend.OpGte:
			tx = tx.Where(clause.Gte{Column: clause.Column{Name: f.Column}, Value: f.Value})
		default:
			tx = tx.Where(clause.Eq{Column: clause.Column{Name: f.Column}, Value: f.Value})
		}
	}
	return tx
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &backend.Error{Status: 500, Message: err.Error()}
}
