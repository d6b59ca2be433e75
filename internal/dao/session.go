// Package dao holds the gorm-backed data access components. DAOs return raw gorm errors;
// translating ErrRecordNotFound into API errors is the engine's job.
package dao

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

func init() {
	database.RegisterModels(model.All()...)
}

type txKey struct{}

// session is embedded by every DAO. It resolves the gorm handle on Start and joins a
// transaction carried by the context.
type session struct {
	dsName string
	db     *gorm.DB
}

func (s *session) open(comp *database.Component) error {
	if s.db != nil {
		return nil
	}
	if comp == nil {
		return fmt.Errorf("database component not injected")
	}
	db, err := comp.GetDB(s.dsName)
	if err != nil {
		return fmt.Errorf("get gorm db %s failed: %w", s.dsName, err)
	}
	s.db = db
	return nil
}

func (s *session) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func staleRevision(entity, id string) error {
	return apperr.Conflict("%s[%s] was updated by another transaction concurrently", entity, id)
}

func paginate(db *gorm.DB, p query.Page) *gorm.DB {
	if c := p.OrderClause(); c != "" {
		db = db.Order(c)
	}
	if p.Start > 0 {
		db = db.Offset(p.Start)
	}
	if l := p.Limit(); l >= 0 {
		db = db.Limit(l)
	}
	return db
}

func eq(db *gorm.DB, column string, v string) *gorm.DB {
	if v == "" {
		return db
	}
	return db.Where(column+" = ?", v)
}

func like(db *gorm.DB, column string, v string) *gorm.DB {
	if v == "" {
		return db
	}
	return db.Where(column+" LIKE ?", v)
}

func tenant(db *gorm.DB, column string, f model.TenantFilter) *gorm.DB {
	db = eq(db, column, f.TenantID)
	db = like(db, column, f.TenantIDLike)
	if f.WithoutTenantID {
		db = db.Where("(" + column + " = '' OR " + column + " IS NULL)")
	}
	return db
}

// valueCondition renders the comparison of one variable filter against the value columns
// of alias.
func valueCondition(alias string, f variable.Filter) (string, []any) {
	var (
		parts []string
		args  []any
	)
	if f.Name != "" {
		parts = append(parts, alias+".name_ = ?")
		args = append(args, f.Name)
	}
	op := f.Op.SQL()
	switch f.Kind {
	case variable.KindString:
		col := alias + ".text_value"
		if f.Op.IgnoreCase() {
			col = "LOWER(" + col + ")"
		}
		parts = append(parts, alias+".var_type = ?", col+" "+op+" ?")
		args = append(args, string(variable.TypeString), f.Str)
	case variable.KindNumber:
		parts = append(parts, fmt.Sprintf("((%[1]s.var_type IN ?) AND %[1]s.long_value %[2]s ? OR %[1]s.var_type = ? AND %[1]s.double_value %[2]s ?)", alias, op))
		args = append(args,
			[]string{string(variable.TypeShort), string(variable.TypeInteger), string(variable.TypeLong)}, f.IntegralOperand(),
			string(variable.TypeDouble), f.Double)
	case variable.KindBoolean:
		parts = append(parts, alias+".var_type = ?", alias+".long_value "+op+" ?")
		args = append(args, string(variable.TypeBoolean), f.Long)
	case variable.KindDate:
		parts = append(parts, alias+".var_type = ?", alias+".long_value "+op+" ?")
		args = append(args, string(variable.TypeDate), f.Long)
	}
	return strings.Join(parts, " AND "), args
}

// variableExists restricts db to rows owning a variable in table that matches every filter.
// correlation ties the variable alias v to the outer row.
func variableExists(db *gorm.DB, table, correlation string, filters []variable.Filter) *gorm.DB {
	for _, f := range filters {
		cond, args := valueCondition("v", f)
		db = db.Where("EXISTS (SELECT 1 FROM "+table+" v WHERE "+correlation+" AND "+cond+")", args...)
	}
	return db
}

// Transactor runs a function inside one gorm transaction. DAO calls made with the
// function's context join it; nested calls reuse the outer transaction.
type Transactor interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}
