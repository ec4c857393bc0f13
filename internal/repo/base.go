package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// Base is embedded by every domain repository. It carries the handle,
// which is either the pool or an open transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB scopes the handle to ctx. A nil ctx returns it unscoped.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds to tx; nil keeps the current handle.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// Take loads the first row matching where into dest. A miss surfaces as
// gorm.ErrRecordNotFound.
func (b Base) Take(ctx context.Context, dest any, where string, args ...any) error {
	return b.DB(ctx).Where(where, args...).Take(dest).Error
}

// Exists counts rows of model matching where and reports whether any do.
func (b Base) Exists(ctx context.Context, model any, where string, args ...any) (bool, error) {
	var n int64
	if err := b.DB(ctx).Model(model).Where(where, args...).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike makes value match literally inside a LIKE pattern written
// with ESCAPE '\'.
func EscapeLike(value string) string {
	return likeEscaper.Replace(value)
}
