package transaction

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// Database hands repositories the transaction bound to ctx, or the plain
// connection when there is none.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetTx(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return d.db.WithContext(ctx)
}

// WithTx runs fn in one transaction. Repositories called with the ctx passed
// to fn join it.
func (d *Database) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.GetTx(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}
