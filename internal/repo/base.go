// Package repo holds the connection plumbing shared by gorm repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by repositories so the same queries run against the pool or a transaction.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB scopes the connection to ctx; a nil ctx keeps the connection's own.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// Bound returns a copy running on tx, or b itself when tx is nil.
func (b Base) Bound(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{conn: tx}
}
