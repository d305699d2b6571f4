package db

import (
	"time"

	"gorm.io/gorm"
)

// ActiveOnly filters rows whose is_active column is true.
func ActiveOnly() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ?", true)
	}
}

// CreatedBefore filters rows created strictly before t.
func CreatedBefore(t time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("created_at < ?", t)
	}
}

// Limit caps the result size; n <= 0 leaves the query unbounded.
func Limit(n int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}
}
