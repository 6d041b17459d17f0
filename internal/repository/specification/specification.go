// Package specification holds composable query filters for the repositories.
package specification

import "gorm.io/gorm"

// Specification narrows or orders a query.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
