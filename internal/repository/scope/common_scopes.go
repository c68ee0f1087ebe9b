package scope

import "gorm.io/gorm"

// OrderBySequenceAsc orders one cycle's events in the order they were written.
func OrderBySequenceAsc(db *gorm.DB) *gorm.DB {
	return db.Order("sequence ASC").Order("created_at ASC")
}
