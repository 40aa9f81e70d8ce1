package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the constraints AutoMigrate cannot express. The
// exclusion constraint is the last line of defence against double booking:
// two active bookings of one venue on one day may not overlap.
func MigrateConstraints(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return err
	}

	return db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_overlap') THEN
				ALTER TABLE bookings
				ADD CONSTRAINT bookings_no_overlap
				EXCLUDE USING gist (
					venue_id WITH =,
					event_date WITH =,
					int4range(start_minute, end_minute) WITH &&
				) WHERE (status IN ('PENDING', 'CONFIRMED'));
			END IF;
		END
		$$;
	`).Error
}
