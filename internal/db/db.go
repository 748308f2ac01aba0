// internal/db/db.go
package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// EnsureProfilesView (re)creates the public profile projection. The view
// deliberately exposes no email column; everything that shows another
// user's identity reads from here.
func EnsureProfilesView(gdb *gorm.DB) error {
	return gdb.Exec(`
		CREATE OR REPLACE VIEW profiles AS
		SELECT id, full_name, bio, location, avatar_url, created_at, updated_at
		FROM users
	`).Error
}
