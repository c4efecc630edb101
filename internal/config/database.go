package config

import (
	"log"

	"github.com/talktera/talktera-scheduling-service/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDatabase opens the postgres connection and migrates the schema.
func InitDatabase(cfg *Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&domain.Therapist{},
		&domain.Patient{},
		&domain.Address{},
		&domain.Hour{},
		&domain.Appointment{},
		&domain.Recurrence{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// The conflict check is read-then-write; this partial unique index is
	// the backstop that keeps two concurrent accepted bookings off the same
	// slot.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_accepted_slot
		ON appointments (therapist_id, scheduled_to)
		WHERE status = 'ACCEPTED' AND deleted_at IS NULL`).Error
	if err != nil {
		log.Fatalf("Failed to create accepted-slot index: %v", err)
	}

	return db
}
