// Command migrate creates the notes table and the indexes the sharing
// queries rely on.
package main

import (
	"flag"
	"log"

	"buddyboard-be/internal/config"
	"buddyboard-be/internal/model"
	"buddyboard-be/pkg/database"

	"gorm.io/gorm"
)

// postMigrationSQL holds what AutoMigrate cannot express.
var postMigrationSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_notes_collaborators ON notes USING GIN (collaborators jsonb_path_ops);`,
	`CREATE INDEX IF NOT EXISTS idx_notes_owner_updated ON notes (owner_id, updated_at DESC);`,
}

func main() {
	drop := flag.Bool("drop", false, "drop the notes table before migrating")
	flag.Parse()

	cfg := config.Load()
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.WithLogLevel(cfg.Database.LogLevel))
	if err != nil {
		log.Fatalf("Error: Failed to connect to database: %v", err)
	}

	if err := migrate(db, *drop); err != nil {
		log.Fatalf("Error: %v", err)
	}
	log.Println("Success: Database migration completed.")
}

func migrate(db *gorm.DB, drop bool) error {
	if drop {
		log.Println("Dropping notes table...")
		if err := db.Migrator().DropTable(&model.Note{}); err != nil {
			return err
		}
	}

	// gen_random_uuid() lives in pgcrypto before Postgres 13.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: Failed to create pgcrypto: %v. Continuing...", err)
	}

	log.Println("Running AutoMigrate...")
	if err := db.AutoMigrate(&model.Note{}); err != nil {
		return err
	}

	log.Println("Creating indexes...")
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}
	return nil
}
