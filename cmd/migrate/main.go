package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"

	"growth-ledger/internal/config"
	"growth-ledger/internal/database"

	_ "github.com/lib/pq"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create or update tables from the models
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		log.Println("SQL migrations target PostgreSQL, skipping for", cfg.Database.Driver)
		return
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		log.Fatalf("Failed to list migrations: %v", err)
	}
	sort.Strings(files)

	for _, file := range files {
		migrationSQL, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("Failed to read migration file: %v", err)
		}

		log.Printf("Applying migration: %s", filepath.Base(file))
		if _, err := db.Exec(string(migrationSQL)); err != nil {
			log.Fatalf("Failed to apply %s: %v", filepath.Base(file), err)
		}
	}

	log.Printf("✅ %d migrations applied successfully!", len(files))
}
