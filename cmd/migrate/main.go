package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pratik-mahalle/skuprice/internal/config"
	"github.com/pratik-mahalle/skuprice/internal/repository/postgres"
	"github.com/pratik-mahalle/skuprice/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := postgres.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	applied, err := postgres.RunMigrations(context.Background(), db, migrations.FS())
	for _, name := range applied {
		fmt.Printf("✓ Migration %s completed successfully\n", name)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		db.Close()
		os.Exit(1)
	}

	if len(applied) == 0 {
		fmt.Println("No pending migrations")
		return
	}
	fmt.Println("\nAll migrations completed successfully!")
}
