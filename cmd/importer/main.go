package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/config"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/repository"
)

func main() {
	file := flag.String("file", "", "Path to the address register export (.csv or .shp)")
	configPath := flag.String("config", "configs", "Directory holding app.yaml")
	flag.Parse()

	if *file == "" {
		fmt.Println("Error: --file flag is required")
		os.Exit(1)
	}

	fmt.Printf("Starting import from file: %s\n", *file)

	points, skipped, err := repository.ReadAddressFile(*file)
	if err != nil {
		fmt.Printf("Error parsing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Parsed %d address points (%d rows skipped)\n", len(points), skipped)
	if len(points) == 0 {
		fmt.Println("Nothing to import")
		return
	}

	// Load config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DBSource == "" {
		fmt.Println("Error: db_source is not configured")
		os.Exit(1)
	}

	ctx := context.Background()

	// Connect to DB
	conn, err := pgx.Connect(ctx, cfg.DBSource)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	// Ensure tables exist
	if err := repository.Migrate(ctx, conn); err != nil {
		fmt.Printf("Error creating tables: %v\n", err)
		os.Exit(1)
	}

	index := repository.NewAddressIndex(conn)

	before, err := index.CountAddressPoints(ctx)
	if err != nil {
		fmt.Printf("Error counting address points: %v\n", err)
		os.Exit(1)
	}

	inserted, err := index.InsertAddressPoints(ctx, points)
	if err != nil {
		fmt.Printf("Error inserting address points: %v\n", err)
		os.Exit(1)
	}

	// Verify data
	after, err := index.CountAddressPoints(ctx)
	if err != nil {
		fmt.Printf("Error verifying import: %v\n", err)
		os.Exit(1)
	}
	if after-before != inserted {
		fmt.Printf("Error verifying import: expected %d new rows, got %d\n", inserted, after-before)
		os.Exit(1)
	}

	fmt.Printf("Successfully imported %d address points (%d total)\n", inserted, after)
}
