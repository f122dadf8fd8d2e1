// Command main runs the database seeder for Bazaar.
package main

import (
	"flag"
	"log"

	"bazaar/internal/config"
	"bazaar/internal/database"
	"bazaar/internal/seed"
)

func main() {
	numAuthors := flag.Int("authors", 25, "Number of author profiles to create")
	numListings := flag.Int("listings", 100, "Number of listings to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d authors, %d listings, clean=%v\n", *numAuthors, *numListings, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)
	if err := s.Seed(seed.Options{
		NumAuthors:  *numAuthors,
		NumListings: *numListings,
		ShouldClean: *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Done. The database is populated with test data.")
}
