package main

import (
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Applies the referral schema (users, pending_verifications) to the
// postgres storage variant. The memory variant needs no migrations.
func main() {
	var storageURL, migrationPath string
	flag.StringVar(&storageURL, "storage", os.Getenv("POSTGRES_URL"), "postgres url, defaults to POSTGRES_URL")
	flag.StringVar(&migrationPath, "migrations", "./migrations", "path to migration files")
	flag.Parse()

	if storageURL == "" {
		panic("storage url is required")
	}

	m, err := migrate.New("file://"+migrationPath, storageURL)
	if err != nil {
		panic(err)
	}
	err = m.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		panic(err)
	}
}
