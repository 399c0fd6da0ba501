package goosemigrate

import (
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

type Migrator struct {
	postgresURL    string
	migrationsPath string
}

func New(postgresURL, migrationsPath string) *Migrator {
	return &Migrator{
		postgresURL:    postgresURL,
		migrationsPath: migrationsPath,
	}
}

func (m *Migrator) Up() error {
	db, err := goose.OpenDBWithDriver("postgres", m.postgresURL)
	if err != nil {
		return fmt.Errorf("failed to open DB for migration: %w", err)
	}

	if err := goose.Up(db, m.migrationsPath); err != nil {
		return fmt.Errorf("failed to up migrations: %w", err)
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close db for migration: %w", err)
	}

	return nil
}

func (m *Migrator) Down() error {
	db, err := goose.OpenDBWithDriver("postgres", m.postgresURL)
	if err != nil {
		return fmt.Errorf("failed to open DB for migration: %w", err)
	}

	if err := goose.Down(db, m.migrationsPath); err != nil {
		return fmt.Errorf("failed to down migrations: %w", err)
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close db for migration: %w", err)
	}

	return nil
}
