package state

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// persistenceCloser holds the DB handle for cleanup. Implements io.Closer.
type persistenceCloser struct {
	db *sql.DB
}

func (c *persistenceCloser) Close() error {
	return c.db.Close()
}

// PersistenceBootstrap opens topology.db under stateDir, applies migrations,
// optionally applies a seed document, and returns a ready TopologyRepo plus
// an io.Closer for the DB handle.
//
// Steps:
//  1. Open/create topology.db with recommended pragmas.
//  2. Run embedded migrations.
//  3. Apply seedFile when non-empty.
func PersistenceBootstrap(stateDir, seedFile string) (repo *TopologyRepo, closer io.Closer, err error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state dir %s: %w", stateDir, err)
	}

	dbPath := filepath.Join(stateDir, "topology.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open topology.db: %w", err)
	}

	if err := MigrateTopologyDB(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate topology.db: %w", err)
	}

	repo = NewTopologyRepo(db)

	if seedFile != "" {
		seed, err := LoadSeedFile(seedFile)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := repo.ApplySeed(seed); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("apply seed: %w", err)
		}
		log.Printf("[state] seed applied from %s: %d exit nodes, %d sites, %d resources, %d targets",
			seedFile, len(seed.ExitNodes), len(seed.Sites), len(seed.Resources), len(seed.Targets))
	}

	return repo, &persistenceCloser{db: db}, nil
}
