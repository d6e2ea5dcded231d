package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies every embedded schema file in filename order inside a
// single transaction. The statements are idempotent, so running it on every
// start is safe.
func (db *DB) Migrate(ctx context.Context) error {
	files, err := schemaFiles()
	if err != nil {
		return err
	}

	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, name := range files {
			stmt, err := schemaFS.ReadFile("schema/" + name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, string(stmt)); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			log.Debug().Str("file", name).Msg("schema applied")
		}
		return nil
	})
}

func schemaFiles() ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
