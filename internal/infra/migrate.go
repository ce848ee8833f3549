package infra

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	_ "github.com/lib/pq"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ApplySchema runs every embedded schema file in lexical order. Statements are
// idempotent so the command is safe to re-run.
func ApplySchema(ctx context.Context, databaseURL string, logger Logger) error {
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	files, err := SchemaFiles()
	if err != nil {
		return err
	}
	for _, name := range files {
		body, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		logger.Info().Str("file", name).Msg("migrate: applied")
	}
	return nil
}

// SchemaFiles lists the embedded schema files in application order.
func SchemaFiles() ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("list schema: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
