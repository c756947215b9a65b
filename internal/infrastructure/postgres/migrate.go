package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// MigrationSource returns dir when set, otherwise the embedded fallback.
func MigrationSource(dir string, embedded fs.FS) fs.FS {
	if strings.TrimSpace(dir) == "" {
		return embedded
	}
	return os.DirFS(dir)
}

// RunMigrations executes the .sql files of fsys in lexical order.
func RunMigrations(ctx context.Context, db DBTX, fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	files := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		sql := strings.TrimSpace(string(data))
		if sql == "" {
			continue
		}
		if _, err := db.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}

	return nil
}
