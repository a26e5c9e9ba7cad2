package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

const sqlTemplate = `-- +goose Up
-- %[1]s

-- +goose Down
-- revert %[1]s
`

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<slug>.sql and returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", time.Now().UTC().Format(versionLayout), slug))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, sqlTemplate, slug); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

// migrationSlug lowercases name and collapses every run of other characters
// into a single underscore.
func migrationSlug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// ValidateDir checks that every .sql file is named <version>_<slug>.sql with
// a unique 14 digit version and carries both goose sections.
func ValidateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		version, slug, ok := splitMigrationName(name)
		if !ok || migrationSlug(slug) != slug {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[version]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		versions[version] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		for _, section := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), section) {
				return fmt.Errorf("migration %q missing %q", name, section)
			}
		}
	}
	return nil
}

func splitMigrationName(filename string) (version, slug string, ok bool) {
	version, slug, found := strings.Cut(strings.TrimSuffix(filename, ".sql"), "_")
	if !found || slug == "" {
		return "", "", false
	}
	if _, err := time.Parse(versionLayout, version); err != nil || len(version) != len(versionLayout) {
		return "", "", false
	}
	return version, slug, true
}
