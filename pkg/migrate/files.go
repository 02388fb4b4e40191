package migrate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/pressly/goose/v3"
)

const versionLayout = "20060102150405"

var (
	unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)
	fileNameRe   = regexp.MustCompile(`^\d{14}_[a-z0-9_]+\.sql$`)

	sqlTemplate = template.Must(template.New("migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.Name}}: forward change
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- {{.Name}}: revert forward change
-- +goose StatementEnd
`))
)

// CreateSQLMigration writes an empty goose migration named
// <timestamp>_<name>.sql and returns its path. The timestamp is bumped past
// the newest existing version so files created in the same second still sort.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	existing, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return "", fmt.Errorf("read existing migrations: %w", err)
	}
	version := time.Now().UTC()
	if last, err := existing.Last(); err == nil {
		if newest, perr := time.Parse(versionLayout, strconv.FormatInt(last.Version, 10)); perr == nil && !version.After(newest) {
			version = newest.Add(time.Second)
		}
	}

	var body bytes.Buffer
	if err := sqlTemplate.Execute(&body, struct{ Name string }{slug}); err != nil {
		return "", fmt.Errorf("render migration: %w", err)
	}
	path := filepath.Join(dir, version.Format(versionLayout)+"_"+slug+".sql")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", path, err)
	}
	if _, err := f.Write(body.Bytes()); err != nil {
		f.Close()
		return "", fmt.Errorf("write %q: %w", path, err)
	}
	return path, f.Close()
}

// ValidateDir checks that dir holds at least one migration, that goose can
// order them without duplicate versions, and that each file names both
// directions.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return fmt.Errorf("collect migrations in %q: %w", dir, err)
	}
	if len(migrations) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	for _, m := range migrations {
		name := filepath.Base(m.Source)
		if !fileNameRe.MatchString(name) {
			return fmt.Errorf("migration %q must be named YYYYMMDDHHMMSS_snake_name.sql", name)
		}
		content, err := os.ReadFile(m.Source)
		if err != nil {
			return fmt.Errorf("read %q: %w", m.Source, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !bytes.Contains(content, []byte(marker)) {
				return fmt.Errorf("migration %q is missing %q", name, marker)
			}
		}
	}
	return nil
}
