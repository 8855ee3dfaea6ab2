package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNamePattern = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)
	slugSeparators  = regexp.MustCompile(`[^a-z0-9]+`)
)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin

-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin

-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named after the current
// UTC time and a slug of name.
func CreateSQLMigration(dir, name string) (string, error) {
	slug := strings.Trim(slugSeparators.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", time.Now().UTC().Format(versionLayout), slug))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration file: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(migrationTemplate); err != nil {
		return "", fmt.Errorf("write migration file: %w", err)
	}
	return path, nil
}

// ValidateDir checks every .sql file in dir: versioned snake_case names,
// unique versions, and an Up section that precedes the Down section.
func ValidateDir(dir string) error {
	return validateFS(os.DirFS(dir))
}

func validateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return errors.New("no migration files found")
	}
	sort.Strings(names)

	var problems []string
	seen := make(map[string]string, len(names))
	for _, name := range names {
		match := fileNamePattern.FindStringSubmatch(name)
		if match == nil {
			problems = append(problems, fmt.Sprintf("%s: expected <%s>_<snake_name>.sql", name, versionLayout))
			continue
		}
		version := match[1]
		if _, err := time.Parse(versionLayout, version); err != nil {
			problems = append(problems, fmt.Sprintf("%s: version is not a timestamp", name))
		}
		if prev, dup := seen[version]; dup {
			problems = append(problems, fmt.Sprintf("%s: version %s already used by %s", name, version, prev))
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if msg := checkSections(string(body)); msg != "" {
			problems = append(problems, fmt.Sprintf("%s: %s", name, msg))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid migrations:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func checkSections(body string) string {
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		return "missing -- +goose Up"
	case down < 0:
		return "missing -- +goose Down"
	case down < up:
		return "-- +goose Down appears before -- +goose Up"
	}
	return ""
}
