package migrate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNameRe   = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

	// now is swapped in tests.
	now = time.Now

	newFileTemplate = template.Must(template.New("migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.Slug}}
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{.Slug}}
-- +goose StatementEnd
`))
)

// migrationFile is one parsed <version>_<slug>.sql entry.
type migrationFile struct {
	Version string
	Slug    string
	Path    string
}

func slugify(name string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

func parseFileName(dir, name string) (migrationFile, bool) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return migrationFile{}, false
	}
	return migrationFile{Version: m[1], Slug: m[2], Path: filepath.Join(dir, name)}, true
}

// listFiles returns the .sql migrations in dir ordered by version. Any .sql
// file that does not follow the naming scheme is an error.
func listFiles(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %q: %w", dir, err)
	}
	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		f, ok := parseFileName(dir, e.Name())
		if !ok {
			return nil, fmt.Errorf("invalid migration filename %q, want %s_<name>.sql", e.Name(), versionLayout)
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// CreateSQLMigration writes an empty goose migration named after the
// current UTC time and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("migrations dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	existing, err := listFiles(dir)
	if err != nil {
		return "", err
	}
	version := now().UTC().Format(versionLayout)
	for _, f := range existing {
		if f.Version == version {
			return "", fmt.Errorf("migration version %s already used by %s", version, f.Path)
		}
	}

	var buf bytes.Buffer
	if err := newFileTemplate.Execute(&buf, struct{ Slug string }{slug}); err != nil {
		return "", fmt.Errorf("render migration: %w", err)
	}
	path := filepath.Join(dir, version+"_"+slug+".sql")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

// ValidateDir checks names, version uniqueness and that every file carries
// both goose Up and Down sections.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("migrations dir is required")
	}
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}

	for i, f := range files {
		if i > 0 && files[i-1].Version == f.Version {
			return fmt.Errorf("duplicate migration version %s: %s and %s", f.Version, files[i-1].Path, f.Path)
		}
		body, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("read migration %q: %w", f.Path, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !bytes.Contains(body, []byte(marker)) {
				return fmt.Errorf("migration %s missing %q", filepath.Base(f.Path), marker)
			}
		}
	}
	return nil
}
