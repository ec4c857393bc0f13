package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMaterielsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_materiels.sql")
	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS materiels",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_materiels_identifier ON materiels (identifier)",
		"FOREIGN KEY (type_id) REFERENCES materiel_types(id) ON DELETE RESTRICT",
		"CHECK (status IN ('available', 'in_use', 'maintenance', 'retired'))",
		"DROP TABLE IF EXISTS materiels",
	})
}

func TestMaterielLogsMigrationKeepsHistory(t *testing.T) {
	content := readMigration(t, "*_create_materiel_logs.sql")
	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS materiel_logs",
		"CHECK (action IN ('checkout', 'checkin', 'maintenance', 'repair', 'retire'))",
		"idx_materiel_logs_materiel_time",
		"DROP TABLE IF EXISTS materiel_logs",
	})
	if strings.Contains(content, "REFERENCES materiels") {
		t.Errorf("materiel_logs must not reference materiels")
	}
}

func TestRoleAssignmentsMigrationSeedsRole(t *testing.T) {
	content := readMigration(t, "*_create_role_assignments.sql")
	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS roles",
		"CREATE TABLE IF NOT EXISTS role_assignments",
		"INSERT INTO roles (shortname) VALUES ('mmi_materiel')",
	})
}
