package database

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		name          string
		wantVersion   string
		wantDesc      string
		wantDirection string
		wantOK        bool
	}{
		{"000001_scoring_tables.up.sql", "000001", "scoring_tables", "up", true},
		{"000002_score_records.down.sql", "000002", "score_records", "down", true},
		{"000003.up.sql", "", "", "", false},
		{"_missing_version.up.sql", "", "", "", false},
		{"README.md", "", "", "", false},
		{"000004_notes.sql", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, desc, direction, ok := parseMigrationName(tt.name)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if version != tt.wantVersion || desc != tt.wantDesc || direction != tt.wantDirection {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)",
					version, desc, direction, tt.wantVersion, tt.wantDesc, tt.wantDirection)
			}
		})
	}
}

func TestLoadMigrations_SortsAndPairs(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_second.up.sql":   {Data: []byte("CREATE TABLE b ();")},
		"migrations/000001_first.up.sql":    {Data: []byte("CREATE TABLE a ();")},
		"migrations/000001_first.down.sql":  {Data: []byte("DROP TABLE a;")},
		"migrations/000003_orphan.down.sql": {Data: []byte("DROP TABLE c;")},
		"migrations/notes.txt":              {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("len(migrations) = %d, want 2 (down-only migration skipped)", len(migrations))
	}
	if migrations[0].Version != "000001" || migrations[1].Version != "000002" {
		t.Errorf("versions = %s, %s; want sorted", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].DownSQL != "DROP TABLE a;" {
		t.Errorf("down sql not paired: %q", migrations[0].DownSQL)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := LoadMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("LoadMigrations(embedded) error = %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("expected embedded migrations, got %d", len(migrations))
	}
	if last := migrations[len(migrations)-1]; last.Version != "000003" || !strings.Contains(last.UpSQL, "time_zone") {
		t.Errorf("expected the marker zone migration last, got %s %s", last.Version, last.Description)
	}
	for _, m := range migrations {
		if m.DownSQL == "" {
			t.Errorf("migration %s has no down script", m.Version)
		}
	}
}
