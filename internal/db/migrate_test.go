package db

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateCreatesSchema(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"users", "groups", "memberships", "musics", "setlists", "setlist_entries", "sessions"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	for _, column := range []string{"position", "setlist_id", "music_id"} {
		if !conn.Migrator().HasColumn("setlist_entries", column) {
			t.Fatalf("setlist_entries missing column %s", column)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("first migrate: %v", errMigrate)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost/worshipd", DialectPostgres},
		{"host=localhost user=worshipd dbname=worshipd", DialectPostgres},
		{"worshipd.db", DialectSQLite},
		{"file:worshipd.db?cache=shared", DialectSQLite},
		{"sqlite://data/worshipd.db", DialectSQLite},
	}
	for _, tc := range cases {
		got, errDetect := detectDialectFromDSN(tc.dsn)
		if errDetect != nil {
			t.Fatalf("detect %q: %v", tc.dsn, errDetect)
		}
		if got != tc.want {
			t.Fatalf("detect %q = %s, want %s", tc.dsn, got, tc.want)
		}
	}
	if _, errDetect := detectDialectFromDSN("mysql://nope"); errDetect == nil {
		t.Fatalf("expected error for unsupported dsn")
	}
}

func TestEnsureSQLiteParams(t *testing.T) {
	out := ensureSQLiteParams("file:worshipd.db?_journal_mode=DELETE")
	if !strings.Contains(out, "_journal_mode=DELETE") {
		t.Fatalf("existing param dropped: %s", out)
	}
	if !strings.Contains(out, "_busy_timeout=5000") {
		t.Fatalf("default param missing: %s", out)
	}
}
