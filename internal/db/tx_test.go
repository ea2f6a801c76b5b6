package db

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestWriteTxOptionsPerDialect(t *testing.T) {
	lite, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if opts := WriteTxOptions(lite); opts != nil {
		t.Fatalf("sqlite options = %+v, want none", opts)
	}

	pg := &gorm.DB{Config: &gorm.Config{Dialector: postgres.Open("host=localhost")}}
	opts := WriteTxOptions(pg)
	if len(opts) != 1 || opts[0].Isolation != sql.LevelSerializable {
		t.Fatalf("postgres options = %+v, want serializable", opts)
	}
}

func TestIsSerializationFailure(t *testing.T) {
	wrapped := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})
	if !IsSerializationFailure(wrapped) {
		t.Fatalf("wrapped 40001 not detected")
	}
	if IsSerializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation misread as serialization failure")
	}
	if IsSerializationFailure(fmt.Errorf("no sql state")) {
		t.Fatalf("plain error misread as serialization failure")
	}
	if IsSerializationFailure(nil) {
		t.Fatalf("nil misread as serialization failure")
	}
}
