package db

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// serializationFailure is the PostgreSQL SQLSTATE raised when a
// SERIALIZABLE transaction cannot be committed.
const serializationFailure = "40001"

// WriteTxOptions returns the transaction options for multi-statement
// writes. PostgreSQL runs them SERIALIZABLE so concurrent position
// shifts and role changes cannot interleave; SQLite holds a write lock
// for the whole transaction and takes no explicit level.
func WriteTxOptions(conn *gorm.DB) []*sql.TxOptions {
	if IsSQLite(conn) {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
}

// IsSerializationFailure reports whether err is a PostgreSQL
// serialization failure.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}
