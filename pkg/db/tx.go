package db

import (
	"database/sql"

	"gorm.io/gorm"
)

// SnapshotTxOptions returns options for a read-only transaction in which
// every statement sees the same committed state. SQLite already reads a
// single snapshot per transaction and gets the driver default.
func SnapshotTxOptions(db *gorm.DB) *sql.TxOptions {
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	default:
		return nil
	}
}
