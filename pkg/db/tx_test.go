package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func dialected(d gorm.Dialector) *gorm.DB {
	return &gorm.DB{Config: &gorm.Config{Dialector: d}}
}

func TestSnapshotTxOptions(t *testing.T) {
	want := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	assert.Equal(t, want, SnapshotTxOptions(dialected(postgres.Open("host=localhost"))))
	assert.Equal(t, want, SnapshotTxOptions(dialected(mysql.Open("user@tcp(localhost:3306)/db"))))
	assert.Nil(t, SnapshotTxOptions(dialected(sqlite.Open("file::memory:"))))
}
