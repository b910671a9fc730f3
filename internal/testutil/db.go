// Package testutil provides the shared test fixtures: an isolated
// in-memory database carrying the full schema, and a quiet logger.
package testutil

import (
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"restkit/internal/db"
	"restkit/internal/models"
)

var dbSeq atomic.Int64

// OpenDB opens a fresh in-memory database and runs the full migration.
// Each call gets its own database; the shared-cache DSN keeps it alive
// across the connections gorm pools.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return gdb
}

// Logger returns a logger that swallows everything.
func Logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// NewUser creates a user row and returns it.
func NewUser(t *testing.T, gdb *gorm.DB, username string) models.User {
	t.Helper()

	user := models.User{Username: username, Email: username + "@example.test"}
	if err := user.SetPassword("hunter22"); err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return user
}
