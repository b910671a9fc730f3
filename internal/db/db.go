package db

import (
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"restkit/internal/models"
)

// Open connects to postgres. TranslateError turns driver duplicate-key
// errors into gorm.ErrDuplicatedKey so commits classify uniformly.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// Migrate creates the schema plus the reaction uniqueness index that backs
// the one-reaction-per-caller policy under races.
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.User{},
		&models.Story{},
		&models.Comment{},
		&models.Reaction{},
	)
	if err != nil {
		return err
	}

	// Composite unique index over fields of the embedded entity; gorm tags
	// can't express it across the embedding, so raw DDL.
	return gdb.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_reactions_owner_parent ON reactions (user_id, parent_id)").Error
}

// SeedDev creates the development users and a sample story on an empty
// database. Invoked once at startup, outside the core.
func SeedDev(gdb *gorm.DB, log *logrus.Logger) {
	var count int64
	gdb.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Info("dev data already seeded, skipping")
		return
	}

	users := []struct {
		username, email, password string
	}{
		{"dev", "dev@localhost", "devpass"},
		{"alice", "alice@localhost", "alicepass"},
		{"bob", "bob@localhost", "bobpass"},
	}

	var first models.User
	for i, u := range users {
		user := models.User{Username: u.username, Email: u.email}
		if err := user.SetPassword(u.password); err != nil {
			log.WithError(err).Fatal("failed to hash seed password")
		}
		if err := gdb.Create(&user).Error; err != nil {
			log.WithError(err).WithField("user", u.username).Error("failed to create seed user")
			continue
		}
		if i == 0 {
			first = user
		}
	}

	story := models.Story{
		Title:        "Welcome",
		Body:         "First story on this instance. Say hi below.",
		CommentsOpen: true,
	}
	story.StampForCreate(first.ID)
	if err := gdb.Create(&story).Error; err != nil {
		log.WithError(err).Error("failed to create seed story")
		return
	}
	log.Info("dev data seeded")
}
