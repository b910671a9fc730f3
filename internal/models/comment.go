package models

import (
	"strings"
	"time"
)

const (
	CommentBodyMinLen = 5
	CommentBodyMaxLen = 1000
)

// Comment is a threaded comment on some parent resource. ParentCommentID is
// nil for top-level comments and always points at a top-level comment for
// replies: nesting is one level deep, replies-to-replies get re-threaded
// under the original top-level comment before they are stored.
type Comment struct {
	Entity
	ParentID        uint       `gorm:"not null;index" json:"parent_id"`
	ParentCommentID *uint      `gorm:"index" json:"parent_comment_id"`
	Body            string     `gorm:"type:text;not null" json:"body"`
	LastActive      time.Time  `gorm:"index" json:"last_active"`
	ReactionCount   int        `gorm:"not null;default:0" json:"reaction_count"`
	Reactions       []Reaction `gorm:"foreignKey:ParentID" json:"-"`
}

// StampForCreate seeds the denormalized counter with the author's own
// initial reaction and starts the activity clock.
func (c *Comment) StampForCreate(ownerID uint) {
	c.Entity.StampForCreate(ownerID)
	c.ReactionCount = 1
	c.LastActive = c.Created
}

func (c *Comment) Normalize() {
	c.Body = strings.TrimSpace(c.Body)
}

// ValidBody reports whether the body is inside the allowed length bounds.
// Checked after Normalize so surrounding whitespace doesn't count.
func (c *Comment) ValidBody() bool {
	n := len(c.Body)
	return n >= CommentBodyMinLen && n <= CommentBodyMaxLen
}
