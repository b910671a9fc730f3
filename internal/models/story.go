package models

import (
	"strings"
)

// Story is the demo resource type consuming the framework: an owner-scoped
// submission that comments attach to.
type Story struct {
	Entity
	Title        string `gorm:"not null" json:"title"`
	URL          string `json:"url"`
	Body         string `gorm:"type:text" json:"body"`
	CommentsOpen bool   `gorm:"not null;default:true" json:"comments_open"`
}

func (s *Story) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	s.URL = strings.TrimSpace(s.URL)
	s.Body = strings.TrimSpace(s.Body)
}
