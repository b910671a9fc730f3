package models

// ReactionType is the closed set of reactions a caller can attach.
type ReactionType string

const (
	ReactionLove  ReactionType = "love"
	ReactionLaugh ReactionType = "laugh"
	ReactionSad   ReactionType = "sad"
)

func (t ReactionType) Valid() bool {
	switch t {
	case ReactionLove, ReactionLaugh, ReactionSad:
		return true
	}
	return false
}

// Reaction is a single user's reaction to a comment. At most one reaction
// per (user, parent) is policy, enforced by the resource-type hook and
// backed by a unique index created at migration time — racing duplicates
// surface as a store conflict rather than a second row.
type Reaction struct {
	Entity
	ParentID uint         `gorm:"not null;index" json:"parent_id"`
	Type     ReactionType `gorm:"size:16;not null" json:"type"`
}
