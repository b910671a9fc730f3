// Package stories wires the demo resource types into the framework: the
// Story resource itself plus the comment and reaction hook implementations
// that hang the discussion thread off it.
package stories

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"restkit/internal/comments"
	"restkit/internal/models"
	"restkit/internal/reactions"
	"restkit/internal/resource"
	"restkit/internal/shape"
)

// StoryHooks opts the Story resource into each operation explicitly; the
// embedded base keeps everything else denied.
type StoryHooks struct {
	resource.Base[models.Story, *models.Story]
	DB *gorm.DB
}

func (h *StoryHooks) OnCreate(caller resource.Caller, _ *models.Story) resource.Outcome {
	if !caller.Authenticated {
		return resource.Deny("sign in to submit a story")
	}
	return resource.Allow()
}

func (h *StoryHooks) OnRead(_ resource.Caller, query *gorm.DB, _ *uint) (resource.Outcome, *gorm.DB) {
	// Stories are public.
	return resource.Allow(), query
}

func (h *StoryHooks) OnUpdate(caller resource.Caller, id uint, _ *models.Story) resource.Outcome {
	return h.ownerOnly(caller, id)
}

func (h *StoryHooks) OnDelete(caller resource.Caller, id uint) resource.Outcome {
	return h.ownerOnly(caller, id)
}

func (h *StoryHooks) ownerOnly(caller resource.Caller, id uint) resource.Outcome {
	if !caller.Authenticated || !resource.OwnedBy(h.DB, "stories", id, caller.UserID) {
		return resource.Deny("you may only change your own stories")
	}
	return resource.Allow()
}

// NewStoryService builds the soft-deleting, public-readable story resource.
func NewStoryService(db *gorm.DB, log *logrus.Logger) *resource.Service[models.Story, *models.Story] {
	return resource.NewService[models.Story](db, &StoryHooks{DB: db}, resource.Config{
		Name:          "stories",
		SoftDelete:    true,
		HideDeleted:   true,
		MutableFields: []string{"title", "url", "body", "comments_open"},
		Fields: shape.Fields{
			"title":         {Column: "title", Kind: shape.String, Filter: true, Sort: true},
			"created":       {Column: "created", Kind: shape.Time, Filter: true, Sort: true},
			"updated":       {Column: "updated", Kind: shape.Time, Filter: true, Sort: true},
			"user_id":       {Column: "user_id", Kind: shape.Int, Filter: true},
			"comments_open": {Column: "comments_open", Kind: shape.Bool, Filter: true},
		},
	}, log)
}

// CommentHooks implements both the base authorization hooks for the
// comment rows and the comment subsystem's policy seam.
type CommentHooks struct {
	resource.Base[models.Comment, *models.Comment]
	DB *gorm.DB
}

// OnCreate stays denied: comment creation goes through the subsystem path
// and its own CreateCommentOn* policies, never through base Create.

func (h *CommentHooks) OnRead(_ resource.Caller, query *gorm.DB, _ *uint) (resource.Outcome, *gorm.DB) {
	return resource.Allow(), query
}

func (h *CommentHooks) OnUpdate(caller resource.Caller, id uint, _ *models.Comment) resource.Outcome {
	return h.ownerOnly(caller, id)
}

func (h *CommentHooks) OnDelete(caller resource.Caller, id uint) resource.Outcome {
	return h.ownerOnly(caller, id)
}

func (h *CommentHooks) ownerOnly(caller resource.Caller, id uint) resource.Outcome {
	if !caller.Authenticated || !resource.OwnedBy(h.DB, "comments", id, caller.UserID) {
		return resource.Deny("you may only change your own comments")
	}
	return resource.Allow()
}

func (h *CommentHooks) CreateCommentOnParent(caller resource.Caller, comment *models.Comment) resource.Outcome {
	if !caller.Authenticated {
		return resource.Deny("sign in to comment")
	}

	var story models.Story
	err := h.DB.Select("id", "deleted", "comments_open").
		Where("id = ?", comment.ParentID).
		Take(&story).Error
	if err != nil || story.Deleted {
		return resource.Deny("story does not accept comments")
	}
	if !story.CommentsOpen {
		return resource.Deny("comments are closed on this story")
	}
	return resource.Allow()
}

func (h *CommentHooks) CreateCommentOnComment(caller resource.Caller, comment *models.Comment) (uint, resource.Outcome) {
	id := *comment.ParentCommentID

	// Walk to the top-level ancestor so replies-to-replies flatten onto
	// the original thread.
	for hops := 0; hops < 8; hops++ {
		var target models.Comment
		err := h.DB.Select("id", "parent_id", "parent_comment_id", "deleted").
			Where("id = ?", id).
			Take(&target).Error
		if err != nil || target.Deleted || target.ParentID != comment.ParentID {
			return 0, resource.Deny("no such comment to reply to")
		}
		if target.ParentCommentID == nil {
			return target.ID, resource.Allow()
		}
		id = *target.ParentCommentID
	}
	return 0, resource.Deny("no such comment to reply to")
}

func (h *CommentHooks) FilterCanAccessComment(query *gorm.DB) *gorm.DB {
	return query.Where("deleted = ?", false)
}

// NewCommentService builds the comment subsystem for stories.
func NewCommentService(db *gorm.DB, hub comments.Broadcaster, log *logrus.Logger) *comments.Service {
	hooks := &CommentHooks{DB: db}
	base := resource.NewService[models.Comment](db, hooks, resource.Config{
		Name:          "comments",
		SoftDelete:    true,
		MutableFields: []string{"body"},
		Fields: shape.Fields{
			"created":     {Column: "created", Kind: shape.Time, Filter: true, Sort: true},
			"last_active": {Column: "last_active", Kind: shape.Time, Filter: true, Sort: true},
			"user_id":     {Column: "user_id", Kind: shape.Int, Filter: true},
		},
	}, log)
	return comments.NewService(base, hooks, comments.Config{ChildPageSize: 5}, hub, log)
}

// ReactionHooks implements the reaction policy: one reaction per caller
// per comment, and only love reactions move the vote counter.
type ReactionHooks struct {
	resource.Base[models.Reaction, *models.Reaction]
	DB *gorm.DB
}

func (h *ReactionHooks) CreateReaction(caller resource.Caller, reaction *models.Reaction) resource.Outcome {
	if !caller.Authenticated {
		return resource.Deny("sign in to react")
	}

	var visible int64
	h.DB.Model(&models.Comment{}).
		Where("id = ? AND deleted = ?", reaction.ParentID, false).
		Count(&visible)
	if visible == 0 {
		return resource.Deny("no such comment")
	}

	var existing int64
	h.DB.Model(&models.Reaction{}).
		Where("parent_id = ? AND user_id = ?", reaction.ParentID, caller.UserID).
		Count(&existing)
	if existing > 0 {
		return resource.Deny("you already reacted to this comment")
	}
	return resource.Allow()
}

func (h *ReactionHooks) IncrementVoteCountOnCreate(reaction *models.Reaction) bool {
	return reaction.Type == models.ReactionLove
}

func (h *ReactionHooks) DecrementVoteCountOnDelete(reaction *models.Reaction) bool {
	return reaction.Type == models.ReactionLove
}

// NewReactionService builds the reaction service over comment parents,
// with counter sync enabled.
func NewReactionService(db *gorm.DB, log *logrus.Logger) *reactions.Service {
	hooks := &ReactionHooks{DB: db}
	base := resource.NewService[models.Reaction](db, hooks, resource.Config{
		Name: "reactions",
		Fields: shape.Fields{
			"created": {Column: "reactions.created", Kind: shape.Time, Filter: true, Sort: true},
			"type":    {Column: "reactions.type", Kind: shape.String, Filter: true},
		},
	}, log)
	return reactions.NewService(base, hooks, reactions.Config{
		SyncCounters:  true,
		CounterTable:  "comments",
		CounterColumn: "reaction_count",
	}, log)
}
