// Package comments implements the threaded comment subsystem on top of the
// generic resource service: creation seeds the author's initial reaction
// and bumps the top-level ancestor's activity clock in the same
// transaction, and reads return a one-level projection (comment, author
// name, caller's reactions, newest replies) without ever recursing past
// the first reply level.
package comments

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"restkit/internal/models"
	"restkit/internal/resource"
	"restkit/internal/shape"
)

// maxBumpDepth bounds the walk-to-root against corrupted parent chains.
// The one-level nesting invariant means two steps in practice; the walk is
// written generally so deeper nesting stays correct.
const maxBumpDepth = 32

// Hooks is the comment-specific policy seam, implemented by the consuming
// resource type alongside the base authorization hooks.
type Hooks interface {
	// CreateCommentOnParent decides whether the parent object accepts new
	// comments (exists, visible, open for discussion).
	CreateCommentOnParent(caller resource.Caller, comment *models.Comment) resource.Outcome

	// CreateCommentOnComment validates a reply target and resolves the
	// top-level ancestor the reply threads under. Replies to replies are
	// flattened onto that ancestor.
	CreateCommentOnComment(caller resource.Caller, comment *models.Comment) (topLevelID uint, out resource.Outcome)

	// FilterCanAccessComment narrows read queries to comments the public
	// may see. Soft-deleted rows are excluded here, by the resource type,
	// not by the base framework.
	FilterCanAccessComment(query *gorm.DB) *gorm.DB
}

// Broadcaster is notified after a successful create. Delivery is fire and
// forget; failures never fail the create.
type Broadcaster interface {
	CommentCreated(group string, payload any)
}

// Group names the broadcast group for comments under one parent object.
func Group(parentID uint) string {
	return fmt.Sprintf("comments:%d", parentID)
}

type Config struct {
	// ChildPageSize is the fixed number of newest replies embedded in each
	// top-level comment projection.
	ChildPageSize int
}

type Service struct {
	db    *gorm.DB
	base  *resource.Service[models.Comment, *models.Comment]
	hooks Hooks
	cfg   Config
	hub   Broadcaster
	log   *logrus.Logger
}

func NewService(base *resource.Service[models.Comment, *models.Comment], hooks Hooks, cfg Config, hub Broadcaster, log *logrus.Logger) *Service {
	if cfg.ChildPageSize <= 0 {
		cfg.ChildPageSize = 5
	}
	return &Service{db: base.DB(), base: base, hooks: hooks, cfg: cfg, hub: hub, log: log}
}

// Create stores a new comment together with its seeded reaction and, for
// replies, the ancestor activity bump — one transaction, so a reply and
// its ancestor's last-active become visible atomically or not at all.
func (s *Service) Create(caller resource.Caller, comment *models.Comment) (*View, *resource.Error) {
	comment.StampForCreate(caller.UserID)
	comment.Normalize()

	if !comment.ValidBody() {
		return nil, resource.BadRequest(fmt.Sprintf("comment body must be %d to %d characters",
			models.CommentBodyMinLen, models.CommentBodyMaxLen))
	}

	if out := s.hooks.CreateCommentOnParent(caller, comment); !out.Allowed {
		return nil, resource.Forbidden(out.Reason)
	}

	var bumpTarget *uint
	if comment.ParentCommentID != nil {
		topID, out := s.hooks.CreateCommentOnComment(caller, comment)
		if !out.Allowed {
			return nil, resource.Forbidden(out.Reason)
		}
		comment.ParentCommentID = &topID
		bumpTarget = &topID
	}

	// The author's own reaction, inserted with the comment and counted by
	// the seeded ReactionCount of 1.
	seed := models.Reaction{Type: models.ReactionLove}
	seed.StampForCreate(caller.UserID)
	comment.Reactions = []models.Reaction{seed}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		if bumpTarget != nil {
			return bump(tx, *bumpTarget)
		}
		return nil
	})
	if rerr := resource.ClassifyCommit(err); rerr != nil {
		s.logError("create", rerr)
		return nil, rerr
	}

	views, err := s.buildViews(caller, []models.Comment{*comment}, false)
	if err != nil {
		rerr := resource.Fatal(err)
		s.logError("create", rerr)
		return nil, rerr
	}
	view := &views[0]

	if s.hub != nil {
		go s.hub.CommentCreated(Group(comment.ParentID), view)
	}
	return view, nil
}

// Bump refreshes the last-active timestamp of the comment and every
// ancestor up to the top-level comment, touching only that column.
func (s *Service) Bump(commentID uint) *resource.Error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return bump(tx, commentID)
	})
	if rerr := resource.ClassifyCommit(err); rerr != nil {
		s.logError("bump", rerr)
		return rerr
	}
	return nil
}

func bump(tx *gorm.DB, commentID uint) error {
	id := commentID
	for depth := 0; ; depth++ {
		if depth >= maxBumpDepth {
			return fmt.Errorf("comment %d: parent chain deeper than %d", commentID, maxBumpDepth)
		}

		res := tx.Model(&models.Comment{}).
			Where("id = ?", id).
			UpdateColumn("last_active", models.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("comment %d: bump target missing", id)
		}

		var row models.Comment
		if err := tx.Select("id", "parent_comment_id").Where("id = ?", id).Take(&row).Error; err != nil {
			return err
		}
		if row.ParentCommentID == nil {
			return nil
		}
		id = *row.ParentCommentID
	}
}

// ListForParent returns the shaped page of top-level comments under a
// parent object, each projected with its newest replies one level deep.
func (s *Service) ListForParent(caller resource.Caller, parentID uint, req shape.Request) ([]View, *resource.Error) {
	return s.list(caller, req, true, func(q *gorm.DB) *gorm.DB {
		return q.Where("parent_id = ? AND parent_comment_id IS NULL", parentID)
	})
}

// ListReplies returns the shaped page of direct replies to a comment.
// Replies carry no child projection of their own: replies of replies are
// never fetched.
func (s *Service) ListReplies(caller resource.Caller, commentID uint, req shape.Request) ([]View, *resource.Error) {
	return s.list(caller, req, false, func(q *gorm.DB) *gorm.DB {
		return q.Where("parent_comment_id = ?", commentID)
	})
}

// Update edits the body of a caller-owned comment; only the body column is
// persisted, guarded by the concurrency token.
func (s *Service) Update(caller resource.Caller, id uint, comment *models.Comment) *resource.Error {
	comment.Normalize()
	if !comment.ValidBody() {
		return resource.BadRequest(fmt.Sprintf("comment body must be %d to %d characters",
			models.CommentBodyMinLen, models.CommentBodyMaxLen))
	}
	return s.base.Update(caller, id, comment, "body")
}

// Delete removes a caller-owned comment, honoring the resource's
// soft-delete configuration.
func (s *Service) Delete(caller resource.Caller, id uint) *resource.Error {
	return s.base.Delete(caller, id)
}

func (s *Service) list(caller resource.Caller, req shape.Request, withChildren bool, narrow func(*gorm.DB) *gorm.DB) ([]View, *resource.Error) {
	q := s.db.Model(&models.Comment{})
	q = s.hooks.FilterCanAccessComment(q)
	q = narrow(q)

	q, serr := shape.ApplyFilterAndSort(req, s.base.Config().Fields, q)
	if serr != nil {
		return nil, resource.BadRequest(serr.Error())
	}

	cfg := s.base.Config()
	q = shape.ApplyPagination(req, cfg.DefaultPageSize, cfg.MaxPageSize, q)

	var rows []models.Comment
	if err := q.Find(&rows).Error; err != nil {
		rerr := resource.Fatal(err)
		s.logError("list", rerr)
		return nil, rerr
	}

	views, err := s.buildViews(caller, rows, withChildren)
	if err != nil {
		rerr := resource.Fatal(err)
		s.logError("list", rerr)
		return nil, rerr
	}
	return views, nil
}

func (s *Service) logError(op string, rerr *resource.Error) {
	if rerr.Kind != resource.KindFatal || s.log == nil {
		return
	}
	s.log.WithError(errors.Unwrap(rerr)).WithField("op", "comments."+op).Error("store failure")
}

// childrenFor loads the newest ChildPageSize visible replies for each of
// the given top-level comment ids in one query, grouped in memory.
func (s *Service) childrenFor(ids []uint) (map[uint][]models.Comment, error) {
	var rows []models.Comment
	q := s.db.Model(&models.Comment{}).Where("parent_comment_id IN ?", ids)
	q = s.hooks.FilterCanAccessComment(q)
	if err := q.Order("created DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	grouped := make(map[uint][]models.Comment, len(ids))
	for _, row := range rows {
		pid := *row.ParentCommentID
		if len(grouped[pid]) < s.cfg.ChildPageSize {
			grouped[pid] = append(grouped[pid], row)
		}
	}
	return grouped, nil
}

func collectIDs(comments []models.Comment) (ids, userIDs []uint) {
	seen := make(map[uint]struct{}, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
		if _, ok := seen[c.UserID]; !ok {
			seen[c.UserID] = struct{}{}
			userIDs = append(userIDs, c.UserID)
		}
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	return ids, userIDs
}
