// Package reactions implements reaction create/read/delete on top of the
// generic resource service, with a configurable policy for keeping the
// parent's denormalized counter in sync.
package reactions

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"restkit/internal/models"
	"restkit/internal/resource"
	"restkit/internal/shape"
)

// Hooks is the reaction-specific policy seam.
type Hooks interface {
	// CreateReaction validates a new reaction (typically: parent exists
	// and the caller has not already reacted to it).
	CreateReaction(caller resource.Caller, reaction *models.Reaction) resource.Outcome

	// IncrementVoteCountOnCreate and DecrementVoteCountOnDelete decide,
	// per reaction, whether it counts toward the parent's denormalized
	// counter. Only consulted when counter sync is enabled.
	IncrementVoteCountOnCreate(reaction *models.Reaction) bool
	DecrementVoteCountOnDelete(reaction *models.Reaction) bool
}

type Config struct {
	// SyncCounters enables the counter wiring. Off, the hooks above are
	// never consulted and counter upkeep is entirely the resource type's
	// concern.
	SyncCounters bool
	// CounterTable/CounterColumn locate the parent's counter.
	CounterTable  string
	CounterColumn string
}

type Service struct {
	db    *gorm.DB
	base  *resource.Service[models.Reaction, *models.Reaction]
	hooks Hooks
	cfg   Config
	log   *logrus.Logger
}

func NewService(base *resource.Service[models.Reaction, *models.Reaction], hooks Hooks, cfg Config, log *logrus.Logger) *Service {
	if cfg.CounterColumn == "" {
		cfg.CounterColumn = "reaction_count"
	}
	return &Service{db: base.DB(), base: base, hooks: hooks, cfg: cfg, log: log}
}

// Create stores a reaction after the type-specific hook approves it,
// bumping the parent counter in the same transaction when the sync policy
// says this reaction counts. A racing duplicate past the hook trips the
// (user, parent) unique index and surfaces as Conflict.
func (s *Service) Create(caller resource.Caller, reaction *models.Reaction) *resource.Error {
	if !reaction.Type.Valid() {
		return resource.BadRequest("unknown reaction type")
	}

	reaction.StampForCreate(caller.UserID)
	reaction.Normalize()

	if out := s.hooks.CreateReaction(caller, reaction); !out.Allowed {
		return resource.Forbidden(out.Reason)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reaction).Error; err != nil {
			return err
		}
		if s.cfg.SyncCounters && s.hooks.IncrementVoteCountOnCreate(reaction) {
			return s.addToCounter(tx, reaction.ParentID, +1)
		}
		return nil
	})
	if rerr := resource.ClassifyCommit(err); rerr != nil {
		s.logError("create", rerr)
		return rerr
	}
	return nil
}

// ListForParent returns the shaped page of reactions on a parent the
// caller owns — authors see who reacted to their comment, nobody else
// does.
func (s *Service) ListForParent(caller resource.Caller, parentID uint, req shape.Request) (*resource.Page[models.Reaction], *resource.Error) {
	cfg := s.base.Config()

	q := s.db.Model(&models.Reaction{}).
		Joins("JOIN "+s.cfg.CounterTable+" parent ON parent.id = reactions.parent_id").
		Where("reactions.parent_id = ? AND parent.user_id = ?", parentID, caller.UserID)

	q, serr := shape.ApplyFilterAndSort(req, cfg.Fields, q)
	if serr != nil {
		return nil, resource.BadRequest(serr.Error())
	}

	page, size := shape.ClampPage(req, cfg.DefaultPageSize, cfg.MaxPageSize)
	q = shape.ApplyPagination(req, cfg.DefaultPageSize, cfg.MaxPageSize, q)

	var items []models.Reaction
	if err := q.Find(&items).Error; err != nil {
		rerr := resource.Fatal(err)
		s.logError("list", rerr)
		return nil, rerr
	}
	return &resource.Page[models.Reaction]{Items: items, Page: page, Size: size}, nil
}

// Delete removes a caller-owned reaction, decrementing the parent counter
// under the same policy that counted it.
func (s *Service) Delete(caller resource.Caller, id uint) *resource.Error {
	var reaction models.Reaction
	err := s.db.Select("id", "user_id", "parent_id", "type").
		Where("id = ? AND user_id = ?", id, caller.UserID).
		Take(&reaction).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return resource.Forbidden("not your reaction")
	case err != nil:
		rerr := resource.Fatal(err)
		s.logError("delete", rerr)
		return rerr
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if s.cfg.SyncCounters && s.hooks.DecrementVoteCountOnDelete(&reaction) {
			return s.addToCounter(tx, reaction.ParentID, -1)
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return resource.Gone("reaction already gone")
	}
	if rerr := resource.ClassifyCommit(err); rerr != nil {
		s.logError("delete", rerr)
		return rerr
	}
	return nil
}

func (s *Service) addToCounter(tx *gorm.DB, parentID uint, delta int) error {
	return tx.Table(s.cfg.CounterTable).
		Where("id = ?", parentID).
		UpdateColumn(s.cfg.CounterColumn, gorm.Expr(s.cfg.CounterColumn+" + ?", delta)).Error
}

func (s *Service) logError(op string, rerr *resource.Error) {
	if rerr.Kind != resource.KindFatal || s.log == nil {
		return
	}
	s.log.WithError(errors.Unwrap(rerr)).WithField("op", "reactions."+op).Error("store failure")
}
